package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
)

// Metrics holds Prometheus counters and gauges for the room server.
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
	commandsTotal         *prometheus.CounterVec
	broadcastsTotal       prometheus.Counter
	broadcastDropsTotal   prometheus.Counter
	roomsCreatedTotal     prometheus.Counter
	roomsDeletedTotal     prometheus.Counter
	timesyncRequestsTotal prometheus.Counter
	activeRooms           prometheus.Gauge
	activeConnections     prometheus.Gauge
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncroom_http_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncroom_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncroom_commands_total",
			Help: "Room commands by type and outcome",
		}, []string{"command", "result"}),
		broadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncroom_broadcasts_total",
			Help: "Room snapshots enqueued to participant connections",
		}),
		broadcastDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncroom_broadcast_drops_total",
			Help: "Room snapshots dropped because a connection could not take them",
		}),
		roomsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncroom_rooms_created_total",
			Help: "Total number of rooms created",
		}),
		roomsDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncroom_rooms_deleted_total",
			Help: "Total number of rooms deleted after their last participant left",
		}),
		timesyncRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncroom_timesync_requests_total",
			Help: "Total number of clock sync requests answered",
		}),
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syncroom_active_rooms",
			Help: "Number of rooms with at least one participant",
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syncroom_active_connections",
			Help: "Number of open websocket connections",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.commandsTotal,
		m.broadcastsTotal,
		m.broadcastDropsTotal,
		m.roomsCreatedTotal,
		m.roomsDeletedTotal,
		m.timesyncRequestsTotal,
		m.activeRooms,
		m.activeConnections,
	)

	return m
}

func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// ObserveCommand counts one command with its outcome (ResultAccepted or
// ResultRejected).
func (m *Metrics) ObserveCommand(command, result string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(command, result).Inc()
}

func (m *Metrics) AddBroadcasts(n int) {
	if m == nil {
		return
	}
	m.broadcastsTotal.Add(float64(n))
}

func (m *Metrics) IncBroadcastDrops() {
	if m == nil {
		return
	}
	m.broadcastDropsTotal.Inc()
}

func (m *Metrics) IncRoomsCreated() {
	if m == nil {
		return
	}
	m.roomsCreatedTotal.Inc()
}

func (m *Metrics) IncRoomsDeleted() {
	if m == nil {
		return
	}
	m.roomsDeletedTotal.Inc()
}

func (m *Metrics) IncTimesyncRequests() {
	if m == nil {
		return
	}
	m.timesyncRequestsTotal.Inc()
}

func (m *Metrics) SetActiveRooms(n int) {
	if m == nil {
		return
	}
	m.activeRooms.Set(float64(n))
}

func (m *Metrics) SetActiveConnections(n int) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

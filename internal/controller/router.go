package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sharetube/syncroom/internal/metrics"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(metrics.RequestMiddleware(c.metrics))
	r.Use(cors.AllowAll().Handler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		r.Get("/rooms/{room-id}", c.getRoom)
		r.Route("/ws", func(r chi.Router) {
			r.Get("/room/{room-id}", c.roomWS)
		})
	})

	if c.metrics != nil {
		r.Handle("/metrics", c.metrics.Handler(func() {
			c.metrics.SetActiveRooms(c.roomService.RoomCount())
			c.metrics.SetActiveConnections(c.roomService.ConnCount())
		}))
	}

	r.Get("/", c.landing)
	r.Get(`/{room-id:[\w-]+}`, c.index)
	r.Get("/*", c.static)

	return r
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/sharetube/syncroom/pkg/syncclient"
	"github.com/sharetube/syncroom/pkg/timesync"
)

func main() {
	server := pflag.String("server", "ws://localhost:80", "Server websocket base url")
	roomId := pflag.String("room", "", "Room to join")
	name := pflag.String("name", "", "Display name (remembered for later runs)")
	prefsPath := pflag.String("prefs", "", "Preferences file")
	prefsRedis := pflag.String("prefs-redis", "", "Redis address for preferences, used instead of --prefs")
	syncInterval := pflag.Duration("sync-interval", 10*time.Second, "Clock sync interval")
	logLevel := pflag.String("log-level", "INFO", "Logging level")
	pflag.Parse()

	if *roomId == "" {
		log.Fatal("--room is required")
	}

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(strings.ToUpper(*logLevel))); err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var prefs syncclient.PreferenceStore
	switch {
	case *prefsRedis != "":
		rc := redis.NewClient(&redis.Options{Addr: *prefsRedis})
		defer rc.Close()
		prefs = syncclient.NewRedisStore(rc, "syncroom:viewer:"+*roomId)
	case *prefsPath != "":
		prefs = syncclient.NewFileStore(*prefsPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tsCfg := timesync.DefaultConfig()
	tsCfg.Interval = *syncInterval

	client, err := syncclient.Dial(ctx, syncclient.Config{
		ServerURL: *server,
		RoomId:    *roomId,
		Timesync:  tsCfg,
	}, newHeadlessSurface(logger), prefs, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	if *name != "" {
		if err := client.SetName(ctx, *name); err != nil {
			log.Fatal(err)
		}
	}

	go readCommands(ctx, client, logger)
	go printUpdates(ctx, client)

	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}

func printUpdates(ctx context.Context, client *syncclient.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot := <-client.Updates():
			started := "paused"
			if snapshot.PlaybackState.Started != nil {
				started = strconv.FormatInt(*snapshot.PlaybackState.Started, 10)
			}
			fmt.Printf("room %s v%d started=%s participants=%d\n",
				snapshot.Id, snapshot.PlaybackState.Version, started, snapshot.ParticipantCount)
		}
	}
}

// readCommands runs gestures typed on stdin: play, pause, seek <s>,
// media <url>, name <name>, ready, unready, join <room>, leave.
func readCommands(ctx context.Context, client *syncclient.Client, logger *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		arg := strings.Join(fields[1:], " ")

		var err error
		switch fields[0] {
		case "play":
			err = client.Play()
		case "pause":
			err = client.Pause()
		case "seek":
			var seconds float64
			seconds, err = strconv.ParseFloat(arg, 64)
			if err == nil {
				err = client.Seek(seconds)
			}
		case "media":
			err = client.SetMedia(arg)
		case "name":
			err = client.SetName(ctx, arg)
		case "ready":
			err = client.SetReady(true)
		case "unready":
			err = client.SetReady(false)
		case "join":
			err = client.Join(arg)
		case "leave":
			err = client.Leave()
		default:
			err = fmt.Errorf("unknown command %q", fields[0])
		}
		if err != nil {
			logger.Warn("command failed", "command", fields[0], "error", err)
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/syncroom/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	staticDir = configVar[string]{
		envKey:       "SERVER_STATIC_DIR",
		flagKey:      "static-dir",
		defaultValue: "./public",
		usage:        "Directory with the room page and its assets",
	}
	sendBuffer = configVar[int]{
		envKey:       "SERVER_SEND_BUFFER",
		flagKey:      "send-buffer",
		defaultValue: 64,
		usage:        "Outbound messages buffered per connection",
	}
	resetPlaybackOnMediaChange = configVar[bool]{
		envKey:       "SERVER_RESET_PLAYBACK_ON_MEDIA_CHANGE",
		flagKey:      "reset-playback-on-media-change",
		defaultValue: false,
		usage:        "Pause playback and bump the version when the media changes",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "",
		usage:        "Redis host for the room snapshot mirror (empty disables it)",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
		usage:        "Redis password",
	}
	redisRoomExp = configVar[string]{
		envKey:       "REDIS_ROOM_EXP",
		flagKey:      "redis-room-exp",
		defaultValue: "24h",
		usage:        "Expiration of mirrored room snapshots",
	}
)

func bindString(v configVar[string]) {
	pflag.String(v.flagKey, v.defaultValue, v.usage)
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func bindInt(v configVar[int]) {
	pflag.Int(v.flagKey, v.defaultValue, v.usage)
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func bindBool(v configVar[bool]) {
	pflag.Bool(v.flagKey, v.defaultValue, v.usage)
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	bindString(host)
	bindInt(port)
	bindString(logLevel)
	bindString(staticDir)
	bindInt(sendBuffer)
	bindBool(resetPlaybackOnMediaChange)
	bindString(redisHost)
	bindInt(redisPort)
	bindString(redisPassword)
	bindString(redisRoomExp)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	return &app.AppConfig{
		Host:                       viper.GetString(host.flagKey),
		Port:                       viper.GetInt(port.flagKey),
		LogLevel:                   viper.GetString(logLevel.flagKey),
		StaticDir:                  viper.GetString(staticDir.flagKey),
		SendBuffer:                 viper.GetInt(sendBuffer.flagKey),
		ResetPlaybackOnMediaChange: viper.GetBool(resetPlaybackOnMediaChange.flagKey),
		RedisHost:                  viper.GetString(redisHost.flagKey),
		RedisPort:                  viper.GetInt(redisPort.flagKey),
		RedisPassword:              viper.GetString(redisPassword.flagKey),
		RedisRoomExp:               viper.GetDuration(redisRoomExp.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}

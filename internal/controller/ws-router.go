package controller

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw(), c.validateWSMw())
	mux.OnError(func(ctx context.Context, _ *websocket.Conn, err error) {
		c.logger.DebugContext(ctx, "websocket message dropped", "error", err)
	})

	// session
	wsrouter.Handle(mux, "ALIVE", c.handleAlive)
	wsrouter.Handle(mux, "JOIN", c.handleJoin)
	wsrouter.Handle(mux, "LEAVE", c.handleLeave)
	wsrouter.Handle(mux, "TIMESYNC", c.handleTimesync)

	// playback
	wsrouter.Handle(mux, "SET_MEDIA", c.handleSetMedia)
	wsrouter.Handle(mux, "PLAY", c.handlePlay)
	wsrouter.Handle(mux, "PAUSE", c.handlePause)
	wsrouter.Handle(mux, "SEEK", c.handleSeek)

	// participant
	wsrouter.Handle(mux, "SET_NAME", c.handleSetName)
	wsrouter.Handle(mux, "SET_READY", c.handleSetReady)
	wsrouter.Handle(mux, "SET_PLAYBACK_READY", c.handleSetPlaybackReady)

	return mux
}

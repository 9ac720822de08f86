package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/ctxlogger"
)

// roomWS upgrades the request and joins the room named in the path. The
// connection stays open even when that join is rejected; JOIN may follow.
func (c controller) roomWS(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	connId := uuid.NewString()
	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("conn_id", connId))

	cl := newClient(conn, c.sendBuffer, c.logger)
	defer cl.close()
	go cl.writePump()

	if err := c.roomService.Connect(ctx, &room.ConnectParams{
		ConnId: connId,
		Sender: cl,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to connect", "error", err)
		return
	}
	defer c.disconnect(ctx, connId)

	ctx = context.WithValue(ctx, connIdCtxKey, connId)
	ctx = context.WithValue(ctx, clientCtxKey, cl)

	if _, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		ConnId: connId,
		RoomId: roomId,
	}); err != nil {
		c.logger.DebugContext(ctx, "initial join rejected", "room_id", roomId, "error", err)
	}

	cl.prepareRead()
	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			c.logger.InfoContext(ctx, "connection closed", "error", err)
			return
		}
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}
}

func (c controller) disconnect(ctx context.Context, connId string) {
	if err := c.roomService.Disconnect(ctx, connId); err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect", "error", err)
	}
}

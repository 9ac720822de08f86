package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

const timesyncMessageType = "TIMESYNC"

type EmptyInput struct{}

func (c controller) dispatch(ctx context.Context, cmd domain.Command) error {
	if err := c.roomService.Dispatch(ctx, &room.DispatchParams{
		ConnId:  c.getConnIdFromCtx(ctx),
		Command: cmd,
	}); err != nil {
		return fmt.Errorf("failed to apply %s: %w", cmd.Name(), err)
	}

	return nil
}

func (c controller) handleAlive(_ context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return nil
}

type JoinInput struct {
	RoomId *string `json:"room_id" validate:"required"`
}

func (c controller) handleJoin(ctx context.Context, _ *websocket.Conn, input JoinInput) error {
	return c.dispatch(ctx, domain.JoinCommand{RoomId: *input.RoomId})
}

func (c controller) handleLeave(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return c.dispatch(ctx, domain.LeaveCommand{})
}

type TimesyncInput struct {
	Id json.RawMessage `json:"id"`
}

type TimesyncOutput struct {
	Id     json.RawMessage `json:"id"`
	Result int64           `json:"result"`
}

// handleTimesync answers the sender only, echoing the request id verbatim.
func (c controller) handleTimesync(ctx context.Context, _ *websocket.Conn, input TimesyncInput) error {
	id := input.Id
	if len(id) == 0 {
		id = json.RawMessage("null")
	}

	data, err := wsrouter.Encode(timesyncMessageType, &TimesyncOutput{
		Id:     id,
		Result: c.roomService.ResolveTime(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode timesync reply: %w", err)
	}

	cl := c.getClientFromCtx(ctx)
	if cl == nil {
		return fmt.Errorf("no client in context")
	}

	return cl.Send(data)
}

type SetMediaInput struct {
	Type *string `json:"type" validate:"required"`
	Src  *string `json:"src"`
}

func (c controller) handleSetMedia(ctx context.Context, _ *websocket.Conn, input SetMediaInput) error {
	return c.dispatch(ctx, domain.SetMediaCommand{
		Type: domain.MediaType(*input.Type),
		Src:  input.Src,
	})
}

type PlayInput struct {
	Version *int64 `json:"version" validate:"required"`
	// Started arrives as fractional milliseconds from browser clients.
	Started *float64 `json:"started" validate:"required"`
}

func (c controller) handlePlay(ctx context.Context, _ *websocket.Conn, input PlayInput) error {
	return c.dispatch(ctx, domain.PlayCommand{
		Version: *input.Version,
		Started: int64(math.Round(*input.Started)),
	})
}

type PauseInput struct {
	Version *int64 `json:"version" validate:"required"`
}

func (c controller) handlePause(ctx context.Context, _ *websocket.Conn, input PauseInput) error {
	return c.dispatch(ctx, domain.PauseCommand{Version: *input.Version})
}

type SeekInput struct {
	Version *int64   `json:"version" validate:"required"`
	Time    *float64 `json:"time" validate:"required"`
}

func (c controller) handleSeek(ctx context.Context, _ *websocket.Conn, input SeekInput) error {
	return c.dispatch(ctx, domain.SeekCommand{
		Version: *input.Version,
		Time:    *input.Time,
	})
}

type SetNameInput struct {
	Name *string `json:"name" validate:"required"`
}

func (c controller) handleSetName(ctx context.Context, _ *websocket.Conn, input SetNameInput) error {
	return c.dispatch(ctx, domain.SetNameCommand{DisplayName: *input.Name})
}

type SetReadyInput struct {
	Ready *bool `json:"ready" validate:"required"`
}

func (c controller) handleSetReady(ctx context.Context, _ *websocket.Conn, input SetReadyInput) error {
	return c.dispatch(ctx, domain.SetReadyCommand{Ready: *input.Ready})
}

type SetPlaybackReadyInput struct {
	PlaybackReady *bool `json:"playback_ready" validate:"required"`
}

func (c controller) handleSetPlaybackReady(ctx context.Context, _ *websocket.Conn, input SetPlaybackReadyInput) error {
	return c.dispatch(ctx, domain.SetPlaybackReadyCommand{PlaybackReady: *input.PlaybackReady})
}

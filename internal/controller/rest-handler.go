package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/syncroom/internal/service/room"
)

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	snapshot, err := c.roomService.GetRoom(r.Context(), roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			c.writeJSON(w, http.StatusNotFound, envelope{"error": err.Error()})
			return
		}
		c.logger.WarnContext(r.Context(), "failed to get room", "error", err)
		c.writeJSON(w, http.StatusInternalServerError, envelope{"error": "internal error"})
		return
	}

	c.writeJSON(w, http.StatusOK, envelope{"data": snapshot})
}

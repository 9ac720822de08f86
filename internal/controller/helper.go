package controller

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

var idCounter atomic.Uint64

// generateTimeBasedId returns a short id that is unique within the process
// and sorts by creation time.
func (c controller) generateTimeBasedId() string {
	return strconv.FormatInt(time.Now().UnixMicro(), 36) + "-" + strconv.FormatUint(idCounter.Add(1), 36)
}

const roomIdBytes = 8

// generateRoomId returns a fresh url-safe room id.
func (c controller) generateRoomId() (string, error) {
	buf := make([]byte, roomIdBytes)
	if _, err := io.ReadFull(c.entropy, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type envelope map[string]any

func (c controller) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Warn("failed to write json", "error", err)
	}
}

package workspace

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"visadoc-backend/internal/shared/telemetry"
	"visadoc-backend/internal/shared/util"
)

const (
	msgTypeState = "state"
	writeWait    = 10 * time.Second
)

// stateMessage is the frame pushed after every transition.
type stateMessage struct {
	Type      string          `json:"type"`
	Payload   sessionResponse `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

func originChecker(allowed []string) func(r *http.Request) bool {
	origins := make(map[string]struct{}, len(allowed))
	allowAny := false
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAny = true
		}
		if o != "" {
			origins[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAny {
			return true
		}
		if _, ok := origins[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// events streams session states over a websocket until the client goes away
// or the session is closed. The current state is sent first.
func (h *Handler) events(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	defer ws.Close()

	updates, unsubscribe := m.Subscribe()
	defer unsubscribe()

	logFields := map[string]any{"session": util.ShortHash(m.ID())}
	telemetry.Debug("ws.connected", logFields)

	// The read loop only exists to notice the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			telemetry.Debug("ws.disconnected", logFields)
			return
		case s, open := <-updates:
			if !open {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			msg := stateMessage{Type: msgTypeState, Payload: toResponse(m.ID(), s), Timestamp: time.Now().UnixMilli()}
			if err := ws.WriteJSON(msg); err != nil {
				telemetry.Warn("ws.write_failed", map[string]any{"session": logFields["session"], "error": err.Error()})
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

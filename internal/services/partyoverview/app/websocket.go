package app

import (
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/party-overview/internal/platform/timeouts"
)

const (
	frameReady   = "ready"
	frameRefresh = "refresh"
)

// refreshFrame is the only message the server sends on the socket.
type refreshFrame struct {
	Type string `json:"type"`
}

func (h *Handler) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	viewerID := requestViewer(r).UserID
	websocket.Handler(func(conn *websocket.Conn) {
		h.streamRefreshes(conn, viewerID)
	}).ServeHTTP(w, r)
}

// streamRefreshes sends a ready frame once subscribed, then a refresh frame
// whenever the viewer's panel or the roster changes.
func (h *Handler) streamRefreshes(conn *websocket.Conn, viewerID string) {
	defer conn.Close()

	updates, cancel := h.hub.Subscribe(viewerID)
	defer cancel()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		var discard []byte
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	if err := h.sendFrame(conn, frameReady); err != nil {
		h.logger.Printf("websocket send failed viewer_id=%s err=%v", viewerID, err)
		return
	}
	for {
		select {
		case <-h.closing:
			return
		case <-gone:
			return
		case <-updates:
			if err := h.sendFrame(conn, frameRefresh); err != nil {
				h.logger.Printf("websocket send failed viewer_id=%s err=%v", viewerID, err)
				return
			}
		}
	}
}

func (h *Handler) sendFrame(conn *websocket.Conn, frameType string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeouts.WebsocketWrite)); err != nil {
		return err
	}
	return websocket.JSON.Send(conn, refreshFrame{Type: frameType})
}

package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/party-overview/internal/services/partyoverview/viewer"
)

func dialRefresh(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/party/ws"
	conn, err := websocket.Dial(url, "", server.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func receiveFrame(t *testing.T, conn *websocket.Conn) refreshFrame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	var frame refreshFrame
	if err := websocket.JSON.Receive(conn, &frame); err != nil {
		t.Fatalf("receive frame: %v", err)
	}
	return frame
}

func TestWebsocketSendsRefreshOnRosterChange(t *testing.T) {
	t.Parallel()

	env := newLocalGMEnv(t)
	server := httptest.NewServer(env.handler)
	t.Cleanup(server.Close)

	conn := dialRefresh(t, server)
	if frame := receiveFrame(t, conn); frame.Type != frameReady {
		t.Fatalf("first frame = %q, want %q", frame.Type, frameReady)
	}

	req, err := http.NewRequest(http.MethodPut, server.URL+"/api/actors/a1", strings.NewReader(`{"name":"Aria","playerOwned":true}`))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("put actor: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d", resp.StatusCode)
	}

	if frame := receiveFrame(t, conn); frame.Type != frameRefresh {
		t.Fatalf("frame = %q, want %q", frame.Type, frameRefresh)
	}
}

func TestWebsocketSendsRefreshOnPanelChange(t *testing.T) {
	t.Parallel()

	env := newLocalGMEnv(t)
	server := httptest.NewServer(env.handler)
	t.Cleanup(server.Close)

	conn := dialRefresh(t, server)
	receiveFrame(t, conn)

	if _, err := env.hub.Panel(viewer.LocalUserID).AdvanceMode(); err != nil {
		t.Fatalf("AdvanceMode: %v", err)
	}
	if frame := receiveFrame(t, conn); frame.Type != frameRefresh {
		t.Fatalf("frame = %q, want %q", frame.Type, frameRefresh)
	}
}

func TestWebsocketEndsWhenHandlerCloses(t *testing.T) {
	t.Parallel()

	env := newLocalGMEnv(t)
	server := httptest.NewServer(env.handler)
	t.Cleanup(server.Close)

	conn := dialRefresh(t, server)
	receiveFrame(t, conn)

	env.handler.Close()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	var frame refreshFrame
	if err := websocket.JSON.Receive(conn, &frame); err == nil {
		t.Fatalf("expected closed connection, got frame %q", frame.Type)
	}
}

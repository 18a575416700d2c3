package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"livemap.ai/internal/protocol"
	"livemap.ai/internal/sim/world"
	"livemap.ai/internal/sim/world/feature/livemap/blocks"
	"livemap.ai/internal/sim/world/feature/livemap/fov"
)

func startServer(t *testing.T) string {
	t.Helper()
	w, err := world.New(world.Config{
		Maps:           []blocks.MapDefinition{{Number: 0, WidthTiles: 256, HeightTiles: 256}},
		DefaultWindow:  fov.DefaultWindow(),
		DefaultVersion: fov.Version{Major: 1},
	}, nil, nil)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()

	srv := httptest.NewServer(NewServer(w, 64, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeMsg(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readMsg(t *testing.T, conn *websocket.Conn, v any) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v != nil {
		if err := json.Unmarshal(b, v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
	}
	return base.Type
}

func hello(name string) protocol.HelloMsg {
	return protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      name,
		LiveVersion:     &protocol.LiveVersion{Major: 1},
	}
}

func TestSessionStreamsCrossings(t *testing.T) {
	conn := dial(t, startServer(t))

	h := hello("walker")
	h.ViewRange = &protocol.ViewRange{MinX: -1, MaxX: 1, MinY: -1, MaxY: 1}
	writeMsg(t, conn, h)

	var welcome protocol.WelcomeMsg
	if typ := readMsg(t, conn, &welcome); typ != protocol.TypeWelcome {
		t.Fatalf("expected WELCOME, got %s", typ)
	}
	if welcome.SessionID == "" || welcome.PlayerID == "" || len(welcome.Maps) != 1 {
		t.Fatalf("unexpected welcome %+v", welcome)
	}
	if welcome.ViewRange.MinX != -1 {
		t.Fatalf("window from HELLO not applied: %+v", welcome.ViewRange)
	}

	writeMsg(t, conn, protocol.MoveMsg{Type: protocol.TypeMove, ProtocolVersion: protocol.Version, Map: 0, X: 40, Y: 40})
	var hashes protocol.BlockHashesMsg
	if typ := readMsg(t, conn, &hashes); typ != protocol.TypeBlockHashes {
		t.Fatalf("expected BLOCK_HASHES, got %s", typ)
	}
	if hashes.Center != 5*32+5 || len(hashes.Blocks) != 9 {
		t.Fatalf("unexpected hashes center=%d blocks=%d", hashes.Center, len(hashes.Blocks))
	}

	writeMsg(t, conn, protocol.ViewRangeMsg{
		Type:            protocol.TypeViewRange,
		ProtocolVersion: protocol.Version,
		ViewRange:       protocol.ViewRange{MinX: 2, MaxX: 1},
	})
	var e protocol.ErrorMsg
	if typ := readMsg(t, conn, &e); typ != protocol.TypeError || e.Code != protocol.ErrInvalidWindow {
		t.Fatalf("expected E_INVALID_WINDOW, got %s %+v", typ, e)
	}
}

func TestSessionRejectsBadFrames(t *testing.T) {
	conn := dial(t, startServer(t))
	writeMsg(t, conn, hello("x"))
	readMsg(t, conn, nil)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{nope")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var e protocol.ErrorMsg
	if typ := readMsg(t, conn, &e); typ != protocol.TypeError || e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("expected E_PROTO_BAD_REQUEST, got %+v", e)
	}

	writeMsg(t, conn, map[string]any{"type": "DANCE", "protocol_version": protocol.Version})
	if typ := readMsg(t, conn, &e); typ != protocol.TypeError || e.Code != protocol.ErrBadRequest {
		t.Fatalf("expected E_BAD_REQUEST, got %+v", e)
	}
}

func TestHandshakeRejectsWrongProtocolVersion(t *testing.T) {
	conn := dial(t, startServer(t))
	h := hello("old")
	h.ProtocolVersion = "0.1"
	writeMsg(t, conn, h)

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

func TestHandshakeRejectsInvalidWindow(t *testing.T) {
	conn := dial(t, startServer(t))
	h := hello("wide")
	h.ViewRange = &protocol.ViewRange{MinX: 0, MaxX: 0, MinY: 3, MaxY: -3}
	writeMsg(t, conn, h)

	var e protocol.ErrorMsg
	if typ := readMsg(t, conn, &e); typ != protocol.TypeError || e.Code != protocol.ErrInvalidWindow {
		t.Fatalf("expected E_INVALID_WINDOW, got %s %+v", typ, e)
	}
}

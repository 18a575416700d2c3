package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"livemap.ai/internal/protocol"
	"livemap.ai/internal/sim/world"
	"livemap.ai/internal/sim/world/feature/livemap/fov"
)

const (
	helloTimeout = 5 * time.Second
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
	minQueue     = 8
)

type Server struct {
	world    *world.World
	log      *zap.Logger
	maxQueue int

	upgrader websocket.Upgrader
}

// NewServer serves live map sessions. maxQueue bounds the per-session
// outbound queue a client may ask for in HELLO.
func NewServer(w *world.World, maxQueue int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxQueue < minQueue {
		maxQueue = minQueue
	}
	return &Server{
		world:    w,
		log:      logger,
		maxQueue: maxQueue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID := uuid.NewString()
		log := s.log.With(zap.String("session_id", sessionID), zap.String("remote", r.RemoteAddr))

		playerID, out := s.handshake(conn, sessionID, log)
		if playerID == "" {
			return
		}
		log = log.With(zap.String("player_id", playerID))
		log.Info("session started")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			env, errMsg := decodeClientMessage(playerID, msg)
			if errMsg != nil {
				trySend(out, *errMsg)
				continue
			}
			select {
			case s.world.Inbox() <- env:
			case <-ctx.Done():
			}
		}

		s.world.Leave() <- playerID
		log.Info("session ended")
	}
}

func (s *Server) handshake(conn *websocket.Conn, sessionID string, log *zap.Logger) (playerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closePolicy(conn, "bad HELLO")
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return "", nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 || maxQ > s.maxQueue {
		maxQ = s.maxQueue
	}
	if maxQ < minQueue {
		maxQ = minQueue
	}
	out = make(chan []byte, maxQ)

	req := world.JoinRequest{
		Name: strings.TrimSpace(hello.PlayerName),
		Out:  out,
		Resp: make(chan world.JoinResponse, 1),
	}
	if lv := hello.LiveVersion; lv != nil {
		req.Version = &fov.Version{Major: lv.Major, Minor: lv.Minor}
	}
	if vr := hello.ViewRange; vr != nil {
		req.Window = &fov.Window{MinX: vr.MinX, MaxX: vr.MaxX, MinY: vr.MinY, MaxY: vr.MaxY}
	}
	s.world.Join() <- req
	resp := <-req.Resp

	if resp.Err != nil {
		log.Info("join refused", zap.String("code", resp.Err.Code), zap.String("reason", resp.Err.Message))
		_ = writeJSON(conn, *resp.Err)
		closePolicy(conn, resp.Err.Code)
		return "", nil
	}

	resp.Welcome.SessionID = sessionID
	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.world.Leave() <- resp.Welcome.PlayerID
		return "", nil
	}
	return resp.Welcome.PlayerID, out
}

// decodeClientMessage turns one client frame into a world envelope, or into
// the ERROR to send back.
func decodeClientMessage(playerID string, msg []byte) (world.Envelope, *protocol.ErrorMsg) {
	fail := func(code, message string) (world.Envelope, *protocol.ErrorMsg) {
		e := protocol.NewError(code, message)
		return world.Envelope{}, &e
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return fail(protocol.ErrProtoBadRequest, "invalid json")
	}
	if base.ProtocolVersion != protocol.Version {
		return fail(protocol.ErrProtoBadRequest, "bad protocol_version")
	}

	var v any
	switch base.Type {
	case protocol.TypeMove:
		var m protocol.MoveMsg
		if err = json.Unmarshal(msg, &m); err == nil {
			v = m
		}
	case protocol.TypeViewRange:
		var m protocol.ViewRangeMsg
		if err = json.Unmarshal(msg, &m); err == nil {
			v = m
		}
	case protocol.TypeLiveVersion:
		var m protocol.LiveVersionMsg
		if err = json.Unmarshal(msg, &m); err == nil {
			v = m
		}
	case protocol.TypeBlockRequest:
		var m protocol.BlockRequestMsg
		if err = json.Unmarshal(msg, &m); err == nil {
			v = m
		}
	default:
		return fail(protocol.ErrBadRequest, "unsupported type "+base.Type)
	}
	if err != nil {
		return fail(protocol.ErrProtoBadRequest, "malformed "+base.Type)
	}
	return world.Envelope{PlayerID: playerID, Msg: v}, nil
}

func trySend(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}

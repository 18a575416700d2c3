package main

import (
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"livemap.ai/internal/logging"
	"livemap.ai/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "player name")
		mapNum   = flag.Int("map", 0, "map to walk on")
		startX   = flag.Int("x", 1496, "start tile x")
		startY   = flag.Int("y", 1628, "start tile y")
		major    = flag.Int("major", 1, "live map major version")
		minor    = flag.Int("minor", 0, "live map minor version")
		interval = flag.Duration("step", 500*time.Millisecond, "time between moves")
		logLevel = flag.String("log_level", "info", "log level")
	)
	flag.Parse()

	logger, err := logging.New(logging.Config{Level: *logLevel})
	if err != nil {
		zap.NewExample().Fatal("init logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		LiveVersion:     &protocol.LiveVersion{Major: *major, Minor: *minor},
		MaxQueue:        64,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatal("send HELLO", zap.Error(err))
	}

	c := newClient(*mapNum)
	walker := &walker{x: *startX, y: *startY, r: rand.New(rand.NewSource(time.Now().UnixNano()))}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	incoming := make(chan []byte, 64)
	go func() {
		defer close(incoming)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			incoming <- msg
		}
	}()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			x, y := walker.step()
			move := protocol.MoveMsg{Type: protocol.TypeMove, ProtocolVersion: protocol.Version, Map: *mapNum, X: x, Y: y}
			if err := conn.WriteJSON(move); err != nil {
				logger.Warn("send MOVE", zap.Error(err))
				return
			}
		case msg, ok := <-incoming:
			if !ok {
				logger.Info("connection closed", zap.Int("cached_blocks", c.Len()))
				return
			}
			reply, err := c.Handle(msg)
			if err != nil {
				logger.Debug("ignored message", zap.Error(err))
				continue
			}
			c.logLast(logger)
			if reply != nil {
				if err := conn.WriteJSON(reply); err != nil {
					logger.Warn("send BLOCK_REQUEST", zap.Error(err))
					return
				}
			}
		}
	}
}

type walker struct {
	x, y int
	r    *rand.Rand
}

// step moves up to 12 tiles in each axis, enough to cross a block edge
// regularly.
func (w *walker) step() (int, int) {
	w.x += w.r.Intn(25) - 12
	w.y += w.r.Intn(25) - 12
	if w.x < 0 {
		w.x = 0
	}
	if w.y < 0 {
		w.y = 0
	}
	return w.x, w.y
}

func (c *client) logLast(logger *zap.Logger) {
	if c.last == "" {
		return
	}
	logger.Info(c.last, c.lastFields...)
	c.last, c.lastFields = "", nil
}

package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"livemap.ai/internal/sim/world/feature/livemap/blocks"
	"livemap.ai/internal/sim/world/feature/livemap/fov"
	"livemap.ai/internal/sim/world/feature/livemap/resolve"
	"livemap.ai/internal/sim/world/feature/livemap/stream"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrNoSuchMap      = errors.New("no such map")
	ErrNoSuchBlock    = errors.New("no such block")
	ErrBadBlockData   = errors.New("bad block data")
)

type Config struct {
	Maps                []blocks.MapDefinition
	DefaultWindow       fov.Window
	DefaultVersion      fov.Version
	// Send hashes only for blocks entering the view.
	Incremental         bool
	MaxBlocksPerRequest int
}

// Player is a connected client. Its stream state is owned by the world loop.
type Player struct {
	ID   string
	Name string

	Map    uint8
	X, Y   int
	Placed bool

	Stream *fov.State
	View   *resolve.View
	Out    chan []byte
}

// World hosts every connected player and serializes all live map state
// changes on one goroutine. State must only be touched from Run.
type World struct {
	cfg       Config
	atlas     *blocks.Atlas
	resolvers map[uint8]*resolve.Resolver
	pusher    *stream.Pusher
	log       *zap.Logger

	players       map[string]*Player
	nextPlayerNum uint64

	inbox       chan Envelope
	join        chan JoinRequest
	leave       chan string
	playerReq   chan playerReq
	listReq     chan listReq
	blockReq    chan blockReq
	ctx         context.Context
	now         func() time.Time
	store       BlockWriter
	crossingLog CrossingLogger
	auditLog    AuditLogger
}

func New(cfg Config, src stream.Source, log *zap.Logger) (*World, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.DefaultWindow.Validate(); err != nil {
		return nil, fmt.Errorf("default window: %w", err)
	}
	if cfg.DefaultVersion.Major < 0 || cfg.DefaultVersion.Minor < 0 {
		return nil, fmt.Errorf("default version: %w", fov.ErrInvalidVersion)
	}
	atlas, err := blocks.NewAtlas(cfg.Maps)
	if err != nil {
		return nil, err
	}
	resolvers := make(map[uint8]*resolve.Resolver, len(cfg.Maps))
	for _, def := range atlas.Definitions() {
		g, _ := atlas.Grid(def.Number)
		resolvers[def.Number] = resolve.New(g)
	}
	return &World{
		cfg:       cfg,
		atlas:     atlas,
		resolvers: resolvers,
		pusher:    stream.NewPusher(src, cfg.MaxBlocksPerRequest, log.Named("stream")),
		log:       log,
		players:   map[string]*Player{},
		inbox:     make(chan Envelope, 1024),
		join:      make(chan JoinRequest, 64),
		leave:     make(chan string, 64),
		playerReq: make(chan playerReq, 16),
		listReq:   make(chan listReq, 16),
		blockReq:  make(chan blockReq, 16),
		ctx:       context.Background(),
		now:       time.Now,
	}, nil
}

func (w *World) SetBlockWriter(s BlockWriter)       { w.store = s }
func (w *World) SetCrossingLogger(l CrossingLogger) { w.crossingLog = l }
func (w *World) SetAuditLogger(l AuditLogger)       { w.auditLog = l }

func (w *World) Inbox() chan<- Envelope   { return w.inbox }
func (w *World) Join() chan<- JoinRequest { return w.join }
func (w *World) Leave() chan<- string     { return w.leave }

func (w *World) Atlas() *blocks.Atlas { return w.atlas }

func (w *World) Run(ctx context.Context) error {
	w.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-w.join:
			w.handleJoin(req)
		case id := <-w.leave:
			w.handleLeave(id)
		case env := <-w.inbox:
			w.handleEnvelope(env)
		case req := <-w.playerReq:
			w.handlePlayerReq(req)
		case req := <-w.listReq:
			w.handleListReq(req)
		case req := <-w.blockReq:
			w.handleBlockReq(req)
		}
	}
}

func (w *World) send(p *Player, b []byte) bool {
	if p == nil || p.Out == nil {
		return false
	}
	select {
	case p.Out <- b:
		return true
	default:
		return false
	}
}

func (w *World) sender(p *Player) stream.Sender {
	return func(b []byte) bool { return w.send(p, b) }
}

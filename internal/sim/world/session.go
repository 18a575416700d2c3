package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"livemap.ai/internal/protocol"
	"livemap.ai/internal/sim/world/feature/livemap/blocks"
	"livemap.ai/internal/sim/world/feature/livemap/fov"
	"livemap.ai/internal/sim/world/feature/livemap/resolve"
	"livemap.ai/internal/sim/world/feature/livemap/stream"
)

const maxNameLen = 32

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "player"
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}

func (w *World) handleJoin(req JoinRequest) {
	resp := JoinResponse{}
	defer func() {
		if req.Resp == nil {
			return
		}
		select {
		case req.Resp <- resp:
		default:
		}
	}()

	st := fov.NewState()
	win := w.cfg.DefaultWindow
	if req.Window != nil {
		win = *req.Window
	}
	if err := st.SetWindow(win.MinX, win.MaxX, win.MinY, win.MaxY); err != nil {
		e := protocol.NewError(protocol.ErrInvalidWindow, err.Error())
		resp.Err = &e
		return
	}
	ver := w.cfg.DefaultVersion
	if req.Version != nil {
		ver = *req.Version
	}
	if err := st.SetVersion(ver.Major, ver.Minor); err != nil {
		e := protocol.NewError(protocol.ErrInvalidVersion, err.Error())
		resp.Err = &e
		return
	}

	w.nextPlayerNum++
	p := &Player{
		ID:     fmt.Sprintf("P%d", w.nextPlayerNum),
		Name:   normalizeName(req.Name),
		Stream: st,
		View:   resolve.NewView(),
		Out:    req.Out,
	}
	w.players[p.ID] = p
	w.log.Info("player joined",
		zap.String("player_id", p.ID), zap.String("name", p.Name), zap.Stringer("live_version", st.Version()))

	resp.Welcome = w.buildWelcome(p)
}

func (w *World) buildWelcome(p *Player) protocol.WelcomeMsg {
	win := p.Stream.Window()
	defs := w.atlas.Definitions()
	maps := make([]protocol.MapInfo, 0, len(defs))
	for _, d := range defs {
		maps = append(maps, protocol.MapInfo{
			Number:          int(d.Number),
			WidthTiles:      d.WidthTiles,
			HeightTiles:     d.HeightTiles,
			WrapWidthTiles:  d.WrapWidthTiles,
			WrapHeightTiles: d.WrapHeightTiles,
		})
	}
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        p.ID,
		ViewRange:       protocol.ViewRange{MinX: win.MinX, MaxX: win.MaxX, MinY: win.MinY, MaxY: win.MaxY},
		Maps:            maps,
	}
}

func (w *World) handleLeave(playerID string) {
	if _, ok := w.players[playerID]; !ok {
		return
	}
	delete(w.players, playerID)
	w.log.Info("player left", zap.String("player_id", playerID))
}

func (w *World) handleEnvelope(env Envelope) {
	p := w.players[env.PlayerID]
	if p == nil {
		return
	}
	switch m := env.Msg.(type) {
	case protocol.MoveMsg:
		w.handleMove(p, m)
	case protocol.ViewRangeMsg:
		w.handleViewRange(p, m.ViewRange)
	case protocol.LiveVersionMsg:
		w.handleLiveVersion(p, m.LiveVersion)
	case protocol.BlockRequestMsg:
		w.handleBlockRequest(p, m)
	default:
		w.sendError(p, protocol.ErrBadRequest, fmt.Sprintf("unsupported message %T", env.Msg))
	}
}

func (w *World) sendError(p *Player, code, message string) {
	b, err := json.Marshal(protocol.NewError(code, message))
	if err != nil {
		return
	}
	w.send(p, b)
}

func mapNumber(n int) (uint8, bool) {
	if n < 0 || n > 255 {
		return 0, false
	}
	return uint8(n), true
}

func (w *World) handleMove(p *Player, m protocol.MoveMsg) {
	mapNum, ok := mapNumber(m.Map)
	var grid *blocks.Grid
	if ok {
		grid, ok = w.atlas.Grid(mapNum)
	}
	if !ok {
		w.sendError(p, protocol.ErrNoSuchMap, fmt.Sprintf("map %d", m.Map))
		return
	}
	id, ok := grid.BlockAt(m.X, m.Y)
	if !ok {
		w.sendError(p, protocol.ErrBadRequest, fmt.Sprintf("position %d,%d outside map %d", m.X, m.Y, mapNum))
		return
	}

	if p.Placed && p.Map != mapNum {
		// Block ids are per map; the client needs a full window on the new one.
		p.Stream.Reset()
		p.View.Clear()
	}
	p.Map, p.X, p.Y, p.Placed = mapNum, m.X, m.Y, true

	d := w.resolvers[mapNum].Resolve(id, p.Stream)
	if d.Kind != resolve.Crossed {
		return
	}
	w.pushCrossing(p, d)
}

func (w *World) pushCrossing(p *Player, d resolve.Decision) {
	window := len(d.Blocks)
	if w.cfg.Incremental {
		delta := p.View.Replace(d.Blocks)
		if len(delta.Added) == 0 && d.From != blocks.None {
			w.logCrossing(p, d, 0)
			return
		}
		d.Blocks = delta.Added
	}
	if err := w.pusher.PushCrossing(w.ctx, w.sender(p), p.Map, d); err != nil {
		w.logPushError(p, "block hashes", err)
		if w.cfg.Incremental {
			// The client never saw these hashes.
			p.View.Clear()
		}
	}
	w.log.Debug("block crossing",
		zap.String("player_id", p.ID), zap.Uint8("map", p.Map),
		zap.Int32("from", int32(d.From)), zap.Int32("to", int32(d.Center)),
		zap.Int("window", window), zap.Int("sent", len(d.Blocks)))
	w.logCrossing(p, d, len(d.Blocks))
}

func (w *World) logCrossing(p *Player, d resolve.Decision, sent int) {
	if w.crossingLog == nil {
		return
	}
	err := w.crossingLog.WriteCrossing(CrossingLogEntry{
		Time:     w.now().UTC(),
		PlayerID: p.ID,
		Map:      p.Map,
		From:     int32(d.From),
		To:       int32(d.Center),
		Blocks:   sent,
	})
	if err != nil {
		w.log.Warn("crossing log write failed", zap.Error(err))
	}
}

func (w *World) logPushError(p *Player, what string, err error) {
	if errors.Is(err, stream.ErrDropped) {
		w.log.Debug("outbound queue full", zap.String("player_id", p.ID), zap.String("message", what))
		return
	}
	w.log.Warn("push failed", zap.String("player_id", p.ID), zap.String("message", what), zap.Error(err))
}

func (w *World) handleViewRange(p *Player, vr protocol.ViewRange) {
	if err := p.Stream.SetWindow(vr.MinX, vr.MaxX, vr.MinY, vr.MaxY); err != nil {
		w.sendError(p, protocol.ErrInvalidWindow, err.Error())
		return
	}
	if err := w.pusher.PushViewRange(w.sender(p), p.Stream.Window()); err != nil {
		w.logPushError(p, "view range", err)
	}
}

func (w *World) handleLiveVersion(p *Player, v protocol.LiveVersion) {
	before := p.Stream.Version()
	if err := p.Stream.SetVersion(v.Major, v.Minor); err != nil {
		w.sendError(p, protocol.ErrInvalidVersion, err.Error())
		return
	}
	if stream.HashBits(before) != stream.HashBits(p.Stream.Version()) {
		// Hashes already sent use the old width.
		p.View.Clear()
	}
}

func (w *World) handleBlockRequest(p *Player, m protocol.BlockRequestMsg) {
	mapNum, ok := mapNumber(m.Map)
	var grid *blocks.Grid
	if ok {
		grid, ok = w.atlas.Grid(mapNum)
	}
	if !ok {
		w.sendError(p, protocol.ErrNoSuchMap, fmt.Sprintf("map %d", m.Map))
		return
	}
	if !p.Placed || mapNum != p.Map {
		w.sendError(p, protocol.ErrBadRequest, fmt.Sprintf("player is not on map %d", mapNum))
		return
	}
	v := p.Stream.Version()
	if !v.Streaming() {
		w.sendError(p, protocol.ErrInvalidVersion, "live map streaming disabled for version 0.0")
		return
	}
	ids := make([]blocks.ID, 0, len(m.Blocks))
	for _, raw := range m.Blocks {
		id := blocks.ID(raw)
		if _, ok := grid.ToGrid(id); ok {
			ids = append(ids, id)
		}
	}
	if _, err := w.pusher.PushBlocks(w.ctx, w.sender(p), mapNum, ids, v); err != nil {
		w.logPushError(p, "block data", err)
	}
}

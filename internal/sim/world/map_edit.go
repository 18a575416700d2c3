package world

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"livemap.ai/internal/sim/world/feature/livemap/blocks"
	"livemap.ai/internal/sim/world/feature/livemap/hash"
	"livemap.ai/internal/sim/world/feature/livemap/resolve"
)

const (
	kindLand    = "land"
	kindStatics = "statics"
)

type blockReq struct {
	Map   uint8
	Block blocks.ID
	Kind  string
	Data  []byte
	Resp  chan blockResp
}

type blockResp struct {
	Update BlockUpdate
	Err    error
}

// UpdateLand replaces one land block and sends it to every player whose
// window holds that block.
func (w *World) UpdateLand(ctx context.Context, mapNum uint8, id blocks.ID, land []byte) (BlockUpdate, error) {
	return w.requestBlock(ctx, blockReq{Map: mapNum, Block: id, Kind: kindLand, Data: land})
}

// UpdateStatics replaces the statics of one block. Empty data clears them.
func (w *World) UpdateStatics(ctx context.Context, mapNum uint8, id blocks.ID, statics []byte) (BlockUpdate, error) {
	return w.requestBlock(ctx, blockReq{Map: mapNum, Block: id, Kind: kindStatics, Data: statics})
}

func (w *World) requestBlock(ctx context.Context, req blockReq) (BlockUpdate, error) {
	if w == nil || w.blockReq == nil {
		return BlockUpdate{}, errors.New("block updates not available")
	}
	req.Resp = make(chan blockResp, 1)
	select {
	case w.blockReq <- req:
	case <-ctx.Done():
		return BlockUpdate{}, ctx.Err()
	}
	select {
	case r := <-req.Resp:
		return r.Update, r.Err
	case <-ctx.Done():
		return BlockUpdate{}, ctx.Err()
	}
}

func (w *World) handleBlockReq(req blockReq) {
	upd, err := w.applyBlockEdit(req)
	if req.Resp == nil {
		return
	}
	select {
	case req.Resp <- blockResp{Update: upd, Err: err}:
	default:
	}
}

func (w *World) applyBlockEdit(req blockReq) (BlockUpdate, error) {
	grid, ok := w.atlas.Grid(req.Map)
	if !ok {
		return BlockUpdate{}, fmt.Errorf("%w: %d", ErrNoSuchMap, req.Map)
	}
	if _, ok := grid.ToGrid(req.Block); !ok {
		return BlockUpdate{}, fmt.Errorf("%w: %d on map %d", ErrNoSuchBlock, req.Block, req.Map)
	}
	if w.store == nil {
		return BlockUpdate{}, errors.New("map store is read-only")
	}

	var err error
	switch req.Kind {
	case kindLand:
		if len(req.Data) != hash.LandBlockSize {
			return BlockUpdate{}, fmt.Errorf("%w: land is %d bytes, want %d", ErrBadBlockData, len(req.Data), hash.LandBlockSize)
		}
		err = w.store.PutLand(w.ctx, req.Map, req.Block, req.Data)
	case kindStatics:
		if len(req.Data)%hash.StaticsRecordSize != 0 {
			return BlockUpdate{}, fmt.Errorf("%w: statics length %d is not a multiple of %d", ErrBadBlockData, len(req.Data), hash.StaticsRecordSize)
		}
		err = w.store.PutStatics(w.ctx, req.Map, req.Block, req.Data)
	default:
		return BlockUpdate{}, fmt.Errorf("%w: unknown kind %q", ErrBadBlockData, req.Kind)
	}
	if err != nil {
		return BlockUpdate{}, fmt.Errorf("write %s block %d/%d: %w", req.Kind, req.Map, req.Block, err)
	}

	upd := BlockUpdate{
		Map:       req.Map,
		Block:     int32(req.Block),
		Kind:      req.Kind,
		Bytes:     len(req.Data),
		Refreshed: []string{},
	}
	for _, p := range w.playersByID() {
		if !w.holdsBlock(p, grid, req.Map, req.Block) {
			continue
		}
		n, err := w.pusher.PushBlocks(w.ctx, w.sender(p), req.Map, []blocks.ID{req.Block}, p.Stream.Version())
		if err != nil {
			w.logPushError(p, "block refresh", err)
			// Stale copy on the client; resend hashes on the next crossing.
			p.View.Clear()
			continue
		}
		if n > 0 {
			upd.Refreshed = append(upd.Refreshed, p.ID)
		}
	}

	w.audit("", "UPDATE_"+upperKind(req.Kind), map[string]any{
		"map":       req.Map,
		"block":     int32(req.Block),
		"bytes":     len(req.Data),
		"refreshed": len(upd.Refreshed),
	})
	w.log.Debug("block edited",
		zap.Uint8("map", req.Map), zap.Int32("block", int32(req.Block)),
		zap.String("kind", req.Kind), zap.Int("refreshed", len(upd.Refreshed)))
	return upd, nil
}

// holdsBlock reports whether p's client was sent id as part of its current
// window on mapNum.
func (w *World) holdsBlock(p *Player, grid *blocks.Grid, mapNum uint8, id blocks.ID) bool {
	if !p.Placed || p.Map != mapNum || !p.Stream.Version().Streaming() {
		return false
	}
	if w.cfg.Incremental {
		return p.View.Contains(id)
	}
	prev := p.Stream.PreviousBlock()
	if prev == blocks.None {
		return false
	}
	for _, b := range resolve.WindowBlocks(grid, prev, p.Stream.Window()) {
		if b == id {
			return true
		}
	}
	return false
}

func (w *World) playersByID() []*Player {
	out := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

// lessID orders "P2" before "P10".
func lessID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func upperKind(kind string) string {
	if kind == kindStatics {
		return "STATICS"
	}
	return "LAND"
}

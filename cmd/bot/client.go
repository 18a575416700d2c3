package main

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"livemap.ai/internal/protocol"
	"livemap.ai/internal/sim/world/feature/livemap/blocks"
	"livemap.ai/internal/sim/world/feature/livemap/hash"
)

type cachedBlock struct {
	land    []byte
	statics []byte
}

// client is the receiving side of live map streaming: it keeps the blocks
// it was sent and asks for every block whose server hash differs.
type client struct {
	mapNum   int
	playerID string
	cache    map[blocks.ID]cachedBlock

	last       string
	lastFields []zap.Field
}

func newClient(mapNum int) *client {
	return &client{mapNum: mapNum, cache: map[blocks.ID]cachedBlock{}}
}

func (c *client) Len() int { return len(c.cache) }

// Handle consumes one server message and returns the BLOCK_REQUEST to send,
// if any.
func (c *client) Handle(msg []byte) (*protocol.BlockRequestMsg, error) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return nil, err
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return nil, err
		}
		c.playerID = w.PlayerID
		c.note("WELCOME", zap.String("player_id", w.PlayerID), zap.String("session_id", w.SessionID), zap.Int("maps", len(w.Maps)))
		return nil, nil

	case protocol.TypeBlockHashes:
		var h protocol.BlockHashesMsg
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, err
		}
		if h.Map != c.mapNum {
			// Blocks of another map are not comparable with ours.
			c.cache = map[blocks.ID]cachedBlock{}
			c.mapNum = h.Map
		}
		stale := c.stale(h)
		c.note("BLOCK_HASHES", zap.Int32("center", h.Center), zap.Int("blocks", len(h.Blocks)), zap.Int("stale", len(stale)))
		if len(stale) == 0 {
			return nil, nil
		}
		return &protocol.BlockRequestMsg{
			Type:            protocol.TypeBlockRequest,
			ProtocolVersion: protocol.Version,
			Map:             h.Map,
			Blocks:          stale,
		}, nil

	case protocol.TypeBlockData:
		var d protocol.BlockDataMsg
		if err := json.Unmarshal(msg, &d); err != nil {
			return nil, err
		}
		if d.Map != c.mapNum {
			return nil, fmt.Errorf("block data for map %d while on map %d", d.Map, c.mapNum)
		}
		c.cache[blocks.ID(d.Block)] = cachedBlock{land: d.Land, statics: d.Statics}
		return nil, nil

	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, err
		}
		c.note("ERROR", zap.String("code", e.Code), zap.String("message", e.Message))
		return nil, nil
	}
	return nil, fmt.Errorf("unhandled %s", base.Type)
}

func (c *client) stale(h protocol.BlockHashesMsg) []int32 {
	var out []int32
	for _, bh := range h.Blocks {
		cb, ok := c.cache[blocks.ID(bh.Block)]
		if ok && hash.Block(cb.land, cb.statics, h.HashBits) == bh.Hash {
			continue
		}
		if !ok && bh.Hash == 0 {
			// Server has no land for it either.
			continue
		}
		out = append(out, bh.Block)
	}
	return out
}

func (c *client) note(msg string, fields ...zap.Field) {
	c.last, c.lastFields = msg, fields
}

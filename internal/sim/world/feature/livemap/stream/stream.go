// Package stream turns resolver decisions into outbound live map messages.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"livemap.ai/internal/protocol"
	"livemap.ai/internal/sim/world/feature/livemap/blocks"
	"livemap.ai/internal/sim/world/feature/livemap/fov"
	"livemap.ai/internal/sim/world/feature/livemap/hash"
	"livemap.ai/internal/sim/world/feature/livemap/resolve"
)

// ErrDropped is returned when the session's outbound queue refused a message.
var ErrDropped = errors.New("outbound message dropped")

// Source reads the authoritative contents of a block. A nil slice with a nil
// error means the block has no data.
type Source interface {
	ReadLand(ctx context.Context, mapNum uint8, id blocks.ID) ([]byte, error)
	ReadStatics(ctx context.Context, mapNum uint8, id blocks.ID) ([]byte, error)
}

// Sender enqueues one encoded message for a session. It must not block.
type Sender func(b []byte) bool

type Pusher struct {
	src       Source
	maxBlocks int
	log       *zap.Logger
}

func NewPusher(src Source, maxBlocksPerRequest int, log *zap.Logger) *Pusher {
	if log == nil {
		log = zap.NewNop()
	}
	if maxBlocksPerRequest <= 0 {
		maxBlocksPerRequest = 64
	}
	return &Pusher{src: src, maxBlocks: maxBlocksPerRequest, log: log}
}

// HashBits is the checksum width a client of the given version understands.
func HashBits(v fov.Version) int {
	if v.AtLeast(1, 0) {
		return 32
	}
	return 16
}

func liveVersion(v fov.Version) protocol.LiveVersion {
	return protocol.LiveVersion{Major: v.Major, Minor: v.Minor}
}

// PushCrossing sends one BLOCK_HASHES message covering every block of the
// decision. Decisions other than Crossed are ignored.
func (p *Pusher) PushCrossing(ctx context.Context, send Sender, mapNum uint8, d resolve.Decision) error {
	if d.Kind != resolve.Crossed {
		return nil
	}
	bits := HashBits(d.Version)
	msg := protocol.BlockHashesMsg{
		Type:            protocol.TypeBlockHashes,
		ProtocolVersion: protocol.Version,
		Map:             int(mapNum),
		Center:          int32(d.Center),
		LiveVersion:     liveVersion(d.Version),
		HashBits:        bits,
		Blocks:          make([]protocol.BlockHash, 0, len(d.Blocks)),
	}
	for _, id := range d.Blocks {
		land, statics, err := p.read(ctx, mapNum, id)
		if err != nil {
			return err
		}
		msg.Blocks = append(msg.Blocks, protocol.BlockHash{
			Block: int32(id),
			Hash:  hash.Block(land, statics, bits),
		})
	}
	return p.send(send, msg)
}

// PushBlocks answers a BLOCK_REQUEST with one BLOCK_DATA message per block.
// Duplicates are sent once, blocks without land are skipped and at most
// maxBlocksPerRequest blocks are served. It returns the number of messages
// sent.
func (p *Pusher) PushBlocks(ctx context.Context, send Sender, mapNum uint8, ids []blocks.ID, v fov.Version) (int, error) {
	seen := make(map[blocks.ID]struct{}, len(ids))
	sent := 0
	for _, id := range ids {
		if len(seen) >= p.maxBlocks {
			p.log.Debug("block request truncated",
				zap.Uint8("map", mapNum), zap.Int("requested", len(ids)), zap.Int("limit", p.maxBlocks))
			break
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		land, statics, err := p.read(ctx, mapNum, id)
		if err != nil {
			return sent, err
		}
		if land == nil {
			p.log.Debug("no land for requested block", zap.Uint8("map", mapNum), zap.Int32("block", int32(id)))
			continue
		}
		msg := protocol.BlockDataMsg{
			Type:            protocol.TypeBlockData,
			ProtocolVersion: protocol.Version,
			Map:             int(mapNum),
			Block:           int32(id),
			LiveVersion:     liveVersion(v),
			Land:            land,
			Statics:         statics,
		}
		if err := p.send(send, msg); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// PushViewRange echoes the window the server applied.
func (p *Pusher) PushViewRange(send Sender, w fov.Window) error {
	return p.send(send, protocol.ViewRangeMsg{
		Type:            protocol.TypeViewRange,
		ProtocolVersion: protocol.Version,
		ViewRange:       protocol.ViewRange{MinX: w.MinX, MaxX: w.MaxX, MinY: w.MinY, MaxY: w.MaxY},
	})
}

func (p *Pusher) read(ctx context.Context, mapNum uint8, id blocks.ID) (land, statics []byte, err error) {
	if p.src == nil {
		return nil, nil, nil
	}
	land, err = p.src.ReadLand(ctx, mapNum, id)
	if err != nil {
		return nil, nil, fmt.Errorf("read land %d/%d: %w", mapNum, id, err)
	}
	if land == nil {
		return nil, nil, nil
	}
	statics, err = p.src.ReadStatics(ctx, mapNum, id)
	if err != nil {
		return nil, nil, fmt.Errorf("read statics %d/%d: %w", mapNum, id, err)
	}
	return land, statics, nil
}

func (p *Pusher) send(send Sender, msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if send == nil || !send(b) {
		return ErrDropped
	}
	return nil
}

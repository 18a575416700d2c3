package world

import (
	"context"
	"time"

	"livemap.ai/internal/protocol"
	"livemap.ai/internal/sim/world/feature/livemap/blocks"
	"livemap.ai/internal/sim/world/feature/livemap/fov"
)

type JoinRequest struct {
	Name    string
	// Nil fields keep the server defaults.
	Version *fov.Version
	Window  *fov.Window

	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	// Set when the join was refused; Welcome is empty then.
	Err     *protocol.ErrorMsg
}

// Envelope carries one decoded client message to the world loop. Msg is one
// of protocol.MoveMsg, protocol.ViewRangeMsg, protocol.LiveVersionMsg or
// protocol.BlockRequestMsg.
type Envelope struct {
	PlayerID string
	Msg      any
}

// BlockWriter persists edited map blocks.
type BlockWriter interface {
	PutLand(ctx context.Context, mapNum uint8, id blocks.ID, data []byte) error
	PutStatics(ctx context.Context, mapNum uint8, id blocks.ID, data []byte) error
}

type CrossingLogger interface {
	WriteCrossing(entry CrossingLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type CrossingLogEntry struct {
	Time     time.Time `json:"time"`
	PlayerID string    `json:"player_id"`
	Map      uint8     `json:"map"`
	From     int32     `json:"from"`
	To       int32     `json:"to"`
	Blocks   int       `json:"blocks"`
}

type AuditEntry struct {
	Time     time.Time      `json:"time"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"` // e.g. "SET_FOV"
	PlayerID string         `json:"player_id,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// PlayerInfo is the admin listing view of a player.
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Map  uint8  `json:"map"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// LiveMapState is the admin view of a player's streaming state.
type LiveMapState struct {
	PlayerID      string      `json:"player_id"`
	Map           uint8       `json:"map"`
	PreviousBlock int32       `json:"previous_block"`
	Version       fov.Version `json:"version"`
	Window        fov.Window  `json:"window"`
	BlocksWidth   int         `json:"blocks_width"`
	BlocksHeight  int         `json:"blocks_height"`
	// Blocks the client is known to hold; only tracked in incremental mode.
	ViewBlocks    int         `json:"view_blocks"`
}

// BlockUpdate reports an applied block edit and the players that were sent
// the new contents.
type BlockUpdate struct {
	Map       uint8    `json:"map"`
	Block     int32    `json:"block"`
	Kind      string   `json:"kind"` // "land" or "statics"
	Bytes     int      `json:"bytes"`
	Refreshed []string `json:"refreshed"`
}

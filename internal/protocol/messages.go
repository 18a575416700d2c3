package protocol

// LiveVersion is the (major, minor) live map version of a client. 0.0 means
// the client cannot receive map blocks.
type LiveVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

type ViewRange struct {
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

// HELLO (client -> server)
type HelloMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	PlayerName      string       `json:"player_name"`
	// Nil uses the server default.
	LiveVersion     *LiveVersion `json:"live_version,omitempty"`
	ViewRange       *ViewRange   `json:"view_range,omitempty"`
	MaxQueue        int          `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	SessionID       string    `json:"session_id"`
	PlayerID        string    `json:"player_id"`
	ViewRange       ViewRange `json:"view_range"`
	Maps            []MapInfo `json:"maps"`
}

type MapInfo struct {
	Number          int `json:"number"`
	WidthTiles      int `json:"width_tiles"`
	HeightTiles     int `json:"height_tiles"`
	WrapWidthTiles  int `json:"wrap_width_tiles"`
	WrapHeightTiles int `json:"wrap_height_tiles"`
}

// MOVE (client -> server). Tile coordinates on the given map.
type MoveMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Map             int    `json:"map"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
}

// VIEW_RANGE (both directions). Block offsets around the player's block.
// The server echoes the window it applied.
type ViewRangeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ViewRange
}

// LIVE_VERSION (client -> server). Re-announces the client's live map version.
type LiveVersionMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	LiveVersion
}

// BLOCK_REQUEST (client -> server). Blocks whose hashes did not match.
type BlockRequestMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Map             int     `json:"map"`
	Blocks          []int32 `json:"blocks"`
}

// BLOCK_HASHES (server -> client). Sent when the player crosses into a new
// block; lists every block of the player's window with its checksum.
type BlockHashesMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Map             int         `json:"map"`
	Center          int32       `json:"center"`
	LiveVersion     LiveVersion `json:"live_version"`
	HashBits        int         `json:"hash_bits"`
	Blocks          []BlockHash `json:"blocks"`
}

type BlockHash struct {
	Block int32  `json:"block"`
	Hash  uint32 `json:"hash"`
}

// BLOCK_DATA (server -> client). Land is 192 bytes (8x8 cells of tile id and
// z); statics are the raw statics records of the block.
type BlockDataMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Map             int         `json:"map"`
	Block           int32       `json:"block"`
	LiveVersion     LiveVersion `json:"live_version"`
	Land            []byte      `json:"land"`
	Statics         []byte      `json:"statics,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

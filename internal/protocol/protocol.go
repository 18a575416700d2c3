package protocol

import "encoding/json"

// Version is the transport protocol version. It is independent of the live
// map version a client announces in HELLO.
const Version = "1.0"

// Message types.
const (
	TypeHello        = "HELLO"
	TypeWelcome      = "WELCOME"
	TypeMove         = "MOVE"
	TypeViewRange    = "VIEW_RANGE"
	TypeLiveVersion  = "LIVE_VERSION"
	TypeBlockRequest = "BLOCK_REQUEST"
	TypeBlockHashes  = "BLOCK_HASHES"
	TypeBlockData    = "BLOCK_DATA"
	TypeError        = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

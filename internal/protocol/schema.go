package protocol

import (
	"github.com/invopop/jsonschema"
)

// Schemas reflects a JSON Schema for every message type, keyed by message
// type.
func Schemas() map[string]*jsonschema.Schema {
	r := jsonschema.Reflector{DoNotReference: true, Anonymous: true}
	msgs := map[string]any{
		TypeHello:        HelloMsg{},
		TypeWelcome:      WelcomeMsg{},
		TypeMove:         MoveMsg{},
		TypeViewRange:    ViewRangeMsg{},
		TypeLiveVersion:  LiveVersionMsg{},
		TypeBlockRequest: BlockRequestMsg{},
		TypeBlockHashes:  BlockHashesMsg{},
		TypeBlockData:    BlockDataMsg{},
		TypeError:        ErrorMsg{},
	}
	out := make(map[string]*jsonschema.Schema, len(msgs))
	for typ, v := range msgs {
		s := r.Reflect(v)
		s.Title = typ
		out[typ] = s
	}
	return out
}

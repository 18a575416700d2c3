package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Request layer.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrInvalidWindow  = "E_INVALID_WINDOW"
	ErrInvalidVersion = "E_INVALID_VERSION"
	ErrNoSuchMap      = "E_NO_SUCH_MAP"
	ErrNotFound       = "E_NOT_FOUND"
	ErrBusy           = "E_BUSY"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrInvalidWindow:   {},
	ErrInvalidVersion:  {},
	ErrNoSuchMap:       {},
	ErrNotFound:        {},
	ErrBusy:            {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

func NewError(code, message string) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		Code:            code,
		Message:         message,
	}
}

package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrRateLimited     = "E_RATE_LIMITED"

	// Configuration layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrUnknownParam  = "E_UNKNOWN_PARAM"
	ErrInvalidValue  = "E_INVALID_VALUE"
	ErrUnknownPreset = "E_UNKNOWN_PRESET"
	ErrPersistence   = "E_PERSISTENCE"

	// Engine state.
	ErrUnavailable = "E_UNAVAILABLE"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrRateLimited:     {},
	ErrBadRequest:      {},
	ErrUnknownParam:    {},
	ErrInvalidValue:    {},
	ErrUnknownPreset:   {},
	ErrPersistence:     {},
	ErrUnavailable:     {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

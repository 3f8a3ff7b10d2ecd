package protocol

const (
	// Request/transport validation.
	ErrBadRequest        = "E_BAD_REQUEST"
	ErrUnsupportedMedia  = "E_UNSUPPORTED_MEDIA"
	ErrUnsupportedEngine = "E_UNSUPPORTED_ENGINE"

	// Archive validation (client-facing, enumerates every violation).
	ErrValidation = "E_VALIDATION"

	// Server-side failures. Details are logged, never returned to clients.
	ErrInternal = "E_INTERNAL"
)

// Warning codes carried on otherwise successful uploads.
const (
	WarnServerRestartFailed = "server_restart_failed"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:        {},
	ErrUnsupportedMedia:  {},
	ErrUnsupportedEngine: {},
	ErrValidation:        {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

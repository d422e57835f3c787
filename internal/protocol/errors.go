package protocol

// ACK error codes. Game-rule codes map from the engine's sentinel errors.
const (
	// Message could not be decoded or failed the intent schema.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	ErrBadRequest    = "E_BAD_REQUEST"    // missing selection, action, location or ids
	ErrBusy          = "E_BUSY"           // an oracle request is in flight
	ErrNoResource    = "E_NO_RESOURCE"    // material shortage; no turn consumed
	ErrInvalidTarget = "E_INVALID_TARGET" // unknown agent/recipe, or a command recipe run directly
	ErrOracle        = "E_ORACLE"         // retries exhausted; no turn consumed
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrBusy:            {},
	ErrNoResource:      {},
	ErrInvalidTarget:   {},
	ErrOracle:          {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Retryable reports whether resending the same intent later may succeed
// without the player changing anything.
func Retryable(code string) bool {
	return code == ErrBusy || code == ErrOracle
}

package core

// Error codes for protocol and domain errors.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeNotRegistered = "not_registered"
	ErrCodeInvalidFrame  = "invalid_frame"
)

// Call failure and teardown reasons on the wire.
const (
	ReasonUserUnavailable  = "user_unavailable"
	ReasonUserDisconnected = "user_disconnected"
	ReasonCallEnded        = "call_ended"
	ReasonNoAnswer         = "no_answer"
	ReasonRingTimeout      = "ring_timeout"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

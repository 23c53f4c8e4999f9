package devtools

import "fmt"

// Error is a devtools session error, following the sentinel-constant idiom
// used throughout this module (see browser.Error).
type Error string

// Error satisfies the error interface.
func (err Error) Error() string {
	return string(err)
}

// Error values from spec §4.4's error taxonomy.
const (
	// ErrTimeout is returned when no reply to a sent command arrived
	// before the session's configured timeout.
	ErrTimeout Error = "devtools: command timed out"

	// ErrConnectionClosed is returned to every in-flight waiter, and by
	// any subsequent Send, once the underlying socket closes
	// unexpectedly.
	ErrConnectionClosed Error = "devtools: connection closed"

	// ErrProtocolParseError is returned when an inbound frame is not
	// valid JSON or doesn't match the {id|method} envelope shape.
	ErrProtocolParseError Error = "devtools: protocol parse error"
)

// ChromiumError wraps the "error" object Chrome attaches to a command
// reply. It is non-fatal to the Session: the conversion using it fails,
// but the Session remains usable for the next command.
type ChromiumError struct {
	Code    int64
	Message string
}

// Error satisfies the error interface.
func (e *ChromiumError) Error() string {
	return fmt.Sprintf("devtools: chromium error %d: %s", e.Code, e.Message)
}

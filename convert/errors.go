package convert

// Error is a conversion-state-machine error, following the
// sentinel-constant idiom used throughout this module.
type Error string

// Error satisfies the error interface.
func (err Error) Error() string {
	return string(err)
}

// Error values from spec §7. These are terminal for the current
// conversion but, unlike devtools.ErrConnectionClosed, do not invalidate
// the underlying Session: the worker reuses it for the next item.
const (
	// ErrNavigationTimeout is returned when the global timeout elapses
	// before the configured wait condition is satisfied.
	ErrNavigationTimeout Error = "convert: navigation timeout"

	// ErrNavigationFailed is returned when Page.navigate's errorText is
	// non-empty.
	ErrNavigationFailed Error = "convert: navigation failed"

	// ErrScriptFailed is returned when the optional user script throws.
	ErrScriptFailed Error = "convert: script evaluation failed"

	// ErrStreamReadFailed is returned when the IO.read loop fails before
	// observing eof.
	ErrStreamReadFailed Error = "convert: stream read failed"

	// ErrConfig is returned at Config construction time (never during
	// execution) when two or more options are contradictory or out of
	// range, per spec §7's ConfigError kind.
	ErrConfig Error = "convert: invalid configuration"
)

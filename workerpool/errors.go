package workerpool

// Error is this package's sentinel error type.
type Error string

func (e Error) Error() string { return string(e) }

// ErrCancelled marks an item whose conversion never ran: it was
// submitted or still queued when the pool's context was cancelled, or
// was queued for a worker that could not launch its browser. An item
// already in flight at cancellation ends with its converter's error.
const ErrCancelled Error = "workerpool: cancelled"

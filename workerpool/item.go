// Package workerpool implements C8 of the specification: a fixed pool
// of worker goroutines, each owning a private browser process and
// DevTools session for its lifetime, draining a bounded queue of
// conversion items.
package workerpool

import "time"

// Status is a ConversionItem's terminal or in-flight state.
type Status string

const (
	StatusQueued    Status = "Queued"
	StatusRunning   Status = "Running"
	StatusSuccess   Status = "Success"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

// ConversionItem is one unit of work submitted to the pool: the
// input/output pair plus the bookkeeping needed to report a result.
type ConversionItem struct {
	ID         string
	Input      string
	Output     string
	Status     Status
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func (c *ConversionItem) markRunning() {
	c.Status = StatusRunning
	c.StartedAt = time.Now()
}

func (c *ConversionItem) markDone(err error) {
	c.FinishedAt = time.Now()
	switch {
	case err == nil:
		c.Status = StatusSuccess
	case err == ErrCancelled:
		c.Status = StatusCancelled
	default:
		c.Status = StatusFailed
	}
	c.Err = err
}

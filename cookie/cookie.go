// Package cookie carries cancellation and progress through long-running
// operations such as content-stream processing and writing.
package cookie

import (
	"context"
	"sync/atomic"

	"github.com/wudi/pdfcore/recovery"
)

// Cookie is shared between the caller and one running operation. A nil
// *Cookie is valid and never aborts.
type Cookie struct {
	abort       atomic.Bool
	progress    atomic.Int64
	progressMax atomic.Int64
	errors      atomic.Int64
	incomplete  atomic.Bool
}

// New returns a cookie with an unknown progress maximum.
func New() *Cookie {
	c := &Cookie{}
	c.progressMax.Store(-1)
	return c
}

// WithContext returns a cookie that aborts when ctx is done, and a function
// that detaches it from ctx.
func WithContext(ctx context.Context) (*Cookie, func() bool) {
	c := New()
	stop := context.AfterFunc(ctx, c.Abort)
	return c, stop
}

// Abort asks the operation to stop at its next poll.
func (c *Cookie) Abort() {
	if c != nil {
		c.abort.Store(true)
	}
}

// ShouldAbort reports whether Abort was called.
func (c *Cookie) ShouldAbort() bool {
	return c != nil && c.abort.Load()
}

// Err returns recovery.ErrAborted-classified error once aborted.
func (c *Cookie) Err(op string) error {
	if !c.ShouldAbort() {
		return nil
	}
	return recovery.Errorf(recovery.KindAborted, op, "operation aborted")
}

// SetProgress records the current position and the maximum (-1 if unknown).
func (c *Cookie) SetProgress(current, max int64) {
	if c == nil {
		return
	}
	c.progress.Store(current)
	c.progressMax.Store(max)
}

// Advance increments the current position.
func (c *Cookie) Advance() {
	if c != nil {
		c.progress.Add(1)
	}
}

// Progress returns (current, max).
func (c *Cookie) Progress() (int64, int64) {
	if c == nil {
		return 0, -1
	}
	return c.progress.Load(), c.progressMax.Load()
}

// AddError counts a recovered error.
func (c *Cookie) AddError() {
	if c != nil {
		c.errors.Add(1)
	}
}

// Errors returns the number of recovered errors.
func (c *Cookie) Errors() int64 {
	if c == nil {
		return 0
	}
	return c.errors.Load()
}

// SetIncomplete flags output produced from partial data.
func (c *Cookie) SetIncomplete() {
	if c != nil {
		c.incomplete.Store(true)
	}
}

// Incomplete reports whether SetIncomplete was called.
func (c *Cookie) Incomplete() bool {
	return c != nil && c.incomplete.Load()
}

// Reset clears every field for reuse.
func (c *Cookie) Reset() {
	c.abort.Store(false)
	c.progress.Store(0)
	c.progressMax.Store(-1)
	c.errors.Store(0)
	c.incomplete.Store(false)
}

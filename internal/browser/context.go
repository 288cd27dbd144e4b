// internal/browser/context.go
package browser

import (
	"context"
	"time"
)

// CombineContext derives a context from tabCtx, which carries the chromedp
// target, that is also cancelled when opCtx is done. Values come from tabCtx
// only.
func CombineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tabCtx)
	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

// detached keeps the values of its parent but never expires.
type detached struct {
	context.Context
}

func (detached) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detached) Done() <-chan struct{}       { return nil }
func (detached) Err() error                  { return nil }

// Detach returns a context with ctx's values that survives ctx's
// cancellation. Teardown uses it so a cancelled run still closes its tabs.
func Detach(ctx context.Context) context.Context {
	return detached{ctx}
}

// Package poll provides the cancellable fixed-interval task used by the
// login and download flows. Each flow owns at most one Handle at a time
// and must stop it on every transition away from its polling state.
package poll

import (
	"context"
	"sync"
	"time"
)

// Func runs once per tick. Returning done=true stops the loop cleanly;
// returning an error stops it and records the error. There is no retry
// on error: a failed tick halts the poller and the owner surfaces it.
type Func func(ctx context.Context) (done bool, err error)

// Handle controls one running poll loop.
type Handle struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu  sync.Mutex
	err error
}

// Start launches a poll loop ticking at the given interval. The first
// tick fires after one full interval, matching the setInterval semantics
// the flows were specified against.
func Start(ctx context.Context, interval time.Duration, fn Func) *Handle {
	h := &Handle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(h.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				h.setErr(ctx.Err())
				return
			case <-h.stop:
				return
			case <-ticker.C:
				done, err := fn(ctx)
				if err != nil {
					h.setErr(err)
					return
				}
				if done {
					return
				}
			}
		}
	}()

	return h
}

// Stop cancels the loop. Safe to call more than once and from any
// goroutine; it does not wait for the loop to exit.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Done is closed once the loop has fully exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err reports the error that halted the loop, if any.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Running reports whether the loop is still alive.
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *Handle) setErr(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

// Package supervisor provides the restart-on-panic wrapper shared by every
// actor's worker goroutine (Gate, TradesTracker, BookTracker,
// ExecutionTracker, AccountTracker). A panic inside an actor's own logic is
// fatal to the current operation but not to the actor: the supervisor
// recovers it, logs it, and relaunches the worker.
package supervisor

import (
	"context"
	"log/slog"
	"time"
)

// Run launches fn in a supervised loop: if fn panics or returns, it is
// relaunched after backoff, until ctx is cancelled. fn should itself loop
// until ctx.Done(); a normal return is treated the same as a panic, since
// either means the worker stopped serving requests it was still expected to
// serve.
func Run(ctx context.Context, logger *slog.Logger, name string, fn func(ctx context.Context)) {
	backoff := 50 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("actor panicked, restarting", "actor", name, "panic", r)
				}
			}()
			fn(ctx)
		}()

		if ctx.Err() != nil {
			return
		}
		logger.Warn("actor worker exited, restarting", "actor", name, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

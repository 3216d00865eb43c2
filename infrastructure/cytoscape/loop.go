package cytoscape

import (
	"context"
	"time"
)

// next tells loop what to do after one iteration.
type next struct {
	err      error
	quit     bool
	interval time.Duration
}

// again runs the task once more after interval.
func again(interval time.Duration) next { return next{interval: interval} }

// done stops the loop, with err when non-nil.
func done(err error) next { return next{quit: true, err: err} }

// loop runs task until it returns done or ctx ends. The value returned by
// each iteration is passed to the next one. When ctx ends first, loop
// returns the last value and ctx.Err().
func loop[T any](ctx context.Context, init T, task func(context.Context, T) (T, next)) (T, error) {
	value := init
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return value, ctx.Err()
		case <-timer.C:
		}

		var n next
		value, n = task(ctx, value)
		if n.quit {
			return value, n.err
		}
		timer.Reset(n.interval)
	}
}

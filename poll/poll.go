// Package poll runs cancellable periodic tasks.
package poll

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Task is a running poll loop.
type Task struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Start calls fn every interval until the task is stopped or ctx is done. The
// first call happens one interval after Start. fn receives the task context,
// which is cancelled by Cancel and Stop; results produced under a cancelled
// context must be thrown away.
func Start(ctx context.Context, clk clock.Clock, interval time.Duration, fn func(context.Context)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	ticker := clk.Ticker(interval)
	go func() {
		defer close(t.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				fn(ctx)
			}
		}
	}()
	return t
}

// Context returns the task context.
func (t *Task) Context() context.Context {
	return t.ctx
}

// Cancel stops future ticks and cancels the running one without waiting.
// It is safe to call with locks held that fn may want.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the loop has exited.
func (t *Task) Wait() {
	<-t.done
}

// Stop cancels the task and waits for the loop to exit.
func (t *Task) Stop() {
	t.Cancel()
	t.Wait()
}

// Done is closed once the loop has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

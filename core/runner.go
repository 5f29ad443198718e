package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// IntervalRunner invokes a function on a fixed ticker until stopped. It is
// the shared engine behind the outbox and webhook background dispatchers.
type IntervalRunner struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)

	runStateMu sync.Mutex
	running    bool
	stop       chan struct{}
	done       chan struct{}
}

func NewIntervalRunner(name string, interval time.Duration, fn func(ctx context.Context)) (*IntervalRunner, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("core: runner name is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("core: runner interval must be positive")
	}
	if fn == nil {
		return nil, fmt.Errorf("core: runner function is required")
	}
	return &IntervalRunner{
		name:     name,
		interval: interval,
		fn:       fn,
	}, nil
}

func (r *IntervalRunner) Name() string {
	if r == nil {
		return ""
	}
	return r.name
}

// Run starts the ticker loop. It returns an error if the runner is already
// running. The first cycle fires after one interval, not immediately.
func (r *IntervalRunner) Run(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("core: runner is not configured")
	}
	r.runStateMu.Lock()
	if r.running {
		r.runStateMu.Unlock()
		return fmt.Errorf("core: runner %q already running", r.name)
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	stop := r.stop
	done := r.done
	r.runStateMu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				r.fn(ctx)
			}
		}
	}()
	return nil
}

// Stop signals the loop to exit without waiting for it.
func (r *IntervalRunner) Stop() {
	if r == nil {
		return
	}
	r.runStateMu.Lock()
	defer r.runStateMu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	close(r.stop)
}

// Shutdown stops the loop and waits for the in-flight cycle to finish or the
// context to expire.
func (r *IntervalRunner) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.runStateMu.Lock()
	done := r.done
	if r.running {
		r.running = false
		close(r.stop)
	}
	r.runStateMu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

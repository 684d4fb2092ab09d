package transport

import (
	"context"
	"math"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/dreamware/dindex/internal/direrr"
)

// Admission bounds how many handler tasks an accept loop runs at once.
// Acquire blocks once highWater in-flight tasks are outstanding, and
// once that happens it first calls drainOldest itself, to join a
// configurable fraction of the oldest still-running tasks before
// waiting for a free slot — grounded on
// cmd/node/main.go's shutdown path, which waits on a sync.WaitGroup of
// in-flight handlers; here that join is partial and triggered by load
// rather than total and triggered by shutdown.
type Admission struct {
	sem           *semaphore.Weighted
	highWater     int
	drainFraction float64

	mu    sync.Mutex
	tasks []*task
}

type task struct {
	done chan struct{}
}

// NewAdmission builds an Admission that allows up to highWater
// concurrent handler tasks, draining drainFraction of the oldest ones
// (rounded up) whenever a caller must wait past the mark.
func NewAdmission(highWater int, drainFraction float64) *Admission {
	if highWater < 1 {
		highWater = 1
	}
	return &Admission{
		sem:           semaphore.NewWeighted(int64(highWater)),
		highWater:     highWater,
		drainFraction: drainFraction,
	}
}

// Acquire blocks until a handler slot is free or ctx is cancelled. If
// the pool is already saturated, it opportunistically drains the oldest
// fraction of in-flight tasks first so a burst of slow connections
// cannot starve new ones indefinitely.
func (a *Admission) Acquire(ctx context.Context) (release func(), err error) {
	if !a.sem.TryAcquire(1) {
		if err := a.drainOldest(ctx); err != nil {
			return nil, direrr.New(direrr.ResourceExhaustion, "admission drain oldest", err)
		}
		if err := a.sem.Acquire(ctx, 1); err != nil {
			return nil, direrr.New(direrr.ResourceExhaustion, "admission acquire slot", err)
		}
	}

	t := &task{done: make(chan struct{})}
	a.mu.Lock()
	a.tasks = append(a.tasks, t)
	a.mu.Unlock()

	return func() {
		close(t.done)
		a.sem.Release(1)
		a.removeTask(t)
	}, nil
}

// Wait blocks until every handler task currently tracked by a has
// completed, or ctx is cancelled, whichever comes first. Used at server
// shutdown to join outstanding handler tasks before the process exits
// (spec.md §5's "outstanding handler tasks are joined"), the bounded
// counterpart to drainOldest's load-triggered partial join.
func (a *Admission) Wait(ctx context.Context) error {
	a.mu.Lock()
	toWait := append([]*task(nil), a.tasks...)
	a.mu.Unlock()

	for _, t := range toWait {
		select {
		case <-t.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// drainOldest joins ceil(len(tasks)*drainFraction) of the oldest
// still-running tasks, waiting for each to signal completion or for ctx
// to be cancelled, whichever comes first.
func (a *Admission) drainOldest(ctx context.Context) error {
	a.mu.Lock()
	n := int(math.Ceil(float64(len(a.tasks)) * a.drainFraction))
	if n > len(a.tasks) {
		n = len(a.tasks)
	}
	toDrain := append([]*task(nil), a.tasks[:n]...)
	a.mu.Unlock()

	for _, t := range toDrain {
		select {
		case <-t.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (a *Admission) removeTask(t *task) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, candidate := range a.tasks {
		if candidate == t {
			a.tasks = append(a.tasks[:i], a.tasks[i+1:]...)
			return
		}
	}
}

// InFlight reports the current number of outstanding handler tasks, for
// diagnostics and tests.
func (a *Admission) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tasks)
}

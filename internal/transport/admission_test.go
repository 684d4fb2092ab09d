package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionAcquireRelease(t *testing.T) {
	a := NewAdmission(2, 0.5)
	release1, err := a.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, a.InFlight())

	release2, err := a.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, a.InFlight())

	release1()
	release2()
	assert.Equal(t, 0, a.InFlight())
}

func TestAdmissionDrainsOldestPastHighWater(t *testing.T) {
	a := NewAdmission(1, 1.0)

	release1, err := a.Acquire(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		release2, err := a.Acquire(context.Background())
		require.NoError(t, err)
		release2()
	}()

	time.Sleep(20 * time.Millisecond)
	release1()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestAdmissionAcquireRespectsContextCancellation(t *testing.T) {
	a := NewAdmission(1, 0.5)
	_, err := a.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	blockedTask := &task{done: make(chan struct{})}
	a.mu.Lock()
	a.tasks = append(a.tasks, blockedTask)
	a.mu.Unlock()
	// Neither the first acquired task nor blockedTask is ever released,
	// so drainOldest's wait on the oldest task never resolves on its
	// own; only ctx expiring should unblock Acquire.

	_, err = a.Acquire(ctx)
	assert.Error(t, err)
}

func TestAdmissionWaitBlocksUntilTasksFinish(t *testing.T) {
	a := NewAdmission(2, 0.5)
	release1, err := a.Acquire(context.Background())
	require.NoError(t, err)
	release2, err := a.Acquire(context.Background())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = a.Wait(context.Background())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before its tracked tasks released")
	case <-time.After(20 * time.Millisecond):
	}

	release1()
	release2()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after all tracked tasks released")
	}
}

func TestAdmissionWaitRespectsContextCancellation(t *testing.T) {
	a := NewAdmission(1, 0.5)
	_, err := a.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, a.Wait(ctx))
}

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
)

func testLogger() logger.Logger {
	return logger.New("error", "test")
}

func TestScheduler_RunsFirstCycleImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := make(chan struct{})
	var once sync.Once
	s := New(time.Hour, func(ctx context.Context) error {
		once.Do(func() { close(ran) })
		return nil
	}, testLogger())

	go s.Run(ctx)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("first cycle did not run immediately")
	}

	cancel()
	<-s.Done()
}

func TestScheduler_StartToStartCadence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var starts []time.Time

	s := New(40*time.Millisecond, func(ctx context.Context) error {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		time.Sleep(10 * time.Millisecond) // shorter than the interval
		return nil
	}, testLogger())

	go s.Run(ctx)
	time.Sleep(150 * time.Millisecond)
	cancel()
	<-s.Done()

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(starts), 3)
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		// Cadence anchors on cycle start, so the gap tracks the interval
		// rather than interval plus cycle duration.
		assert.GreaterOrEqual(t, gap, 35*time.Millisecond)
		assert.Less(t, gap, 80*time.Millisecond)
	}
}

func TestScheduler_OverrunFiresNextCycleImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var starts []time.Time

	s := New(20*time.Millisecond, func(ctx context.Context) error {
		mu.Lock()
		starts = append(starts, time.Now())
		n := len(starts)
		mu.Unlock()
		if n == 1 {
			time.Sleep(70 * time.Millisecond) // overruns the interval
		}
		return nil
	}, testLogger())

	go s.Run(ctx)
	time.Sleep(120 * time.Millisecond)
	cancel()
	<-s.Done()

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(starts), 2)
	// The second cycle fires as soon as the overrunning first one finishes,
	// it is never scheduled into the past and never stacked.
	gap := starts[1].Sub(starts[0])
	assert.GreaterOrEqual(t, gap, 70*time.Millisecond)
	assert.Less(t, gap, 100*time.Millisecond)
}

func TestScheduler_StopAllowsInFlightCycleToFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	finished := make(chan struct{})
	var once sync.Once

	s := New(time.Hour, func(ctx context.Context) error {
		once.Do(func() {
			close(started)
			time.Sleep(30 * time.Millisecond)
			close(finished)
		})
		return nil
	}, testLogger())

	go s.Run(ctx)
	<-started
	cancel()
	<-s.Done()

	select {
	case <-finished:
	default:
		t.Fatal("scheduler returned before the in-flight cycle finished")
	}
	assert.Equal(t, StateStopped, s.State())
}

func TestScheduler_StateTransitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := New(time.Hour, func(ctx context.Context) error { return nil }, testLogger())
	assert.Equal(t, StateIdle, s.State())

	go s.Run(ctx)
	assert.Eventually(t, func() bool { return s.State() == StateRunning },
		time.Second, 5*time.Millisecond)

	cancel()
	<-s.Done()
	assert.Equal(t, StateStopped, s.State())
}

func TestScheduler_TaskErrorDoesNotStopScheduler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	runs := 0
	s := New(10*time.Millisecond, func(ctx context.Context) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return errors.New("storage unavailable")
	}, testLogger())

	go s.Run(ctx)
	time.Sleep(60 * time.Millisecond)
	cancel()
	<-s.Done()

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, runs, 3, "failing cycles must not halt the cadence")
}

func TestScheduler_RunIsNotReentrant(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	runs := 0
	s := New(time.Hour, func(ctx context.Context) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	}, testLogger())

	go s.Run(ctx)
	assert.Eventually(t, func() bool { return s.State() == StateRunning },
		time.Second, 5*time.Millisecond)

	s.Run(ctx) // second Run returns immediately

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, runs)

	cancel()
	<-s.Done()
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
}

package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingWorker struct {
	calls *atomic.Int32
	fn    func(ctx context.Context) error
}

func (w countingWorker) Run(ctx context.Context) error {
	w.calls.Add(1)
	return w.fn(ctx)
}

func TestSupervisor_RestartOnPanic(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	calls := &atomic.Int32{}
	worker := countingWorker{calls: calls, fn: func(ctx context.Context) error {
		panic("boom")
	}}

	sup := NewSupervisor(log)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	sup.Add(worker).Run(ctx)

	// Waiting for panics and restarts
	time.Sleep(900 * time.Millisecond)

	req.GreaterOrEqual(calls.Load(), int32(2))
}

func TestSupervisor_StopOnSuccess(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	// Given a worker running only once
	calls := &atomic.Int32{}
	worker := countingWorker{calls: calls, fn: func(ctx context.Context) error {
		return nil
	}}

	sup := NewSupervisor(log)

	// Given a channel to notify when every worker terminated
	done := make(chan struct{})

	sup.Add(worker).Run(context.Background())
	go func() {
		sup.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Then supervisor detected a success and never restarted
		req.Equal(int32(1), calls.Load())
	case <-time.After(500 * time.Millisecond):
		req.Fail("Supervisor should have stopped after worker success")
	}
}

func TestSupervisor_Stop_Cancels_Workers(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	calls := &atomic.Int32{}
	worker := countingWorker{calls: calls, fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	sup := NewSupervisor(log)
	sup.Add(worker).Run(context.Background())

	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()

	// When the supervisor is stopped
	sup.Stop()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		req.Fail("Workers should have stopped after Stop")
	}
}

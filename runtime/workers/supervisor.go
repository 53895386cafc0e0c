package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"collab-lab/contract"
	"collab-lab/errors"
)

const waitTimeBeforeRestart = 200 * time.Millisecond

// Supervisor owns a cancellation context and runs each worker in its own
// goroutine. Panics are recovered and the worker is restarted after a
// short delay; a clean return retires the worker for good. A failure in
// one worker must not stop the supervisor itself.
type Supervisor struct {
	Cancel  context.CancelFunc
	wg      *sync.WaitGroup
	log     *slog.Logger
	workers []contract.Worker
	ctx     context.Context
}

func NewSupervisor(log *slog.Logger) *Supervisor {
	return &Supervisor{wg: &sync.WaitGroup{}, log: log}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run starts every registered worker under a supervision context derived
// from the parent: if the parent cancels so do the workers, and Stop
// cancels only the workers. Run returns once the workers are launched;
// use Wait to block until they have all finished.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	s.ctx = supervisedCtx

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
}

// Start runs a worker under supervision.
// The worker is executed in a dedicated goroutine. If its Run method panics,
// the supervisor recovers, restarts the worker, and keeps the supervision
// loop alive.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = errors.ErrWorkerPanic
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				// Terminated properly, never restart
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err)
			select {
			case <-ctx.Done():
				// Context canceled: exit without waiting for the restart delay
				return
			case <-time.After(waitTimeBeforeRestart):
				// Delay elapsed and context is still active, restart
			}
		}
	}()
}

// Wait blocks until every supervised goroutine has finished.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Stop cancels the supervision context; workers observing ctx.Done stop.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}

// Context returns the supervision context, valid after Run.
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

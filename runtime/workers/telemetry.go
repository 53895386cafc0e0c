package workers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"collab-lab/contract"
	"collab-lab/domain/event"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*TelemetryWorker)(nil)

// TelemetryWorker counts the events flowing through fan-out and logs a
// periodic summary together with the process's own CPU and memory
// footprint. It reads from a best-effort channel, so losing samples
// under load is expected and fine.
type TelemetryWorker struct {
	events   chan event.DomainEvent
	interval time.Duration
	log      *slog.Logger

	counts map[string]uint64
	proc   *process.Process
}

func NewTelemetryWorker(
	events chan event.DomainEvent,
	interval time.Duration,
	log *slog.Logger) (*TelemetryWorker, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("attaching to own process: %w", err)
	}
	return &TelemetryWorker{
		events:   events,
		interval: interval,
		log:      log,
		counts:   make(map[string]uint64),
		proc:     proc,
	}, nil
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.counts[fmt.Sprintf("%T", evt)]++
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *TelemetryWorker) report() {
	attrs := []any{}
	var total uint64
	for name, count := range w.counts {
		attrs = append(attrs, name, count)
		total += count
	}

	cpu, err := w.proc.CPUPercent()
	if err == nil {
		attrs = append(attrs, "cpu_percent", fmt.Sprintf("%.2f", cpu))
	}
	mem, err := w.proc.MemoryPercent()
	if err == nil {
		attrs = append(attrs, "mem_percent", fmt.Sprintf("%.2f", mem))
	}

	w.log.Info(fmt.Sprintf("Dispatched %d events since start", total), attrs...)
}

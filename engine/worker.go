package engine

import (
	"context"
	"time"

	"github.com/relaypro/relay-go/correlate"
	"github.com/relaypro/relay-go/logkeys"
	"github.com/relaypro/relay-go/session"

	"github.com/micromdm/nanolib/log"
)

const DefaultDuration = time.Second

// Worker fails timed out commands on an interval.
// Waiting callers also time out on their own; the worker covers
// commands nobody waits on.
type Worker struct {
	registry   *session.Registry
	correlator *correlate.Correlator
	logger     log.Logger

	// duration is the interval at which the worker will wake up to
	// sweep outstanding commands.
	duration time.Duration
}

type WorkerOption func(w *Worker)

func WithWorkerLogger(logger log.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithWorkerDuration configures the sweep interval for the worker.
func WithWorkerDuration(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.duration = d
	}
}

// NewWorker creates a worker sweeping the sessions of e.
func NewWorker(e *Engine, opts ...WorkerOption) *Worker {
	w := &Worker{
		registry:   e.registry,
		correlator: e.correlator,
		logger:     log.NopLogger,
		duration:   DefaultDuration,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunOnce fails the commands whose deadline is before now and returns the count.
func (w *Worker) RunOnce(now time.Time) int {
	n := w.correlator.Sweep(w.registry, now)
	if n > 0 {
		w.logger.Debug(
			logkeys.Message, "timed out commands",
			logkeys.GenericCount, n,
		)
	}
	return n
}

// Run starts and runs the worker until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Debug(logkeys.Message, "starting worker", "duration", w.duration)

	ticker := time.NewTicker(w.duration)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			w.RunOnce(now)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

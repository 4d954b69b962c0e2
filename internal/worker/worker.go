package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/convertly/internal/metrics"
)

// Worker runs registered tasks on a fixed interval in a single goroutine.
type Worker struct {
	tasks    []Task
	disabled map[string]bool
	config   Config
	logger   *slog.Logger

	// Synchronization
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		disabled: make(map[string]bool),
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Register adds a task to the worker, replacing any task with the same
// name. Call this before Start().
func (w *Worker) Register(task Task) {
	for i, t := range w.tasks {
		if t.Name() == task.Name() {
			w.logger.Warn("Replacing existing task", "task", task.Name())
			w.tasks[i] = task
			return
		}
	}
	w.tasks = append(w.tasks, task)
	w.logger.Debug("Registered task", "task", task.Name())
}

// Start runs every task once and then on each interval until Stop is
// called or ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info("Worker started", "tasks", len(w.tasks), "interval", w.config.Interval)
}

// Stop signals the loop to stop and waits for it to finish.
// It respects the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopCh)
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, a task may still be running")
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce runs every enabled task once, sequentially.
func (w *Worker) RunOnce(ctx context.Context) {
	for _, task := range w.tasks {
		if ctx.Err() != nil {
			return
		}
		if w.disabled[task.Name()] {
			continue
		}
		w.runTask(ctx, task)
	}
}

func (w *Worker) runTask(ctx context.Context, task Task) {
	logger := w.logger.With("task", task.Name())

	taskCtx, cancel := context.WithTimeout(ctx, w.config.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := task.Run(taskCtx)
	duration := time.Since(start)

	if err == nil {
		metrics.TaskCompleted(task.Name(), duration)
		logger.Debug("Task completed", "duration", duration)
		return
	}

	metrics.TaskFailed(task.Name(), duration)
	if IsPermanent(err) {
		w.disabled[task.Name()] = true
		metrics.TaskDisabled(task.Name())
		logger.Error("Task failed with permanent error, disabling", "error", err)
		return
	}
	logger.Error("Task failed", "error", err, "duration", duration)
}

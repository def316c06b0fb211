package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"portsight/scanner"
)

// StartWorkers launches background goroutines that process scan tasks until ctx is done.
// The returned WaitGroup is released once every worker has exited.
func StartWorkers(ctx context.Context, store TaskStore, logger *slog.Logger, numWorkers, scanWorkers int) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workerLoop(ctx, store, logger, scanWorkers)
		}()
	}
	return &wg
}

func workerLoop(ctx context.Context, store TaskStore, logger *slog.Logger, scanWorkers int) {
	for {
		taskID, err := store.PopFromQueue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("worker failed to pop task", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		processTask(ctx, store, logger, taskID, scanWorkers)
	}
}

// processTask runs one queued task to a terminal state.
func processTask(ctx context.Context, store TaskStore, logger *slog.Logger, taskID string, scanWorkers int) {
	task, err := store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			logger.Warn("worker task disappeared", "task_id", taskID)
			return
		}
		logger.Error("worker failed to load task", "task_id", taskID, "error", err)
		return
	}

	task.Status = StatusRunning
	task.Error = ""
	task.Results = nil
	task.CompletedAt = nil
	if err := store.UpdateTask(ctx, task); err != nil {
		logger.Error("worker failed to mark task running", "task_id", taskID, "error", err)
		return
	}

	start := time.Now()
	results, err := scanner.RunScan(ctx, task.Config(scanWorkers))
	if err != nil {
		failTask(ctx, task, store, logger, err)
		return
	}
	if ctx.Err() != nil {
		failTask(context.Background(), task, store, logger, errors.New("scan interrupted by shutdown"))
		return
	}

	task.Status = StatusCompleted
	task.Results = results
	now := time.Now().UTC()
	task.CompletedAt = &now

	if err := store.UpdateTask(ctx, task); err != nil {
		logger.Error("worker failed to update task", "task_id", task.ID, "error", err)
		return
	}
	logger.Info("scan task completed",
		"task_id", task.ID,
		"open_ports", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func failTask(ctx context.Context, task *ScanTask, store TaskStore, logger *slog.Logger, err error) {
	logger.Error("worker task failed", "task_id", task.ID, "error", err)
	task.Status = StatusFailed
	task.Error = err.Error()
	task.Results = nil
	now := time.Now().UTC()
	task.CompletedAt = &now
	if updateErr := store.UpdateTask(ctx, task); updateErr != nil {
		logger.Error("worker failed to persist failed task", "task_id", task.ID, "error", updateErr)
	}
}

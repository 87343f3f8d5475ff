package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/taskmate/backend/internal/config"
	"github.com/taskmate/backend/pkg/logger"
)

const workerConcurrency = 10

// Worker consumes append notifications from Redis. asynq hands each task to a
// single instance; other instances learn about the append from the hub.
type Worker struct {
	server  *asynq.Server
	process TaskProcessor
	stop    sync.Once
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig, process TaskProcessor) *Worker {
	if !cfg.Enabled || process == nil {
		return nil
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB},
		asynq.Config{
			Concurrency: workerConcurrency,
			Queues:      map[string]int{"default": 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Warn().Err(err).
					Str("task", task.Type()).
					Int("retried", retried).
					Int("max_retry", maxRetry).
					Msg("[Worker] task failed")
			}),
		},
	)
	return &Worker{server: server, process: process}
}

func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeMessageAppended, w.handleMessageAppended)
	if err := w.server.Start(mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	logger.Info().Int("concurrency", workerConcurrency).Msg("[Worker] consuming " + TaskTypeMessageAppended)
	return nil
}

func (w *Worker) Stop() {
	w.stop.Do(w.server.Shutdown)
}

func (w *Worker) handleMessageAppended(ctx context.Context, t *asynq.Task) error {
	var task MessageAppendedTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		// A payload that does not decode never will.
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return w.process(ctx, &task)
}

package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/panjf2000/ants/v2"
	"github.com/taskmate/backend/internal/config"
	"github.com/taskmate/backend/pkg/logger"
)

const (
	TaskTypeMessageAppended = "chat:message_appended"
)

// MessageAppendedTask is emitted after a message reaches the durable log.
type MessageAppendedTask struct {
	MessageID uint64    `json:"message_id,string"`
	ProjectID uint      `json:"project_id"`
	UserID    uint      `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type TaskProcessor func(context.Context, *MessageAppendedTask) error

// TaskQueue defines the interface for background task processing
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *MessageAppendedTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// Global task queue instance
var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Infof("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
				globalTaskQueue = NewSyncQueue(cfg.Chat.WorkerPoolSize)
			} else {
				logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalTaskQueue = queue
			}
		} else {
			logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
			globalTaskQueue = NewSyncQueue(cfg.Chat.WorkerPoolSize)
		}
	})
	return globalTaskQueue
}

// GetTaskQueue returns the global task queue instance
func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	// Verify the connection before committing to async mode.
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *MessageAppendedTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeMessageAppended, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue processes tasks in-process on a bounded ants goroutine pool.
type SyncQueue struct {
	processor TaskProcessor
	pool      *ants.Pool
	wg        sync.WaitGroup
	mu        sync.RWMutex
}

// NewSyncQueue creates an in-process queue running at most size tasks at
// once. A non-positive size means unbounded.
func NewSyncQueue(size int) *SyncQueue {
	q := &SyncQueue{}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p interface{}) {
		logger.Error().Interface("panic", p).Msg("[SyncQueue] task panicked")
	}))
	if err != nil {
		logger.Warnf("[SyncQueue] Pool unavailable, running tasks on plain goroutines: %v", err)
	} else {
		q.pool = pool
	}
	return q
}

// SetProcessor sets the function to process tasks
func (q *SyncQueue) SetProcessor(processor TaskProcessor) {
	q.mu.Lock()
	q.processor = processor
	q.mu.Unlock()
}

// Enqueue schedules the task and returns without waiting for it.
func (q *SyncQueue) Enqueue(task *MessageAppendedTask) error {
	q.mu.RLock()
	processor := q.processor
	q.mu.RUnlock()

	if processor == nil {
		logger.Warnf("[SyncQueue] No processor set, task will be dropped")
		return nil
	}

	q.wg.Add(1)
	run := func() {
		defer q.wg.Done()
		if err := processor(context.Background(), task); err != nil {
			logger.Warn().Err(err).Uint64("message_id", task.MessageID).Msg("[SyncQueue] task processing failed")
		}
	}

	if q.pool == nil {
		go run()
		return nil
	}
	if err := q.pool.Submit(run); err != nil {
		q.wg.Done()
		return err
	}
	return nil
}

// Wait blocks until every enqueued task has finished.
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for in-flight tasks and releases the pool.
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	if q.pool != nil {
		q.pool.Release()
	}
	return nil
}

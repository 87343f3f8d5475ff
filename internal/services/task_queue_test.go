package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/taskmate/backend/internal/config"
)

func TestTaskTypeMessageAppended_Constant(t *testing.T) {
	if TaskTypeMessageAppended != "chat:message_appended" {
		t.Errorf("TaskTypeMessageAppended = %q", TaskTypeMessageAppended)
	}
}

func TestMessageAppendedTask_JSON(t *testing.T) {
	task := MessageAppendedTask{
		MessageID: 1 << 60,
		ProjectID: 10,
		UserID:    3,
		Content:   "hello",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatal(err)
	}
	var back MessageAppendedTask
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.MessageID != task.MessageID {
		t.Errorf("MessageID = %d, expected %d", back.MessageID, task.MessageID)
	}
	if !back.CreatedAt.Equal(task.CreatedAt) {
		t.Errorf("CreatedAt = %v, expected %v", back.CreatedAt, task.CreatedAt)
	}
}

func TestSyncQueue_IsAsync(t *testing.T) {
	queue := NewSyncQueue(2)
	defer queue.Close()
	if queue.IsAsync() {
		t.Error("SyncQueue.IsAsync() should return false")
	}
}

func TestSyncQueue_EnqueueWithoutProcessor(t *testing.T) {
	queue := NewSyncQueue(2)
	defer queue.Close()

	if err := queue.Enqueue(&MessageAppendedTask{MessageID: 1, ProjectID: 1}); err != nil {
		t.Errorf("Enqueue without processor should not error, got %v", err)
	}
}

func TestSyncQueue_ProcessesAllTasks(t *testing.T) {
	queue := NewSyncQueue(3)
	defer queue.Close()

	var processed int64
	queue.SetProcessor(func(ctx context.Context, task *MessageAppendedTask) error {
		atomic.AddInt64(&processed, 1)
		if task.MessageID%2 == 0 {
			return errors.New("boom")
		}
		return nil
	})

	for i := 0; i < 50; i++ {
		if err := queue.Enqueue(&MessageAppendedTask{MessageID: uint64(i)}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	queue.Wait()

	if got := atomic.LoadInt64(&processed); got != 50 {
		t.Errorf("processed = %d, expected 50", got)
	}
}

func TestSyncQueue_SurvivesPanic(t *testing.T) {
	queue := NewSyncQueue(1)
	defer queue.Close()

	var calls int64
	queue.SetProcessor(func(ctx context.Context, task *MessageAppendedTask) error {
		if atomic.AddInt64(&calls, 1) == 1 {
			panic("bad task")
		}
		return nil
	})

	_ = queue.Enqueue(&MessageAppendedTask{MessageID: 1})
	_ = queue.Enqueue(&MessageAppendedTask{MessageID: 2})
	queue.Wait()

	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Errorf("calls = %d, expected 2", got)
	}
}

func TestAsyncQueue_IsAsync(t *testing.T) {
	queue := &AsyncQueue{}
	if !queue.IsAsync() {
		t.Error("AsyncQueue.IsAsync() should return true")
	}
}

func TestNewWorker_DisabledRedis(t *testing.T) {
	noop := func(context.Context, *MessageAppendedTask) error { return nil }
	if w := NewWorker(&config.RedisConfig{Enabled: false}, noop); w != nil {
		t.Error("NewWorker should return nil when redis is disabled")
	}
	if w := NewWorker(&config.RedisConfig{Enabled: true, Addr: "127.0.0.1:0"}, nil); w != nil {
		t.Error("NewWorker should return nil without a processor")
	}
}

func TestWorker_HandleMessageAppended(t *testing.T) {
	var got *MessageAppendedTask
	w := &Worker{process: func(ctx context.Context, task *MessageAppendedTask) error {
		got = task
		return nil
	}}

	payload, _ := json.Marshal(MessageAppendedTask{MessageID: 9, ProjectID: 4})
	if err := w.handleMessageAppended(context.Background(), asynq.NewTask(TaskTypeMessageAppended, payload)); err != nil {
		t.Fatalf("handleMessageAppended() error = %v", err)
	}
	if got == nil || got.MessageID != 9 || got.ProjectID != 4 {
		t.Errorf("processor got %+v", got)
	}

	err := w.handleMessageAppended(context.Background(), asynq.NewTask(TaskTypeMessageAppended, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("malformed payload should skip retries, got %v", err)
	}
}

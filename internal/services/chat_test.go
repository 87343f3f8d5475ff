package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmate/backend/internal/models"
	"github.com/taskmate/backend/internal/store"
	"github.com/taskmate/backend/pkg/response"
)

type seqIDs struct {
	mu   sync.Mutex
	next uint64
}

func (s *seqIDs) NextID() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next, nil
}

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// appendFailingGateway loses every durable append.
type appendFailingGateway struct {
	store.Gateway
}

func (appendFailingGateway) AppendMessage(context.Context, *models.Message) error {
	return errors.New("disk I/O error")
}

type chatFixture struct {
	gw      store.Gateway
	hub     *ChatHub
	queue   *SyncQueue
	preview *PreviewProjector
	svc     *ChatService
	project *models.Project
}

func newChatFixture(t *testing.T, wrap func(store.Gateway) store.Gateway) *chatFixture {
	t.Helper()
	var gw store.Gateway = newTestGateway(t)
	ctx := context.Background()

	project := seedProject(t, gw, 1, 4)
	req := &models.JoinRequest{ProjectID: project.ID, UserID: 2}
	require.NoError(t, gw.CreateRequest(ctx, req))
	_, _, err := gw.ApproveRequest(ctx, req.ID)
	require.NoError(t, err)
	require.NoError(t, gw.UpsertUser(ctx, &models.User{ID: 1, Name: "Ada"}))

	if wrap != nil {
		gw = wrap(gw)
	}

	hub := NewChatHub(16)
	preview := NewPreviewProjector(gw, time.Hour)
	queue := NewSyncQueue(4)
	queue.SetProcessor(preview.HandleMessageAppended)
	t.Cleanup(func() { queue.Close() })

	svc := NewChatService(gw, hub, queue, &seqIDs{}, 0)
	svc.now = newStepClock().Now

	return &chatFixture{gw: gw, hub: hub, queue: queue, preview: preview, svc: svc, project: project}
}

func nextEvent(t *testing.T, ch <-chan ChatEvent) ChatEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chat event")
	}
	return ChatEvent{}
}

func TestPostMessage_AppearsLastInHistory(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()

	for i, content := range []string{"hello", "  hi there  ", "who brings snacks?"} {
		author := uint(1 + i%2)
		msg, err := f.svc.PostMessage(ctx, f.project.ID, author, content, "")
		require.NoError(t, err)

		history, err := f.svc.GetHistory(ctx, f.project.ID, 1)
		require.NoError(t, err)
		require.Len(t, history, i+1)
		last := history[len(history)-1]
		assert.Equal(t, msg.ID, last.ID)
		assert.Equal(t, strings.TrimSpace(content), last.Content)
	}
}

func TestGetHistory_IdempotentAndOrdered(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()

	for _, c := range []string{"one", "two", "three"} {
		_, err := f.svc.PostMessage(ctx, f.project.ID, 2, c, "")
		require.NoError(t, err)
	}

	first, err := f.svc.GetHistory(ctx, f.project.ID, 2)
	require.NoError(t, err)
	second, err := f.svc.GetHistory(ctx, f.project.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.Len(t, first, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{first[0].Content, first[1].Content, first[2].Content})
	for i := 1; i < len(first); i++ {
		assert.True(t, first[i].CreatedAt.After(first[i-1].CreatedAt))
	}
}

func TestPostMessage_AuthorNames(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()

	fromOwner, err := f.svc.PostMessage(ctx, f.project.ID, 1, "hi", "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", fromOwner.User.Name)
	assert.Equal(t, "c-1", fromOwner.ClientMessageID)

	fromMember, err := f.svc.PostMessage(ctx, f.project.ID, 2, "hey", "")
	require.NoError(t, err)
	assert.Equal(t, "Unknown user", fromMember.User.Name)
}

func TestPostMessage_Validation(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.PostMessage(ctx, f.project.ID, 1, "   ", "")
	assert.ErrorIs(t, err, ErrContentRequired)

	_, err = f.svc.PostMessage(ctx, f.project.ID, 1, strings.Repeat("x", DefaultMaxMessageLength+1), "")
	assert.ErrorIs(t, err, ErrContentTooLong)

	_, err = f.svc.PostMessage(ctx, f.project.ID, 7, "let me in", "")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.svc.PostMessage(ctx, 999, 1, "hello?", "")
	assert.ErrorIs(t, err, ErrProjectNotFound)

	_, err = f.svc.GetHistory(ctx, f.project.ID, 7)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.svc.Subscribe(ctx, f.project.ID, 7)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestPostMessage_BroadcastThenAppendedNotification(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := f.svc.Subscribe(ctx, f.project.ID, 2)
	require.NoError(t, err)

	msg, err := f.svc.PostMessage(ctx, f.project.ID, 1, "standup in 5", "")
	require.NoError(t, err)

	ev := nextEvent(t, sub.Events)
	assert.Equal(t, EventMessage, ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "standup in 5", ev.Message.Content)

	ev = nextEvent(t, sub.Events)
	assert.Equal(t, EventAppended, ev.Type)
	assert.Equal(t, msg.ID, ev.MessageID)

	f.queue.Wait()
	pv, err := f.preview.Get(ctx, f.project.ID)
	require.NoError(t, err)
	require.NotNil(t, pv)
	assert.Equal(t, msg.ID, pv.MessageID)
}

func TestPostMessage_BroadcastSurvivesAppendFailure(t *testing.T) {
	f := newChatFixture(t, func(gw store.Gateway) store.Gateway {
		return appendFailingGateway{Gateway: gw}
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := f.svc.Subscribe(ctx, f.project.ID, 2)
	require.NoError(t, err)

	_, err = f.svc.PostMessage(ctx, f.project.ID, 1, "this never lands", "")
	require.Error(t, err)
	var appErr *response.AppError
	assert.False(t, errors.As(err, &appErr), "storage failures must not surface as client errors")

	ev := nextEvent(t, sub.Events)
	assert.Equal(t, EventMessage, ev.Type)
	assert.Equal(t, "this never lands", ev.Message.Content)

	select {
	case ev := <-sub.Events:
		t.Fatalf("unexpected event after failed append: %+v", ev)
	default:
	}

	history, err := f.svc.GetHistory(ctx, f.project.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestBroadcast_NotPersisted(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := f.svc.Subscribe(ctx, f.project.ID, 1)
	require.NoError(t, err)

	msg, err := f.svc.Broadcast(ctx, f.project.ID, 2, "typing fast", "tmp-1")
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)

	ev := nextEvent(t, sub.Events)
	assert.Equal(t, EventMessage, ev.Type)
	assert.Equal(t, "tmp-1", ev.Message.ClientMessageID)
	assert.Equal(t, msg.ID, ev.Message.ID)

	again, err := f.svc.Broadcast(ctx, f.project.ID, 2, "still typing", "tmp-2")
	require.NoError(t, err)
	assert.NotEqual(t, msg.ID, again.ID)

	data, err := json.Marshal(again)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"id":"0"`)

	history, err := f.svc.GetHistory(ctx, f.project.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSubscribe_ReleasedWithContext(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := f.svc.Subscribe(ctx, f.project.ID, 1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sub.ID, "1-"))
	assert.Equal(t, 1, f.hub.TopicClientCount(f.project.ID))

	cancel()
	assert.Eventually(t, func() bool {
		return f.hub.TopicClientCount(f.project.ID) == 0
	}, 2*time.Second, 10*time.Millisecond)

	_, open := <-sub.Events
	assert.False(t, open)
	sub.Close()
}

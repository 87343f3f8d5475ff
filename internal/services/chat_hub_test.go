package services

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type recordingRelay struct {
	mu     sync.Mutex
	events []ChatEvent
}

func (r *recordingRelay) Forward(event ChatEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestChatHub_NewChatHub(t *testing.T) {
	hub := NewChatHub(0)
	if hub == nil {
		t.Fatal("NewChatHub should not return nil")
	}
	if hub.buffer != 64 {
		t.Errorf("non-positive buffer should default to 64, got %d", hub.buffer)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("new hub should have 0 clients, got %d", hub.ClientCount())
	}
}

func TestChatHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewChatHub(8)

	hub.Subscribe(1, "a")
	hub.Subscribe(1, "b")
	hub.Subscribe(2, "c")

	if hub.ClientCount() != 3 {
		t.Fatalf("expected 3 clients, got %d", hub.ClientCount())
	}
	if hub.TopicClientCount(1) != 2 {
		t.Errorf("expected 2 clients on project 1, got %d", hub.TopicClientCount(1))
	}

	hub.Unsubscribe(1, "a")
	hub.Unsubscribe(1, "nonexistent")
	hub.Unsubscribe(99, "a")
	if hub.ClientCount() != 2 {
		t.Errorf("expected 2 clients after unsubscribe, got %d", hub.ClientCount())
	}

	hub.Unsubscribe(1, "b")
	if hub.TopicCount() != 1 {
		t.Errorf("empty topic should be dropped, got %d topics", hub.TopicCount())
	}
}

func TestChatHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewChatHub(8)
	ch := hub.Subscribe(1, "a")
	hub.Unsubscribe(1, "a")

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}

func TestChatHub_ResubscribeReplacesChannel(t *testing.T) {
	hub := NewChatHub(8)
	old := hub.Subscribe(1, "a")
	fresh := hub.Subscribe(1, "a")

	if _, ok := <-old; ok {
		t.Error("previous channel should be closed")
	}
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", hub.ClientCount())
	}

	hub.Publish(ChatEvent{Type: EventAppended, ProjectID: 1, MessageID: 5})
	select {
	case ev := <-fresh:
		if ev.MessageID != 5 {
			t.Errorf("MessageID = %d, expected 5", ev.MessageID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timed out waiting for event")
	}
}

func TestChatHub_PublishIsProjectScoped(t *testing.T) {
	hub := NewChatHub(8)
	mine := hub.Subscribe(1, "a")
	other := hub.Subscribe(2, "b")

	hub.Publish(ChatEvent{Type: EventMessage, ProjectID: 1, Message: &ChatMessage{Content: "hi"}})

	select {
	case ev := <-mine:
		if ev.Message == nil || ev.Message.Content != "hi" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timed out waiting for event")
	}

	select {
	case ev := <-other:
		t.Errorf("project 2 should not receive project 1 events, got %+v", ev)
	default:
	}
}

func TestChatHub_NonBlockingPublish(t *testing.T) {
	hub := NewChatHub(4)
	ch := hub.Subscribe(1, "slow_client")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Publish(ChatEvent{Type: EventAppended, ProjectID: 1, MessageID: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	if len(ch) != 4 {
		t.Errorf("buffer should hold 4 events, got %d", len(ch))
	}
}

func TestChatHub_RelayOnlyOnPublish(t *testing.T) {
	hub := NewChatHub(8)
	relay := &recordingRelay{}
	hub.SetRelay(relay)
	ch := hub.Subscribe(1, "a")

	hub.Publish(ChatEvent{Type: EventAppended, ProjectID: 1, MessageID: 1})
	hub.Deliver(ChatEvent{Type: EventAppended, ProjectID: 1, MessageID: 2})

	if relay.count() != 1 {
		t.Errorf("relay should see only published events, got %d", relay.count())
	}
	if len(ch) != 2 {
		t.Errorf("local subscriber should get both events, got %d", len(ch))
	}
}

func TestChatEvent_JSON(t *testing.T) {
	ev := ChatEvent{Type: EventAppended, ProjectID: 3, MessageID: 18446744073709551615}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"appended","project_id":3,"message_id":"18446744073709551615"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

package services

import (
	"sync"
	"time"
)

type ChatEventType string

const (
	// EventMessage carries a full message on the broadcast path. Delivery is
	// best effort and unordered.
	EventMessage ChatEventType = "message"
	// EventAppended tells subscribers the durable log changed and should be
	// re-fetched. It carries the appended message.
	EventAppended ChatEventType = "appended"
)

type ChatAuthor struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// ChatMessage is the wire form of a chat message.
type ChatMessage struct {
	ID              uint64     `json:"id,string"`
	ClientMessageID string     `json:"client_message_id,omitempty"`
	ProjectID       uint       `json:"project_id"`
	Content         string     `json:"content"`
	CreatedAt       time.Time  `json:"created_at"`
	User            ChatAuthor `json:"user"`
}

type ChatEvent struct {
	Type      ChatEventType `json:"type"`
	ProjectID uint          `json:"project_id"`
	MessageID uint64        `json:"message_id,string,omitempty"`
	Message   *ChatMessage  `json:"message,omitempty"`
	// Origin is the instance that first published the event.
	Origin string `json:"origin,omitempty"`
}

// Relay forwards locally published events to other instances.
type Relay interface {
	Forward(event ChatEvent)
}

// ChatHub is a per-project publish/subscribe topic set. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type ChatHub struct {
	topics    map[uint]map[string]chan ChatEvent
	buffer    int
	relay     Relay
	observers []func(ChatEvent)
	mu        sync.RWMutex
}

func NewChatHub(buffer int) *ChatHub {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChatHub{
		topics: make(map[uint]map[string]chan ChatEvent),
		buffer: buffer,
	}
}

func (h *ChatHub) SetRelay(relay Relay) {
	h.mu.Lock()
	h.relay = relay
	h.mu.Unlock()
}

// Observe registers fn to see every delivered event, local or relayed.
// fn runs on the delivering goroutine and must not block.
func (h *ChatHub) Observe(fn func(ChatEvent)) {
	h.mu.Lock()
	h.observers = append(h.observers, fn)
	h.mu.Unlock()
}

// Subscribe registers clientID on the project topic. Re-subscribing an id
// replaces (and closes) its previous channel.
func (h *ChatHub) Subscribe(projectID uint, clientID string) <-chan ChatEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	topic, ok := h.topics[projectID]
	if !ok {
		topic = make(map[string]chan ChatEvent)
		h.topics[projectID] = topic
	}
	if old, ok := topic[clientID]; ok {
		close(old)
	}
	ch := make(chan ChatEvent, h.buffer)
	topic[clientID] = ch
	return ch
}

func (h *ChatHub) Unsubscribe(projectID uint, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topic, ok := h.topics[projectID]
	if !ok {
		return
	}
	if ch, ok := topic[clientID]; ok {
		close(ch)
		delete(topic, clientID)
	}
	if len(topic) == 0 {
		delete(h.topics, projectID)
	}
}

// Publish delivers locally and hands the event to the relay, if any.
func (h *ChatHub) Publish(event ChatEvent) {
	h.Deliver(event)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil {
		relay.Forward(event)
	}
}

// Deliver fans the event out to local subscribers and observers only.
func (h *ChatHub) Deliver(event ChatEvent) {
	h.mu.RLock()
	for _, ch := range h.topics[event.ProjectID] {
		select {
		case ch <- event:
		default:
			// slow subscriber
		}
	}
	observers := h.observers
	h.mu.RUnlock()

	for _, fn := range observers {
		fn(event)
	}
}

// ClientCount returns the number of subscriptions across all projects.
func (h *ChatHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, topic := range h.topics {
		n += len(topic)
	}
	return n
}

func (h *ChatHub) TopicClientCount(projectID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[projectID])
}

func (h *ChatHub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}

package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"zkchat/go-client/pkg/message"
)

type EventType string

const (
	EventChatCreated      EventType = "CHAT_CREATED"
	EventMessageAppended  EventType = "MESSAGE_APPENDED"
	EventMessagePrepended EventType = "MESSAGE_PREPENDED"
)

type Event struct {
	Type      EventType
	Chat      *message.Chat
	Message   *message.ChatMessage
	Timestamp time.Time
}

const subscriberBuffer = 128

// Hub fans chat state changes out to subscribers over bounded channels. A
// subscriber that stops draining is disconnected rather than allowed to
// stall message ingestion.
type Hub struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan Event)}
}

// Subscribe registers a consumer and returns its id, the event channel, and
// a cancel func. The channel is closed on cancel or on overflow.
func (h *Hub) Subscribe() (string, <-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			close(sub)
			delete(h.subs, id)
		}
	}
	return id, ch, cancel
}

func (h *Hub) publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			close(ch)
			delete(h.subs, id)
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

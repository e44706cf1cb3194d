package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event kinds pushed through the hub.
const (
	EventBalanceUpdate = "balanceUpdate"
	EventJackpot       = "jackpot"
)

// GlobalKey is the reserved subscription key for events addressed to every
// listener regardless of user, such as rare-reward jackpot announcements.
// It is not a valid user ID.
const GlobalKey = "*"

// Event is a single push notification. Key is the user ID the event belongs
// to, or GlobalKey for broadcast events.
type Event struct {
	Type      string    `json:"type"`
	Key       string    `json:"-"`
	UserID    string    `json:"userId,omitempty"`
	Username  string    `json:"username,omitempty"`
	Balance   int64     `json:"balance,omitempty"`
	ItemName  string    `json:"itemName,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscription is one listener's registration on the hub.
type Subscription struct {
	ID      string
	Key     string
	Channel chan Event
}

// Hub is a keyed pub/sub fan-out. Each subscriber owns a buffered channel;
// publishing never blocks and drops events for subscribers whose channel is
// full. Events published for the same key are delivered to each surviving
// subscriber in publish order.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string][]*Subscription
	buffer      int
	logger      zerolog.Logger
}

// NewHub creates a hub whose subscriber channels hold buffer events.
func NewHub(buffer int, logger zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subscribers: make(map[string][]*Subscription),
		buffer:      buffer,
		logger:      logger.With().Str("component", "broadcast").Logger(),
	}
}

// Subscribe registers a listener for events published under key. A listener
// interested in everyone's events subscribes to GlobalKey.
func (h *Hub) Subscribe(key string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription{
		ID:      uuid.New().String(),
		Key:     key,
		Channel: make(chan Event, h.buffer),
	}
	h.subscribers[key] = append(h.subscribers[key], sub)

	h.logger.Debug().
		Str("key", key).
		Str("sub_id", sub.ID).
		Msg("New subscription added")

	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, exists := h.subscribers[sub.Key]
	if !exists {
		return
	}

	remaining := make([]*Subscription, 0, len(subs))
	for _, s := range subs {
		if s.ID == sub.ID {
			close(s.Channel)
			continue
		}
		remaining = append(remaining, s)
	}

	if len(remaining) == 0 {
		delete(h.subscribers, sub.Key)
	} else {
		h.subscribers[sub.Key] = remaining
	}

	h.logger.Debug().
		Str("key", sub.Key).
		Str("sub_id", sub.ID).
		Msg("Subscription removed")
}

// Publish delivers event to every subscriber of event.Key and to GlobalKey
// subscribers. Slow subscribers have the event dropped rather than stalling
// the publisher.
func (h *Hub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	h.deliverLocked(h.subscribers[event.Key], event)
	if event.Key != GlobalKey {
		h.deliverLocked(h.subscribers[GlobalKey], event)
	}
}

func (h *Hub) deliverLocked(subs []*Subscription, event Event) {
	for _, sub := range subs {
		select {
		case sub.Channel <- event:
		default:
			h.logger.Warn().
				Str("sub_id", sub.ID).
				Str("key", event.Key).
				Str("type", event.Type).
				Msg("Subscriber channel full, dropping event")
		}
	}
}

// SubscriberCount returns the number of live subscriptions for key.
func (h *Hub) SubscriberCount(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[key])
}

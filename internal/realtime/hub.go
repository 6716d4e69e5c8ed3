package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/productcatalog/internal/observability/metrics"
	"github.com/aryan0dhankhar/productcatalog/pkg/cache"
)

// Channel is the pub/sub channel that carries invalidations between instances
const Channel = "catalog:invalidations"

// Event is one invalidation as pushed to subscribers
type Event struct {
	Origin string      `json:"origin,omitempty"`
	Tags   []cache.Tag `json:"tags"`
	At     time.Time   `json:"at"`
}

// Relay carries events between server instances
type Relay interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, fn func(payload []byte)) error
}

// Hub fans invalidation events out to local subscribers and, through the
// relay, to the subscribers of every other instance.
type Hub struct {
	mu       sync.RWMutex
	subs     map[chan Event]struct{}
	instance string
	relay    Relay
	logger   *slog.Logger
}

// NewHub creates a hub. A nil relay keeps events local.
func NewHub(relay Relay, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:     make(map[chan Event]struct{}),
		instance: uuid.NewString(),
		relay:    relay,
		logger:   logger,
	}
}

// Start listens for events from other instances until ctx is done
func (h *Hub) Start(ctx context.Context) error {
	if h.relay == nil {
		return nil
	}
	err := h.relay.Subscribe(ctx, Channel, func(payload []byte) {
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			h.logger.Warn("dropping malformed invalidation", slog.String("error", err.Error()))
			return
		}
		if ev.Origin == h.instance {
			return
		}
		h.deliver(ev)
	})
	if err != nil {
		return fmt.Errorf("failed to start invalidation relay: %w", err)
	}
	h.logger.Info("invalidation relay started", slog.String("channel", Channel))
	return nil
}

// Publish delivers tags to local subscribers and relays them to other
// instances. It matches the cache's OnInvalidate hook signature.
func (h *Hub) Publish(ctx context.Context, tags []cache.Tag) {
	if len(tags) == 0 {
		return
	}
	for _, t := range tags {
		metrics.ObserveInvalidation(t.Type)
	}

	ev := Event{Origin: h.instance, Tags: tags, At: time.Now().UTC()}
	h.deliver(ev)

	if h.relay == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode invalidation", slog.String("error", err.Error()))
		return
	}
	if err := h.relay.Publish(ctx, Channel, payload); err != nil {
		h.logger.Warn("failed to relay invalidation",
			slog.Int("tags", len(tags)),
			slog.String("error", err.Error()),
		)
	}
}

// Subscribe registers a subscriber with a buffer of size events. Events that
// do not fit are dropped for that subscriber.
func (h *Hub) Subscribe(size int) (<-chan Event, func()) {
	if size <= 0 {
		size = 16
	}
	ch := make(chan Event, size)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	metrics.SetSubscribers(n)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			n := len(h.subs)
			h.mu.Unlock()
			metrics.SetSubscribers(n)
		})
	}
}

// Count returns the number of local subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) deliver(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Debug("invalidation subscriber lagging, event dropped")
		}
	}
}

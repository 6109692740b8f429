package sink

import (
	"log/slog"
	"sync"

	"phalanx/internal/scoring"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind is disconnected rather than allowed to block the
// record path.
const subscriberBuffer = 64

// Hub fans verdicts out to live subscribers over bounded channels. Broadcast
// never blocks: a full subscriber channel means that subscriber is dropped.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan *scoring.Verdict
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[int]chan *scoring.Verdict),
		logger: logger,
	}
}

// Subscribe registers a new subscriber and returns its id and channel. The
// channel is closed by the hub when the subscriber is dropped for falling
// behind; callers must also call Unsubscribe on their own way out.
func (h *Hub) Subscribe() (int, <-chan *scoring.Verdict) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan *scoring.Verdict, subscriberBuffer)
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber. Safe to call after the hub already
// dropped it.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Broadcast delivers the verdict to every subscriber that has room. A
// subscriber whose channel is full is disconnected; the others are
// unaffected.
func (h *Hub) Broadcast(v *scoring.Verdict) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- v:
		default:
			delete(h.subs, id)
			close(ch)
			h.logger.Warn("subscriber dropped, channel full", "subscriber_id", id)
		}
	}
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

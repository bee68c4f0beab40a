package event

import (
	"context"
	"sync"

	"github.com/pot-code/coursegate/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// subscriberBuffer events a slow subscriber may lag behind before events are dropped
const subscriberBuffer = 32

type subscriber struct {
	learnerID string
	outbound  chan Event
}

// Hub in-process fan-out of events to the subscribers of a learner
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
}

var _ Publisher = &Hub{}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[*subscriber]struct{})}
}

// Subscribe returns the events of learnerID and a function that ends the subscription.
// The channel is closed once unsubscribed.
func (h *Hub) Subscribe(learnerID string) (<-chan Event, func()) {
	s := &subscriber{learnerID: learnerID, outbound: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.outbound, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, s)
			h.mu.Unlock()
			close(s.outbound)
		})
	}
}

// Publish implement Publisher
func (h *Hub) Publish(ctx context.Context, e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subscribers {
		if s.learnerID != e.LearnerID {
			continue
		}
		select {
		case s.outbound <- e:
		default:
			logging.ExtractLoggerFromContext(ctx).Warn("event subscriber is lagging, event dropped",
				zap.String("event.kind", string(e.Kind)),
				zap.String("learner.id", e.LearnerID))
		}
	}
}

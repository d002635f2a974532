// Package fanout implements the topic-based publish channel used to
// broadcast graph mutations and simulation results to subscribers,
// per §4.F.
package fanout

import (
	"sync"

	"github.com/stratumgrid/resilience-core/internal/metrics"
	"github.com/stratumgrid/resilience-core/pkg/models"
)

// defaultQueueCapacity bounds a subscriber's per-topic backlog. A slow
// subscriber drops its oldest event rather than block the publisher or
// grow without bound.
const defaultQueueCapacity = 256

// subscription is one subscriber's bounded mailbox for a single topic.
type subscription struct {
	id      uint64
	ch      chan models.BusEvent
	mu      sync.Mutex
	dropped uint64
}

// Handle identifies an active subscription so callers can Unsubscribe.
type Handle struct {
	topic models.Topic
	id    uint64
}

// Bus is a topic-based, best-effort fan-out publisher. The zero value
// is not usable; construct with New.
type Bus struct {
	mu            sync.RWMutex
	subs          map[models.Topic]map[uint64]*subscription
	queueCapacity int
	nextID        uint64
}

// New builds a Bus whose subscriber queues hold queueCapacity events
// before dropping the oldest. queueCapacity <= 0 uses the default.
func New(queueCapacity int) *Bus {
	if queueCapacity <= 0 {
		queueCapacity = defaultQueueCapacity
	}
	return &Bus{
		subs:          make(map[models.Topic]map[uint64]*subscription),
		queueCapacity: queueCapacity,
	}
}

// Subscribe registers a new subscriber to topic and returns a receive
// channel of events plus a Handle for Unsubscribe. The channel is
// closed when the caller unsubscribes.
func (b *Bus) Subscribe(topic models.Topic) (<-chan models.BusEvent, Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	sub := &subscription{id: id, ch: make(chan models.BusEvent, b.queueCapacity)}

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]*subscription)
	}
	b.subs[topic][id] = sub
	return sub.ch, Handle{topic: topic, id: id}
}

// Unsubscribe removes a subscription and closes its channel.
// Unsubscribing an already-removed handle is a no-op (idempotent).
func (b *Bus) Unsubscribe(h Handle) {
	b.mu.Lock()
	subsForTopic := b.subs[h.topic]
	sub, ok := subsForTopic[h.id]
	if ok {
		delete(subsForTopic, h.id)
	}
	b.mu.Unlock()

	if ok {
		close(sub.ch)
	}
}

// Publish delivers event to every current subscriber of topic. The
// publisher never blocks: a subscriber whose queue is full has its
// oldest queued event dropped to make room, and its dropped counter is
// incremented.
func (b *Bus) Publish(topic models.Topic, event models.BusEvent) {
	event.Topic = topic

	b.mu.RLock()
	subsForTopic := make([]*subscription, 0, len(b.subs[topic]))
	for _, sub := range b.subs[topic] {
		subsForTopic = append(subsForTopic, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subsForTopic {
		sub.deliver(event)
	}
}

// deliver enqueues event, dropping the oldest queued event first if
// the subscriber's mailbox is full. Serialized per-subscriber so order
// is preserved even under concurrent Publish calls.
func (s *subscription) deliver(event models.BusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		select {
		case s.ch <- event:
			metrics.FanoutEventsTotal.WithLabelValues(string(event.Topic), "delivered").Inc()
			return
		default:
			select {
			case <-s.ch:
				s.dropped++
				metrics.FanoutEventsTotal.WithLabelValues(string(event.Topic), "dropped").Inc()
			default:
				// raced with a concurrent receive; retry the send.
			}
		}
	}
}

// Dropped returns how many events have been dropped for the
// subscription behind h because its queue was full. Returns 0 if h no
// longer refers to an active subscription.
func (b *Bus) Dropped(h Handle) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sub, ok := b.subs[h.topic][h.id]
	if !ok {
		return 0
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.dropped
}

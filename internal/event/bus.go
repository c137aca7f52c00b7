package event

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Bus delivers events synchronously, in the publisher's goroutine, to
// subscribers in the order they subscribed. Publishing never takes a lock:
// subscriptions are an immutable slice swapped on change.
type Bus struct {
	mu     sync.Mutex // serializes writers of subs
	subs   atomic.Pointer[[]*subscription]
	nextID uint64
	logger *zap.Logger
	now    func() time.Time
}

type subscription struct {
	id      uint64
	topics  map[string]struct{} // nil matches every topic
	handler Handler
}

func (s *subscription) wants(topic string) bool {
	if s.topics == nil {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

// NewBus creates an empty bus. A nil logger discards handler panics.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{logger: logger, now: time.Now}
	b.subs.Store(&[]*subscription{})
	return b
}

// Publish calls every subscriber interested in event.Topic. A panicking
// handler is logged and skipped.
func (b *Bus) Publish(ctx context.Context, event Event) {
	for _, s := range *b.subs.Load() {
		if s.wants(event.Topic) {
			b.safeCall(ctx, s, event)
		}
	}
}

// Subscribe registers handler for the given topics, or for every topic when
// none are given. The returned function unsubscribes and is idempotent.
func (b *Bus) Subscribe(handler Handler, topics ...string) (unsubscribe func()) {
	s := &subscription{handler: handler}
	if len(topics) > 0 {
		s.topics = make(map[string]struct{}, len(topics))
		for _, t := range topics {
			s.topics[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.nextID++
	s.id = b.nextID
	cur := *b.subs.Load()
	next := append(cur[:len(cur):len(cur)], s)
	b.subs.Store(&next)
	b.mu.Unlock()

	return func() { b.unsubscribe(s.id) }
}

// SubscribeAll registers handler for every topic.
func (b *Bus) SubscribeAll(handler Handler) (unsubscribe func()) {
	return b.Subscribe(handler)
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := *b.subs.Load()
	i := slices.IndexFunc(cur, func(s *subscription) bool { return s.id == id })
	if i < 0 {
		return
	}
	next := slices.Delete(slices.Clone(cur), i, i+1)
	b.subs.Store(&next)
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	return len(*b.subs.Load())
}

func (b *Bus) safeCall(ctx context.Context, s *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Uint64("subscription", s.id),
				zap.Any("panic", r),
			)
		}
	}()
	s.handler(ctx, event)
}

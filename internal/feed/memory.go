package feed

import (
	"context"
	"sync"

	"tableside/internal/domain"
)

// MemoryFeed is an in-process Feed for tests and single-binary deployments.
type MemoryFeed struct {
	mu     sync.Mutex
	nextID int64
	subs   map[int64]map[int64]Handler // order number -> sub id -> handler
}

func NewMemory() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int64]map[int64]Handler)}
}

func (f *MemoryFeed) Publish(_ context.Context, o *domain.Order) error {
	f.mu.Lock()
	handlers := make([]Handler, 0, len(f.subs[o.OrderNumber]))
	for _, h := range f.subs[o.OrderNumber] {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		// Deliver a copy so subscribers cannot mutate each other's record.
		cp := *o
		h(&cp)
	}
	return nil
}

func (f *MemoryFeed) Subscribe(orderNumber int64, h Handler) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	if f.subs[orderNumber] == nil {
		f.subs[orderNumber] = make(map[int64]Handler)
	}
	f.subs[orderNumber][id] = h

	return &memorySubscription{feed: f, orderNumber: orderNumber, id: id}, nil
}

// OnReconnect is a no-op: an in-process feed never disconnects.
func (f *MemoryFeed) OnReconnect(func()) {}

func (f *MemoryFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = make(map[int64]map[int64]Handler)
	return nil
}

type memorySubscription struct {
	feed        *MemoryFeed
	orderNumber int64
	id          int64
}

func (s *memorySubscription) Unsubscribe() {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	delete(s.feed.subs[s.orderNumber], s.id)
}

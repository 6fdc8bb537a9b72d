package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"tableside/internal/domain"
)

// stubRepo mirrors the guarded-patch semantics of the postgres repository
// in memory.
type stubRepo struct {
	mu     sync.Mutex
	orders map[int64]*domain.Order

	// advanceFailures makes the next N AutoAdvance calls fail.
	advanceFailures int
	advanceCalls    int
}

var errStorage = errors.New("storage down")

func newStubRepo(orders ...*domain.Order) *stubRepo {
	r := &stubRepo{orders: make(map[int64]*domain.Order)}
	for _, o := range orders {
		cp := *o
		r.orders[o.OrderNumber] = &cp
	}
	return r
}

func (r *stubRepo) get(number int64) *domain.Order {
	o, ok := r.orders[number]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

func (r *stubRepo) GetByNumber(_ context.Context, number int64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.get(number)
	if o == nil {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (r *stubRepo) ListActive(_ context.Context) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for n, o := range r.orders {
		if !o.Status.Terminal() {
			out = append(out, r.get(n))
		}
	}
	return out, nil
}

func (r *stubRepo) AdvanceStatus(_ context.Context, number int64, from, to domain.Status, deadline *time.Time) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[number]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != from {
		return nil, domain.ErrStale
	}
	o.Status = to
	o.StatusDeadline = deadline
	o.Paused = false
	o.RemainingSeconds = nil
	return r.get(number), nil
}

func (r *stubRepo) AutoAdvance(_ context.Context, number int64, from, to domain.Status, deadline *time.Time) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advanceCalls++
	if r.advanceFailures > 0 {
		r.advanceFailures--
		return nil, errStorage
	}

	o, ok := r.orders[number]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != from || o.Paused || o.StatusDeadline == nil {
		return nil, domain.ErrStale
	}
	o.Status = to
	o.StatusDeadline = deadline
	o.Paused = false
	o.RemainingSeconds = nil
	return r.get(number), nil
}

func (r *stubRepo) SetPaused(_ context.Context, number int64, remainingSeconds int64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[number]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != domain.StatusInPreparation || o.Paused {
		return nil, domain.ErrStale
	}
	o.Paused = true
	o.RemainingSeconds = &remainingSeconds
	o.StatusDeadline = nil
	return r.get(number), nil
}

func (r *stubRepo) Resume(_ context.Context, number int64, deadline time.Time) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[number]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != domain.StatusInPreparation || !o.Paused {
		return nil, domain.ErrStale
	}
	o.Paused = false
	o.RemainingSeconds = nil
	o.StatusDeadline = &deadline
	return r.get(number), nil
}

func (r *stubRepo) SetPrepTime(_ context.Context, number int64, minutes int, deadline *time.Time, remainingSeconds *int64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[number]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != domain.StatusInPreparation {
		return nil, domain.ErrStale
	}
	o.PrepTimeMinutes = &minutes
	o.StatusDeadline = deadline
	o.RemainingSeconds = remainingSeconds
	return r.get(number), nil
}

// fakeClock controls Now for command tests; After stays real so tracker
// tests can still use it with short durations.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

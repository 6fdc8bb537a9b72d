// Package lifecycle advances orders through fulfilment. There is no single
// scheduler process: every observer runs its own countdown against the
// shared order record and may attempt the advance write, which is idempotent
// because all writes are guarded single-field patches.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tableside/internal/domain"
	"tableside/internal/feed"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Config holds the un-paused auto-advance durations.
type Config struct {
	// PlacedFor is how long an order stays placed before preparation.
	PlacedFor time.Duration
	// PrepFor is the default preparation duration, used until staff sets an
	// explicit prep time.
	PrepFor time.Duration
}

// DefaultConfig preserves the original timings.
func DefaultConfig() Config {
	return Config{PlacedFor: 30 * time.Second, PrepFor: 240 * time.Second}
}

// Repository is the subset of order persistence the engine needs.
type Repository interface {
	GetByNumber(ctx context.Context, number int64) (*domain.Order, error)
	ListActive(ctx context.Context) ([]*domain.Order, error)
	AdvanceStatus(ctx context.Context, number int64, from, to domain.Status, deadline *time.Time) (*domain.Order, error)
	AutoAdvance(ctx context.Context, number int64, from, to domain.Status, deadline *time.Time) (*domain.Order, error)
	SetPaused(ctx context.Context, number int64, remainingSeconds int64) (*domain.Order, error)
	Resume(ctx context.Context, number int64, deadline time.Time) (*domain.Order, error)
	SetPrepTime(ctx context.Context, number int64, minutes int, deadline *time.Time, remainingSeconds *int64) (*domain.Order, error)
}

// Engine owns the per-order trackers of this process and executes staff
// commands. All mutations go through the repository's guarded patches and
// are then published on the change feed.
type Engine struct {
	repo   Repository
	feed   feed.Feed
	cfg    Config
	clock  Clock
	logger *log.Logger

	// retryBackoff is the first wait between advance retries; it doubles.
	retryBackoff time.Duration

	onCompleted func(orderNumber int64)

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	tracking  map[int64]struct{}
	fired     map[int64]struct{}
	outOfSync map[int64]struct{}
}

// New builds an Engine. Call Start before Track.
func New(repo Repository, f feed.Feed, cfg Config, logger *log.Logger) *Engine {
	return &Engine{
		repo:         repo,
		feed:         f,
		cfg:          cfg,
		clock:        systemClock{},
		logger:       logger,
		retryBackoff: 250 * time.Millisecond,
		tracking:     make(map[int64]struct{}),
		fired:        make(map[int64]struct{}),
		outOfSync:    make(map[int64]struct{}),
	}
}

// OnCompleted registers the terminal side effect. It fires at most once per
// order in this process, however many trackers reach completed.
func (e *Engine) OnCompleted(fn func(orderNumber int64)) {
	e.onCompleted = fn
}

// Start resumes tracking for every non-terminal order and arms the
// reconnect refetch. It does not block.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	orders, err := e.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active orders: %w", err)
	}
	for _, o := range orders {
		e.Track(o.OrderNumber)
	}

	// Buffered events from before a disconnect cannot be trusted; every
	// tracker refetches instead.
	e.feed.OnReconnect(e.resyncAll)

	if e.logger != nil {
		e.logger.Printf("lifecycle engine started, tracking %d active orders", len(orders))
	}
	return nil
}

// Stop cancels all trackers and waits for them to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// Track starts a tracker goroutine for the order. Tracking the same order
// twice is a no-op.
func (e *Engine) Track(orderNumber int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx == nil {
		if e.logger != nil {
			e.logger.Printf("Track(%d) before Start, ignoring", orderNumber)
		}
		return
	}
	if _, ok := e.tracking[orderNumber]; ok {
		return
	}
	e.tracking[orderNumber] = struct{}{}
	e.wg.Add(1)
	go e.watch(e.ctx, orderNumber)
}

// OutOfSync reports whether the last automatic transition for the order
// could not be persisted after retries. Staff views surface this.
func (e *Engine) OutOfSync(orderNumber int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.outOfSync[orderNumber]
	return ok
}

// Pause freezes the preparation countdown, persisting the remaining time so
// resume picks up exactly where pause left off.
func (e *Engine) Pause(ctx context.Context, orderNumber int64) (*domain.Order, error) {
	o, err := e.repo.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.StatusInPreparation || o.Paused || o.StatusDeadline == nil {
		return nil, domain.ErrInvalidTransition
	}

	remaining := int64(o.StatusDeadline.Sub(e.clock.Now()) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	updated, err := e.repo.SetPaused(ctx, orderNumber, remaining)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, updated)
	return updated, nil
}

// Resume restores the countdown. Time spent paused does not count against
// the order: the new deadline is now plus the preserved remainder.
func (e *Engine) Resume(ctx context.Context, orderNumber int64) (*domain.Order, error) {
	o, err := e.repo.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !o.Paused || o.RemainingSeconds == nil {
		return nil, domain.ErrInvalidTransition
	}

	deadline := e.clock.Now().Add(time.Duration(*o.RemainingSeconds) * time.Second)
	updated, err := e.repo.Resume(ctx, orderNumber, deadline)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, updated)
	return updated, nil
}

// SetPrepTime records the staff-set preparation time. It replaces whatever
// was left of the current countdown from this moment, not retroactively.
func (e *Engine) SetPrepTime(ctx context.Context, orderNumber int64, minutes int) (*domain.Order, error) {
	if minutes < 1 {
		return nil, errors.New("prep time must be at least one minute")
	}
	o, err := e.repo.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.StatusInPreparation {
		return nil, domain.ErrInvalidTransition
	}

	var (
		deadline  *time.Time
		remaining *int64
	)
	if o.Paused {
		r := int64(minutes) * 60
		remaining = &r
	} else {
		d := e.clock.Now().Add(time.Duration(minutes) * time.Minute)
		deadline = &d
	}
	updated, err := e.repo.SetPrepTime(ctx, orderNumber, minutes, deadline, remaining)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, updated)
	return updated, nil
}

// Override moves the order directly to a strictly later stage. It takes
// effect immediately and cancels any pending automatic transition, because
// the trackers' guarded writes will no longer match the old status.
func (e *Engine) Override(ctx context.Context, orderNumber int64, to domain.Status) (*domain.Order, error) {
	o, err := e.repo.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !o.Status.Before(to) {
		return nil, domain.ErrInvalidTransition
	}

	updated, err := e.repo.AdvanceStatus(ctx, orderNumber, o.Status, to, e.deadlineFor(o, to))
	if err != nil {
		return nil, err
	}
	e.publish(ctx, updated)
	if updated.Status.Terminal() {
		e.fireCompleted(updated.OrderNumber)
	}
	return updated, nil
}

// deadlineFor computes the auto-advance deadline for an order entering the
// given stage; nil for the terminal stage.
func (e *Engine) deadlineFor(o *domain.Order, to domain.Status) *time.Time {
	var dur time.Duration
	switch to {
	case domain.StatusInPreparation:
		dur = e.cfg.PrepFor
		if o.PrepTimeMinutes != nil {
			dur = time.Duration(*o.PrepTimeMinutes) * time.Minute
		}
	default:
		return nil
	}
	d := e.clock.Now().Add(dur)
	return &d
}

func (e *Engine) publish(ctx context.Context, o *domain.Order) {
	if err := e.feed.Publish(ctx, o); err != nil && e.logger != nil {
		// Observers recover by refetching, so a lost publish is not fatal.
		e.logger.Printf("publish order %d update: %v", o.OrderNumber, err)
	}
}

func (e *Engine) fireCompleted(orderNumber int64) {
	e.mu.Lock()
	_, already := e.fired[orderNumber]
	if !already {
		e.fired[orderNumber] = struct{}{}
	}
	fn := e.onCompleted
	e.mu.Unlock()

	if !already && fn != nil {
		fn(orderNumber)
	}
}

func (e *Engine) setOutOfSync(orderNumber int64, bad bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bad {
		e.outOfSync[orderNumber] = struct{}{}
	} else {
		delete(e.outOfSync, orderNumber)
	}
}

func (e *Engine) untrack(orderNumber int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.tracking, orderNumber)
}

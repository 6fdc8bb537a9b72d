package lifecycle

import (
	"context"
	"errors"
	"time"

	"tableside/internal/domain"
)

// outOfSyncRetry is how long a tracker waits before retrying after the
// bounded advance retries are exhausted.
const outOfSyncRetry = 5 * time.Second

// watch is one tracker: a local countdown for a single order, resynchronized
// from the authoritative record on every feed delivery and on reconnect.
func (e *Engine) watch(ctx context.Context, orderNumber int64) {
	defer e.wg.Done()
	defer e.untrack(orderNumber)

	updates := make(chan *domain.Order, 8)
	sub, err := e.feed.Subscribe(orderNumber, func(o *domain.Order) {
		select {
		case updates <- o:
		default:
			// A full buffer means we are behind; the refetch below after
			// whatever we do process keeps us converging.
		}
	})
	if err != nil {
		if e.logger != nil {
			e.logger.Printf("tracker %d: subscribe: %v", orderNumber, err)
		}
		return
	}
	defer sub.Unsubscribe()

	order, err := e.repo.GetByNumber(ctx, orderNumber)
	if err != nil {
		if e.logger != nil && !errors.Is(err, context.Canceled) {
			e.logger.Printf("tracker %d: initial fetch: %v", orderNumber, err)
		}
		return
	}

	for {
		if order.Status.Terminal() {
			e.fireCompleted(orderNumber)
			return
		}

		// Paused orders and orders without a deadline wait for updates only.
		var timerC <-chan time.Time
		if !order.Paused && order.StatusDeadline != nil {
			wait := order.StatusDeadline.Sub(e.clock.Now())
			if wait < 0 {
				wait = 0
			}
			timerC = e.clock.After(wait)
		}

		select {
		case <-ctx.Done():
			return

		case o := <-updates:
			// Any delivery stops the local timer (the loop recomputes it).
			// Regressions never render: status is non-decreasing per observer.
			if o.Status.Before(order.Status) {
				continue
			}
			order = o

		case <-timerC:
			next, ok := order.Status.Next()
			if !ok {
				continue
			}
			updated, err := e.advanceWithRetry(ctx, order, next)
			switch {
			case err == nil:
				e.setOutOfSync(orderNumber, false)
				order = updated
			case errors.Is(err, domain.ErrStale):
				// Another observer advanced first; converge on its write.
				refetched, ferr := e.repo.GetByNumber(ctx, orderNumber)
				if ferr != nil {
					if e.logger != nil {
						e.logger.Printf("tracker %d: refetch after stale: %v", orderNumber, ferr)
					}
					return
				}
				e.setOutOfSync(orderNumber, false)
				order = refetched
			case errors.Is(err, context.Canceled):
				return
			default:
				if e.logger != nil {
					e.logger.Printf("tracker %d: advance out of sync: %v", orderNumber, err)
				}
				e.setOutOfSync(orderNumber, true)
				// Push the local deadline out so the loop retries instead
				// of spinning.
				d := e.clock.Now().Add(outOfSyncRetry)
				o := *order
				o.StatusDeadline = &d
				order = &o
			}
		}
	}
}

// advanceWithRetry attempts the guarded auto-advance write with bounded
// retry and doubling backoff. domain.ErrStale is returned immediately: it
// means the transition already happened, or the record was paused behind
// the tracker's back and the write must not go through.
func (e *Engine) advanceWithRetry(ctx context.Context, o *domain.Order, next domain.Status) (*domain.Order, error) {
	backoff := e.retryBackoff
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-e.clock.After(backoff):
			}
			backoff *= 2
		}

		updated, err := e.repo.AutoAdvance(ctx, o.OrderNumber, o.Status, next, e.deadlineFor(o, next))
		if err == nil {
			e.publish(ctx, updated)
			if updated.Status.Terminal() {
				e.fireCompleted(updated.OrderNumber)
			}
			return updated, nil
		}
		if errors.Is(err, domain.ErrStale) || errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrStale
		}
		lastErr = err
	}
	return nil, lastErr
}

// resyncAll forces every tracker to refetch by re-publishing the current
// record into the in-process feed. Called after a transport reconnect.
func (e *Engine) resyncAll() {
	e.mu.Lock()
	numbers := make([]int64, 0, len(e.tracking))
	for n := range e.tracking {
		numbers = append(numbers, n)
	}
	ctx := e.ctx
	e.mu.Unlock()
	if ctx == nil {
		return
	}

	for _, n := range numbers {
		o, err := e.repo.GetByNumber(ctx, n)
		if err != nil {
			if e.logger != nil {
				e.logger.Printf("resync order %d: %v", n, err)
			}
			continue
		}
		e.publish(ctx, o)
	}
}

// Countdown rebuilds an observer's local countdown from the record alone:
// the preserved remainder while paused, otherwise the deadline against the
// observer's clock. ok is false when there is nothing to count down.
func Countdown(o *domain.Order, now time.Time) (remaining time.Duration, ok bool) {
	if o == nil || o.Status.Terminal() {
		return 0, false
	}
	if o.Paused {
		if o.RemainingSeconds == nil {
			return 0, false
		}
		return time.Duration(*o.RemainingSeconds) * time.Second, true
	}
	if o.StatusDeadline == nil {
		return 0, false
	}
	d := o.StatusDeadline.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

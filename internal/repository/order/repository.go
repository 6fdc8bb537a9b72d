package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tableside/internal/domain"
)

// CreateInput is everything needed to persist a confirmed checkout. The
// record fails atomically: either the full order exists with its assigned
// number, or nothing does.
type CreateInput struct {
	CustomerID     string
	Items          []domain.CartItem
	Subtotal       decimal.Decimal
	SGST           decimal.Decimal
	CGST           decimal.Decimal
	Discount       decimal.Decimal
	Tip            decimal.Decimal
	Total          decimal.Decimal
	PaymentMethod  domain.PaymentMethod
	SplitCount     int
	Status         domain.Status
	StatusDeadline time.Time
}

// Repository is the persistence collaborator for orders. Every mutation is
// a guarded single-purpose patch: when the guard fails because a concurrent
// writer got there first, the method returns domain.ErrStale and the caller
// refetches.
type Repository interface {
	Create(ctx context.Context, in CreateInput) (*domain.Order, error)
	GetByNumber(ctx context.Context, number int64) (*domain.Order, error)
	// ListActive returns orders not yet completed, for resuming trackers
	// after a restart.
	ListActive(ctx context.Context) ([]*domain.Order, error)
	// AdvanceStatus moves an order from exactly `from` to `to`, setting the
	// next deadline (nil for the terminal stage) and clearing any pause.
	// This is the staff-override write: it does not care about pauses.
	AdvanceStatus(ctx context.Context, number int64, from, to domain.Status, deadline *time.Time) (*domain.Order, error)
	// AutoAdvance is the timer-driven variant of AdvanceStatus. It is
	// additionally guarded on the order being unpaused with a live deadline,
	// so a tracker holding a stale snapshot cannot advance past a pause it
	// never saw.
	AutoAdvance(ctx context.Context, number int64, from, to domain.Status, deadline *time.Time) (*domain.Order, error)
	// SetPaused freezes the countdown, persisting the remaining seconds.
	// Guarded on status=in_preparation and not already paused.
	SetPaused(ctx context.Context, number int64, remainingSeconds int64) (*domain.Order, error)
	// Resume restores the countdown with a freshly computed deadline.
	// Guarded on being paused.
	Resume(ctx context.Context, number int64, deadline time.Time) (*domain.Order, error)
	// SetPrepTime records the staff-set preparation time and the deadline or
	// remaining seconds derived from it. Guarded on status=in_preparation.
	SetPrepTime(ctx context.Context, number int64, minutes int, deadline *time.Time, remainingSeconds *int64) (*domain.Order, error)
}

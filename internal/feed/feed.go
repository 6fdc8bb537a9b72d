// Package feed is the change feed: a publish/subscribe channel pushing
// updated order records to every subscribed observer. Delivery is at least
// eventual, with no ordering guarantee across orders and no buffering for
// offline subscribers, so a reconnecting observer must refetch the record
// rather than trust what it missed.
package feed

import (
	"context"

	"tableside/internal/domain"
)

// Handler receives an updated order record. Handlers must be quick; slow
// consumers should hand off to their own goroutine.
type Handler func(*domain.Order)

// Subscription is a live interest in one order's updates.
type Subscription interface {
	Unsubscribe()
}

// Feed fans order updates out to subscribers.
type Feed interface {
	Publish(ctx context.Context, o *domain.Order) error
	Subscribe(orderNumber int64, h Handler) (Subscription, error)
	// OnReconnect registers a callback fired when the underlying transport
	// reconnects after a gap in delivery. Observers refetch there.
	OnReconnect(fn func())
	Close() error
}

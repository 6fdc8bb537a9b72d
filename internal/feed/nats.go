package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/nats-io/nats.go"

	"tableside/internal/domain"
)

// subjectFor scopes one NATS subject per order so subscribers only see the
// orders they watch.
func subjectFor(orderNumber int64) string {
	return fmt.Sprintf("orders.update.%d", orderNumber)
}

// NATSFeed implements Feed over core NATS pub/sub.
type NATSFeed struct {
	conn   *nats.Conn
	logger *log.Logger

	mu          sync.Mutex
	onReconnect []func()
}

// NewNATS connects to a NATS server. Reconnects trigger the registered
// refetch callbacks.
func NewNATS(url string, logger *log.Logger) (*NATSFeed, error) {
	f := &NATSFeed{logger: logger}

	conn, err := nats.Connect(url,
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if logger != nil {
				logger.Printf("nats reconnected, notifying observers to refetch")
			}
			f.mu.Lock()
			fns := append([]func(){}, f.onReconnect...)
			f.mu.Unlock()
			for _, fn := range fns {
				fn()
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	f.conn = conn
	return f, nil
}

func (f *NATSFeed) Publish(_ context.Context, o *domain.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	return f.conn.Publish(subjectFor(o.OrderNumber), data)
}

func (f *NATSFeed) Subscribe(orderNumber int64, h Handler) (Subscription, error) {
	sub, err := f.conn.Subscribe(subjectFor(orderNumber), func(msg *nats.Msg) {
		var o domain.Order
		if err := json.Unmarshal(msg.Data, &o); err != nil {
			if f.logger != nil {
				f.logger.Printf("drop malformed order update: %v", err)
			}
			return
		}
		h(&o)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to order %d: %w", orderNumber, err)
	}
	return natsSubscription{sub: sub}, nil
}

func (f *NATSFeed) OnReconnect(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onReconnect = append(f.onReconnect, fn)
}

func (f *NATSFeed) Close() error {
	f.conn.Close()
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s natsSubscription) Unsubscribe() {
	_ = s.sub.Unsubscribe()
}

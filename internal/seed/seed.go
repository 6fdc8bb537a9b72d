package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"tableside/internal/billing"
	"tableside/internal/domain"
	orderrepo "tableside/internal/repository/order"
)

const demoCustomer = "demo-customer"

type orderSeed struct {
	items  []domain.CartItem
	method domain.PaymentMethod
	tip    billing.Tip
	split  int
}

// Apply inserts demo orders for manual testing. Seeding is skipped when the
// demo customer already has orders, so repeated runs do not pile up records.
func Apply(ctx context.Context, pool *pgxpool.Pool, placedFor time.Duration) error {
	seeded, err := alreadySeeded(ctx, pool)
	if err != nil {
		return fmt.Errorf("check existing seed: %w", err)
	}
	if seeded {
		return nil
	}

	repo := orderrepo.NewPostgres(pool)
	seeds := []orderSeed{
		{
			items: []domain.CartItem{
				{ItemID: "veg-thali", Name: "Veg Thali", UnitPrice: decimal.NewFromInt(250), Quantity: 2},
			},
			method: domain.PaymentUPI,
			tip:    billing.PercentTip(decimal.NewFromInt(10)),
			split:  2,
		},
		{
			items: []domain.CartItem{
				{ItemID: "masala-dosa", Name: "Masala Dosa", UnitPrice: decimal.NewFromInt(120), Quantity: 1},
				{ItemID: "filter-coffee", Name: "Filter Coffee", UnitPrice: decimal.NewFromInt(40), Quantity: 2},
			},
			method: domain.PaymentCash,
			tip:    billing.FixedTip(decimal.NewFromInt(20)),
			split:  1,
		},
	}

	for _, s := range seeds {
		bill, err := billing.Compute(s.items, decimal.Zero, s.tip, s.split)
		if err != nil {
			return fmt.Errorf("compute demo bill: %w", err)
		}
		_, err = repo.Create(ctx, orderrepo.CreateInput{
			CustomerID:     demoCustomer,
			Items:          s.items,
			Subtotal:       bill.Subtotal,
			SGST:           bill.SGST,
			CGST:           bill.CGST,
			Discount:       bill.Discount,
			Tip:            bill.Tip,
			Total:          bill.GrandTotal,
			PaymentMethod:  s.method,
			SplitCount:     s.split,
			Status:         domain.StatusPlaced,
			StatusDeadline: time.Now().Add(placedFor),
		})
		if err != nil {
			return fmt.Errorf("create demo order: %w", err)
		}
	}

	return nil
}

func alreadySeeded(ctx context.Context, pool *pgxpool.Pool) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM orders WHERE customer_id = $1)`
	var exists bool
	if err := pool.QueryRow(ctx, q, demoCustomer).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

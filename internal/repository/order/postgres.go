package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"tableside/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const orderColumns = `
id::text, order_number, customer_id, items,
subtotal::text, sgst::text, cgst::text, discount::text, tip::text, total::text,
payment_method, split_count, status, paused, prep_time_minutes,
status_deadline, remaining_seconds, created_at`

func (r *postgresRepo) Create(ctx context.Context, in CreateInput) (*domain.Order, error) {
	items, err := json.Marshal(in.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}

	q := `
INSERT INTO orders (customer_id, items, subtotal, sgst, cgst, discount, tip, total,
                    payment_method, split_count, status, status_deadline)
VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric,
        $9, $10, $11, $12)
RETURNING ` + orderColumns

	row := r.pool.QueryRow(ctx, q,
		in.CustomerID,
		items,
		in.Subtotal.String(),
		in.SGST.String(),
		in.CGST.String(),
		in.Discount.String(),
		in.Tip.String(),
		in.Total.String(),
		string(in.PaymentMethod),
		in.SplitCount,
		string(in.Status),
		in.StatusDeadline,
	)
	return scanOrder(row)
}

func (r *postgresRepo) GetByNumber(ctx context.Context, number int64) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	o, err := scanOrder(r.pool.QueryRow(ctx, q, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) ListActive(ctx context.Context) ([]*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE status <> 'completed' ORDER BY order_number`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *postgresRepo) AdvanceStatus(ctx context.Context, number int64, from, to domain.Status, deadline *time.Time) (*domain.Order, error) {
	q := `
UPDATE orders
SET status = $3, status_deadline = $4, paused = FALSE, remaining_seconds = NULL
WHERE order_number = $1 AND status = $2
RETURNING ` + orderColumns

	o, err := scanOrder(r.pool.QueryRow(ctx, q, number, string(from), string(to), deadline))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.staleOrMissing(ctx, number)
		}
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) AutoAdvance(ctx context.Context, number int64, from, to domain.Status, deadline *time.Time) (*domain.Order, error) {
	q := `
UPDATE orders
SET status = $3, status_deadline = $4, paused = FALSE, remaining_seconds = NULL
WHERE order_number = $1 AND status = $2 AND paused = FALSE AND status_deadline IS NOT NULL
RETURNING ` + orderColumns

	o, err := scanOrder(r.pool.QueryRow(ctx, q, number, string(from), string(to), deadline))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.staleOrMissing(ctx, number)
		}
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) SetPaused(ctx context.Context, number int64, remainingSeconds int64) (*domain.Order, error) {
	q := `
UPDATE orders
SET paused = TRUE, remaining_seconds = $2, status_deadline = NULL
WHERE order_number = $1 AND status = 'in_preparation' AND paused = FALSE
RETURNING ` + orderColumns

	o, err := scanOrder(r.pool.QueryRow(ctx, q, number, remainingSeconds))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.staleOrMissing(ctx, number)
		}
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) Resume(ctx context.Context, number int64, deadline time.Time) (*domain.Order, error) {
	q := `
UPDATE orders
SET paused = FALSE, remaining_seconds = NULL, status_deadline = $2
WHERE order_number = $1 AND status = 'in_preparation' AND paused = TRUE
RETURNING ` + orderColumns

	o, err := scanOrder(r.pool.QueryRow(ctx, q, number, deadline))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.staleOrMissing(ctx, number)
		}
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) SetPrepTime(ctx context.Context, number int64, minutes int, deadline *time.Time, remainingSeconds *int64) (*domain.Order, error) {
	q := `
UPDATE orders
SET prep_time_minutes = $2, status_deadline = $3, remaining_seconds = $4
WHERE order_number = $1 AND status = 'in_preparation'
RETURNING ` + orderColumns

	o, err := scanOrder(r.pool.QueryRow(ctx, q, number, minutes, deadline, remainingSeconds))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.staleOrMissing(ctx, number)
		}
		return nil, err
	}
	return o, nil
}

// staleOrMissing distinguishes a lost guard from a missing order so callers
// can react differently.
func (r *postgresRepo) staleOrMissing(ctx context.Context, number int64) error {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM orders WHERE order_number = $1`, number).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return domain.ErrStale
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o        domain.Order
		itemsRaw []byte
		subtotal string
		sgst     string
		cgst     string
		discount string
		tip      string
		total    string
		method   string
		status   string
	)
	if err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.CustomerID,
		&itemsRaw,
		&subtotal,
		&sgst,
		&cgst,
		&discount,
		&tip,
		&total,
		&method,
		&o.SplitCount,
		&status,
		&o.Paused,
		&o.PrepTimeMinutes,
		&o.StatusDeadline,
		&o.RemainingSeconds,
		&o.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsRaw, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	var err error
	if o.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, fmt.Errorf("parse subtotal: %w", err)
	}
	if o.SGST, err = decimal.NewFromString(sgst); err != nil {
		return nil, fmt.Errorf("parse sgst: %w", err)
	}
	if o.CGST, err = decimal.NewFromString(cgst); err != nil {
		return nil, fmt.Errorf("parse cgst: %w", err)
	}
	if o.Discount, err = decimal.NewFromString(discount); err != nil {
		return nil, fmt.Errorf("parse discount: %w", err)
	}
	if o.Tip, err = decimal.NewFromString(tip); err != nil {
		return nil, fmt.Errorf("parse tip: %w", err)
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	o.PaymentMethod = domain.PaymentMethod(method)
	o.Status = domain.Status(status)
	return &o, nil
}

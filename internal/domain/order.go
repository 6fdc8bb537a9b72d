package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfilment stage of an order. Observed status for any single
// order is non-decreasing: transitions only move forward through
// placed -> in_preparation -> completed.
type Status string

const (
	StatusPlaced        Status = "placed"
	StatusInPreparation Status = "in_preparation"
	StatusCompleted     Status = "completed"
)

var statusOrder = map[Status]int{
	StatusPlaced:        0,
	StatusInPreparation: 1,
	StatusCompleted:     2,
}

// ParseStatus maps a wire code to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := statusOrder[st]; !ok {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Next returns the following stage, or false when the status is terminal.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusPlaced:
		return StatusInPreparation, true
	case StatusInPreparation:
		return StatusCompleted, true
	default:
		return "", false
	}
}

// Before reports whether s is strictly earlier than other in the lifecycle.
func (s Status) Before(other Status) bool {
	return statusOrder[s] < statusOrder[other]
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

func (s Status) String() string { return string(s) }

// PaymentMethod is the customer's chosen way to pay.
type PaymentMethod string

const (
	PaymentUPI    PaymentMethod = "upi"
	PaymentCard   PaymentMethod = "card"
	PaymentWallet PaymentMethod = "wallet"
	PaymentCash   PaymentMethod = "cash"
)

// ParsePaymentMethod maps a token to a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case PaymentUPI, PaymentCard, PaymentWallet, PaymentCash:
		return m, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// CartItem is one line of a cart, snapshotted onto the order at creation.
type CartItem struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// Cart is the pre-checkout selection. It is owned by the browsing flow and
// only read here.
type Cart struct {
	Items []CartItem `json:"items"`
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool { return len(c.Items) == 0 }

// Order is the durable record tracked through fulfilment. Status, Paused,
// PrepTimeMinutes, StatusDeadline and RemainingSeconds are the only fields
// mutated after creation, and only via guarded single-field patches.
type Order struct {
	ID            string          `json:"id"`
	OrderNumber   int64           `json:"orderNumber"`
	CustomerID    string          `json:"customerId"`
	Items         []CartItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	SGST          decimal.Decimal `json:"sgst"`
	CGST          decimal.Decimal `json:"cgst"`
	Discount      decimal.Decimal `json:"discount"`
	Tip           decimal.Decimal `json:"tip"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	SplitCount    int             `json:"splitCount"`
	Status        Status          `json:"status"`
	Paused        bool            `json:"paused"`
	// PrepTimeMinutes overrides the default preparation duration once staff
	// sets it; nil means the default applies.
	PrepTimeMinutes *int `json:"prepTimeMinutes,omitempty"`
	// StatusDeadline is when the current stage auto-advances. Nil while
	// paused and in the terminal stage.
	StatusDeadline *time.Time `json:"statusDeadline,omitempty"`
	// RemainingSeconds preserves the countdown across a pause. Set only
	// while Paused is true.
	RemainingSeconds *int64    `json:"remainingSeconds,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// PerPerson is the even share of the total across the split count.
func (o Order) PerPerson() decimal.Decimal {
	if o.SplitCount < 1 {
		return o.Total
	}
	return o.Total.Div(decimal.NewFromInt(int64(o.SplitCount)))
}

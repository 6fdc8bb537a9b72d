// Package billing computes bill breakdowns for checkout. Everything here is
// pure: the same cart, discount, tip and split always produce the same
// breakdown, and both checkout surfaces go through these functions so they
// cannot disagree.
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tableside/internal/domain"
)

// SGST and CGST are two independent flat components on the pre-tax subtotal,
// not one combined 5% on a tax-inclusive base.
var (
	sgstRate = decimal.New(25, -3) // 2.5%
	cgstRate = decimal.New(25, -3) // 2.5%

	hundred = decimal.NewFromInt(100)

	// percentCutoff is the legacy bare-number rule: a tip value at or below
	// it reads as a percentage, above it as an absolute amount. A flat 10
	// tip therefore cannot be expressed from a bare number; see
	// TipFromAmount.
	percentCutoff = decimal.NewFromInt(10)
)

// ErrBadInput reports a cart or discount that required clamping. It signals
// a defect in the caller, never something to show the customer.
var ErrBadInput = errors.New("billing: input required clamping")

// TipKind distinguishes percentage tips from fixed amounts.
type TipKind string

const (
	TipPercent TipKind = "percent"
	TipFixed   TipKind = "fixed"
)

// Tip is the customer's tip choice.
type Tip struct {
	Kind  TipKind         `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// PercentTip builds an explicit percentage tip.
func PercentTip(v decimal.Decimal) Tip { return Tip{Kind: TipPercent, Value: v} }

// FixedTip builds an explicit fixed-amount tip.
func FixedTip(v decimal.Decimal) Tip { return Tip{Kind: TipFixed, Value: v} }

// TipFromAmount interprets a bare number the way the original flow did:
// values at or below 10 are percentages, larger values are absolute amounts.
// Both checkout surfaces funnel bare numbers through here so they agree.
func TipFromAmount(v decimal.Decimal) Tip {
	if v.LessThanOrEqual(percentCutoff) {
		return PercentTip(v)
	}
	return FixedTip(v)
}

// Breakdown is the derived bill. It is always recomputed from its inputs and
// never stored apart from them.
type Breakdown struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	SGST       decimal.Decimal `json:"sgst"`
	CGST       decimal.Decimal `json:"cgst"`
	Discount   decimal.Decimal `json:"discount"`
	Tip        decimal.Decimal `json:"tip"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
	PerPerson  decimal.Decimal `json:"perPerson"`
}

// Rounded returns the two-decimal presentation copy. Computation keeps full
// precision; rounding happens only here.
func (b Breakdown) Rounded() Breakdown {
	return Breakdown{
		Subtotal:   b.Subtotal.Round(2),
		SGST:       b.SGST.Round(2),
		CGST:       b.CGST.Round(2),
		Discount:   b.Discount.Round(2),
		Tip:        b.Tip.Round(2),
		GrandTotal: b.GrandTotal.Round(2),
		PerPerson:  b.PerPerson.Round(2),
	}
}

// Compute derives the bill in fixed order: subtotal, the two tax components
// on the subtotal, tip on the taxed subtotal, then discount, floored at
// zero, then the even split. splitCount below 1 is a contract violation.
//
// Negative quantities, prices or discounts are clamped to zero and reported
// via ErrBadInput alongside the clamped breakdown.
func Compute(items []domain.CartItem, discount decimal.Decimal, tip Tip, splitCount int) (Breakdown, error) {
	if splitCount < 1 {
		return Breakdown{}, fmt.Errorf("billing: split count %d, want >= 1", splitCount)
	}

	clamped := false

	subtotal := decimal.Zero
	for _, it := range items {
		qty := it.Quantity
		if qty < 0 {
			qty = 0
			clamped = true
		}
		price := it.UnitPrice
		if price.IsNegative() {
			price = decimal.Zero
			clamped = true
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}

	if discount.IsNegative() {
		discount = decimal.Zero
		clamped = true
	}

	sgst := subtotal.Mul(sgstRate)
	cgst := subtotal.Mul(cgstRate)
	taxed := subtotal.Add(sgst).Add(cgst)

	tipValue := tip.Value
	if tipValue.IsNegative() {
		tipValue = decimal.Zero
		clamped = true
	}
	var tipAmount decimal.Decimal
	switch tip.Kind {
	case TipPercent:
		tipAmount = taxed.Mul(tipValue).Div(hundred)
	default:
		tipAmount = tipValue
	}

	grand := taxed.Add(tipAmount).Sub(discount)
	if grand.IsNegative() {
		grand = decimal.Zero
	}

	b := Breakdown{
		Subtotal:   subtotal,
		SGST:       sgst,
		CGST:       cgst,
		Discount:   discount,
		Tip:        tipAmount,
		GrandTotal: grand,
		PerPerson:  grand.Div(decimal.NewFromInt(int64(splitCount))),
	}
	if clamped {
		return b, ErrBadInput
	}
	return b, nil
}

// ClampDiscount bounds a requested discount to what the subtotal and the
// customer's redeemable balance allow.
func ClampDiscount(requested, subtotal, redeemable decimal.Decimal) decimal.Decimal {
	d := requested
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	if d.GreaterThan(redeemable) {
		d = redeemable
	}
	return d
}

// Subtotal sums the cart lines without taxes, tip or discount.
func Subtotal(items []domain.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 || it.UnitPrice.IsNegative() {
			continue
		}
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

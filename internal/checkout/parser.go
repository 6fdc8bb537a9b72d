package checkout

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"tableside/internal/billing"
	"tableside/internal/domain"
)

// The conversational surface never lets generated text decide anything:
// each step accepts only the constrained tokens parsed here.

func parseMethod(text string) (domain.PaymentMethod, bool) {
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if m, err := domain.ParsePaymentMethod(word); err == nil {
			return m, true
		}
	}
	return "", false
}

// parseTip accepts "15%", "percent 15", "fixed 40", a bare number (legacy
// at-most-10-means-percent rule), or a no-tip keyword.
func parseTip(text string) (billing.Tip, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return billing.Tip{}, false
	}

	switch lower {
	case "no", "none", "no tip", "skip":
		return billing.FixedTip(decimal.Zero), true
	}

	fields := strings.Fields(strings.NewReplacer(":", " ", "=", " ").Replace(lower))

	kind := billing.TipKind("")
	var value *decimal.Decimal
	for _, f := range fields {
		switch f {
		case "percent", "pct":
			kind = billing.TipPercent
			continue
		case "fixed", "flat", "amount":
			kind = billing.TipFixed
			continue
		}
		raw := f
		if strings.HasSuffix(raw, "%") {
			kind = billing.TipPercent
			raw = strings.TrimSuffix(raw, "%")
		}
		raw = strings.TrimPrefix(raw, "₹")
		raw = strings.TrimPrefix(raw, "rs")
		if d, err := decimal.NewFromString(raw); err == nil && value == nil {
			v := d
			value = &v
		}
	}
	if value == nil || value.IsNegative() {
		return billing.Tip{}, false
	}

	switch kind {
	case billing.TipPercent:
		return billing.PercentTip(*value), true
	case billing.TipFixed:
		return billing.FixedTip(*value), true
	default:
		return billing.TipFromAmount(*value), true
	}
}

func parseSplit(text string) (int, bool) {
	for _, word := range strings.Fields(text) {
		n, err := strconv.Atoi(strings.TrimSpace(word))
		if err == nil && n >= 1 {
			return n, true
		}
	}
	return 0, false
}

func parseYesNo(text string) (confirmed, ok bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "confirm", "ok", "sure", "place order":
		return true, true
	case "no", "n", "cancel", "back":
		return false, true
	}
	return false, false
}

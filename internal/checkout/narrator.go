package checkout

import (
	"context"
	"fmt"

	"tableside/internal/billing"
)

// Narrator phrases prompts for the conversational surface. It is purely
// advisory: its output is display copy, never a decision. A failing or
// absent narrator falls back to the canned copy below.
type Narrator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// Prompt carries what the narrator may talk about at the current step.
type Prompt struct {
	Step     Step
	Reprompt bool
	// Bill is set once the breakdown is known (confirmation step onwards).
	Bill *billing.Breakdown
}

type staticNarrator struct{}

// NewStaticNarrator returns a narrator that serves canned copy. It is the
// default and the fallback when a generative narrator errors.
func NewStaticNarrator() Narrator { return staticNarrator{} }

func (staticNarrator) Generate(_ context.Context, p Prompt) (string, error) {
	return cannedCopy(p), nil
}

func cannedCopy(p Prompt) string {
	prefix := ""
	if p.Reprompt {
		prefix = "Sorry, I didn't catch that. "
	}
	switch p.Step {
	case StepMethod:
		return prefix + "How would you like to pay? (upi, card, wallet or cash)"
	case StepTip:
		return prefix + "Would you like to add a tip? Reply with a number, a percentage like 15%, or 'none'."
	case StepSplit:
		return prefix + "How many people are splitting the bill?"
	case StepConfirm:
		if p.Bill != nil {
			r := p.Bill.Rounded()
			return prefix + fmt.Sprintf(
				"Your total is %s (subtotal %s, taxes %s, tip %s, discount %s), %s per person. Shall I place the order? (yes/no)",
				r.GrandTotal, r.Subtotal, r.SGST.Add(r.CGST), r.Tip, r.Discount, r.PerPerson)
		}
		return prefix + "Shall I place the order? (yes/no)"
	case StepFinalized:
		return "Your order is placed. You can watch its progress live."
	}
	return prefix + "Let's continue with your checkout."
}

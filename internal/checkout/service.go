package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tableside/internal/billing"
	"tableside/internal/domain"
	orderrepo "tableside/internal/repository/order"
)

const sessionTTL = 30 * time.Minute

type orderRepo interface {
	Create(ctx context.Context, in orderrepo.CreateInput) (*domain.Order, error)
}

// Tracker admits a freshly created order into the lifecycle engine.
type Tracker interface {
	Track(orderNumber int64)
}

// Service runs the checkout sequence: method, tip, split, confirmation,
// then a single order creation. The form surface and the conversational
// surface drive the same session transitions, so their bill math cannot
// diverge.
type Service struct {
	repo      orderRepo
	narrator  Narrator
	tracker   Tracker
	logger    *log.Logger
	sessions  *sessionStore
	placedFor time.Duration
	now       func() time.Time
}

// New builds a checkout Service. tracker may be nil when no lifecycle engine
// runs in-process. placedFor is the initial auto-advance window for new
// orders.
func New(repo orderRepo, narrator Narrator, tracker Tracker, logger *log.Logger, placedFor time.Duration) *Service {
	if narrator == nil {
		narrator = NewStaticNarrator()
	}
	return &Service{
		repo:      repo,
		narrator:  narrator,
		tracker:   tracker,
		logger:    logger,
		sessions:  newSessionStore(sessionTTL),
		placedFor: placedFor,
		now:       time.Now,
	}
}

// Reply is what a surface renders after each interaction.
type Reply struct {
	SessionID string             `json:"sessionId,omitempty"`
	Step      Step               `json:"step"`
	Message   string             `json:"message"`
	Bill      *billing.Breakdown `json:"bill,omitempty"`
	Order     *domain.Order      `json:"order,omitempty"`
}

// StartInput opens a conversational checkout.
type StartInput struct {
	CustomerID string
	Cart       domain.Cart
	Discount   decimal.Decimal
	Redeemable decimal.Decimal
}

// Start validates the checkout preconditions and opens a session at the
// payment-method step.
func (s *Service) Start(ctx context.Context, in StartInput) (*Reply, error) {
	if err := checkPreconditions(in.CustomerID, in.Cart); err != nil {
		return nil, err
	}
	sess := s.sessions.create(in.CustomerID, in.Cart, in.Discount, in.Redeemable)
	return &Reply{
		SessionID: sess.ID,
		Step:      sess.Step,
		Message:   s.narrate(ctx, Prompt{Step: sess.Step}),
	}, nil
}

// Advance feeds one free-text message into a session. Unrecognized input
// re-prompts at the same step; nothing is persisted before confirmation.
func (s *Service) Advance(ctx context.Context, sessionID, text string) (*Reply, error) {
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, domain.ErrSessionNotFound
	}

	switch sess.Step {
	case StepMethod:
		method, ok := parseMethod(text)
		if !ok {
			return s.reprompt(ctx, sess, nil), nil
		}
		sess.Method = method
		sess.Step = StepTip
		return s.prompt(ctx, sess, nil), nil

	case StepTip:
		tip, ok := parseTip(text)
		if !ok {
			return s.reprompt(ctx, sess, nil), nil
		}
		sess.Tip = tip
		sess.Step = StepSplit
		return s.prompt(ctx, sess, nil), nil

	case StepSplit:
		split, ok := parseSplit(text)
		if !ok {
			return s.reprompt(ctx, sess, nil), nil
		}
		sess.Split = split
		sess.Step = StepConfirm
		bill, err := sess.Bill()
		if err != nil {
			return nil, fmt.Errorf("compute bill: %w", err)
		}
		return s.prompt(ctx, sess, &bill), nil

	case StepConfirm:
		confirmed, ok := parseYesNo(text)
		if !ok {
			bill, err := sess.Bill()
			if err != nil {
				return nil, fmt.Errorf("compute bill: %w", err)
			}
			return s.reprompt(ctx, sess, &bill), nil
		}
		if !confirmed {
			sess.closed = true
			s.sessions.remove(sess.ID)
			return &Reply{
				SessionID: sess.ID,
				Step:      StepMethod,
				Message:   "No problem, I've discarded that checkout. Your cart is untouched.",
			}, nil
		}
		order, bill, err := s.finalize(ctx, sess)
		if err != nil {
			// The session stays at confirmation so the customer can retry.
			return nil, err
		}
		sess.closed = true
		s.sessions.remove(sess.ID)
		return &Reply{
			SessionID: sess.ID,
			Step:      StepFinalized,
			Message:   s.narrate(ctx, Prompt{Step: StepFinalized, Bill: &bill}),
			Bill:      &bill,
			Order:     order,
		}, nil
	}

	return nil, fmt.Errorf("session %s in unexpected step %s", sess.ID, sess.Step)
}

// FormInput is the structured surface: all three choices at once.
type FormInput struct {
	CustomerID    string
	Cart          domain.Cart
	Discount      decimal.Decimal
	Redeemable    decimal.Decimal
	PaymentMethod string
	// TipKind is "percent", "fixed", or empty to apply the legacy
	// bare-number rule to TipValue.
	TipKind    string
	TipValue   decimal.Decimal
	SplitCount int
}

// SubmitForm runs the whole sequence in one call. It goes through the same
// session transitions and finalize path as the conversational surface.
func (s *Service) SubmitForm(ctx context.Context, in FormInput) (*domain.Order, billing.Breakdown, error) {
	if err := checkPreconditions(in.CustomerID, in.Cart); err != nil {
		return nil, billing.Breakdown{}, err
	}

	method, err := domain.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return nil, billing.Breakdown{}, err
	}

	var tip billing.Tip
	switch strings.ToLower(strings.TrimSpace(in.TipKind)) {
	case "":
		tip = billing.TipFromAmount(in.TipValue)
	case string(billing.TipPercent):
		tip = billing.PercentTip(in.TipValue)
	case string(billing.TipFixed):
		tip = billing.FixedTip(in.TipValue)
	default:
		return nil, billing.Breakdown{}, fmt.Errorf("unknown tip kind %q", in.TipKind)
	}
	if in.TipValue.IsNegative() {
		return nil, billing.Breakdown{}, errors.New("tip must not be negative")
	}
	if in.SplitCount < 1 {
		return nil, billing.Breakdown{}, errors.New("split count must be at least 1")
	}

	sess := &Session{
		CustomerID: in.CustomerID,
		Cart:       in.Cart,
		Redeemable: in.Redeemable,
		Discount:   in.Discount,
		Method:     method,
		Tip:        tip,
		Split:      in.SplitCount,
		Step:       StepConfirm,
	}
	return s.finalize(ctx, sess)
}

// finalize creates the order from a confirmed session. A failed creation
// aborts the whole checkout: no partial order exists on either surface.
func (s *Service) finalize(ctx context.Context, sess *Session) (*domain.Order, billing.Breakdown, error) {
	bill, err := sess.Bill()
	if err != nil {
		return nil, billing.Breakdown{}, fmt.Errorf("compute bill: %w", err)
	}

	deadline := s.now().Add(s.placedFor)
	order, err := s.repo.Create(ctx, orderrepo.CreateInput{
		CustomerID:     sess.CustomerID,
		Items:          sess.Cart.Items,
		Subtotal:       bill.Subtotal,
		SGST:           bill.SGST,
		CGST:           bill.CGST,
		Discount:       bill.Discount,
		Tip:            bill.Tip,
		Total:          bill.GrandTotal,
		PaymentMethod:  sess.Method,
		SplitCount:     sess.Split,
		Status:         domain.StatusPlaced,
		StatusDeadline: deadline,
	})
	if err != nil {
		return nil, billing.Breakdown{}, fmt.Errorf("create order: %w", err)
	}

	if s.tracker != nil {
		s.tracker.Track(order.OrderNumber)
	}
	if s.logger != nil {
		s.logger.Printf("order %d created for customer %s, total %s",
			order.OrderNumber, order.CustomerID, order.Total)
	}
	return order, bill, nil
}

func (s *Service) prompt(ctx context.Context, sess *Session, bill *billing.Breakdown) *Reply {
	return &Reply{
		SessionID: sess.ID,
		Step:      sess.Step,
		Message:   s.narrate(ctx, Prompt{Step: sess.Step, Bill: bill}),
		Bill:      bill,
	}
}

func (s *Service) reprompt(ctx context.Context, sess *Session, bill *billing.Breakdown) *Reply {
	return &Reply{
		SessionID: sess.ID,
		Step:      sess.Step,
		Message:   s.narrate(ctx, Prompt{Step: sess.Step, Reprompt: true, Bill: bill}),
		Bill:      bill,
	}
}

// narrate asks the narrator for copy and falls back to the canned phrasing
// when it fails. The returned text is display-only.
func (s *Service) narrate(ctx context.Context, p Prompt) string {
	text, err := s.narrator.Generate(ctx, p)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil && s.logger != nil {
			s.logger.Printf("narrator failed, using canned copy: %v", err)
		}
		return cannedCopy(p)
	}
	return text
}

func checkPreconditions(customerID string, cart domain.Cart) error {
	if strings.TrimSpace(customerID) == "" {
		return errors.New("customer required")
	}
	if cart.Empty() {
		return domain.ErrEmptyCart
	}
	for _, it := range cart.Items {
		if it.Quantity < 1 {
			return fmt.Errorf("item %s has quantity %d, want >= 1", it.ItemID, it.Quantity)
		}
	}
	return nil
}

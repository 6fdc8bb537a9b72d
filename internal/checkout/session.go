package checkout

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tableside/internal/billing"
	"tableside/internal/domain"
)

// Step is the orchestrator's position in the checkout sequence. Steps only
// ever move forward; unparseable input re-prompts without advancing.
type Step string

const (
	StepMethod    Step = "awaiting_method"
	StepTip       Step = "awaiting_tip"
	StepSplit     Step = "awaiting_split"
	StepConfirm   Step = "awaiting_confirmation"
	StepFinalized Step = "finalized"
)

// Session accumulates the checkout selection across steps. It is discarded
// on abandonment and finalized only on explicit confirmation.
type Session struct {
	// mu serializes messages for this session so a duplicate "yes" waits
	// instead of racing the finalization.
	mu sync.Mutex
	// closed marks a session that confirmed or declined; late messages get
	// session-not-found.
	closed bool

	ID         string
	CustomerID string
	Cart       domain.Cart
	// Redeemable is the points value the customer may burn; the discount is
	// clamped against it and the subtotal.
	Redeemable decimal.Decimal
	Discount   decimal.Decimal
	Step       Step

	Method domain.PaymentMethod
	Tip    billing.Tip
	Split  int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bill computes the current breakdown from the session inputs. The split
// defaults to 1 until collected.
func (s *Session) Bill() (billing.Breakdown, error) {
	split := s.Split
	if split < 1 {
		split = 1
	}
	discount := billing.ClampDiscount(s.Discount, billing.Subtotal(s.Cart.Items), s.Redeemable)
	return billing.Compute(s.Cart.Items, discount, s.Tip, split)
}

// sessionStore holds in-flight conversational sessions in memory. Sessions
// expire after ttl of inactivity; the sweep runs lazily on access.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (st *sessionStore) create(customerID string, cart domain.Cart, discount, redeemable decimal.Decimal) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sweepLocked()

	now := st.now()
	s := &Session{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Cart:       cart,
		Redeemable: redeemable,
		Discount:   discount,
		Step:       StepMethod,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	st.sessions[s.ID] = s
	return s
}

func (st *sessionStore) get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sweepLocked()

	s, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	s.UpdatedAt = st.now()
	return s, true
}

func (st *sessionStore) remove(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

func (st *sessionStore) sweepLocked() {
	cutoff := st.now().Add(-st.ttl)
	for id, s := range st.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(st.sessions, id)
		}
	}
}

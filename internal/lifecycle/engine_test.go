package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside/internal/domain"
	"tableside/internal/feed"
)

func newTestEngine(t *testing.T, repo Repository, clk Clock) *Engine {
	t.Helper()
	e := New(repo, feed.NewMemory(), DefaultConfig(), nil)
	if clk != nil {
		e.clock = clk
	}
	e.retryBackoff = time.Millisecond
	return e
}

func prepOrder(number int64, deadline time.Time) *domain.Order {
	return &domain.Order{
		OrderNumber:    number,
		Status:         domain.StatusInPreparation,
		StatusDeadline: &deadline,
	}
}

func TestPauseThenImmediateResume_KeepsRemainingExactly(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := newFakeClock(t0)
	repo := newStubRepo(prepOrder(1, t0.Add(100*time.Second)))
	e := newTestEngine(t, repo, clk)
	ctx := context.Background()

	paused, err := e.Pause(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, paused.RemainingSeconds)
	assert.EqualValues(t, 100, *paused.RemainingSeconds)
	assert.True(t, paused.Paused)
	assert.Nil(t, paused.StatusDeadline)

	// No time passes; the countdown is unchanged.
	resumed, err := e.Resume(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, resumed.StatusDeadline)
	assert.Equal(t, t0.Add(100*time.Second), *resumed.StatusDeadline)
	assert.False(t, resumed.Paused)
}

func TestPauseForDuration_ShiftsDeadlineByExactlyThatDuration(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := newFakeClock(t0)
	repo := newStubRepo(prepOrder(1, t0.Add(100*time.Second)))
	e := newTestEngine(t, repo, clk)
	ctx := context.Background()

	_, err := e.Pause(ctx, 1)
	require.NoError(t, err)

	clk.Advance(37 * time.Second)
	resumed, err := e.Resume(ctx, 1)
	require.NoError(t, err)

	// Would have been t0+100s; paused 37s, so t0+137s.
	assert.Equal(t, t0.Add(137*time.Second), *resumed.StatusDeadline)
}

func TestPause_RejectedOutsidePreparation(t *testing.T) {
	t0 := time.Now()
	placed := &domain.Order{OrderNumber: 2, Status: domain.StatusPlaced, StatusDeadline: &t0}
	done := &domain.Order{OrderNumber: 3, Status: domain.StatusCompleted}
	e := newTestEngine(t, newStubRepo(placed, done), nil)
	ctx := context.Background()

	_, err := e.Pause(ctx, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = e.Pause(ctx, 3)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestResume_RequiresPause(t *testing.T) {
	t0 := time.Now()
	e := newTestEngine(t, newStubRepo(prepOrder(4, t0.Add(time.Minute))), nil)

	_, err := e.Resume(context.Background(), 4)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestSetPrepTime_ReschedulesFromTheMomentItIsSet(t *testing.T) {
	// Scenario: preparation began at t=30 with the 240s default, so the
	// deadline sits at t=270. At t=40 staff sets five minutes; the deadline
	// becomes t=340, not t=330.
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := newFakeClock(t0.Add(40 * time.Second))
	repo := newStubRepo(prepOrder(5, t0.Add(270*time.Second)))
	e := newTestEngine(t, repo, clk)

	updated, err := e.SetPrepTime(context.Background(), 5, 5)
	require.NoError(t, err)
	require.NotNil(t, updated.StatusDeadline)
	assert.Equal(t, t0.Add(340*time.Second), *updated.StatusDeadline)
	require.NotNil(t, updated.PrepTimeMinutes)
	assert.Equal(t, 5, *updated.PrepTimeMinutes)
}

func TestSetPrepTime_WhilePausedReplacesRemainder(t *testing.T) {
	t0 := time.Now()
	clk := newFakeClock(t0)
	repo := newStubRepo(prepOrder(6, t0.Add(time.Minute)))
	e := newTestEngine(t, repo, clk)
	ctx := context.Background()

	_, err := e.Pause(ctx, 6)
	require.NoError(t, err)

	updated, err := e.SetPrepTime(ctx, 6, 3)
	require.NoError(t, err)
	assert.True(t, updated.Paused)
	assert.Nil(t, updated.StatusDeadline)
	require.NotNil(t, updated.RemainingSeconds)
	assert.EqualValues(t, 180, *updated.RemainingSeconds)
}

func TestSetPrepTime_RejectedOutsidePreparation(t *testing.T) {
	t0 := time.Now()
	placed := &domain.Order{OrderNumber: 7, Status: domain.StatusPlaced, StatusDeadline: &t0}
	e := newTestEngine(t, newStubRepo(placed), nil)

	_, err := e.SetPrepTime(context.Background(), 7, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestOverride_ForwardOnly(t *testing.T) {
	t0 := time.Now()
	repo := newStubRepo(prepOrder(8, t0.Add(time.Minute)))
	e := newTestEngine(t, repo, nil)
	ctx := context.Background()

	_, err := e.Override(ctx, 8, domain.StatusPlaced)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = e.Override(ctx, 8, domain.StatusInPreparation)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	updated, err := e.Override(ctx, 8, domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	assert.Nil(t, updated.StatusDeadline)
}

func TestOverride_SkipToCompletedMakesLaterAdvancesNoOps(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := newFakeClock(t0)
	deadline := t0.Add(30 * time.Second)
	placed := &domain.Order{OrderNumber: 9, Status: domain.StatusPlaced, StatusDeadline: &deadline}
	repo := newStubRepo(placed)
	e := newTestEngine(t, repo, clk)
	ctx := context.Background()

	fired := 0
	e.OnCompleted(func(int64) { fired++ })

	_, err := e.Override(ctx, 9, domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	// A tracker still holding the stale placed snapshot attempts its
	// automatic advance; the guard rejects it and nothing fires twice.
	_, err = e.advanceWithRetry(ctx, placed, domain.StatusInPreparation)
	assert.ErrorIs(t, err, domain.ErrStale)

	got, err := repo.GetByNumber(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 1, fired)
}

func TestAdvanceWithRetry_RecoversFromTransientFailure(t *testing.T) {
	t0 := time.Now()
	deadline := t0.Add(time.Second)
	placed := &domain.Order{OrderNumber: 10, Status: domain.StatusPlaced, StatusDeadline: &deadline}
	repo := newStubRepo(placed)
	repo.advanceFailures = 2
	e := newTestEngine(t, repo, nil)

	updated, err := e.advanceWithRetry(context.Background(), placed, domain.StatusInPreparation)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInPreparation, updated.Status)
	assert.Equal(t, 3, repo.advanceCalls)
}

func TestAdvanceWithRetry_BoundedAttempts(t *testing.T) {
	t0 := time.Now()
	deadline := t0.Add(time.Second)
	placed := &domain.Order{OrderNumber: 11, Status: domain.StatusPlaced, StatusDeadline: &deadline}
	repo := newStubRepo(placed)
	repo.advanceFailures = 10
	e := newTestEngine(t, repo, nil)

	_, err := e.advanceWithRetry(context.Background(), placed, domain.StatusInPreparation)
	assert.ErrorIs(t, err, errStorage)
	assert.Equal(t, 3, repo.advanceCalls)
}

func TestCountdown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(90 * time.Second)
	remaining := int64(45)

	cases := []struct {
		name string
		o    *domain.Order
		want time.Duration
		ok   bool
	}{
		{"running", &domain.Order{Status: domain.StatusPlaced, StatusDeadline: &deadline}, 90 * time.Second, true},
		{"paused", &domain.Order{Status: domain.StatusInPreparation, Paused: true, RemainingSeconds: &remaining}, 45 * time.Second, true},
		{"overdue clamps to zero", &domain.Order{Status: domain.StatusPlaced, StatusDeadline: &now}, 0, true},
		{"completed", &domain.Order{Status: domain.StatusCompleted}, 0, false},
		{"no deadline", &domain.Order{Status: domain.StatusPlaced}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Countdown(tc.o, now)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

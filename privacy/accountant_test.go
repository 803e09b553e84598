package privacy_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/autonomiq/kaizen/privacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	mu      sync.Mutex
	budgets map[string]privacy.Budget
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{budgets: make(map[string]privacy.Budget)}
}

func (l *fakeLedger) SaveBudget(_ context.Context, b privacy.Budget) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.budgets[b.Cohort] = b

	return nil
}

func (l *fakeLedger) GetBudget(_ context.Context, cohort string) (privacy.Budget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.budgets[cohort], nil
}

func (l *fakeLedger) ListBudgets(_ context.Context, _, _ uint64) ([]privacy.Budget, uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]privacy.Budget, 0, len(l.budgets))
	for _, b := range l.budgets {
		out = append(out, b)
	}

	return out, uint64(len(out)), nil
}

func TestAccountant_Reserve(t *testing.T) {
	a := privacy.NewAccountant(newFakeLedger(), map[string]float64{"eu": 1.0}, slog.Default())
	ctx := context.Background()

	cases := []struct {
		desc    string
		cohort  string
		epsilon float64
		err     error
	}{
		{desc: "grant within ceiling", cohort: "eu", epsilon: 0.4, err: nil},
		{desc: "grant up to ceiling", cohort: "eu", epsilon: 0.6, err: nil},
		{desc: "deny past ceiling", cohort: "eu", epsilon: 0.01, err: privacy.ErrBudgetExhausted},
		{desc: "deny unknown cohort", cohort: "mars", epsilon: 0.1, err: privacy.ErrUnknownCohort},
		{desc: "deny non-positive epsilon", cohort: "eu", epsilon: 0, err: privacy.ErrInvalidEpsilon},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			err := a.Reserve(ctx, tc.cohort, tc.epsilon)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	// Denials must leave the total untouched.
	assert.InDelta(t, 1.0, a.CumulativeSpend("eu"), 1e-9)
}

func TestAccountant_ConcurrentReservations(t *testing.T) {
	a := privacy.NewAccountant(newFakeLedger(), map[string]float64{"us": 1.0}, slog.Default())
	ctx := context.Background()

	var wg sync.WaitGroup
	granted := make(chan struct{}, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Reserve(ctx, "us", 0.1); err == nil {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	assert.Equal(t, 10, count)
	assert.LessOrEqual(t, a.CumulativeSpend("us"), 1.0+1e-9)
}

func TestAccountant_ResumeAndReset(t *testing.T) {
	ledger := newFakeLedger()
	ctx := context.Background()

	first := privacy.NewAccountant(ledger, map[string]float64{"eu": 2.0}, slog.Default())
	require.NoError(t, first.Reserve(ctx, "eu", 1.5))

	second := privacy.NewAccountant(ledger, map[string]float64{"eu": 2.0}, slog.Default())
	require.NoError(t, second.Resume(ctx))
	assert.InDelta(t, 1.5, second.CumulativeSpend("eu"), 1e-9)
	assert.ErrorIs(t, second.Reserve(ctx, "eu", 1.0), privacy.ErrBudgetExhausted)

	require.NoError(t, second.Reset(ctx, "eu"))
	assert.Zero(t, second.CumulativeSpend("eu"))
	require.NoError(t, second.Reserve(ctx, "eu", 1.0))
}

func TestAccountant_CeilingReload(t *testing.T) {
	a := privacy.NewAccountant(newFakeLedger(), map[string]float64{"eu": 1.0}, slog.Default())
	ctx := context.Background()

	require.NoError(t, a.Reserve(ctx, "eu", 0.9))

	a.SetCeilings(map[string]float64{"eu": 0.5})
	assert.ErrorIs(t, a.Reserve(ctx, "eu", 0.1), privacy.ErrBudgetExhausted)
	assert.InDelta(t, 0.9, a.CumulativeSpend("eu"), 1e-9)

	a.SetCeilings(map[string]float64{"eu": 2.0})
	require.NoError(t, a.Reserve(ctx, "eu", 0.5))
}

package privacy

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrBudgetExhausted denies a reservation that would push the cohort
	// past its ceiling. Denial has no side effect.
	ErrBudgetExhausted = errors.New("privacy budget exhausted")
	// ErrUnknownCohort denies reservations for cohorts with no ceiling.
	ErrUnknownCohort = errors.New("unknown cohort")
	// ErrInvalidEpsilon rejects non-positive reservation costs.
	ErrInvalidEpsilon = errors.New("invalid epsilon cost")
)

// Budget is the persisted per-cohort ledger entry. Spend only grows;
// the sole exception is an explicit administrative reset.
type Budget struct {
	Cohort    string    `json:"cohort"`
	Spent     float64   `json:"spent"`
	Ceiling   float64   `json:"ceiling"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ledger persists budget entries across restarts.
type Ledger interface {
	SaveBudget(ctx context.Context, b Budget) error
	GetBudget(ctx context.Context, cohort string) (Budget, error)
	ListBudgets(ctx context.Context, offset, limit uint64) ([]Budget, uint64, error)
}

// Accountant tracks cumulative epsilon spend per cohort. Reservations are
// atomic read-check-increment under one mutex, so concurrent reservations
// can never overshoot a ceiling.
type Accountant struct {
	mu       sync.Mutex
	ledger   Ledger
	ceilings map[string]float64
	spent    map[string]float64
	logger   *slog.Logger
}

func NewAccountant(ledger Ledger, ceilings map[string]float64, logger *slog.Logger) *Accountant {
	a := &Accountant{
		ledger:   ledger,
		ceilings: make(map[string]float64, len(ceilings)),
		spent:    make(map[string]float64),
		logger:   logger,
	}
	for cohort, ceiling := range ceilings {
		a.ceilings[cohort] = ceiling
	}

	return a
}

// Resume loads prior spend from the ledger. Called once at startup.
func (a *Accountant) Resume(ctx context.Context) error {
	budgets, _, err := a.ledger.ListBudgets(ctx, 0, 1000)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, b := range budgets {
		a.spent[b.Cohort] = b.Spent
	}

	return nil
}

// Reserve commits the full epsilon cost for the cohort, or fails without
// any partial reservation.
func (a *Accountant) Reserve(ctx context.Context, cohort string, epsilon float64) error {
	if epsilon <= 0 {
		return ErrInvalidEpsilon
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ceiling, ok := a.ceilings[cohort]
	if !ok {
		return ErrUnknownCohort
	}
	if a.spent[cohort]+epsilon > ceiling {
		return ErrBudgetExhausted
	}

	a.spent[cohort] += epsilon
	if err := a.ledger.SaveBudget(ctx, a.entryLocked(cohort)); err != nil {
		a.logger.Warn("failed to persist budget", slog.String("cohort", cohort), slog.Any("error", err))
	}

	return nil
}

// CumulativeSpend returns the current total for a cohort.
func (a *Accountant) CumulativeSpend(cohort string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.spent[cohort]
}

// Budget returns the ledger entry for a cohort.
func (a *Accountant) Budget(ctx context.Context, cohort string) (Budget, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.ceilings[cohort]; !ok {
		return Budget{}, ErrUnknownCohort
	}

	return a.entryLocked(cohort), nil
}

// Reset zeroes a cohort's spend. Administrative action only.
func (a *Accountant) Reset(ctx context.Context, cohort string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.ceilings[cohort]; !ok {
		return ErrUnknownCohort
	}
	a.spent[cohort] = 0

	return a.ledger.SaveBudget(ctx, a.entryLocked(cohort))
}

// SetCeilings swaps the configured ceilings wholesale on a policy reload.
// Spend is untouched; lowering a ceiling below current spend simply denies
// further reservations.
func (a *Accountant) SetCeilings(ceilings map[string]float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ceilings = make(map[string]float64, len(ceilings))
	for cohort, ceiling := range ceilings {
		a.ceilings[cohort] = ceiling
	}
}

func (a *Accountant) entryLocked(cohort string) Budget {
	return Budget{
		Cohort:    cohort,
		Spent:     a.spent[cohort],
		Ceiling:   a.ceilings[cohort],
		UpdatedAt: time.Now(),
	}
}

package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autonomiq/kaizen/privacy"
)

type budgetStore struct {
	db *Database
}

func NewBudgetStore(db *Database) privacy.Ledger {
	return &budgetStore{db: db}
}

func (s *budgetStore) SaveBudget(ctx context.Context, b privacy.Budget) error {
	val, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	if err := s.db.set([]byte("budget:"+b.Cohort), val); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (s *budgetStore) GetBudget(ctx context.Context, cohort string) (privacy.Budget, error) {
	val, err := s.db.get([]byte("budget:" + cohort))
	if err != nil {
		return privacy.Budget{}, err
	}
	var b privacy.Budget
	if err := json.Unmarshal(val, &b); err != nil {
		return privacy.Budget{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return b, nil
}

func (s *budgetStore) ListBudgets(ctx context.Context, offset, limit uint64) ([]privacy.Budget, uint64, error) {
	prefix := []byte("budget:")
	total, err := s.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	values, err := s.db.listWithPrefix(prefix, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	budgets := make([]privacy.Budget, len(values))
	for i, val := range values {
		if err := json.Unmarshal(val, &budgets[i]); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
	}

	return budgets, total, nil
}

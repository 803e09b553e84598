package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autonomiq/kaizen/remediation"
)

type actionStore struct {
	db *Database
}

func NewActionStore(db *Database) remediation.ActionStore {
	return &actionStore{db: db}
}

func (s *actionStore) SaveAction(ctx context.Context, a remediation.Action) error {
	val, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	if err := s.db.set([]byte("action:"+a.ID), val); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (s *actionStore) GetAction(ctx context.Context, id string) (remediation.Action, error) {
	val, err := s.db.get([]byte("action:" + id))
	if err != nil {
		return remediation.Action{}, err
	}
	var a remediation.Action
	if err := json.Unmarshal(val, &a); err != nil {
		return remediation.Action{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return a, nil
}

func (s *actionStore) ListActions(ctx context.Context, offset, limit uint64) ([]remediation.Action, uint64, error) {
	prefix := []byte("action:")
	total, err := s.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	values, err := s.db.listWithPrefix(prefix, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	actions := make([]remediation.Action, len(values))
	for i, val := range values {
		if err := json.Unmarshal(val, &actions[i]); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
	}

	return actions, total, nil
}

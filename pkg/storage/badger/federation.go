package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autonomiq/kaizen/federation"
)

type modelStore struct {
	db *Database
}

func NewModelStore(db *Database) federation.ModelStore {
	return &modelStore{db: db}
}

func modelKey(version uint64) []byte {
	return []byte(fmt.Sprintf("model:%020d", version))
}

func (s *modelStore) SaveModel(ctx context.Context, m federation.GlobalModel) error {
	val, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	if err := s.db.set(modelKey(m.Version), val); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (s *modelStore) GetModel(ctx context.Context, version uint64) (federation.GlobalModel, error) {
	val, err := s.db.get(modelKey(version))
	if err != nil {
		return federation.GlobalModel{}, err
	}
	var m federation.GlobalModel
	if err := json.Unmarshal(val, &m); err != nil {
		return federation.GlobalModel{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return m, nil
}

func (s *modelStore) LatestModel(ctx context.Context) (federation.GlobalModel, error) {
	val, err := s.db.lastWithPrefix([]byte("model:"))
	if err != nil {
		return federation.GlobalModel{}, err
	}
	var m federation.GlobalModel
	if err := json.Unmarshal(val, &m); err != nil {
		return federation.GlobalModel{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return m, nil
}

func (s *modelStore) ListModels(ctx context.Context, offset, limit uint64) ([]federation.GlobalModel, uint64, error) {
	prefix := []byte("model:")
	total, err := s.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	values, err := s.db.listWithPrefix(prefix, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	models := make([]federation.GlobalModel, len(values))
	for i, val := range values {
		if err := json.Unmarshal(val, &models[i]); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
	}

	return models, total, nil
}

type participantStore struct {
	db *Database
}

func NewParticipantStore(db *Database) federation.ParticipantStore {
	return &participantStore{db: db}
}

func (s *participantStore) SaveParticipant(ctx context.Context, p federation.Participant) error {
	val, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	if err := s.db.set([]byte("participant:"+p.ID), val); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (s *participantStore) GetParticipant(ctx context.Context, id string) (federation.Participant, error) {
	val, err := s.db.get([]byte("participant:" + id))
	if err != nil {
		return federation.Participant{}, err
	}
	var p federation.Participant
	if err := json.Unmarshal(val, &p); err != nil {
		return federation.Participant{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return p, nil
}

func (s *participantStore) ListParticipants(ctx context.Context, offset, limit uint64) ([]federation.Participant, uint64, error) {
	prefix := []byte("participant:")
	total, err := s.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	values, err := s.db.listWithPrefix(prefix, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	participants := make([]federation.Participant, len(values))
	for i, val := range values {
		if err := json.Unmarshal(val, &participants[i]); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
	}

	return participants, total, nil
}

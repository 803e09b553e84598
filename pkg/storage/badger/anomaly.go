package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autonomiq/kaizen/anomaly"
)

type baselineStore struct {
	db *Database
}

func NewBaselineStore(db *Database) anomaly.BaselineStore {
	return &baselineStore{db: db}
}

func (s *baselineStore) SaveBaseline(ctx context.Context, b anomaly.Baseline) error {
	val, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	if err := s.db.set([]byte("baseline:"+b.Metric+"/"+b.Segment), val); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (s *baselineStore) ListBaselines(ctx context.Context, offset, limit uint64) ([]anomaly.Baseline, uint64, error) {
	prefix := []byte("baseline:")
	total, err := s.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	values, err := s.db.listWithPrefix(prefix, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	baselines := make([]anomaly.Baseline, len(values))
	for i, val := range values {
		if err := json.Unmarshal(val, &baselines[i]); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
	}

	return baselines, total, nil
}

type anomalyStore struct {
	db *Database
}

func NewAnomalyStore(db *Database) anomaly.AnomalyStore {
	return &anomalyStore{db: db}
}

func (s *anomalyStore) SaveAnomaly(ctx context.Context, a anomaly.Anomaly) error {
	val, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	if err := s.db.set([]byte("anomaly:"+a.ID), val); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (s *anomalyStore) GetAnomaly(ctx context.Context, id string) (anomaly.Anomaly, error) {
	val, err := s.db.get([]byte("anomaly:" + id))
	if err != nil {
		return anomaly.Anomaly{}, err
	}
	var a anomaly.Anomaly
	if err := json.Unmarshal(val, &a); err != nil {
		return anomaly.Anomaly{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return a, nil
}

func (s *anomalyStore) ListAnomalies(ctx context.Context, offset, limit uint64) ([]anomaly.Anomaly, uint64, error) {
	prefix := []byte("anomaly:")
	total, err := s.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	values, err := s.db.listWithPrefix(prefix, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	anomalies := make([]anomaly.Anomaly, len(values))
	for i, val := range values {
		if err := json.Unmarshal(val, &anomalies[i]); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
	}

	return anomalies, total, nil
}

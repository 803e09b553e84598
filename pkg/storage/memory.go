package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/autonomiq/kaizen/anomaly"
	"github.com/autonomiq/kaizen/federation"
	"github.com/autonomiq/kaizen/pkg/errors"
	"github.com/autonomiq/kaizen/privacy"
	"github.com/autonomiq/kaizen/remediation"
)

// collection is a mutex-guarded keyed map with deterministic, key-ordered
// listing. All memory stores are thin typed wrappers around it.
type collection[T any] struct {
	sync.Mutex

	data map[string]T
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{data: make(map[string]T)}
}

func (c *collection[T]) save(key string, value T) error {
	if key == "" {
		return errors.ErrEmptyKey
	}

	c.Lock()
	defer c.Unlock()
	c.data[key] = value

	return nil
}

func (c *collection[T]) get(key string) (T, error) {
	var zero T
	if key == "" {
		return zero, errors.ErrEmptyKey
	}

	c.Lock()
	defer c.Unlock()

	if val, ok := c.data[key]; ok {
		return val, nil
	}

	return zero, errors.ErrNotFound
}

func (c *collection[T]) list(offset, limit uint64) ([]T, uint64, error) {
	c.Lock()
	defer c.Unlock()

	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := uint64(len(keys))
	if offset >= total {
		return nil, total, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}

	result := make([]T, end-offset)
	for i := offset; i < end; i++ {
		result[i-offset] = c.data[keys[i]]
	}

	return result, total, nil
}

func versionKey(version uint64) string {
	return fmt.Sprintf("%020d", version)
}

type memoryModelStore struct {
	models *collection[federation.GlobalModel]

	mu     sync.Mutex
	latest uint64
}

func NewMemoryModelStore() federation.ModelStore {
	return &memoryModelStore{models: newCollection[federation.GlobalModel]()}
}

func (s *memoryModelStore) SaveModel(_ context.Context, m federation.GlobalModel) error {
	if err := s.models.save(versionKey(m.Version), m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Version > s.latest {
		s.latest = m.Version
	}

	return nil
}

func (s *memoryModelStore) GetModel(_ context.Context, version uint64) (federation.GlobalModel, error) {
	return s.models.get(versionKey(version))
}

func (s *memoryModelStore) LatestModel(_ context.Context) (federation.GlobalModel, error) {
	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()

	return s.models.get(versionKey(latest))
}

func (s *memoryModelStore) ListModels(_ context.Context, offset, limit uint64) ([]federation.GlobalModel, uint64, error) {
	return s.models.list(offset, limit)
}

type memoryParticipantStore struct {
	participants *collection[federation.Participant]
}

func NewMemoryParticipantStore() federation.ParticipantStore {
	return &memoryParticipantStore{participants: newCollection[federation.Participant]()}
}

func (s *memoryParticipantStore) SaveParticipant(_ context.Context, p federation.Participant) error {
	return s.participants.save(p.ID, p)
}

func (s *memoryParticipantStore) GetParticipant(_ context.Context, id string) (federation.Participant, error) {
	return s.participants.get(id)
}

func (s *memoryParticipantStore) ListParticipants(_ context.Context, offset, limit uint64) ([]federation.Participant, uint64, error) {
	return s.participants.list(offset, limit)
}

type memoryBudgetStore struct {
	budgets *collection[privacy.Budget]
}

func NewMemoryBudgetStore() privacy.Ledger {
	return &memoryBudgetStore{budgets: newCollection[privacy.Budget]()}
}

func (s *memoryBudgetStore) SaveBudget(_ context.Context, b privacy.Budget) error {
	return s.budgets.save(b.Cohort, b)
}

func (s *memoryBudgetStore) GetBudget(_ context.Context, cohort string) (privacy.Budget, error) {
	return s.budgets.get(cohort)
}

func (s *memoryBudgetStore) ListBudgets(_ context.Context, offset, limit uint64) ([]privacy.Budget, uint64, error) {
	return s.budgets.list(offset, limit)
}

type memoryBaselineStore struct {
	baselines *collection[anomaly.Baseline]
}

func NewMemoryBaselineStore() anomaly.BaselineStore {
	return &memoryBaselineStore{baselines: newCollection[anomaly.Baseline]()}
}

func (s *memoryBaselineStore) SaveBaseline(_ context.Context, b anomaly.Baseline) error {
	return s.baselines.save(b.Metric+"/"+b.Segment, b)
}

func (s *memoryBaselineStore) ListBaselines(_ context.Context, offset, limit uint64) ([]anomaly.Baseline, uint64, error) {
	return s.baselines.list(offset, limit)
}

type memoryAnomalyStore struct {
	anomalies *collection[anomaly.Anomaly]
}

func NewMemoryAnomalyStore() anomaly.AnomalyStore {
	return &memoryAnomalyStore{anomalies: newCollection[anomaly.Anomaly]()}
}

func (s *memoryAnomalyStore) SaveAnomaly(_ context.Context, a anomaly.Anomaly) error {
	return s.anomalies.save(a.ID, a)
}

func (s *memoryAnomalyStore) GetAnomaly(_ context.Context, id string) (anomaly.Anomaly, error) {
	return s.anomalies.get(id)
}

func (s *memoryAnomalyStore) ListAnomalies(_ context.Context, offset, limit uint64) ([]anomaly.Anomaly, uint64, error) {
	return s.anomalies.list(offset, limit)
}

type memoryActionStore struct {
	actions *collection[remediation.Action]
}

func NewMemoryActionStore() remediation.ActionStore {
	return &memoryActionStore{actions: newCollection[remediation.Action]()}
}

func (s *memoryActionStore) SaveAction(_ context.Context, a remediation.Action) error {
	return s.actions.save(a.ID, a)
}

func (s *memoryActionStore) GetAction(_ context.Context, id string) (remediation.Action, error) {
	return s.actions.get(id)
}

func (s *memoryActionStore) ListActions(_ context.Context, offset, limit uint64) ([]remediation.Action, uint64, error) {
	return s.actions.list(offset, limit)
}

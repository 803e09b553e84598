package federation_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/autonomiq/kaizen/federation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModelStore struct {
	mu     sync.Mutex
	models map[uint64]federation.GlobalModel
	latest uint64
}

func newFakeModelStore() *fakeModelStore {
	return &fakeModelStore{models: make(map[uint64]federation.GlobalModel)}
}

func (s *fakeModelStore) SaveModel(_ context.Context, m federation.GlobalModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[m.Version] = m
	if m.Version > s.latest {
		s.latest = m.Version
	}

	return nil
}

func (s *fakeModelStore) GetModel(_ context.Context, version uint64) (federation.GlobalModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[version]
	if !ok {
		return federation.GlobalModel{}, federation.ErrNoUpdates
	}

	return m, nil
}

func (s *fakeModelStore) LatestModel(_ context.Context) (federation.GlobalModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == 0 {
		return federation.GlobalModel{}, federation.ErrNoUpdates
	}

	return s.models[s.latest], nil
}

func (s *fakeModelStore) ListModels(_ context.Context, _, _ uint64) ([]federation.GlobalModel, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]federation.GlobalModel, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, m)
	}

	return out, uint64(len(out)), nil
}

type fakeParticipantStore struct {
	mu           sync.Mutex
	participants map[string]federation.Participant
}

func newFakeParticipantStore() *fakeParticipantStore {
	return &fakeParticipantStore{participants: make(map[string]federation.Participant)}
}

func (s *fakeParticipantStore) SaveParticipant(_ context.Context, p federation.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.ID] = p

	return nil
}

func (s *fakeParticipantStore) GetParticipant(_ context.Context, id string) (federation.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return federation.Participant{}, federation.ErrUntrustedParticipant
	}

	return p, nil
}

func (s *fakeParticipantStore) ListParticipants(_ context.Context, _, _ uint64) ([]federation.Participant, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]federation.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}

	return out, uint64(len(out)), nil
}

type fakeBudget struct {
	mu     sync.Mutex
	deny   bool
	spends map[string]float64
}

func newFakeBudget() *fakeBudget {
	return &fakeBudget{spends: make(map[string]float64)}
}

func (b *fakeBudget) Reserve(_ context.Context, cohort string, epsilon float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deny {
		return federation.ErrBudgetExceeded
	}
	b.spends[cohort] += epsilon

	return nil
}

func newTestCoordinator(t *testing.T, cfg federation.RoundConfig) (*federation.Coordinator, *fakeModelStore, *fakeParticipantStore, *fakeBudget) {
	t.Helper()

	models := newFakeModelStore()
	participants := newFakeParticipantStore()
	budget := newFakeBudget()
	c := federation.NewCoordinator(cfg, federation.NewFedAvgAggregator(1.0), models, participants, budget, slog.Default())
	require.NoError(t, c.Resume(context.Background()))

	return c, models, participants, budget
}

func TestCoordinator_RoundLifecycle(t *testing.T) {
	c, models, _, _ := newTestCoordinator(t, federation.RoundConfig{Quorum: 3, Deadline: time.Minute})
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, update("p1", 1, 1, 2)))
	require.NoError(t, c.Submit(ctx, update("p2", 1, 1, 4)))
	require.NoError(t, c.Submit(ctx, update("p3", 1, 2, 6)))

	model, published, err := c.CloseRound(ctx, 1)
	require.NoError(t, err)
	require.True(t, published)
	assert.Equal(t, uint64(1), model.Version)
	assert.Equal(t, 3, model.Participants)
	assert.InDelta(t, 4.5, model.Parameters[0], 1e-9)

	// A late submission for the closed round must not disturb the
	// published version.
	err = c.Submit(ctx, update("p4", 1, 1, 100))
	assert.ErrorIs(t, err, federation.ErrStaleRound)

	current, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(1), current.Version)
	assert.InDelta(t, 4.5, current.Parameters[0], 1e-9)

	stored, err := models.LatestModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stored.Version)

	// The next round is open and accepts submissions.
	require.NoError(t, c.Submit(ctx, update("p1", 2, 1, 1)))
}

func TestCoordinator_EmptyRoundNoOp(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, federation.RoundConfig{Quorum: 2, Deadline: time.Minute})

	_, published, err := c.CloseRound(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, published)

	_, ok := c.Current()
	assert.False(t, ok)
}

func TestCoordinator_Rejections(t *testing.T) {
	c, _, participants, budget := newTestCoordinator(t, federation.RoundConfig{Quorum: 10, Deadline: time.Minute})
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, update("p1", 1, 1, 2)))

	dup := update("p1", 1, 1, 3)
	assert.ErrorIs(t, c.Submit(ctx, dup), federation.ErrDuplicateUpdate)

	stale := update("p2", 7, 1, 3)
	assert.ErrorIs(t, c.Submit(ctx, stale), federation.ErrStaleRound)

	require.NoError(t, participants.SaveParticipant(ctx, federation.Participant{ID: "banned", Trusted: false}))
	assert.ErrorIs(t, c.Submit(ctx, update("banned", 1, 1, 3)), federation.ErrUntrustedParticipant)

	budget.deny = true
	err := c.Submit(ctx, update("p3", 1, 1, 3))
	assert.ErrorIs(t, err, federation.ErrBudgetExceeded)
	budget.deny = false

	malformed := update("p4", 1, 1)
	assert.ErrorIs(t, c.Submit(ctx, malformed), federation.ErrMalformedUpdate)
}

func TestCoordinator_ConcurrentSubmissions(t *testing.T) {
	c, _, _, budget := newTestCoordinator(t, federation.RoundConfig{Quorum: 100, Deadline: time.Minute})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := update("p"+string(rune('a'+i%26))+string(rune('0'+i/26)), 1, 1, 1)
			_ = c.Submit(ctx, u)
		}(i)
	}
	wg.Wait()

	status := c.Status()
	assert.Equal(t, 32, status.Updates)

	model, published, err := c.CloseRound(ctx, 1)
	require.NoError(t, err)
	require.True(t, published)
	assert.InDelta(t, 1.0, model.Parameters[0], 1e-9)
	assert.InDelta(t, 3.2, budget.spends["default"], 1e-9)
}

func TestCoordinator_ParticipantRetirement(t *testing.T) {
	c, _, participants, _ := newTestCoordinator(t, federation.RoundConfig{Quorum: 10, Deadline: time.Minute, MaxMissedRounds: 2})
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, update("steady", 1, 1, 1)))
	require.NoError(t, c.Submit(ctx, update("flaky", 1, 1, 1)))
	_, _, err := c.CloseRound(ctx, 1)
	require.NoError(t, err)

	for round := uint64(2); round <= 3; round++ {
		require.NoError(t, c.Submit(ctx, update("steady", round, 1, 1)))
		_, _, err := c.CloseRound(ctx, round)
		require.NoError(t, err)
	}

	flaky, err := participants.GetParticipant(ctx, "flaky")
	require.NoError(t, err)
	assert.False(t, flaky.Trusted)

	steady, err := participants.GetParticipant(ctx, "steady")
	require.NoError(t, err)
	assert.True(t, steady.Trusted)
}

func TestCoordinator_ResumeFromStorage(t *testing.T) {
	models := newFakeModelStore()
	require.NoError(t, models.SaveModel(context.Background(), federation.GlobalModel{
		Version:    7,
		Round:      7,
		Parameters: []float64{1, 2},
	}))

	c := federation.NewCoordinator(
		federation.RoundConfig{Quorum: 1, Deadline: time.Minute},
		federation.NewFedAvgAggregator(1.0),
		models, newFakeParticipantStore(), newFakeBudget(), slog.Default(),
	)
	require.NoError(t, c.Resume(context.Background()))

	current, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(7), current.Version)

	status := c.Status()
	assert.Equal(t, uint64(8), status.Round)
}

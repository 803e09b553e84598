package badger_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonomiq/kaizen/anomaly"
	"github.com/autonomiq/kaizen/federation"
	pkgerrors "github.com/autonomiq/kaizen/pkg/errors"
	"github.com/autonomiq/kaizen/pkg/storage/badger"
	"github.com/autonomiq/kaizen/privacy"
	"github.com/autonomiq/kaizen/remediation"
)

var testDB *badger.Database

func TestMain(m *testing.M) {
	dbPath := filepath.Join(os.TempDir(), "kaizen_badger_test_"+uuid.NewString())

	var err error
	testDB, err = badger.NewDatabase(dbPath)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	testDB.Close()
	os.RemoveAll(dbPath)

	os.Exit(code)
}

func TestModelStore_RoundTrip(t *testing.T) {
	store := badger.NewModelStore(testDB)

	for v := uint64(1); v <= 3; v++ {
		err := store.SaveModel(context.Background(), federation.GlobalModel{
			Version:    v,
			Round:      v,
			Parameters: []float64{float64(v), float64(v) * 2},
			CreatedAt:  time.Now(),
		})
		require.NoError(t, err)
	}

	got, err := store.GetModel(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Version)
	assert.Equal(t, []float64{2, 4}, got.Parameters)

	latest, err := store.LatestModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), latest.Version)

	models, total, err := store.ListModels(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, models, 3)
	assert.Equal(t, uint64(1), models[0].Version)

	_, err = store.GetModel(context.Background(), 99)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestParticipantStore_RoundTrip(t *testing.T) {
	store := badger.NewParticipantStore(testDB)

	p := federation.Participant{
		ID:      uuid.NewString(),
		Name:    "edge-node",
		Cohort:  "eu-west",
		Trusted: true,
	}
	require.NoError(t, store.SaveParticipant(context.Background(), p))

	got, err := store.GetParticipant(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Cohort, got.Cohort)
	assert.True(t, got.Trusted)

	_, err = store.GetParticipant(context.Background(), "missing")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestBudgetStore_RoundTrip(t *testing.T) {
	store := badger.NewBudgetStore(testDB)

	b := privacy.Budget{Cohort: "eu-west", Spent: 0.4, Ceiling: 1.0, UpdatedAt: time.Now()}
	require.NoError(t, store.SaveBudget(context.Background(), b))

	// Overwrite with a higher spend, the way the accountant checkpoints.
	b.Spent = 0.7
	require.NoError(t, store.SaveBudget(context.Background(), b))

	got, err := store.GetBudget(context.Background(), "eu-west")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got.Spent, 1e-9)

	budgets, total, err := store.ListBudgets(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, uint64(1))
	assert.NotEmpty(t, budgets)
}

func TestBaselineStore_RoundTrip(t *testing.T) {
	store := badger.NewBaselineStore(testDB)

	b := anomaly.Baseline{
		Metric:    "latency_p99",
		Segment:   "eu-west",
		Mean:      120,
		Variance:  9,
		Samples:   50,
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.SaveBaseline(context.Background(), b))

	baselines, total, err := store.ListBaselines(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, uint64(1))

	var found bool
	for _, got := range baselines {
		if got.Metric == b.Metric && got.Segment == b.Segment {
			found = true
			assert.InDelta(t, 120, got.Mean, 1e-9)
			assert.Equal(t, uint64(50), got.Samples)
		}
	}
	assert.True(t, found)
}

func TestAnomalyStore_RoundTrip(t *testing.T) {
	store := badger.NewAnomalyStore(testDB)

	a := anomaly.Anomaly{
		ID:         uuid.NewString(),
		Metric:     "error_rate",
		Segment:    "checkout",
		Value:      0.42,
		Score:      6.5,
		Severity:   anomaly.SeverityHigh,
		DetectedAt: time.Now(),
	}
	require.NoError(t, store.SaveAnomaly(context.Background(), a))

	got, err := store.GetAnomaly(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, anomaly.SeverityHigh, got.Severity)
	assert.InDelta(t, 6.5, got.Score, 1e-9)

	_, err = store.GetAnomaly(context.Background(), "missing")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestActionStore_RoundTrip(t *testing.T) {
	store := badger.NewActionStore(testDB)

	a := remediation.Action{
		ID:        uuid.NewString(),
		Name:      "scale-out",
		Target:    "checkout-service",
		Operation: "scale",
		Params:    map[string]string{"replicas": "5"},
		Status:    remediation.StatusPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.SaveAction(context.Background(), a))

	a.Status = remediation.StatusApplied
	require.NoError(t, store.SaveAction(context.Background(), a))

	got, err := store.GetAction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, remediation.StatusApplied, got.Status)
	assert.Equal(t, "5", got.Params["replicas"])

	actions, total, err := store.ListActions(context.Background(), 0, 100)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, uint64(1))
	assert.NotEmpty(t, actions)
}

package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonomiq/kaizen/federation"
	pkgerrors "github.com/autonomiq/kaizen/pkg/errors"
	"github.com/autonomiq/kaizen/pkg/storage"
	"github.com/autonomiq/kaizen/privacy"
)

func TestNewStores(t *testing.T) {
	stores, err := storage.NewStores(storage.Config{Type: "memory"})
	require.NoError(t, err)
	assert.Nil(t, stores.Closer)

	_, err = storage.NewStores(storage.Config{Type: "cassandra"})
	assert.Error(t, err)
}

func TestMemoryModelStore_Latest(t *testing.T) {
	store := storage.NewMemoryModelStore()

	_, err := store.LatestModel(context.Background())
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	for v := uint64(1); v <= 5; v++ {
		require.NoError(t, store.SaveModel(context.Background(), federation.GlobalModel{Version: v}))
	}

	latest, err := store.LatestModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), latest.Version)

	models, total, err := store.ListModels(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), total)
	require.Len(t, models, 2)
	assert.Equal(t, uint64(3), models[0].Version)
}

func TestMemoryBudgetStore(t *testing.T) {
	store := storage.NewMemoryBudgetStore()

	require.NoError(t, store.SaveBudget(context.Background(), privacy.Budget{Cohort: "eu", Spent: 0.3, Ceiling: 1}))

	got, err := store.GetBudget(context.Background(), "eu")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, got.Spent, 1e-9)

	err = store.SaveBudget(context.Background(), privacy.Budget{})
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyKey)
}

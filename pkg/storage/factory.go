package storage

import (
	"fmt"

	"github.com/autonomiq/kaizen/pkg/storage/badger"
)

type Config struct {
	Type string `env:"ENGINE_STORAGE_TYPE" envDefault:"memory"`

	BadgerPath string `env:"ENGINE_BADGER_PATH" envDefault:"./data/badger"`
}

func NewStores(cfg Config) (*Stores, error) {
	switch cfg.Type {
	case "badger":
		return newBadgerStores(cfg)
	case "memory":
		return newMemoryStores(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func newBadgerStores(cfg Config) (*Stores, error) {
	db, err := badger.NewDatabase(cfg.BadgerPath)
	if err != nil {
		return nil, err
	}

	return &Stores{
		Models:       badger.NewModelStore(db),
		Participants: badger.NewParticipantStore(db),
		Budgets:      badger.NewBudgetStore(db),
		Baselines:    badger.NewBaselineStore(db),
		Anomalies:    badger.NewAnomalyStore(db),
		Actions:      badger.NewActionStore(db),
		Closer:       db,
	}, nil
}

func newMemoryStores() *Stores {
	return &Stores{
		Models:       NewMemoryModelStore(),
		Participants: NewMemoryParticipantStore(),
		Budgets:      NewMemoryBudgetStore(),
		Baselines:    NewMemoryBaselineStore(),
		Anomalies:    NewMemoryAnomalyStore(),
		Actions:      NewMemoryActionStore(),
	}
}

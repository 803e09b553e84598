package storage

import (
	"io"

	"github.com/autonomiq/kaizen/anomaly"
	"github.com/autonomiq/kaizen/federation"
	"github.com/autonomiq/kaizen/privacy"
	"github.com/autonomiq/kaizen/remediation"
)

// Stores bundles every persistence boundary the engine needs. The memory
// backend is the default; badger keeps state across restarts.
type Stores struct {
	Models       federation.ModelStore
	Participants federation.ParticipantStore
	Budgets      privacy.Ledger
	Baselines    anomaly.BaselineStore
	Anomalies    anomaly.AnomalyStore
	Actions      remediation.ActionStore
	// Closer closes the underlying persistent storage connection.
	// It is nil for the in-memory backend.
	Closer io.Closer
}

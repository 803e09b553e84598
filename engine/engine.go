package engine

import (
	"context"

	"github.com/autonomiq/kaizen/anomaly"
	"github.com/autonomiq/kaizen/federation"
	"github.com/autonomiq/kaizen/policy"
	"github.com/autonomiq/kaizen/privacy"
	"github.com/autonomiq/kaizen/remediation"
	"github.com/autonomiq/kaizen/rules"
	"github.com/autonomiq/kaizen/telemetry"
)

// State is the orchestrator's cycle phase, readable at any time.
type State int32

const (
	StateIdle State = iota
	StateIngesting
	StateEvaluating
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateIngesting:
		return "ingesting"
	case StateEvaluating:
		return "evaluating"
	case StateDispatching:
		return "dispatching"
	default:
		return "idle"
	}
}

type ModelPage struct {
	Offset uint64                   `json:"offset"`
	Limit  uint64                   `json:"limit"`
	Total  uint64                   `json:"total"`
	Models []federation.GlobalModel `json:"models"`
}

type BudgetPage struct {
	Offset  uint64           `json:"offset"`
	Limit   uint64           `json:"limit"`
	Total   uint64           `json:"total"`
	Budgets []privacy.Budget `json:"budgets"`
}

type AnomalyPage struct {
	Offset    uint64            `json:"offset"`
	Limit     uint64            `json:"limit"`
	Total     uint64            `json:"total"`
	Anomalies []anomaly.Anomaly `json:"anomalies"`
}

type ActionPage struct {
	Offset  uint64               `json:"offset"`
	Limit   uint64               `json:"limit"`
	Total   uint64               `json:"total"`
	Actions []remediation.Action `json:"actions"`
}

type Service interface {
	SubmitUpdate(ctx context.Context, update federation.ModelUpdate) error
	CloseRound(ctx context.Context) (federation.GlobalModel, error)
	GetModel(ctx context.Context, version uint64) (federation.GlobalModel, error)
	ListModels(ctx context.Context, offset, limit uint64) (ModelPage, error)
	RoundStatus(ctx context.Context) (federation.RoundStatus, error)

	CohortBudget(ctx context.Context, cohort string) (privacy.Budget, error)
	ListBudgets(ctx context.Context, offset, limit uint64) (BudgetPage, error)

	Ingest(ctx context.Context, sample telemetry.Sample) error

	GetAnomaly(ctx context.Context, id string) (anomaly.Anomaly, error)
	ListAnomalies(ctx context.Context, offset, limit uint64) (AnomalyPage, error)

	GetAction(ctx context.Context, id string) (remediation.Action, error)
	ListActions(ctx context.Context, offset, limit uint64) (ActionPage, error)
	CancelAction(ctx context.Context, id string) error

	ListRules(ctx context.Context) ([]rules.Rule, error)
	EnableRule(ctx context.Context, id string) error
	DisableRule(ctx context.Context, id string) error
	ReloadPolicy(ctx context.Context, p *policy.Policy) error

	Subscribe(ctx context.Context) error
	Run(ctx context.Context) error
	State() State
}

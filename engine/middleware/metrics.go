package middleware

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"

	"github.com/autonomiq/kaizen/anomaly"
	"github.com/autonomiq/kaizen/engine"
	"github.com/autonomiq/kaizen/federation"
	"github.com/autonomiq/kaizen/policy"
	"github.com/autonomiq/kaizen/privacy"
	"github.com/autonomiq/kaizen/remediation"
	"github.com/autonomiq/kaizen/rules"
	"github.com/autonomiq/kaizen/telemetry"
)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     engine.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc engine.Service) engine.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) SubmitUpdate(ctx context.Context, update federation.ModelUpdate) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit-update").Add(1)
		mm.latency.With("method", "submit-update").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SubmitUpdate(ctx, update)
}

func (mm *metricsMiddleware) CloseRound(ctx context.Context) (federation.GlobalModel, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "close-round").Add(1)
		mm.latency.With("method", "close-round").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.CloseRound(ctx)
}

func (mm *metricsMiddleware) GetModel(ctx context.Context, version uint64) (federation.GlobalModel, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-model").Add(1)
		mm.latency.With("method", "get-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetModel(ctx, version)
}

func (mm *metricsMiddleware) ListModels(ctx context.Context, offset, limit uint64) (engine.ModelPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-models").Add(1)
		mm.latency.With("method", "list-models").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListModels(ctx, offset, limit)
}

func (mm *metricsMiddleware) RoundStatus(ctx context.Context) (federation.RoundStatus, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "round-status").Add(1)
		mm.latency.With("method", "round-status").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RoundStatus(ctx)
}

func (mm *metricsMiddleware) CohortBudget(ctx context.Context, cohort string) (privacy.Budget, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "cohort-budget").Add(1)
		mm.latency.With("method", "cohort-budget").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.CohortBudget(ctx, cohort)
}

func (mm *metricsMiddleware) ListBudgets(ctx context.Context, offset, limit uint64) (engine.BudgetPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-budgets").Add(1)
		mm.latency.With("method", "list-budgets").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListBudgets(ctx, offset, limit)
}

func (mm *metricsMiddleware) Ingest(ctx context.Context, sample telemetry.Sample) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "ingest").Add(1)
		mm.latency.With("method", "ingest").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Ingest(ctx, sample)
}

func (mm *metricsMiddleware) GetAnomaly(ctx context.Context, id string) (anomaly.Anomaly, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-anomaly").Add(1)
		mm.latency.With("method", "get-anomaly").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetAnomaly(ctx, id)
}

func (mm *metricsMiddleware) ListAnomalies(ctx context.Context, offset, limit uint64) (engine.AnomalyPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-anomalies").Add(1)
		mm.latency.With("method", "list-anomalies").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListAnomalies(ctx, offset, limit)
}

func (mm *metricsMiddleware) GetAction(ctx context.Context, id string) (remediation.Action, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-action").Add(1)
		mm.latency.With("method", "get-action").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetAction(ctx, id)
}

func (mm *metricsMiddleware) ListActions(ctx context.Context, offset, limit uint64) (engine.ActionPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-actions").Add(1)
		mm.latency.With("method", "list-actions").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListActions(ctx, offset, limit)
}

func (mm *metricsMiddleware) CancelAction(ctx context.Context, id string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "cancel-action").Add(1)
		mm.latency.With("method", "cancel-action").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.CancelAction(ctx, id)
}

func (mm *metricsMiddleware) ListRules(ctx context.Context) ([]rules.Rule, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-rules").Add(1)
		mm.latency.With("method", "list-rules").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListRules(ctx)
}

func (mm *metricsMiddleware) EnableRule(ctx context.Context, id string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "enable-rule").Add(1)
		mm.latency.With("method", "enable-rule").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.EnableRule(ctx, id)
}

func (mm *metricsMiddleware) DisableRule(ctx context.Context, id string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "disable-rule").Add(1)
		mm.latency.With("method", "disable-rule").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.DisableRule(ctx, id)
}

func (mm *metricsMiddleware) ReloadPolicy(ctx context.Context, p *policy.Policy) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "reload-policy").Add(1)
		mm.latency.With("method", "reload-policy").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ReloadPolicy(ctx, p)
}

func (mm *metricsMiddleware) Subscribe(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "subscribe").Add(1)
		mm.latency.With("method", "subscribe").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Subscribe(ctx)
}

func (mm *metricsMiddleware) Run(ctx context.Context) error {
	return mm.svc.Run(ctx)
}

func (mm *metricsMiddleware) State() engine.State {
	return mm.svc.State()
}

package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/autonomiq/kaizen/anomaly"
	"github.com/autonomiq/kaizen/engine"
	"github.com/autonomiq/kaizen/federation"
	"github.com/autonomiq/kaizen/policy"
	"github.com/autonomiq/kaizen/privacy"
	"github.com/autonomiq/kaizen/remediation"
	"github.com/autonomiq/kaizen/rules"
	"github.com/autonomiq/kaizen/telemetry"
)

type tracingMiddleware struct {
	tracer trace.Tracer
	svc    engine.Service
}

func Tracing(tracer trace.Tracer, svc engine.Service) engine.Service {
	return &tracingMiddleware{
		tracer: tracer,
		svc:    svc,
	}
}

func (tm *tracingMiddleware) SubmitUpdate(ctx context.Context, update federation.ModelUpdate) error {
	ctx, span := tm.tracer.Start(ctx, "submit-update", trace.WithAttributes(
		attribute.String("participant", update.ParticipantID),
		attribute.String("cohort", update.Cohort),
		attribute.Int64("round", int64(update.Round)),
	))
	defer span.End()

	return tm.svc.SubmitUpdate(ctx, update)
}

func (tm *tracingMiddleware) CloseRound(ctx context.Context) (federation.GlobalModel, error) {
	ctx, span := tm.tracer.Start(ctx, "close-round")
	defer span.End()

	return tm.svc.CloseRound(ctx)
}

func (tm *tracingMiddleware) GetModel(ctx context.Context, version uint64) (federation.GlobalModel, error) {
	ctx, span := tm.tracer.Start(ctx, "get-model", trace.WithAttributes(
		attribute.Int64("version", int64(version)),
	))
	defer span.End()

	return tm.svc.GetModel(ctx, version)
}

func (tm *tracingMiddleware) ListModels(ctx context.Context, offset, limit uint64) (engine.ModelPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-models", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListModels(ctx, offset, limit)
}

func (tm *tracingMiddleware) RoundStatus(ctx context.Context) (federation.RoundStatus, error) {
	ctx, span := tm.tracer.Start(ctx, "round-status")
	defer span.End()

	return tm.svc.RoundStatus(ctx)
}

func (tm *tracingMiddleware) CohortBudget(ctx context.Context, cohort string) (privacy.Budget, error) {
	ctx, span := tm.tracer.Start(ctx, "cohort-budget", trace.WithAttributes(
		attribute.String("cohort", cohort),
	))
	defer span.End()

	return tm.svc.CohortBudget(ctx, cohort)
}

func (tm *tracingMiddleware) ListBudgets(ctx context.Context, offset, limit uint64) (engine.BudgetPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-budgets", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListBudgets(ctx, offset, limit)
}

func (tm *tracingMiddleware) Ingest(ctx context.Context, sample telemetry.Sample) error {
	ctx, span := tm.tracer.Start(ctx, "ingest", trace.WithAttributes(
		attribute.String("metric", sample.Metric),
		attribute.String("segment", sample.Segment),
	))
	defer span.End()

	return tm.svc.Ingest(ctx, sample)
}

func (tm *tracingMiddleware) GetAnomaly(ctx context.Context, id string) (anomaly.Anomaly, error) {
	ctx, span := tm.tracer.Start(ctx, "get-anomaly", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.GetAnomaly(ctx, id)
}

func (tm *tracingMiddleware) ListAnomalies(ctx context.Context, offset, limit uint64) (engine.AnomalyPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-anomalies", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListAnomalies(ctx, offset, limit)
}

func (tm *tracingMiddleware) GetAction(ctx context.Context, id string) (remediation.Action, error) {
	ctx, span := tm.tracer.Start(ctx, "get-action", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.GetAction(ctx, id)
}

func (tm *tracingMiddleware) ListActions(ctx context.Context, offset, limit uint64) (engine.ActionPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-actions", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListActions(ctx, offset, limit)
}

func (tm *tracingMiddleware) CancelAction(ctx context.Context, id string) error {
	ctx, span := tm.tracer.Start(ctx, "cancel-action", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.CancelAction(ctx, id)
}

func (tm *tracingMiddleware) ListRules(ctx context.Context) ([]rules.Rule, error) {
	ctx, span := tm.tracer.Start(ctx, "list-rules")
	defer span.End()

	return tm.svc.ListRules(ctx)
}

func (tm *tracingMiddleware) EnableRule(ctx context.Context, id string) error {
	ctx, span := tm.tracer.Start(ctx, "enable-rule", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.EnableRule(ctx, id)
}

func (tm *tracingMiddleware) DisableRule(ctx context.Context, id string) error {
	ctx, span := tm.tracer.Start(ctx, "disable-rule", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.DisableRule(ctx, id)
}

func (tm *tracingMiddleware) ReloadPolicy(ctx context.Context, p *policy.Policy) error {
	ctx, span := tm.tracer.Start(ctx, "reload-policy")
	defer span.End()

	return tm.svc.ReloadPolicy(ctx, p)
}

func (tm *tracingMiddleware) Subscribe(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "subscribe")
	defer span.End()

	return tm.svc.Subscribe(ctx)
}

func (tm *tracingMiddleware) Run(ctx context.Context) error {
	return tm.svc.Run(ctx)
}

func (tm *tracingMiddleware) State() engine.State {
	return tm.svc.State()
}

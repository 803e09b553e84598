package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/autonomiq/kaizen/anomaly"
	"github.com/autonomiq/kaizen/engine"
	"github.com/autonomiq/kaizen/federation"
	"github.com/autonomiq/kaizen/policy"
	"github.com/autonomiq/kaizen/privacy"
	"github.com/autonomiq/kaizen/remediation"
	"github.com/autonomiq/kaizen/rules"
	"github.com/autonomiq/kaizen/telemetry"
)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    engine.Service
}

func Logging(logger *slog.Logger, svc engine.Service) engine.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) SubmitUpdate(ctx context.Context, update federation.ModelUpdate) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("update",
				slog.String("participant", update.ParticipantID),
				slog.String("cohort", update.Cohort),
				slog.Uint64("round", update.Round),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit update failed", args...)

			return
		}
		lm.logger.Info("Submit update completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitUpdate(ctx, update)
}

func (lm *loggingMiddleware) CloseRound(ctx context.Context) (model federation.GlobalModel, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("model",
				slog.Uint64("version", model.Version),
				slog.Uint64("round", model.Round),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Close round failed", args...)

			return
		}
		lm.logger.Info("Close round completed successfully", args...)
	}(time.Now())

	return lm.svc.CloseRound(ctx)
}

func (lm *loggingMiddleware) GetModel(ctx context.Context, version uint64) (model federation.GlobalModel, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("version", version),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get model failed", args...)

			return
		}
		lm.logger.Info("Get model completed successfully", args...)
	}(time.Now())

	return lm.svc.GetModel(ctx, version)
}

func (lm *loggingMiddleware) ListModels(ctx context.Context, offset, limit uint64) (page engine.ModelPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List models failed", args...)

			return
		}
		lm.logger.Info("List models completed successfully", args...)
	}(time.Now())

	return lm.svc.ListModels(ctx, offset, limit)
}

func (lm *loggingMiddleware) RoundStatus(ctx context.Context) (status federation.RoundStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round", status.Round),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Round status failed", args...)

			return
		}
		lm.logger.Info("Round status completed successfully", args...)
	}(time.Now())

	return lm.svc.RoundStatus(ctx)
}

func (lm *loggingMiddleware) CohortBudget(ctx context.Context, cohort string) (budget privacy.Budget, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("cohort", cohort),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Cohort budget failed", args...)

			return
		}
		lm.logger.Info("Cohort budget completed successfully", args...)
	}(time.Now())

	return lm.svc.CohortBudget(ctx, cohort)
}

func (lm *loggingMiddleware) ListBudgets(ctx context.Context, offset, limit uint64) (page engine.BudgetPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List budgets failed", args...)

			return
		}
		lm.logger.Info("List budgets completed successfully", args...)
	}(time.Now())

	return lm.svc.ListBudgets(ctx, offset, limit)
}

func (lm *loggingMiddleware) Ingest(ctx context.Context, sample telemetry.Sample) (err error) {
	defer func(begin time.Time) {
		if err == nil {
			return
		}
		lm.logger.Warn("Ingest sample failed",
			slog.String("duration", time.Since(begin).String()),
			slog.String("metric", sample.Metric),
			slog.String("segment", sample.Segment),
			slog.Any("error", err))
	}(time.Now())

	return lm.svc.Ingest(ctx, sample)
}

func (lm *loggingMiddleware) GetAnomaly(ctx context.Context, id string) (record anomaly.Anomaly, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("id", id),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get anomaly failed", args...)

			return
		}
		lm.logger.Info("Get anomaly completed successfully", args...)
	}(time.Now())

	return lm.svc.GetAnomaly(ctx, id)
}

func (lm *loggingMiddleware) ListAnomalies(ctx context.Context, offset, limit uint64) (page engine.AnomalyPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List anomalies failed", args...)

			return
		}
		lm.logger.Info("List anomalies completed successfully", args...)
	}(time.Now())

	return lm.svc.ListAnomalies(ctx, offset, limit)
}

func (lm *loggingMiddleware) GetAction(ctx context.Context, id string) (action remediation.Action, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("id", id),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get action failed", args...)

			return
		}
		lm.logger.Info("Get action completed successfully", args...)
	}(time.Now())

	return lm.svc.GetAction(ctx, id)
}

func (lm *loggingMiddleware) ListActions(ctx context.Context, offset, limit uint64) (page engine.ActionPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List actions failed", args...)

			return
		}
		lm.logger.Info("List actions completed successfully", args...)
	}(time.Now())

	return lm.svc.ListActions(ctx, offset, limit)
}

func (lm *loggingMiddleware) CancelAction(ctx context.Context, id string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("id", id),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Cancel action failed", args...)

			return
		}
		lm.logger.Info("Cancel action completed successfully", args...)
	}(time.Now())

	return lm.svc.CancelAction(ctx, id)
}

func (lm *loggingMiddleware) ListRules(ctx context.Context) (res []rules.Rule, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("rules", len(res)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List rules failed", args...)

			return
		}
		lm.logger.Info("List rules completed successfully", args...)
	}(time.Now())

	return lm.svc.ListRules(ctx)
}

func (lm *loggingMiddleware) EnableRule(ctx context.Context, id string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("id", id),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Enable rule failed", args...)

			return
		}
		lm.logger.Info("Enable rule completed successfully", args...)
	}(time.Now())

	return lm.svc.EnableRule(ctx, id)
}

func (lm *loggingMiddleware) DisableRule(ctx context.Context, id string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("id", id),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Disable rule failed", args...)

			return
		}
		lm.logger.Info("Disable rule completed successfully", args...)
	}(time.Now())

	return lm.svc.DisableRule(ctx, id)
}

func (lm *loggingMiddleware) ReloadPolicy(ctx context.Context, p *policy.Policy) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Reload policy failed", args...)

			return
		}
		lm.logger.Info("Reload policy completed successfully", args...)
	}(time.Now())

	return lm.svc.ReloadPolicy(ctx, p)
}

func (lm *loggingMiddleware) Subscribe(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Subscribe failed", args...)

			return
		}
		lm.logger.Info("Subscribe completed successfully", args...)
	}(time.Now())

	return lm.svc.Subscribe(ctx)
}

func (lm *loggingMiddleware) Run(ctx context.Context) error {
	return lm.svc.Run(ctx)
}

func (lm *loggingMiddleware) State() engine.State {
	return lm.svc.State()
}

package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/autonomiq/kaizen/anomaly"
	"github.com/autonomiq/kaizen/federation"
	pkgerrors "github.com/autonomiq/kaizen/pkg/errors"
	"github.com/autonomiq/kaizen/pkg/mqtt"
	"github.com/autonomiq/kaizen/pkg/storage"
	"github.com/autonomiq/kaizen/policy"
	"github.com/autonomiq/kaizen/privacy"
	"github.com/autonomiq/kaizen/remediation"
	"github.com/autonomiq/kaizen/rules"
	"github.com/autonomiq/kaizen/telemetry"
)

const (
	defaultTick      = 30 * time.Second
	ingestWorkers    = 4
	anomalyMaxAge    = 30 * time.Minute
	expirySweepEvery = time.Minute
)

// Config tunes the orchestrator loop.
type Config struct {
	Tick       time.Duration
	BufferSize int
	Retention  time.Duration
	Domain     string
}

type service struct {
	cfg         Config
	coordinator *federation.Coordinator
	accountant  *privacy.Accountant
	detector    *anomaly.Detector
	rules       *rules.Engine
	dispatcher  *remediation.Dispatcher
	stores      *storage.Stores
	pubsub      mqtt.PubSub
	buffer      *Buffer
	logger      *slog.Logger

	policy  atomic.Pointer[policy.Policy]
	state   atomic.Int32
	dropped atomic.Uint64
	samples chan telemetry.Sample
}

// NewService assembles the orchestrator around its five components. The
// buffer doubles as the dispatcher's metric reader; construct it first
// with NewBuffer and hand the same instance to both.
func NewService(
	cfg Config,
	coordinator *federation.Coordinator,
	accountant *privacy.Accountant,
	detector *anomaly.Detector,
	ruleEngine *rules.Engine,
	dispatcher *remediation.Dispatcher,
	stores *storage.Stores,
	pubsub mqtt.PubSub,
	pol *policy.Policy,
	buffer *Buffer,
	logger *slog.Logger,
) Service {
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultSampleBuffer
	}
	if buffer == nil {
		buffer = NewBuffer(cfg.Retention, defaultSeriesBound)
	}

	svc := &service{
		cfg:         cfg,
		coordinator: coordinator,
		accountant:  accountant,
		detector:    detector,
		rules:       ruleEngine,
		dispatcher:  dispatcher,
		stores:      stores,
		pubsub:      pubsub,
		buffer:      buffer,
		logger:      logger,
		samples:     make(chan telemetry.Sample, cfg.BufferSize),
	}
	svc.policy.Store(pol)
	dispatcher.SetOutcome(svc.actionSettled)

	return svc
}

func (svc *service) SubmitUpdate(ctx context.Context, update federation.ModelUpdate) error {
	return svc.coordinator.Submit(ctx, update)
}

func (svc *service) CloseRound(ctx context.Context) (federation.GlobalModel, error) {
	status := svc.coordinator.Status()
	model, published, err := svc.coordinator.CloseRound(ctx, status.Round)
	if err != nil {
		return federation.GlobalModel{}, err
	}
	if !published {
		return federation.GlobalModel{}, federation.ErrNoUpdates
	}

	return model, nil
}

func (svc *service) GetModel(ctx context.Context, version uint64) (federation.GlobalModel, error) {
	return svc.stores.Models.GetModel(ctx, version)
}

func (svc *service) ListModels(ctx context.Context, offset, limit uint64) (ModelPage, error) {
	models, total, err := svc.stores.Models.ListModels(ctx, offset, limit)
	if err != nil {
		return ModelPage{}, err
	}

	return ModelPage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Models: models,
	}, nil
}

func (svc *service) RoundStatus(ctx context.Context) (federation.RoundStatus, error) {
	return svc.coordinator.Status(), nil
}

func (svc *service) CohortBudget(ctx context.Context, cohort string) (privacy.Budget, error) {
	return svc.accountant.Budget(ctx, cohort)
}

func (svc *service) ListBudgets(ctx context.Context, offset, limit uint64) (BudgetPage, error) {
	budgets, total, err := svc.stores.Budgets.ListBudgets(ctx, offset, limit)
	if err != nil {
		return BudgetPage{}, err
	}

	return BudgetPage{
		Offset:  offset,
		Limit:   limit,
		Total:   total,
		Budgets: budgets,
	}, nil
}

// Ingest accepts one sample without blocking the producer. When the buffer
// is full the oldest queued sample is dropped to admit the new one.
func (svc *service) Ingest(ctx context.Context, sample telemetry.Sample) error {
	if !sample.Valid() {
		return pkgerrors.ErrInvalidData
	}

	for {
		select {
		case svc.samples <- sample:
			return nil
		default:
		}
		select {
		case old := <-svc.samples:
			svc.dropped.Add(1)
			svc.logger.Warn("telemetry buffer full, dropping oldest sample",
				slog.String("metric", old.Metric),
				slog.String("segment", old.Segment))
		default:
		}
	}
}

func (svc *service) GetAnomaly(ctx context.Context, id string) (anomaly.Anomaly, error) {
	return svc.stores.Anomalies.GetAnomaly(ctx, id)
}

func (svc *service) ListAnomalies(ctx context.Context, offset, limit uint64) (AnomalyPage, error) {
	anomalies, total, err := svc.stores.Anomalies.ListAnomalies(ctx, offset, limit)
	if err != nil {
		return AnomalyPage{}, err
	}

	return AnomalyPage{
		Offset:    offset,
		Limit:     limit,
		Total:     total,
		Anomalies: anomalies,
	}, nil
}

func (svc *service) GetAction(ctx context.Context, id string) (remediation.Action, error) {
	return svc.stores.Actions.GetAction(ctx, id)
}

func (svc *service) ListActions(ctx context.Context, offset, limit uint64) (ActionPage, error) {
	actions, total, err := svc.stores.Actions.ListActions(ctx, offset, limit)
	if err != nil {
		return ActionPage{}, err
	}

	return ActionPage{
		Offset:  offset,
		Limit:   limit,
		Total:   total,
		Actions: actions,
	}, nil
}

func (svc *service) CancelAction(ctx context.Context, id string) error {
	return svc.dispatcher.Cancel(ctx, id)
}

func (svc *service) ListRules(ctx context.Context) ([]rules.Rule, error) {
	return svc.rules.List(), nil
}

func (svc *service) EnableRule(ctx context.Context, id string) error {
	return svc.rules.SetEnabled(id, true)
}

func (svc *service) DisableRule(ctx context.Context, id string) error {
	return svc.rules.SetEnabled(id, false)
}

// ReloadPolicy applies a validated policy document wholesale. The rule set
// swap rejects the whole document on any invalid rule, leaving every
// component on the previous policy.
func (svc *service) ReloadPolicy(ctx context.Context, p *policy.Policy) error {
	if p == nil {
		return pkgerrors.ErrInvalidData
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := svc.rules.Replace(p.RuleSet()); err != nil {
		return err
	}

	svc.detector.SetConfig(p.Anomaly)
	svc.accountant.SetCeilings(p.Privacy.Ceilings)
	svc.rules.SetConfig(rules.EngineConfig{
		OutcomeWindow:    p.Engine.OutcomeWindow,
		DisableThreshold: p.Engine.DisableThreshold,
	})
	svc.policy.Store(p)

	svc.logger.InfoContext(ctx, "policy applied",
		slog.Int("rules", len(p.Rules)),
		slog.Int("cohorts", len(p.Privacy.Ceilings)))

	return nil
}

func (svc *service) State() State {
	return State(svc.state.Load())
}

// Run drives the orchestrator until the context ends: the federation round
// clock, the ingest worker pool and the periodic evaluation cycle.
func (svc *service) Run(ctx context.Context) error {
	if err := svc.resume(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svc.coordinator.Run(ctx)
	})

	for i := 0; i < ingestWorkers; i++ {
		g.Go(func() error {
			return svc.ingestLoop(ctx)
		})
	}

	g.Go(func() error {
		return svc.cycleLoop(ctx)
	})

	g.Go(func() error {
		return svc.expiryLoop(ctx)
	})

	err := g.Wait()
	svc.dispatcher.Wait()

	return err
}

func (svc *service) resume(ctx context.Context) error {
	if err := svc.accountant.Resume(ctx); err != nil {
		return err
	}
	if err := svc.detector.Resume(ctx); err != nil {
		return err
	}

	return svc.coordinator.Resume(ctx)
}

func (svc *service) ingestLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample := <-svc.samples:
			svc.state.Store(int32(StateIngesting))
			svc.observe(ctx, sample)
			svc.state.Store(int32(StateIdle))
		}
	}
}

func (svc *service) observe(ctx context.Context, sample telemetry.Sample) {
	svc.buffer.Add(sample)

	_, record, err := svc.detector.Observe(ctx, sample)
	if err != nil {
		svc.logger.Warn("failed to classify sample",
			slog.String("metric", sample.Metric),
			slog.String("segment", sample.Segment),
			slog.Any("error", err))

		return
	}
	if record != nil {
		svc.dispatchAnomaly(ctx, *record)
	}
}

func (svc *service) cycleLoop(ctx context.Context) error {
	ticker := time.NewTicker(svc.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			svc.evaluateCycle(ctx)
		}
	}
}

func (svc *service) expiryLoop(ctx context.Context) error {
	ticker := time.NewTicker(expirySweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			svc.detector.ResolveExpired(ctx, anomalyMaxAge)
		}
	}
}

func (svc *service) evaluateCycle(ctx context.Context) {
	svc.state.Store(int32(StateEvaluating))
	snap := svc.buffer.Snapshot()
	matches := svc.rules.Evaluate(snap)

	svc.state.Store(int32(StateDispatching))
	for _, match := range matches {
		svc.dispatchMatch(ctx, match)
	}
	svc.state.Store(int32(StateIdle))
}

func (svc *service) dispatchMatch(ctx context.Context, match rules.Match) {
	pol := svc.policy.Load()

	action := remediation.Action{
		Target:    match.Action.Target,
		Operation: match.Action.Operation,
		Params:    match.Action.Params,
		Watch:     pol.WatchFor(match.Rule.ID),
		Trigger: remediation.Trigger{
			Kind: remediation.TriggerRule,
			ID:   match.Rule.ID,
		},
	}

	if _, err := svc.dispatcher.Dispatch(ctx, action); err != nil {
		if errors.Is(err, remediation.ErrTargetBusy) {
			svc.logger.Debug("target busy, skipping rule action",
				slog.String("rule", match.Rule.ID),
				slog.String("target", action.Target))

			return
		}
		svc.logger.Warn("failed to dispatch rule action",
			slog.String("rule", match.Rule.ID),
			slog.Any("error", err))
	}
}

func (svc *service) dispatchAnomaly(ctx context.Context, record anomaly.Anomaly) {
	pol := svc.policy.Load()
	sa, ok := pol.ActionFor(record.Severity)
	if !ok {
		return
	}

	action := remediation.Action{
		Target:    sa.Target,
		Operation: sa.Operation,
		Params:    sa.Params,
		Watch:     sa.Watch.ToWatch(),
		Trigger: remediation.Trigger{
			Kind: remediation.TriggerAnomaly,
			ID:   record.ID,
		},
	}

	if _, err := svc.dispatcher.Dispatch(ctx, action); err != nil {
		if errors.Is(err, remediation.ErrTargetBusy) {
			svc.logger.Debug("target busy, skipping anomaly action",
				slog.String("anomaly", record.ID),
				slog.String("target", action.Target))

			return
		}
		svc.logger.Warn("failed to dispatch anomaly action",
			slog.String("anomaly", record.ID),
			slog.Any("error", err))
	}
}

// actionSettled feeds terminal action outcomes back: rule-triggered actions
// update the rule's outcome counters, anomaly-triggered applies resolve the
// originating anomaly.
func (svc *service) actionSettled(action remediation.Action, ok bool) {
	ctx := context.Background()

	switch action.Trigger.Kind {
	case remediation.TriggerRule:
		svc.rules.ReportOutcome(action.Trigger.ID, ok)
	case remediation.TriggerAnomaly:
		if !ok {
			return
		}
		if err := svc.detector.Resolve(ctx, action.Trigger.ID); err != nil {
			svc.logger.Warn("failed to resolve anomaly",
				slog.String("anomaly", action.Trigger.ID),
				slog.Any("error", err))
		}
	}
}

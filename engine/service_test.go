package engine_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/autonomiq/kaizen/anomaly"
	"github.com/autonomiq/kaizen/engine"
	"github.com/autonomiq/kaizen/federation"
	"github.com/autonomiq/kaizen/pkg/mqtt/mocks"
	"github.com/autonomiq/kaizen/pkg/storage"
	"github.com/autonomiq/kaizen/policy"
	"github.com/autonomiq/kaizen/privacy"
	"github.com/autonomiq/kaizen/remediation"
	"github.com/autonomiq/kaizen/rules"
	"github.com/autonomiq/kaizen/telemetry"
)

const testPolicy = `
anomaly:
  alpha: 0.2
  warmup: 3
  cooldown: 1m
  thresholds:
    low: 1
    medium: 2
    high: 3
    critical: 4
privacy:
  ceilings:
    eu-west: 10
rules:
  - id: scale-up
    priority: 10
    enabled: true
    condition:
      kind: threshold
      series:
        metric: latency_p99
        segment: eu-west
      op: gt
      value: 400
    action:
      target: web
      operation: scale
      params:
        replicas: "4"
    watch:
      metric: latency_p99
      segment: eu-west
      tolerance: 0.5
      higher_is_worse: true
      window: 50ms
severity_actions:
  - severity: critical
    target: web
    operation: restart
engine:
  outcome_window: 10
  disable_threshold: 0.5
`

type nopActuator struct {
	mu      sync.Mutex
	applied []remediation.Action
}

func (a *nopActuator) Capture(_ context.Context, target string) (remediation.Snapshot, error) {
	return remediation.Snapshot{
		Target:  target,
		State:   map[string]string{"replicas": "3"},
		TakenAt: time.Now(),
	}, nil
}

func (a *nopActuator) Apply(_ context.Context, action remediation.Action) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, action)

	return nil
}

func (a *nopActuator) Rollback(_ context.Context, _ remediation.Snapshot) error {
	return nil
}

func (a *nopActuator) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.applied)
}

type testEngine struct {
	svc         engine.Service
	coordinator *federation.Coordinator
	stores      *storage.Stores
	actuator    *nopActuator
	buffer      *engine.Buffer
	pubsub      *mocks.PubSub
}

func newTestEngine(t *testing.T, quorum int, cfg engine.Config) *testEngine {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stores, err := storage.NewStores(storage.Config{Type: "memory"})
	require.NoError(t, err)

	pol, err := policy.Parse([]byte(testPolicy))
	require.NoError(t, err)

	accountant := privacy.NewAccountant(stores.Budgets, pol.Privacy.Ceilings, logger)
	coordinator := federation.NewCoordinator(federation.RoundConfig{
		Quorum:   quorum,
		Deadline: time.Minute,
	}, federation.NewFedAvgAggregator(1), stores.Models, stores.Participants, accountant, logger)

	detector := anomaly.NewDetector(pol.Anomaly, stores.Baselines, stores.Anomalies, logger)

	ruleEngine := rules.NewEngine(rules.EngineConfig{
		OutcomeWindow:    pol.Engine.OutcomeWindow,
		DisableThreshold: pol.Engine.DisableThreshold,
	}, logger)
	require.NoError(t, ruleEngine.Replace(pol.RuleSet()))

	buffer := engine.NewBuffer(time.Minute, 0)
	actuator := &nopActuator{}
	dispatcher := remediation.NewDispatcher(remediation.Config{
		DefaultWindow: 20 * time.Millisecond,
		PollInterval:  5 * time.Millisecond,
	}, actuator, buffer, stores.Actions, logger)

	pubsub := new(mocks.PubSub)

	svc := engine.NewService(cfg, coordinator, accountant, detector, ruleEngine, dispatcher, stores, pubsub, pol, buffer, logger)

	return &testEngine{
		svc:         svc,
		coordinator: coordinator,
		stores:      stores,
		actuator:    actuator,
		buffer:      buffer,
		pubsub:      pubsub,
	}
}

func TestSubmitUpdateAndCloseRound(t *testing.T) {
	te := newTestEngine(t, 5, engine.Config{Domain: "test"})
	ctx := context.Background()
	require.NoError(t, te.coordinator.Resume(ctx))

	status, err := te.svc.RoundStatus(ctx)
	require.NoError(t, err)

	err = te.svc.SubmitUpdate(ctx, federation.ModelUpdate{
		ParticipantID: "edge-1",
		Cohort:        "eu-west",
		Round:         status.Round,
		Delta:         []float64{1, 2},
		Weight:        10,
		Epsilon:       0.5,
	})
	require.NoError(t, err)

	model, err := te.svc.CloseRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), model.Version)
	assert.Equal(t, status.Round, model.Round)
	assert.Equal(t, 1, model.Participants)

	got, err := te.svc.GetModel(ctx, model.Version)
	require.NoError(t, err)
	assert.Equal(t, model.Parameters, got.Parameters)

	// The follow-up round has no updates to aggregate.
	_, err = te.svc.CloseRound(ctx)
	assert.ErrorIs(t, err, federation.ErrNoUpdates)
}

func TestSubmitUpdateRejections(t *testing.T) {
	te := newTestEngine(t, 5, engine.Config{Domain: "test"})
	ctx := context.Background()
	require.NoError(t, te.coordinator.Resume(ctx))

	status, err := te.svc.RoundStatus(ctx)
	require.NoError(t, err)

	valid := federation.ModelUpdate{
		ParticipantID: "edge-1",
		Cohort:        "eu-west",
		Round:         status.Round,
		Delta:         []float64{1},
		Weight:        1,
		Epsilon:       0.5,
	}
	require.NoError(t, te.svc.SubmitUpdate(ctx, valid))

	cases := []struct {
		desc   string
		update federation.ModelUpdate
		err    error
	}{
		{
			desc: "stale round",
			update: federation.ModelUpdate{
				ParticipantID: "edge-2",
				Cohort:        "eu-west",
				Round:         status.Round + 7,
				Delta:         []float64{1},
				Weight:        1,
				Epsilon:       0.5,
			},
			err: federation.ErrStaleRound,
		},
		{
			desc:   "duplicate participant",
			update: valid,
			err:    federation.ErrDuplicateUpdate,
		},
		{
			desc: "empty delta",
			update: federation.ModelUpdate{
				ParticipantID: "edge-3",
				Cohort:        "eu-west",
				Round:         status.Round,
				Weight:        1,
				Epsilon:       0.5,
			},
			err: federation.ErrMalformedUpdate,
		},
		{
			desc: "budget exceeded",
			update: federation.ModelUpdate{
				ParticipantID: "edge-4",
				Cohort:        "eu-west",
				Round:         status.Round,
				Delta:         []float64{1},
				Weight:        1,
				Epsilon:       100,
			},
			err: federation.ErrBudgetExceeded,
		},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			err := te.svc.SubmitUpdate(ctx, tc.update)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestIngestDropsOldestWhenFull(t *testing.T) {
	te := newTestEngine(t, 1, engine.Config{Domain: "test", BufferSize: 2})
	ctx := context.Background()

	// No workers are draining the channel, so the third sample must evict
	// the first without blocking.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			err := te.svc.Ingest(ctx, telemetry.Sample{
				Metric:    "latency_p99",
				Segment:   "eu-west",
				Value:     float64(i),
				Timestamp: time.Now(),
			})
			assert.NoError(t, err)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ingest blocked on a full buffer")
	}
}

func TestIngestRejectsInvalidSample(t *testing.T) {
	te := newTestEngine(t, 1, engine.Config{Domain: "test"})

	err := te.svc.Ingest(context.Background(), telemetry.Sample{Value: 1})
	assert.Error(t, err)
}

func TestRuleAdministration(t *testing.T) {
	te := newTestEngine(t, 1, engine.Config{Domain: "test"})
	ctx := context.Background()

	res, err := te.svc.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.True(t, res[0].Enabled)

	require.NoError(t, te.svc.DisableRule(ctx, "scale-up"))
	res, err = te.svc.ListRules(ctx)
	require.NoError(t, err)
	assert.False(t, res[0].Enabled)

	require.NoError(t, te.svc.EnableRule(ctx, "scale-up"))

	err = te.svc.DisableRule(ctx, "no-such-rule")
	assert.Error(t, err)
}

func TestReloadPolicyRejectsInvalid(t *testing.T) {
	te := newTestEngine(t, 1, engine.Config{Domain: "test"})
	ctx := context.Background()

	err := te.svc.ReloadPolicy(ctx, nil)
	assert.Error(t, err)

	bad, err := policy.Parse([]byte(testPolicy))
	require.NoError(t, err)
	bad.Anomaly.Thresholds.Low = 5 // descends below medium

	err = te.svc.ReloadPolicy(ctx, bad)
	assert.Error(t, err)

	// The previous rule set must survive the rejected reload.
	res, err := te.svc.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestRunEvaluatesRulesAndDispatches(t *testing.T) {
	te := newTestEngine(t, 1, engine.Config{
		Domain: "test",
		Tick:   20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() {
		runDone <- te.svc.Run(ctx)
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, te.svc.Ingest(ctx, telemetry.Sample{
			Metric:    "latency_p99",
			Segment:   "eu-west",
			Value:     450,
			Timestamp: time.Now(),
		}))
	}

	require.Eventually(t, func() bool {
		return te.actuator.count() > 0
	}, 2*time.Second, 10*time.Millisecond, "rule never dispatched an action")

	var action remediation.Action
	require.Eventually(t, func() bool {
		page, err := te.svc.ListActions(ctx, 0, 10)
		if err != nil {
			return false
		}
		for _, a := range page.Actions {
			if a.Status == remediation.StatusApplied {
				action = a

				return true
			}
		}

		return false
	}, 2*time.Second, 10*time.Millisecond, "action never settled")

	assert.Equal(t, "web", action.Target)
	assert.Equal(t, "scale", action.Operation)
	assert.Equal(t, remediation.TriggerRule, action.Trigger.Kind)
	assert.Equal(t, "scale-up", action.Trigger.ID)

	cancel()
	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestSubscribeRegistersTopics(t *testing.T) {
	te := newTestEngine(t, 1, engine.Config{Domain: "prod"})
	ctx := context.Background()

	te.pubsub.On("Subscribe", ctx, "kaizen/prod/telemetry", mock.Anything).Return(nil)
	te.pubsub.On("SubscribeRaw", ctx, "kaizen/prod/federation/updates", mock.Anything).Return(nil)
	te.pubsub.On("SubscribeRaw", ctx, "kaizen/prod/federation/updates/cbor", mock.Anything).Return(nil)

	require.NoError(t, te.svc.Subscribe(ctx))
	te.pubsub.AssertExpectations(t)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", engine.StateIdle.String())
	assert.Equal(t, "ingesting", engine.StateIngesting.String())
	assert.Equal(t, "evaluating", engine.StateEvaluating.String())
	assert.Equal(t, "dispatching", engine.StateDispatching.String())
}

package remediation_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/autonomiq/kaizen/remediation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeActuator keeps target state in memory so rollback fidelity can be
// checked byte for byte.
type fakeActuator struct {
	mu           sync.Mutex
	state        map[string]map[string]string
	failApply    bool
	failRollback bool
	applied      int
}

func newFakeActuator() *fakeActuator {
	return &fakeActuator{state: map[string]map[string]string{
		"web": {"replicas": "3", "cpu_limit": "500m"},
	}}
}

func (a *fakeActuator) Capture(_ context.Context, target string) (remediation.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	state := make(map[string]string, len(a.state[target]))
	for k, v := range a.state[target] {
		state[k] = v
	}

	return remediation.Snapshot{Target: target, State: state, TakenAt: time.Now()}, nil
}

func (a *fakeActuator) Apply(_ context.Context, action remediation.Action) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failApply {
		return errors.New("control plane unreachable")
	}
	for k, v := range action.Params {
		a.state[action.Target][k] = v
	}
	a.applied++

	return nil
}

func (a *fakeActuator) Rollback(_ context.Context, snapshot remediation.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failRollback {
		return errors.New("rollback rejected")
	}
	state := make(map[string]string, len(snapshot.State))
	for k, v := range snapshot.State {
		state[k] = v
	}
	a.state[snapshot.Target] = state

	return nil
}

func (a *fakeActuator) currentState(target string) map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.state[target]))
	for k, v := range a.state[target] {
		out[k] = v
	}

	return out
}

type fakeReader struct {
	mu     sync.Mutex
	values map[string]float64
}

func newFakeReader() *fakeReader {
	return &fakeReader{values: make(map[string]float64)}
}

func (r *fakeReader) set(metric, segment string, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[metric+"/"+segment] = v
}

func (r *fakeReader) Latest(metric, segment string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[metric+"/"+segment]

	return v, ok
}

type fakeActionStore struct {
	mu      sync.Mutex
	actions map[string]remediation.Action
}

func newFakeActionStore() *fakeActionStore {
	return &fakeActionStore{actions: make(map[string]remediation.Action)}
}

func (s *fakeActionStore) SaveAction(_ context.Context, a remediation.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[a.ID] = a

	return nil
}

func (s *fakeActionStore) GetAction(_ context.Context, id string) (remediation.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	if !ok {
		return remediation.Action{}, remediation.ErrValidation
	}

	return a, nil
}

func (s *fakeActionStore) ListActions(_ context.Context, _, _ uint64) ([]remediation.Action, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]remediation.Action, 0, len(s.actions))
	for _, a := range s.actions {
		out = append(out, a)
	}

	return out, uint64(len(out)), nil
}

func testAction(watch remediation.Watch) remediation.Action {
	return remediation.Action{
		Target:    "web",
		Operation: "scale-up",
		Params:    map[string]string{"replicas": "5"},
		Watch:     watch,
		Trigger:   remediation.Trigger{Kind: remediation.TriggerRule, ID: "r1"},
	}
}

func fastConfig() remediation.Config {
	return remediation.Config{
		DefaultWindow: 100 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
	}
}

func TestDispatcher_AppliesAndSettles(t *testing.T) {
	actuator := newFakeActuator()
	store := newFakeActionStore()
	d := remediation.NewDispatcher(fastConfig(), actuator, newFakeReader(), store, slog.Default())

	var outcomes []bool
	var mu sync.Mutex
	d.SetOutcome(func(_ remediation.Action, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, ok)
	})

	action, err := d.Dispatch(context.Background(), testAction(remediation.Watch{}))
	require.NoError(t, err)
	assert.Equal(t, remediation.StatusPending, action.Status)
	assert.Equal(t, "3", action.PreState.State["replicas"])

	d.Wait()

	settled, err := store.GetAction(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, remediation.StatusApplied, settled.Status)
	assert.Equal(t, "5", actuator.currentState("web")["replicas"])
	assert.False(t, d.Busy("web"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0])
}

func TestDispatcher_BusyTargetRejected(t *testing.T) {
	actuator := newFakeActuator()
	d := remediation.NewDispatcher(fastConfig(), actuator, newFakeReader(), newFakeActionStore(), slog.Default())
	d.SetOutcome(func(remediation.Action, bool) {})

	var applied, busy int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Dispatch(context.Background(), testAction(remediation.Watch{}))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				applied++
			case errors.Is(err, remediation.ErrTargetBusy):
				busy++
			}
		}()
	}
	wg.Wait()
	d.Wait()

	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, busy)
	assert.Equal(t, 1, actuator.applied)
}

func TestDispatcher_RollbackOnRegression(t *testing.T) {
	actuator := newFakeActuator()
	store := newFakeActionStore()
	reader := newFakeReader()
	reader.set("latency", "web", 100)
	d := remediation.NewDispatcher(fastConfig(), actuator, reader, store, slog.Default())

	done := make(chan bool, 1)
	d.SetOutcome(func(_ remediation.Action, ok bool) { done <- ok })

	before := actuator.currentState("web")

	watch := remediation.Watch{
		Metric:        "latency",
		Segment:       "web",
		Tolerance:     0.2,
		HigherIsWorse: true,
		Window:        time.Second,
	}
	action, err := d.Dispatch(context.Background(), testAction(watch))
	require.NoError(t, err)

	// The watched metric regresses well past tolerance.
	reader.set("latency", "web", 200)

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("observation watch never settled")
	}
	d.Wait()

	settled, err := store.GetAction(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, remediation.StatusRolledBack, settled.Status)

	// Rollback must restore the pre-action state exactly.
	assert.Equal(t, before, actuator.currentState("web"))
}

func TestDispatcher_RollbackFailureEscalates(t *testing.T) {
	actuator := newFakeActuator()
	actuator.failRollback = true
	store := newFakeActionStore()
	reader := newFakeReader()
	reader.set("latency", "web", 100)
	d := remediation.NewDispatcher(fastConfig(), actuator, reader, store, slog.Default())

	done := make(chan struct{})
	d.SetOutcome(func(remediation.Action, bool) { close(done) })

	watch := remediation.Watch{
		Metric:        "latency",
		Segment:       "web",
		Tolerance:     0.2,
		HigherIsWorse: true,
		Window:        time.Second,
	}
	action, err := d.Dispatch(context.Background(), testAction(watch))
	require.NoError(t, err)

	reader.set("latency", "web", 500)
	<-done
	d.Wait()

	settled, err := store.GetAction(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, remediation.StatusFailed, settled.Status)
	assert.Contains(t, settled.Error, "rollback failed")
}

func TestDispatcher_ApplyFailure(t *testing.T) {
	actuator := newFakeActuator()
	actuator.failApply = true
	d := remediation.NewDispatcher(fastConfig(), actuator, newFakeReader(), newFakeActionStore(), slog.Default())
	d.SetOutcome(func(remediation.Action, bool) {})

	action, err := d.Dispatch(context.Background(), testAction(remediation.Watch{}))
	require.Error(t, err)
	assert.Equal(t, remediation.StatusFailed, action.Status)
	assert.False(t, d.Busy("web"))
}

func TestDispatcher_CancelBeforeApply(t *testing.T) {
	cfg := fastConfig()
	cfg.ApplyDelay = 200 * time.Millisecond
	actuator := newFakeActuator()
	store := newFakeActionStore()
	d := remediation.NewDispatcher(cfg, actuator, newFakeReader(), store, slog.Default())
	d.SetOutcome(func(remediation.Action, bool) {})

	results := make(chan remediation.Action, 1)
	go func() {
		action, _ := d.Dispatch(context.Background(), testAction(remediation.Watch{}))
		results <- action
	}()

	// Let the dispatch claim the target and persist the pending action,
	// then cancel inside the grace period.
	require.Eventually(t, func() bool { return d.Busy("web") }, time.Second, 5*time.Millisecond)
	actions, _, err := store.ListActions(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.NoError(t, d.Cancel(context.Background(), actions[0].ID))

	action := <-results
	assert.Equal(t, remediation.StatusCanceled, action.Status)
	assert.Zero(t, actuator.applied)
	assert.False(t, d.Busy("web"))
}

func TestDispatcher_CancelAppliedRefused(t *testing.T) {
	actuator := newFakeActuator()
	store := newFakeActionStore()
	d := remediation.NewDispatcher(fastConfig(), actuator, newFakeReader(), store, slog.Default())
	d.SetOutcome(func(remediation.Action, bool) {})

	action, err := d.Dispatch(context.Background(), testAction(remediation.Watch{}))
	require.NoError(t, err)
	d.Wait()

	assert.ErrorIs(t, d.Cancel(context.Background(), action.ID), remediation.ErrNotCancelable)
}

func TestDispatcher_ValidationRejected(t *testing.T) {
	d := remediation.NewDispatcher(fastConfig(), newFakeActuator(), newFakeReader(), newFakeActionStore(), slog.Default())

	_, err := d.Dispatch(context.Background(), remediation.Action{Target: "", Operation: "scale-up"})
	assert.ErrorIs(t, err, remediation.ErrValidation)
}

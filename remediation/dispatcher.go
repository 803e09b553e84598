package remediation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/google/uuid"
)

// Actuator is the target system's control plane. Apply and Rollback must
// be idempotent on retry.
type Actuator interface {
	Capture(ctx context.Context, target string) (Snapshot, error)
	Apply(ctx context.Context, action Action) error
	Rollback(ctx context.Context, snapshot Snapshot) error
}

// MetricReader exposes the latest value of a watched metric during the
// post-apply observation window.
type MetricReader interface {
	Latest(metric, segment string) (float64, bool)
}

// ActionStore persists action history for operator queries and restarts.
type ActionStore interface {
	SaveAction(ctx context.Context, a Action) error
	GetAction(ctx context.Context, id string) (Action, error)
	ListActions(ctx context.Context, offset, limit uint64) ([]Action, uint64, error)
}

// OutcomeFunc is invoked exactly once per dispatched action when its
// terminal status is known. ok is true only for StatusApplied.
type OutcomeFunc func(action Action, ok bool)

// Config tunes the observation window defaults. ApplyDelay is the grace
// period between the pre-state capture and the apply step during which a
// cooperative Cancel can still land.
type Config struct {
	DefaultWindow time.Duration
	PollInterval  time.Duration
	ApplyDelay    time.Duration
}

// Dispatcher serializes corrective actions per target system. The busy
// claim per target is the engine's principal mutual exclusion: a second
// dispatch for a busy target is rejected outright. After applying, the
// dispatcher watches the configured metric for the observation window and
// rolls the action back if it regresses beyond tolerance; window expiry
// without regression settles the action as applied.
type Dispatcher struct {
	cfg      Config
	actuator Actuator
	reader   MetricReader
	store    ActionStore
	logger   *slog.Logger
	namegen  namegenerator.NameGenerator

	mu       sync.Mutex
	busy     map[string]string
	canceled map[string]bool
	outcome  OutcomeFunc
	wg       sync.WaitGroup
}

func NewDispatcher(cfg Config, actuator Actuator, reader MetricReader, store ActionStore, logger *slog.Logger) *Dispatcher {
	if cfg.DefaultWindow <= 0 {
		cfg.DefaultWindow = 2 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}

	return &Dispatcher{
		cfg:      cfg,
		actuator: actuator,
		reader:   reader,
		store:    store,
		logger:   logger,
		namegen:  namegenerator.NewGenerator(),
		busy:     make(map[string]string),
		canceled: make(map[string]bool),
	}
}

// SetOutcome registers the terminal-status callback. Must be called before
// the first dispatch.
func (d *Dispatcher) SetOutcome(fn OutcomeFunc) {
	d.outcome = fn
}

// Dispatch validates, claims the target, captures the pre-state snapshot
// and applies the action. The observation watch runs asynchronously; the
// returned action is in StatusPending until the watch settles it.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action) (Action, error) {
	if action.Target == "" || action.Operation == "" {
		return Action{}, ErrValidation
	}

	action.ID = uuid.NewString()
	action.Name = d.namegen.Generate()
	action.Status = StatusPending
	action.CreatedAt = time.Now()
	if action.Watch.Window <= 0 {
		action.Watch.Window = d.cfg.DefaultWindow
	}

	// Atomic claim: exactly one in-flight action per target.
	d.mu.Lock()
	if _, taken := d.busy[action.Target]; taken {
		d.mu.Unlock()

		return Action{}, ErrTargetBusy
	}
	d.busy[action.Target] = action.ID
	d.mu.Unlock()

	if err := d.store.SaveAction(ctx, action); err != nil {
		d.release(action)

		return Action{}, err
	}

	snapshot, err := d.actuator.Capture(ctx, action.Target)
	if err != nil {
		action.Status = StatusFailed
		action.Error = err.Error()
		d.settle(ctx, action, false)

		return action, fmt.Errorf("pre-state capture failed: %w", err)
	}
	action.PreState = snapshot

	if d.cfg.ApplyDelay > 0 {
		select {
		case <-ctx.Done():
			action.Status = StatusCanceled
			d.settle(context.WithoutCancel(ctx), action, false)

			return action, ctx.Err()
		case <-time.After(d.cfg.ApplyDelay):
		}
	}

	// Cooperative cancellation point: once we apply, only rollback undoes.
	if d.isCanceled(action.ID) {
		action.Status = StatusCanceled
		d.settle(ctx, action, false)

		return action, nil
	}

	reference, hasReference := d.watchReference(action)

	if err := d.actuator.Apply(ctx, action); err != nil {
		action.Status = StatusFailed
		action.Error = err.Error()
		d.settle(ctx, action, false)

		return action, fmt.Errorf("apply failed: %w", err)
	}
	action.AppliedAt = time.Now()
	if err := d.store.SaveAction(ctx, action); err != nil {
		d.logger.Warn("failed to persist action", slog.String("id", action.ID), slog.Any("error", err))
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.observe(ctx, action, reference, hasReference)
	}()

	return action, nil
}

// Cancel requests cooperative cancellation of a pending action. Applied
// actions can only be rolled back, not canceled.
func (d *Dispatcher) Cancel(ctx context.Context, id string) error {
	action, err := d.store.GetAction(ctx, id)
	if err != nil {
		return err
	}
	if action.Status != StatusPending {
		return ErrNotCancelable
	}
	if !action.AppliedAt.IsZero() {
		return ErrNotCancelable
	}

	d.mu.Lock()
	d.canceled[id] = true
	d.mu.Unlock()

	return nil
}

// Busy reports whether a target currently has an in-flight action.
func (d *Dispatcher) Busy(target string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, taken := d.busy[target]

	return taken
}

// Wait blocks until all observation watches have settled. Test and
// shutdown hook.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// observe monitors the watched metric until regression or window expiry.
func (d *Dispatcher) observe(ctx context.Context, action Action, reference float64, hasReference bool) {
	deadline := time.NewTimer(action.Watch.Window)
	defer deadline.Stop()
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Engine shutdown settles optimistically; regression was not
			// observed up to this point.
			action.Status = StatusApplied
			d.settle(context.WithoutCancel(ctx), action, true)

			return
		case <-deadline.C:
			action.Status = StatusApplied
			d.settle(ctx, action, true)

			return
		case <-ticker.C:
			if !hasReference || action.Watch.Metric == "" {
				continue
			}
			current, ok := d.reader.Latest(action.Watch.Metric, action.Watch.Segment)
			if !ok {
				continue
			}
			if regressed(action.Watch, reference, current) {
				d.rollback(ctx, action, reference, current)

				return
			}
		}
	}
}

func (d *Dispatcher) rollback(ctx context.Context, action Action, reference, current float64) {
	d.logger.Warn("regression detected, rolling back",
		slog.String("action", action.ID),
		slog.String("target", action.Target),
		slog.Float64("reference", reference),
		slog.Float64("current", current))

	if err := d.actuator.Rollback(ctx, action.PreState); err != nil {
		// Non-recoverable locally: surface for manual intervention.
		action.Status = StatusFailed
		action.Error = fmt.Errorf("%w: %w", ErrRollbackFailed, err).Error()
		d.settle(ctx, action, false)
		d.logger.Error("rollback failed, manual intervention required",
			slog.String("action", action.ID),
			slog.String("target", action.Target),
			slog.Any("error", err))

		return
	}

	action.Status = StatusRolledBack
	d.settle(ctx, action, false)
}

// settle writes the terminal status, releases the target claim and fires
// the outcome callback.
func (d *Dispatcher) settle(ctx context.Context, action Action, ok bool) {
	action.DoneAt = time.Now()
	if err := d.store.SaveAction(ctx, action); err != nil {
		d.logger.Warn("failed to persist action outcome", slog.String("id", action.ID), slog.Any("error", err))
	}
	d.release(action)

	if d.outcome != nil {
		d.outcome(action, ok)
	}

	d.logger.Info("action settled",
		slog.String("id", action.ID),
		slog.String("target", action.Target),
		slog.String("status", string(action.Status)))
}

func (d *Dispatcher) release(action Action) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy[action.Target] == action.ID {
		delete(d.busy, action.Target)
	}
	delete(d.canceled, action.ID)
}

func (d *Dispatcher) isCanceled(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.canceled[id]
}

func (d *Dispatcher) watchReference(action Action) (float64, bool) {
	if action.Watch.Metric == "" || d.reader == nil {
		return 0, false
	}

	return d.reader.Latest(action.Watch.Metric, action.Watch.Segment)
}

func regressed(w Watch, reference, current float64) bool {
	if w.Tolerance <= 0 {
		return false
	}

	if w.HigherIsWorse {
		return current > reference*(1+w.Tolerance)
	}

	return current < reference*(1-w.Tolerance)
}

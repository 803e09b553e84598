package federation

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0x6flab/namegenerator"
)

// ModelStore persists published model versions.
type ModelStore interface {
	SaveModel(ctx context.Context, m GlobalModel) error
	GetModel(ctx context.Context, version uint64) (GlobalModel, error)
	LatestModel(ctx context.Context) (GlobalModel, error)
	ListModels(ctx context.Context, offset, limit uint64) ([]GlobalModel, uint64, error)
}

// ParticipantStore persists the participant registry.
type ParticipantStore interface {
	SaveParticipant(ctx context.Context, p Participant) error
	GetParticipant(ctx context.Context, id string) (Participant, error)
	ListParticipants(ctx context.Context, offset, limit uint64) ([]Participant, uint64, error)
}

// BudgetReserver is the privacy accountant boundary. Reserve either commits
// the full epsilon cost for the cohort or fails without side effect.
type BudgetReserver interface {
	Reserve(ctx context.Context, cohort string, epsilon float64) error
}

// RoundConfig controls round lifecycle. A round closes on quorum or on
// deadline, whichever comes first.
type RoundConfig struct {
	Quorum          int
	Expected        int
	Deadline        time.Duration
	MaxMissedRounds int
}

// Coordinator owns aggregation rounds for one model namespace. Submissions
// within a round are accumulated under a single mutex so no update is
// lost; the current model pointer is swapped atomically so readers never
// observe a partially aggregated model. Rounds never overlap.
type Coordinator struct {
	mu           sync.Mutex
	cfg          RoundConfig
	agg          Aggregator
	models       ModelStore
	participants ParticipantStore
	budget       BudgetReserver
	logger       *slog.Logger
	namegen      namegenerator.NameGenerator

	current atomic.Pointer[GlobalModel]
	version atomic.Uint64
	round   *roundState
	closeCh chan uint64
}

func NewCoordinator(cfg RoundConfig, agg Aggregator, models ModelStore, participants ParticipantStore, budget BudgetReserver, logger *slog.Logger) *Coordinator {
	if cfg.Quorum <= 0 {
		cfg.Quorum = 1
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 5 * time.Minute
	}
	if cfg.MaxMissedRounds <= 0 {
		cfg.MaxMissedRounds = 3
	}

	return &Coordinator{
		cfg:          cfg,
		agg:          agg,
		models:       models,
		participants: participants,
		budget:       budget,
		logger:       logger,
		namegen:      namegenerator.NewGenerator(),
		closeCh:      make(chan uint64, 1),
	}
}

// Resume restores the last committed model version from storage and opens
// the next round. Called once before Run.
func (c *Coordinator) Resume(ctx context.Context) error {
	latest, err := c.models.LatestModel(ctx)
	if err == nil {
		c.current.Store(&latest)
		c.version.Store(latest.Version)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.openRoundLocked(c.currentRound() + 1)

	return nil
}

// Run watches the active round's deadline and closes it when it elapses.
// Quorum closes are signalled from Submit through closeCh.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case round := <-c.closeCh:
			if _, _, err := c.CloseRound(ctx, round); err != nil {
				c.logger.Warn("quorum close failed", slog.Uint64("round", round), slog.Any("error", err))
			}
		case <-ticker.C:
			c.mu.Lock()
			expired := c.round != nil && !c.round.closed && time.Now().After(c.round.deadline)
			var round uint64
			if expired {
				round = c.round.round
			}
			c.mu.Unlock()
			if expired {
				if _, _, err := c.CloseRound(ctx, round); err != nil {
					c.logger.Warn("deadline close failed", slog.Uint64("round", round), slog.Any("error", err))
				}
			}
		}
	}
}

// Submit validates and buffers one participant update for the active
// round. Validation order: round freshness, participant trust, payload
// shape, then privacy budget; budget reservation happens last so a
// rejected update never consumes epsilon.
func (c *Coordinator) Submit(ctx context.Context, update ModelUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round == nil || c.round.closed || update.Round != c.round.round {
		return ErrStaleRound
	}
	if update.ParticipantID == "" {
		return ErrMalformedUpdate
	}
	if c.round.seen[update.ParticipantID] {
		return ErrDuplicateUpdate
	}

	participant, err := c.admitLocked(ctx, update)
	if err != nil {
		return err
	}

	if err := validateDelta(update, c.current.Load()); err != nil {
		return err
	}

	if err := c.budget.Reserve(ctx, update.Cohort, update.Epsilon); err != nil {
		return ErrBudgetExceeded
	}

	update.SubmittedAt = time.Now()
	c.round.updates = append(c.round.updates, update)
	c.round.seen[update.ParticipantID] = true

	participant.LastRound = update.Round
	participant.MissedRounds = 0
	if err := c.participants.SaveParticipant(ctx, participant); err != nil {
		c.logger.Warn("failed to persist participant", slog.String("id", participant.ID), slog.Any("error", err))
	}

	if len(c.round.updates) >= c.cfg.Quorum {
		select {
		case c.closeCh <- c.round.round:
		default:
		}
	}

	return nil
}

// CloseRound aggregates the buffered updates into a new model version, or
// no-ops when the round collected nothing. Late submissions after close are
// rejected as stale. The round's updates are discarded together.
func (c *Coordinator) CloseRound(ctx context.Context, round uint64) (GlobalModel, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round == nil || c.round.round != round || c.round.closed {
		return GlobalModel{}, false, ErrStaleRound
	}

	c.round.closed = true
	updates := c.round.updates
	c.retireAbsentLocked(ctx)

	if len(updates) == 0 {
		c.logger.Info("round closed without updates", slog.Uint64("round", round))
		c.openRoundLocked(round + 1)

		return GlobalModel{}, false, nil
	}

	var prior []float64
	if cur := c.current.Load(); cur != nil {
		prior = cur.Parameters
	}

	params, err := c.agg.Aggregate(prior, updates)
	if err != nil {
		c.openRoundLocked(round + 1)

		return GlobalModel{}, false, err
	}

	model := GlobalModel{
		Version:      c.version.Add(1),
		Round:        round,
		Parameters:   params,
		Participants: len(updates),
		CreatedAt:    time.Now(),
	}
	if err := c.models.SaveModel(ctx, model); err != nil {
		return GlobalModel{}, false, err
	}
	c.current.Store(&model)

	c.logger.Info("published model version",
		slog.Uint64("version", model.Version),
		slog.Uint64("round", round),
		slog.Int("participants", model.Participants))

	c.openRoundLocked(round + 1)

	return model, true, nil
}

// Current returns the published model; the bool is false before the first
// round closes.
func (c *Coordinator) Current() (GlobalModel, bool) {
	cur := c.current.Load()
	if cur == nil {
		return GlobalModel{}, false
	}

	return *cur, true
}

// Status reports the active round. Closed historical rounds only survive
// as published model versions.
func (c *Coordinator) Status() RoundStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := RoundStatus{Quorum: c.cfg.Quorum}
	if c.round != nil {
		status.Round = c.round.round
		status.Updates = len(c.round.updates)
		status.Deadline = c.round.deadline
		status.Closed = c.round.closed
	}
	if cur := c.current.Load(); cur != nil {
		status.ModelVersion = cur.Version
	}

	return status
}

func (c *Coordinator) currentRound() uint64 {
	if cur := c.current.Load(); cur != nil {
		return cur.Round
	}

	return 0
}

func (c *Coordinator) openRoundLocked(round uint64) {
	c.round = &roundState{
		round:    round,
		deadline: time.Now().Add(c.cfg.Deadline),
		seen:     make(map[string]bool),
	}
}

func (c *Coordinator) admitLocked(ctx context.Context, update ModelUpdate) (Participant, error) {
	participant, err := c.participants.GetParticipant(ctx, update.ParticipantID)
	if err != nil {
		participant = Participant{
			ID:        update.ParticipantID,
			Name:      c.namegen.Generate(),
			Cohort:    update.Cohort,
			Trusted:   true,
			CreatedAt: time.Now(),
		}
		if err := c.participants.SaveParticipant(ctx, participant); err != nil {
			return Participant{}, err
		}
	}
	if !participant.Trusted {
		return Participant{}, ErrUntrustedParticipant
	}

	return participant, nil
}

// retireAbsentLocked bumps the miss counter of every known participant that
// skipped the closing round and clears the trusted flag once the limit is
// reached. Non-responsive participants never block closure.
func (c *Coordinator) retireAbsentLocked(ctx context.Context) {
	participants, _, err := c.participants.ListParticipants(ctx, 0, 1000)
	if err != nil {
		return
	}
	for _, p := range participants {
		if c.round.seen[p.ID] || !p.Trusted {
			continue
		}
		p.MissedRounds++
		if p.MissedRounds >= c.cfg.MaxMissedRounds {
			p.Trusted = false
			c.logger.Info("participant retired", slog.String("id", p.ID), slog.Int("missed_rounds", p.MissedRounds))
		}
		if err := c.participants.SaveParticipant(ctx, p); err != nil {
			c.logger.Warn("failed to persist participant", slog.String("id", p.ID), slog.Any("error", err))
		}
	}
}

func validateDelta(update ModelUpdate, current *GlobalModel) error {
	if len(update.Delta) == 0 || update.Weight <= 0 || update.Epsilon < 0 {
		return ErrMalformedUpdate
	}
	if current != nil && len(current.Parameters) > 0 && len(update.Delta) != len(current.Parameters) {
		return ErrMalformedUpdate
	}
	for _, v := range update.Delta {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrMalformedUpdate
		}
	}

	return nil
}

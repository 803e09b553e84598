package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/autonomiq/kaizen/telemetry"
)

// ActionRef names the corrective action a matched rule schedules. Params
// are passed through to the actuator untouched.
type ActionRef struct {
	Target    string            `yaml:"target"    json:"target"`
	Operation string            `yaml:"operation" json:"operation"`
	Params    map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Rule is one configured condition-action pair. Counters are mutated only
// through ReportOutcome; the definition itself changes only on
// administrative configuration.
type Rule struct {
	ID        string    `yaml:"id"        json:"id"`
	Priority  int       `yaml:"priority"  json:"priority"`
	Condition Condition `yaml:"condition" json:"condition"`
	Action    ActionRef `yaml:"action"    json:"action"`
	Enabled   bool      `yaml:"enabled"   json:"enabled"`

	Succeeded uint64 `yaml:"-" json:"succeeded"`
	Failed    uint64 `yaml:"-" json:"failed"`
	// AutoDisabled marks a rule the engine shut off for exceeding the
	// failure-rate threshold; distinct from an operator disable.
	AutoDisabled bool `yaml:"-" json:"auto_disabled"`
}

// Validate rejects a rule definition wholesale.
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	if r.Action.Target == "" || r.Action.Operation == "" {
		return fmt.Errorf("%w: %s: missing action target or operation", ErrInvalidRule, r.ID)
	}
	if err := r.Condition.Validate(); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}

	return nil
}

// Match is one fired rule in evaluation order.
type Match struct {
	Rule   Rule
	Action ActionRef
}

// EngineConfig tunes the self-limiting behavior: a rule whose failure rate
// over the trailing OutcomeWindow executions exceeds DisableThreshold is
// automatically disabled until administrative re-enable.
type EngineConfig struct {
	OutcomeWindow    int
	DisableThreshold float64
}

type ruleState struct {
	rule     Rule
	outcomes []bool
}

// Engine evaluates the configured rule set against metric snapshots.
// Evaluation is deterministic: matches are ordered by priority descending,
// rule ID ascending on ties.
type Engine struct {
	mu     sync.Mutex
	cfg    EngineConfig
	rules  map[string]*ruleState
	logger *slog.Logger
}

func NewEngine(cfg EngineConfig, logger *slog.Logger) *Engine {
	if cfg.OutcomeWindow <= 0 {
		cfg.OutcomeWindow = 20
	}
	if cfg.DisableThreshold <= 0 || cfg.DisableThreshold > 1 {
		cfg.DisableThreshold = 0.5
	}

	return &Engine{
		cfg:    cfg,
		rules:  make(map[string]*ruleState),
		logger: logger,
	}
}

// Replace swaps the rule set wholesale, as on startup and policy reload.
// Counters of surviving rules are preserved. Any invalid rule rejects the
// entire set.
func (e *Engine) Replace(rules []Rule) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]*ruleState, len(rules))
	for _, r := range rules {
		if prev, ok := e.rules[r.ID]; ok {
			r.Succeeded = prev.rule.Succeeded
			r.Failed = prev.rule.Failed
			r.AutoDisabled = prev.rule.AutoDisabled
			next[r.ID] = &ruleState{rule: r, outcomes: prev.outcomes}

			continue
		}
		next[r.ID] = &ruleState{rule: r}
	}
	e.rules = next

	return nil
}

// Evaluate returns the matched (rule, action) pairs for a snapshot,
// highest priority first, ties broken by rule ID.
func (e *Engine) Evaluate(snap telemetry.Snapshot) []Match {
	e.mu.Lock()
	defer e.mu.Unlock()

	matches := make([]Match, 0)
	for _, state := range e.rules {
		r := state.rule
		if !r.Enabled || r.AutoDisabled {
			continue
		}
		if r.Condition.Eval(snap) {
			matches = append(matches, Match{Rule: r, Action: r.Action})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Rule.Priority != matches[j].Rule.Priority {
			return matches[i].Rule.Priority > matches[j].Rule.Priority
		}

		return matches[i].Rule.ID < matches[j].Rule.ID
	})

	return matches
}

// ReportOutcome records one execution result for a rule and applies the
// self-limiting check over the trailing window.
func (e *Engine) ReportOutcome(ruleID string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, found := e.rules[ruleID]
	if !found {
		return
	}

	if ok {
		state.rule.Succeeded++
	} else {
		state.rule.Failed++
	}

	state.outcomes = append(state.outcomes, ok)
	if len(state.outcomes) > e.cfg.OutcomeWindow {
		state.outcomes = state.outcomes[len(state.outcomes)-e.cfg.OutcomeWindow:]
	}

	if len(state.outcomes) < e.cfg.OutcomeWindow {
		return
	}
	failures := 0
	for _, outcome := range state.outcomes {
		if !outcome {
			failures++
		}
	}
	if rate := float64(failures) / float64(len(state.outcomes)); rate > e.cfg.DisableThreshold && !state.rule.AutoDisabled {
		state.rule.AutoDisabled = true
		e.logger.Warn("rule disabled for excessive failures",
			slog.String("rule", ruleID),
			slog.Float64("failure_rate", rate))
	}
}

// SetEnabled flips a rule administratively. Enabling also clears an
// auto-disable and its outcome window.
func (e *Engine) SetEnabled(ruleID string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, found := e.rules[ruleID]
	if !found {
		return fmt.Errorf("%w: unknown rule %s", ErrInvalidRule, ruleID)
	}

	state.rule.Enabled = enabled
	if enabled {
		state.rule.AutoDisabled = false
		state.outcomes = nil
	}

	return nil
}

// List returns the rule set sorted by ID.
func (e *Engine) List() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Rule, 0, len(e.rules))
	for _, state := range e.rules {
		out = append(out, state.rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// SetConfig swaps the self-limiting tuning on a policy reload.
func (e *Engine) SetConfig(cfg EngineConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cfg.OutcomeWindow > 0 {
		e.cfg.OutcomeWindow = cfg.OutcomeWindow
	}
	if cfg.DisableThreshold > 0 && cfg.DisableThreshold <= 1 {
		e.cfg.DisableThreshold = cfg.DisableThreshold
	}
}

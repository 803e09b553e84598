package remediation

import (
	"errors"
	"time"
)

var (
	// ErrTargetBusy rejects a dispatch while another action on the same
	// target is still in flight. Callers decide their own retry cadence;
	// the dispatcher never queues.
	ErrTargetBusy = errors.New("target busy")
	// ErrValidation rejects an action that cannot be dispatched at all.
	ErrValidation = errors.New("action validation failed")
	// ErrRollbackFailed marks the one locally non-recoverable outcome:
	// the action regressed and undoing it failed too.
	ErrRollbackFailed = errors.New("rollback failed")
	// ErrNotCancelable refuses cancellation of an already-applied action.
	ErrNotCancelable = errors.New("action not cancelable")
)

// Status is the lifecycle state of a remediation action.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApplied    Status = "applied"
	StatusRolledBack Status = "rolled-back"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusApplied, StatusRolledBack, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// TriggerKind says what produced an action.
type TriggerKind string

const (
	TriggerRule    TriggerKind = "rule"
	TriggerAnomaly TriggerKind = "anomaly"
	TriggerManual  TriggerKind = "manual"
)

// Trigger is the provenance attached to a dispatched action.
type Trigger struct {
	Kind TriggerKind `json:"kind"`
	ID   string      `json:"id"`
}

// Snapshot captures the target's pre-action state, sufficient to reverse
// the action. Opaque to the dispatcher beyond the target name.
type Snapshot struct {
	Target  string            `json:"target"`
	State   map[string]string `json:"state"`
	TakenAt time.Time         `json:"taken_at"`
}

// Watch tells the dispatcher which metric to observe after applying and
// what counts as a regression. Tolerance is the fraction the watched
// metric may worsen relative to its pre-apply reading before rollback
// kicks in; HigherIsWorse gives the direction.
type Watch struct {
	Metric        string        `json:"metric"`
	Segment       string        `json:"segment"`
	Tolerance     float64       `json:"tolerance"`
	HigherIsWorse bool          `json:"higher_is_worse"`
	Window        time.Duration `json:"window"`
}

// Action is one bounded, reversible corrective step against a target
// system. At most one non-terminal action exists per target at a time.
type Action struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Target    string            `json:"target"`
	Operation string            `json:"operation"`
	Params    map[string]string `json:"params,omitempty"`
	Watch     Watch             `json:"watch"`

	Status    Status    `json:"status"`
	Trigger   Trigger   `json:"trigger"`
	PreState  Snapshot  `json:"pre_state"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	AppliedAt time.Time `json:"applied_at,omitempty"`
	DoneAt    time.Time `json:"done_at,omitempty"`
}

package federation

import "time"

// Participant is a federation member, created lazily on its first update
// submission. A participant that misses too many consecutive rounds loses
// its trusted flag and must be re-admitted administratively.
type Participant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Cohort       string    `json:"cohort"`
	LastRound    uint64    `json:"last_round"`
	MissedRounds int       `json:"missed_rounds"`
	Trusted      bool      `json:"trusted"`
	CreatedAt    time.Time `json:"created_at"`
}

// ModelUpdate is one participant's contribution to an aggregation round.
// The delta is opaque to the engine beyond its dimensionality; Weight is
// the declared local sample count, Epsilon the privacy cost implied by the
// update's noise parameters. Immutable once accepted.
type ModelUpdate struct {
	ParticipantID string    `json:"participant_id"`
	Cohort        string    `json:"cohort"`
	Round         uint64    `json:"round"`
	Delta         []float64 `json:"delta"`
	Weight        int64     `json:"weight"`
	Epsilon       float64   `json:"epsilon"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// GlobalModel is one published model version. Versions are immutable and
// strictly increasing; exactly one is current at a time.
type GlobalModel struct {
	Version      uint64    `json:"version"`
	Round        uint64    `json:"round"`
	Parameters   []float64 `json:"parameters"`
	Participants int       `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoundStatus is the externally visible state of a round.
type RoundStatus struct {
	Round        uint64    `json:"round"`
	Updates      int       `json:"updates"`
	Quorum       int       `json:"quorum"`
	Deadline     time.Time `json:"deadline"`
	Closed       bool      `json:"closed"`
	ModelVersion uint64    `json:"model_version,omitempty"`
}

type roundState struct {
	round    uint64
	deadline time.Time
	updates  []ModelUpdate
	seen     map[string]bool
	closed   bool
}

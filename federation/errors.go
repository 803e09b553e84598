package federation

import "errors"

var (
	// ErrNoUpdates is returned when a round closes with zero valid updates.
	ErrNoUpdates = errors.New("no updates provided for aggregation")
	// ErrStaleRound rejects submissions for a round that is not the active one.
	ErrStaleRound = errors.New("stale round")
	// ErrMalformedUpdate rejects deltas with wrong dimensionality or
	// non-finite values. Malformed deltas are never clipped.
	ErrMalformedUpdate = errors.New("malformed update")
	// ErrBudgetExceeded rejects an update whose privacy cost cannot be
	// reserved for its cohort. Final for the round.
	ErrBudgetExceeded = errors.New("privacy budget exceeded")
	// ErrUntrustedParticipant rejects updates from retired participants.
	ErrUntrustedParticipant = errors.New("untrusted participant")
	// ErrDuplicateUpdate rejects a second submission from the same
	// participant within one round.
	ErrDuplicateUpdate = errors.New("duplicate update for round")
)

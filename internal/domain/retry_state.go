package domain

import "math"

// RetriesInfinite marks an unbounded retry loop. It is only used while the
// local repository is unavailable, never for provider communication errors.
const RetriesInfinite = math.MaxInt32

// RetryState survives between action runs in workflow state.
type RetryState struct {
	RemainingAutomaticRetries int  `json:"remaining_automatic_retries"`
	RetryDelaySeconds         int  `json:"retry_delay_seconds"`
	Active                    bool `json:"active"`
}

// Infinite reports whether the state belongs to a repository outage loop.
func (r RetryState) Infinite() bool {
	return r.RemainingAutomaticRetries == RetriesInfinite
}

// InBoundedLoop reports whether a communication retry loop is running.
func (r RetryState) InBoundedLoop() bool {
	return r.Active && !r.Infinite()
}

// ShouldRetry tells the workflow to poll again after RetryDelaySeconds
// without human involvement.
func (r RetryState) ShouldRetry() bool {
	return r.Active
}

package domain

import "github.com/rs/zerolog"

// ResolveSubmissionState derives the canonical state from what the provider
// reports. tasks are the task records currently visible for the submission
// and may be empty. The function does no I/O.
func ResolveSubmissionState(raw *string, cancelled *bool, tasks []TaskRecord, log zerolog.Logger) CanonicalState {
	if raw == nil {
		log.Warn().Msg("provider reported no submission state, treating as OTHER")
		return StateOther
	}
	state, ok := lookupState(*raw)
	if !ok {
		log.Warn().Str("raw_state", *raw).Msg("unknown submission state, provider may have changed its state model")
		return StateOther
	}

	// A reported confirmation is only trusted once the tasks agree.
	cancelRequested := cancelled != nil && *cancelled
	if !cancelRequested && state != StateCancelled && state != StateCancellationConfirmed {
		return state
	}

	for _, task := range tasks {
		if !task.Settled() {
			return StateCancelled
		}
	}
	return StateCancellationConfirmed
}

// SignalsCancellation reports whether the resolver will need the task set
// for these inputs, so callers can skip listing tasks otherwise.
func SignalsCancellation(raw *string, cancelled *bool) bool {
	if cancelled != nil && *cancelled {
		return true
	}
	if raw == nil {
		return false
	}
	state, ok := lookupState(*raw)
	return ok && (state == StateCancelled || state == StateCancellationConfirmed)
}

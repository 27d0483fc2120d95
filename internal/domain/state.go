package domain

import "strings"

// CanonicalState is the lifecycle state of a submission as seen by this
// service. It is recomputed from provider data on every poll.
type CanonicalState string

const (
	StateInPreProcess          CanonicalState = "IN_PRE_PROCESS"
	StateStarted               CanonicalState = "STARTED"
	StateAnalyzed              CanonicalState = "ANALYZED"
	StateAwaitingApproval      CanonicalState = "AWAITING_APPROVAL"
	StateAwaitingQuoteApproval CanonicalState = "AWAITING_QUOTE_APPROVAL"
	StateInProgress            CanonicalState = "IN_PROGRESS" // deprecated, no longer reported
	StateTranslate             CanonicalState = "TRANSLATE"
	StateReview                CanonicalState = "REVIEW"
	StateCompleted             CanonicalState = "COMPLETED"
	StateRedelivered           CanonicalState = "REDELIVERED"
	StateDelivered             CanonicalState = "DELIVERED"
	StateCancelled             CanonicalState = "CANCELLED"
	StateCancellationConfirmed CanonicalState = "CANCELLATION_CONFIRMED"
	StateOther                 CanonicalState = "OTHER"
)

// orderedStates lists every state in lifecycle order.
var orderedStates = []CanonicalState{
	StateInPreProcess,
	StateStarted,
	StateAnalyzed,
	StateAwaitingApproval,
	StateAwaitingQuoteApproval,
	StateInProgress,
	StateTranslate,
	StateReview,
	StateCompleted,
	StateRedelivered,
	StateDelivered,
	StateCancelled,
	StateCancellationConfirmed,
	StateOther,
}

var displayNames = map[CanonicalState]string{
	StateInPreProcess:          "Pre-Process",
	StateStarted:               "Started",
	StateAnalyzed:              "Analyzed",
	StateAwaitingApproval:      "Awaiting Approval",
	StateAwaitingQuoteApproval: "Awaiting Quote Approval",
	StateInProgress:            "In Progress",
	StateTranslate:             "Translate",
	StateReview:                "Review",
	StateCompleted:             "Completed",
	StateRedelivered:           "Redelivered",
	StateDelivered:             "Delivered",
	StateCancelled:             "Cancelled",
	StateCancellationConfirmed: "Cancellation Confirmed",
}

var statesByName = func() map[string]CanonicalState {
	m := make(map[string]CanonicalState, len(displayNames))
	for state, name := range displayNames {
		m[strings.ToLower(name)] = state
	}
	return m
}()

// States returns all canonical states in lifecycle order.
func States() []CanonicalState {
	out := make([]CanonicalState, len(orderedStates))
	copy(out, orderedStates)
	return out
}

// DisplayName is the provider's name for the state; empty for OTHER.
func (s CanonicalState) DisplayName() string {
	return displayNames[s]
}

// Ordinal returns the lifecycle position of s, or -1 if s is not a known state.
func (s CanonicalState) Ordinal() int {
	for i, candidate := range orderedStates {
		if candidate == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether polling can stop. OTHER is never terminal.
func (s CanonicalState) IsTerminal() bool {
	switch s {
	case StateDelivered, StateRedelivered, StateCancellationConfirmed:
		return true
	default:
		return false
	}
}

// IsEarly reports whether the provider has not started translating yet.
func (s CanonicalState) IsEarly() bool {
	switch s {
	case StateInPreProcess, StateStarted, StateAnalyzed, StateAwaitingApproval, StateAwaitingQuoteApproval:
		return true
	default:
		return false
	}
}

// lookupState matches a provider display name case-insensitively.
func lookupState(name string) (CanonicalState, bool) {
	state, ok := statesByName[strings.ToLower(strings.TrimSpace(name))]
	return state, ok
}

// ParseCanonicalState parses the enum identifier (e.g. "CANCELLATION_CONFIRMED")
// as it is stored in workflow state and snapshots.
func ParseCanonicalState(v string) (CanonicalState, bool) {
	candidate := CanonicalState(strings.ToUpper(strings.TrimSpace(v)))
	if candidate.Ordinal() < 0 {
		return StateOther, false
	}
	return candidate, true
}

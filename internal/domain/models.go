package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// SubmissionID is assigned by the provider and stays stable for the
// lifetime of a submission.
type SubmissionID int64

func (id SubmissionID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseSubmissionID parses the id as stored in workflow state.
func ParseSubmissionID(v string) (SubmissionID, error) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return 0, NewWorkflowFailure(CodeIllegalSubmissionID, "submission id is empty")
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || n <= 0 {
		return 0, NewWorkflowFailure(CodeIllegalSubmissionID, "submission id %q is malformed", v)
	}
	return SubmissionID(n), nil
}

type TaskStatus string

const (
	TaskProcessing TaskStatus = "Processing"
	TaskCompleted  TaskStatus = "Completed"
	TaskCancelled  TaskStatus = "Cancelled"
	TaskDelivered  TaskStatus = "Delivered"
)

// TaskRecord is the per-locale unit of work inside a submission.
// CancelConfirmed is only meaningful for TaskCancelled.
type TaskRecord struct {
	TaskID          int64      `json:"task_id"`
	Locale          string     `json:"locale"`
	Status          TaskStatus `json:"status"`
	CancelConfirmed bool       `json:"cancel_confirmed"`
}

// Settled reports whether the task no longer blocks a cancellation from
// being confirmed.
func (t TaskRecord) Settled() bool {
	switch t.Status {
	case TaskDelivered:
		return true
	case TaskCancelled:
		return t.CancelConfirmed
	default:
		return false
	}
}

// RawSubmission is the submission exactly as the provider reports it.
type RawSubmission struct {
	ID              SubmissionID `json:"id"`
	State           *string      `json:"state,omitempty"`
	Cancelled       *bool        `json:"cancelled,omitempty"`
	PDSubmissionIDs []string     `json:"pd_submission_ids,omitempty"`
	Error           bool         `json:"error"`
	SourceLocale    string       `json:"source_locale,omitempty"`
	DueDate         *time.Time   `json:"due_date,omitempty"`
}

// Submission is the resolved view handed to actions.
type Submission struct {
	ID              SubmissionID
	State           CanonicalState
	PDSubmissionIDs []string
	Error           bool
	Tasks           []TaskRecord
}

// SubmissionRequest describes a translation job to hand off to the provider.
type SubmissionRequest struct {
	Subject       string            `json:"subject"`
	Comment       string            `json:"comment,omitempty"`
	SourceLocale  string            `json:"source_locale"`
	TargetLocales []string          `json:"target_locales"`
	DueDate       time.Time         `json:"due_date"`
	Workflow      string            `json:"workflow,omitempty"`
	Submitter     string            `json:"submitter,omitempty"`
	Site          string            `json:"site,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// SubmissionSnapshot is the persisted view of a translation request, written
// after every action run.
type SubmissionSnapshot struct {
	RequestID           string          `json:"request_id"`
	WorkflowID          string          `json:"workflow_id"`
	SubmissionID        string          `json:"submission_id,omitempty"`
	State               CanonicalState  `json:"state"`
	Action              string          `json:"action"`
	Outcome             string          `json:"outcome"`
	PDSubmissionIDs     []string        `json:"pd_submission_ids,omitempty"`
	CompletedLocales    []string        `json:"completed_locales,omitempty"`
	CancellationAllowed bool            `json:"cancellation_allowed"`
	Retry               RetryState      `json:"retry"`
	Issues              json.RawMessage `json:"issues,omitempty"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error codes reported as issues.
const (
	CodeUnknown                 = "TRN-10000"
	CodeCommunication           = "TRN-20000"
	CodeLocalIO                 = "TRN-30001"
	CodeSettings                = "TRN-40000"
	CodeFileType                = "TRN-40001"
	CodeInvalidKey              = "TRN-40002"
	CodeConnectorKey            = "TRN-40003"
	CodeIllegalSubmissionID     = "TRN-40050"
	CodeExportFailed            = "TRN-50050"
	CodeSubmissionError         = "TRN-60000"
	CodeSubmissionNotFound      = "TRN-60001"
	CodeSubmissionCancelFailure = "TRN-61001"
	CodeRepositoryCommunication = "TRN-70000"
)

// ErrNotFound is returned by stores when a record or object does not exist.
var ErrNotFound = errors.New("not found")

// FailureKind is the closed set of failure classes an action can end with.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureCommunication
	FailureLocalIO
	FailureRepositoryUnavailable
	FailureConfig
	FailureConnectorKey
	FailureAccess
	FailureFileType
	FailureSubmission
	FailureSubmissionNotFound
	FailureWorkflow
)

var failureKindNames = map[FailureKind]string{
	FailureUnknown:               "unknown",
	FailureCommunication:         "communication",
	FailureLocalIO:               "local_io",
	FailureRepositoryUnavailable: "repository_unavailable",
	FailureConfig:                "config",
	FailureConnectorKey:          "connector_key",
	FailureAccess:                "access",
	FailureFileType:              "file_type",
	FailureSubmission:            "submission",
	FailureSubmissionNotFound:    "submission_not_found",
	FailureWorkflow:              "workflow",
}

func (k FailureKind) String() string {
	if name, ok := failureKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("failure_kind(%d)", int(k))
}

// DefaultCode is the issue code used when a failure carries none.
func (k FailureKind) DefaultCode() string {
	switch k {
	case FailureCommunication:
		return CodeCommunication
	case FailureLocalIO:
		return CodeLocalIO
	case FailureRepositoryUnavailable:
		return CodeRepositoryCommunication
	case FailureConfig:
		return CodeSettings
	case FailureConnectorKey:
		return CodeConnectorKey
	case FailureAccess:
		return CodeInvalidKey
	case FailureFileType:
		return CodeFileType
	case FailureSubmission:
		return CodeSubmissionError
	case FailureSubmissionNotFound:
		return CodeSubmissionNotFound
	case FailureWorkflow, FailureUnknown:
		return CodeUnknown
	default:
		return CodeUnknown
	}
}

// Failure is the error type returned by provider calls and actions.
type Failure struct {
	Kind     FailureKind
	Code     string
	Message  string
	Entities []string
	Err      error
}

func (f *Failure) Error() string {
	msg := f.Message
	if msg == "" {
		msg = f.Kind.String() + " failure"
	}
	if f.Err != nil {
		return fmt.Sprintf("%s [%s]: %v", msg, f.Code, f.Err)
	}
	return fmt.Sprintf("%s [%s]", msg, f.Code)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is matches another *Failure of the same kind, so errors.Is works with
// the sentinel-like values returned by NewFailure(kind, nil, "").
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok {
		return false
	}
	return t.Kind == f.Kind && (t.Code == "" || t.Code == f.Code)
}

// WithEntities attaches affected entities reported alongside the issue.
func (f *Failure) WithEntities(entities ...string) *Failure {
	f.Entities = append(f.Entities, entities...)
	return f
}

func NewFailure(kind FailureKind, err error, format string, args ...any) *Failure {
	return &Failure{
		Kind:    kind,
		Code:    kind.DefaultCode(),
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// NewWorkflowFailure reports invalid caller supplied state under a specific code.
func NewWorkflowFailure(code string, format string, args ...any) *Failure {
	return &Failure{
		Kind:    FailureWorkflow,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func CommunicationFailure(err error, format string, args ...any) *Failure {
	return NewFailure(FailureCommunication, err, format, args...)
}

func RepositoryUnavailable(err error, format string, args ...any) *Failure {
	return NewFailure(FailureRepositoryUnavailable, err, format, args...)
}

// Classify maps any error onto exactly one failure. Unrecognised errors
// become FailureUnknown; network and deadline errors are treated as
// communication failures.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		if f.Code == "" {
			f.Code = f.Kind.DefaultCode()
		}
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CommunicationFailure(err, "request timed out")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CommunicationFailure(err, "network error")
	}
	return NewFailure(FailureUnknown, err, "unexpected error")
}

func IsFailureKind(err error, kind FailureKind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}

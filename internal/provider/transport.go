// Package provider talks to the translation provider: the raw transport,
// the task confirmation protocol and the per-run session built on both.
package provider

import (
	"context"
	"io"
	"time"

	"translation-orchestrator/internal/domain"
)

// TaskPage is one page of a task listing. TotalPages is nil when the
// provider omitted the page count.
type TaskPage struct {
	Tasks      []domain.TaskRecord `json:"tasks"`
	TotalPages *int                `json:"total_pages"`
}

// SubmitRequest hands uploaded files to the provider as one submission.
// Files maps an uploaded file id to the locales it is translated into.
type SubmitRequest struct {
	Subject      string              `json:"subject"`
	Comment      string              `json:"comment,omitempty"`
	DueDate      time.Time           `json:"due_date"`
	Workflow     string              `json:"workflow,omitempty"`
	Submitter    string              `json:"submitter,omitempty"`
	SourceLocale string              `json:"source_locale"`
	Files        map[string][]string `json:"files"`
	Attributes   map[string]string   `json:"attributes,omitempty"`
}

// Transport is the raw provider API. Implementations return *domain.Failure
// values so callers can classify errors without inspecting transport
// details. An empty status lists tasks of every status.
type Transport interface {
	GetSubmission(ctx context.Context, id domain.SubmissionID) (domain.RawSubmission, error)
	ListTasks(ctx context.Context, id domain.SubmissionID, status domain.TaskStatus, page int) (TaskPage, error)
	DownloadTask(ctx context.Context, taskID int64) (io.ReadCloser, error)
	ConfirmTask(ctx context.Context, taskID int64) (bool, error)
	ConfirmTaskCancellation(ctx context.Context, taskID int64) (int, error)
	CancelSubmission(ctx context.Context, id domain.SubmissionID) (int, error)
	UploadContent(ctx context.Context, fileName string, content []byte) (string, error)
	SubmitSubmission(ctx context.Context, req SubmitRequest) (domain.SubmissionID, error)
	Logout(ctx context.Context) error
}

package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"translation-orchestrator/internal/config"
	"translation-orchestrator/internal/domain"
	"translation-orchestrator/internal/provider"
	"translation-orchestrator/internal/settings"
)

const (
	NameSend     = "send"
	NameDownload = "download"
	NameCancel   = "cancel"
)

// Translation is the state of one translation request, shared by the send,
// download and cancel actions.
type Translation struct {
	RequestID           string                   `json:"request_id"`
	Request             domain.SubmissionRequest `json:"request"`
	SubmissionID        string                   `json:"submission_id,omitempty"`
	State               domain.CanonicalState    `json:"state,omitempty"`
	PDSubmissionIDs     []string                 `json:"pd_submission_ids,omitempty"`
	CompletedLocales    []string                 `json:"completed_locales,omitempty"`
	CancellationAllowed bool                     `json:"cancellation_allowed"`
	Cancelled           bool                     `json:"cancelled"`
}

// Finished reports whether the provider side needs no more polling.
func (t Translation) Finished() bool {
	return t.Cancelled || t.State.IsTerminal()
}

// ExportSource serves the payloads the export pipeline wrote per target
// locale. Missing payloads are reported as domain.ErrNotFound.
type ExportSource interface {
	ExportPayload(ctx context.Context, requestID, locale string) ([]byte, error)
}

// Importer takes a translated payload. The returned problems map an error
// code to the entities it concerns; any problem keeps the task unconfirmed.
type Importer interface {
	Import(ctx context.Context, requestID string, task domain.TaskRecord, payload []byte) (map[string][]string, error)
}

type SendInput struct {
	RequestID string
	Request   domain.SubmissionRequest
}

// SendDefinition uploads one file per target locale and submits them.
// The result is the provider's submission id.
func SendDefinition(exports ExportSource) Definition[Translation, SendInput, string] {
	return Definition[Translation, SendInput, string]{
		Name:     NameSend,
		DelayKey: config.SettingSendRetryDelay,
		Extract: func(st Translation) (SendInput, error) {
			if st.SubmissionID != "" {
				return SendInput{}, domain.NewWorkflowFailure(domain.CodeIllegalSubmissionID,
					"request %s was already submitted as %s", st.RequestID, st.SubmissionID).WithEntities(st.RequestID)
			}
			if len(st.Request.TargetLocales) == 0 {
				return SendInput{}, domain.NewWorkflowFailure(domain.CodeExportFailed,
					"request %s has no target locales", st.RequestID).WithEntities(st.RequestID)
			}
			return SendInput{RequestID: st.RequestID, Request: st.Request}, nil
		},
		Execute: func(ctx context.Context, in SendInput, session *provider.Session, emit func(string), _ *domain.Issues) error {
			files := make(map[string][]string, len(in.Request.TargetLocales))
			for _, locale := range in.Request.TargetLocales {
				payload, err := exports.ExportPayload(ctx, in.RequestID, locale)
				if err != nil {
					if errors.Is(err, domain.ErrNotFound) {
						return domain.NewWorkflowFailure(domain.CodeExportFailed, "no export payload for %s", locale).WithEntities(locale)
					}
					return domain.RepositoryUnavailable(err, "read export payload for %s", locale)
				}
				if !domain.IsTranslatablePayload(payload) {
					return domain.NewFailure(domain.FailureFileType, nil, "export payload for %s is not XLIFF", locale).WithEntities(locale)
				}

				fileID, err := session.Upload(ctx, fmt.Sprintf("%s2%s.xliff", in.Request.SourceLocale, locale), payload)
				if err != nil {
					return err
				}
				files[fileID] = []string{locale}
			}

			id, err := session.Submit(ctx, provider.SubmitRequest{
				Subject:      in.Request.Subject,
				Comment:      in.Request.Comment,
				DueDate:      in.Request.DueDate,
				Workflow:     in.Request.Workflow,
				Submitter:    in.Request.Submitter,
				SourceLocale: in.Request.SourceLocale,
				Files:        files,
				Attributes:   in.Request.Attributes,
			})
			if err != nil {
				return err
			}
			emit(id.String())
			return nil
		},
		Store: func(st Translation, submissionID string) Translation {
			st.SubmissionID = submissionID
			st.CancellationAllowed = true
			return st
		},
	}
}

type DownloadInput struct {
	RequestID    string
	SubmissionID domain.SubmissionID
	Completed    []string
}

type DownloadResult struct {
	State            domain.CanonicalState
	PDSubmissionIDs  []string
	CompletedLocales []string
}

// DownloadDefinition polls the submission and imports every completed task.
func DownloadDefinition(importer Importer) Definition[Translation, DownloadInput, DownloadResult] {
	return Definition[Translation, DownloadInput, DownloadResult]{
		Name:     NameDownload,
		DelayKey: config.SettingDownloadRetryDelay,
		Extract: func(st Translation) (DownloadInput, error) {
			id, err := domain.ParseSubmissionID(st.SubmissionID)
			if err != nil {
				return DownloadInput{}, err
			}
			return DownloadInput{RequestID: st.RequestID, SubmissionID: id, Completed: st.CompletedLocales}, nil
		},
		Execute: func(ctx context.Context, in DownloadInput, session *provider.Session, emit func(DownloadResult), issues *domain.Issues) error {
			sub, err := session.Submission(ctx, in.SubmissionID)
			if err != nil {
				return err
			}

			completed := make(map[string]struct{}, len(in.Completed))
			for _, locale := range in.Completed {
				completed[locale] = struct{}{}
			}
			partial := func(sub domain.Submission) DownloadResult {
				return DownloadResult{State: sub.State, PDSubmissionIDs: sub.PDSubmissionIDs, CompletedLocales: sortedLocales(completed)}
			}

			switch {
			case sub.State == domain.StateCancelled:
				if _, err := session.ConfirmCancelled(ctx, in.SubmissionID); err != nil {
					emit(partial(sub))
					return err
				}
			case sub.Error:
				issues.Add(domain.CodeSubmissionError, in.SubmissionID.String())
			default:
				consume := func(ctx context.Context, payload io.Reader, task domain.TaskRecord) (bool, error) {
					body, err := io.ReadAll(payload)
					if err != nil {
						return false, err
					}
					problems, err := importer.Import(ctx, in.RequestID, task, body)
					if err != nil {
						return false, err
					}
					if len(problems) > 0 {
						for code, entities := range problems {
							issues.Add(code, entities...)
						}
						return false, nil
					}
					completed[task.Locale] = struct{}{}
					return true, nil
				}
				if _, err := session.DownloadCompleted(ctx, in.SubmissionID, consume); err != nil {
					emit(partial(sub))
					return err
				}
			}

			refreshed, err := session.Submission(ctx, in.SubmissionID)
			if err != nil {
				emit(partial(sub))
				return err
			}
			emit(partial(refreshed))
			return nil
		},
		Store: func(st Translation, r DownloadResult) Translation {
			st.State = r.State
			st.PDSubmissionIDs = r.PDSubmissionIDs
			st.CompletedLocales = r.CompletedLocales
			if len(r.CompletedLocales) > 0 {
				st.CancellationAllowed = false
			}
			if r.State == domain.StateCancellationConfirmed {
				st.Cancelled = true
				st.CancellationAllowed = false
			}
			return st
		},
		AdaptDelay: func(delay domain.RetryDelay, s settings.Settings, st Translation, issues *domain.Issues) domain.RetryDelay {
			if !issues.Empty() {
				return delay
			}
			early := st.State.IsEarly() || (st.State == domain.StateTranslate && len(st.PDSubmissionIDs) == 0)
			if !early {
				return delay
			}
			if d, ok := s.RetryDelay(config.SettingDownloadEarlyRetryDelay); ok {
				return d
			}
			return delay
		},
	}
}

type CancelInput struct {
	SubmissionID domain.SubmissionID
	Completed    []string
}

type CancelResult struct {
	State            domain.CanonicalState
	PDSubmissionIDs  []string
	CompletedLocales []string
	Cancelled        bool
}

// CancelDefinition withdraws a submission. A submission that already
// completed is confirmed and treated as cancelled; its results are dropped.
func CancelDefinition() Definition[Translation, CancelInput, CancelResult] {
	return Definition[Translation, CancelInput, CancelResult]{
		Name:     NameCancel,
		DelayKey: config.SettingCancelRetryDelay,
		Extract: func(st Translation) (CancelInput, error) {
			id, err := domain.ParseSubmissionID(st.SubmissionID)
			if err != nil {
				return CancelInput{}, err
			}
			return CancelInput{SubmissionID: id, Completed: st.CompletedLocales}, nil
		},
		Execute: func(ctx context.Context, in CancelInput, session *provider.Session, emit func(CancelResult), issues *domain.Issues) error {
			sub, err := session.Submission(ctx, in.SubmissionID)
			if err != nil {
				return err
			}

			completed := make(map[string]struct{}, len(in.Completed))
			for _, locale := range in.Completed {
				completed[locale] = struct{}{}
			}
			result := func(sub domain.Submission, cancelled bool) CancelResult {
				return CancelResult{
					State:            sub.State,
					PDSubmissionIDs:  sub.PDSubmissionIDs,
					CompletedLocales: sortedLocales(completed),
					Cancelled:        cancelled,
				}
			}
			emit(result(sub, false))

			switch {
			case sub.State.IsTerminal():
				emit(result(sub, sub.State == domain.StateCancellationConfirmed))
				return nil
			case sub.State == domain.StateCompleted:
				if _, err := session.ConfirmCompleted(ctx, in.SubmissionID, completed); err != nil {
					emit(result(sub, false))
					return err
				}
				emit(result(sub, true))
			case sub.State == domain.StateCancelled:
				if _, err := session.ConfirmCancelled(ctx, in.SubmissionID); err != nil {
					return err
				}
			default:
				accepted, err := session.Cancel(ctx, in.SubmissionID)
				if err != nil {
					return err
				}
				if !accepted {
					issues.Add(domain.CodeSubmissionCancelFailure, in.SubmissionID.String())
				}
				if _, err := session.ConfirmCancelled(ctx, in.SubmissionID); err != nil {
					return err
				}
			}

			refreshed, err := session.Submission(ctx, in.SubmissionID)
			if err != nil {
				return err
			}
			emit(result(refreshed, refreshed.State == domain.StateCancellationConfirmed || sub.State == domain.StateCompleted))
			return nil
		},
		Store: func(st Translation, r CancelResult) Translation {
			st.State = r.State
			st.PDSubmissionIDs = r.PDSubmissionIDs
			st.CompletedLocales = r.CompletedLocales
			if len(r.CompletedLocales) > 0 {
				st.CancellationAllowed = false
			}
			if r.Cancelled {
				st.Cancelled = true
				st.CancellationAllowed = false
			}
			return st
		},
	}
}

func sortedLocales(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for locale := range set {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

package temporal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"translation-orchestrator/internal/action"
	"translation-orchestrator/internal/domain"
	"translation-orchestrator/internal/logging"
)

// TranslationProcess is the workflow-owned state handed to every action.
type TranslationProcess = action.Process[action.Translation]

type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap domain.SubmissionSnapshot) error
	InsertAudit(ctx context.Context, requestID string, event string, detail any) error
}

type Activities struct {
	Env      action.Env
	Exports  action.ExportSource
	Importer action.Importer
	Store    SnapshotStore
}

type ActionResult struct {
	Process TranslationProcess `json:"process"`
	Outcome action.Outcome     `json:"outcome"`
}

type RecordSnapshotInput struct {
	WorkflowID string       `json:"workflow_id"`
	Action     string       `json:"action"`
	Result     ActionResult `json:"result"`
}

// Action activities never fail: every failure is settled into the returned
// process so the workflow can decide how to continue.

func (a *Activities) SendTranslationActivity(ctx context.Context, proc TranslationProcess) (ActionResult, error) {
	proc, outcome := action.Run(ctx, a.envFor(proc), action.SendDefinition(a.Exports), proc)
	return ActionResult{Process: proc, Outcome: outcome}, nil
}

func (a *Activities) DownloadTranslationActivity(ctx context.Context, proc TranslationProcess) (ActionResult, error) {
	proc, outcome := action.Run(ctx, a.envFor(proc), action.DownloadDefinition(a.Importer), proc)
	return ActionResult{Process: proc, Outcome: outcome}, nil
}

func (a *Activities) CancelTranslationActivity(ctx context.Context, proc TranslationProcess) (ActionResult, error) {
	proc, outcome := action.Run(ctx, a.envFor(proc), action.CancelDefinition(), proc)
	return ActionResult{Process: proc, Outcome: outcome}, nil
}

func (a *Activities) RecordSnapshotActivity(ctx context.Context, input RecordSnapshotInput) error {
	proc := input.Result.Process
	issues, err := json.Marshal(proc.Issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}

	snap := domain.SubmissionSnapshot{
		RequestID:           proc.State.RequestID,
		WorkflowID:          input.WorkflowID,
		SubmissionID:        proc.State.SubmissionID,
		State:               proc.State.State,
		Action:              input.Action,
		Outcome:             string(input.Result.Outcome),
		PDSubmissionIDs:     proc.State.PDSubmissionIDs,
		CompletedLocales:    proc.State.CompletedLocales,
		CancellationAllowed: proc.State.CancellationAllowed,
		Retry:               proc.Retry,
		Issues:              issues,
		UpdatedAt:           time.Now().UTC(),
	}
	if err := a.Store.SaveSnapshot(ctx, snap); err != nil {
		return err
	}

	detail := map[string]any{
		"outcome": input.Result.Outcome,
		"state":   proc.State.State,
	}
	if !proc.Issues.Empty() {
		detail["issues"] = proc.Issues.Codes()
	}
	if proc.Failure != "" {
		detail["failure"] = proc.Failure
	}
	return a.Store.InsertAudit(ctx, proc.State.RequestID, "action."+input.Action, detail)
}

func (a *Activities) envFor(proc TranslationProcess) action.Env {
	env := a.Env
	env.Log = logging.ForSubmission(env.Log, proc.State.RequestID, proc.State.SubmissionID)
	return env
}

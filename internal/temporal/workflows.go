package temporal

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"translation-orchestrator/internal/action"
	"translation-orchestrator/internal/domain"
)

const TranslationWorkflowName = "TranslationWorkflow"

// maxRunsPerExecution bounds the history of one execution; the workflow
// continues as new with its current process after that many action runs.
const maxRunsPerExecution = 200

type WorkflowStatus string

const (
	WorkflowDelivered WorkflowStatus = "DELIVERED"
	WorkflowCancelled WorkflowStatus = "CANCELLED"
	WorkflowAborted   WorkflowStatus = "ABORTED"
)

type WorkflowInput struct {
	RequestID string
	Site      string
	Request   domain.SubmissionRequest

	// Resume is set when the workflow continued as new.
	Resume *StatusView `json:",omitempty"`
}

type WorkflowResult struct {
	RequestID    string
	SubmissionID string
	Status       WorkflowStatus
	State        domain.CanonicalState
	Issues       []string
}

// StatusView answers the status query.
type StatusView struct {
	Phase   string             `json:"phase"`
	Outcome action.Outcome     `json:"outcome,omitempty"`
	Process TranslationProcess `json:"process"`
}

type signalKind int

const (
	signalNone signalKind = iota
	signalRetry
	signalCancel
	signalAbort
)

var phasePolicies = map[string]string{
	action.NameSend:     ActivityPolicySendTranslation,
	action.NameDownload: ActivityPolicyDownloadTranslation,
	action.NameCancel:   ActivityPolicyCancelTranslation,
}

func phaseActivity(phase string) any {
	switch phase {
	case action.NameSend:
		return (*Activities).SendTranslationActivity
	case action.NameCancel:
		return (*Activities).CancelTranslationActivity
	default:
		return (*Activities).DownloadTranslationActivity
	}
}

// TranslationWorkflow sends a request to the provider and polls it until the
// translations are delivered or the submission is cancelled. Actions that
// escalate park the workflow until an operator signals retry, cancel or abort.
func TranslationWorkflow(ctx workflow.Context, input WorkflowInput) (WorkflowResult, error) {
	logger := workflow.GetLogger(ctx)

	status := StatusView{
		Phase: action.NameSend,
		Process: TranslationProcess{
			Site:  input.Site,
			State: action.Translation{RequestID: input.RequestID, Request: input.Request},
		},
	}
	if input.Resume != nil {
		status = *input.Resume
	}
	if err := workflow.SetQueryHandler(ctx, StatusQueryName, func() (StatusView, error) {
		return status, nil
	}); err != nil {
		return WorkflowResult{}, err
	}

	retryCh := workflow.GetSignalChannel(ctx, RetrySignalName)
	cancelCh := workflow.GetSignalChannel(ctx, CancelSignalName)
	abortCh := workflow.GetSignalChannel(ctx, AbortSignalName)
	workflowID := workflow.GetInfo(ctx).WorkflowExecution.ID

	finish := func(s WorkflowStatus) (WorkflowResult, error) {
		proc := status.Process
		logger.Info("translation finished", "request_id", input.RequestID, "status", s, "state", proc.State.State)
		return WorkflowResult{
			RequestID:    input.RequestID,
			SubmissionID: proc.State.SubmissionID,
			Status:       s,
			State:        proc.State.State,
			Issues:       proc.Issues.Codes(),
		}, nil
	}

	for runs := 0; ; runs++ {
		if runs == maxRunsPerExecution {
			return WorkflowResult{}, workflow.NewContinueAsNewError(ctx, TranslationWorkflow, WorkflowInput{
				RequestID: input.RequestID,
				Site:      input.Site,
				Request:   input.Request,
				Resume:    &status,
			})
		}

		var res ActionResult
		actx := mustActivityContext(ctx, phasePolicies[status.Phase])
		if err := workflow.ExecuteActivity(actx, phaseActivity(status.Phase), status.Process).Get(ctx, &res); err != nil {
			return WorkflowResult{}, err
		}
		status.Process = res.Process
		status.Outcome = res.Outcome

		sctx := mustActivityContext(ctx, ActivityPolicyRecordSnapshot)
		if err := workflow.ExecuteActivity(sctx, (*Activities).RecordSnapshotActivity, RecordSnapshotInput{
			WorkflowID: workflowID,
			Action:     status.Phase,
			Result:     res,
		}).Get(ctx, nil); err != nil {
			logger.Warn("snapshot not recorded", "request_id", input.RequestID, "error", err)
		}

		proc := status.Process
		switch status.Phase {
		case action.NameSend:
			if res.Outcome == action.OutcomeSucceeded {
				status.Phase = action.NameDownload
			}
		case action.NameDownload:
			if proc.State.Cancelled {
				return finish(WorkflowCancelled)
			}
			if proc.State.Finished() {
				return finish(WorkflowDelivered)
			}
		case action.NameCancel:
			if proc.State.Finished() {
				return finish(WorkflowCancelled)
			}
		}

		// A successful send goes straight to the first poll.
		if status.Phase == action.NameDownload && proc.State.State == "" && res.Outcome == action.OutcomeSucceeded {
			continue
		}

		auto := res.Outcome != action.OutcomeEscalated
		delay := time.Duration(proc.Retry.RetryDelaySeconds) * time.Second
		if auto {
			logger.Info("waiting for next run", "request_id", input.RequestID, "phase", status.Phase, "delay", delay)
		} else {
			logger.Warn("action escalated, waiting for operator", "request_id", input.RequestID, "phase", status.Phase, "issues", proc.Issues.Codes())
		}

		switch awaitNextRun(ctx, auto, delay, retryCh, cancelCh, abortCh, func() bool {
			return status.Process.State.SubmissionID == "" || status.Process.State.CancellationAllowed
		}) {
		case signalAbort:
			return finish(WorkflowAborted)
		case signalCancel:
			if status.Process.State.SubmissionID == "" {
				return finish(WorkflowCancelled)
			}
			status.Phase = action.NameCancel
		case signalRetry, signalNone:
		}
	}
}

// awaitNextRun blocks until the retry delay elapses or an operator signal
// arrives. Without auto only signals end the wait. Cancel signals are
// dropped while cancellable reports false.
func awaitNextRun(
	ctx workflow.Context,
	auto bool,
	delay time.Duration,
	retryCh, cancelCh, abortCh workflow.ReceiveChannel,
	cancellable func() bool,
) signalKind {
	logger := workflow.GetLogger(ctx)
	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	defer cancelTimer()

	got := signalNone
	fired := false
	selector := workflow.NewSelector(ctx)
	if auto {
		selector.AddFuture(workflow.NewTimer(timerCtx, delay), func(workflow.Future) {
			fired = true
		})
	}
	receive := func(kind signalKind) func(workflow.ReceiveChannel, bool) {
		return func(c workflow.ReceiveChannel, _ bool) {
			var sig ControlSignal
			c.Receive(ctx, &sig)
			logger.Info("operator signal received", "signal", kind, "operator", sig.Operator, "reason", sig.Reason)
			got = kind
		}
	}
	selector.AddReceive(retryCh, receive(signalRetry))
	selector.AddReceive(cancelCh, receive(signalCancel))
	selector.AddReceive(abortCh, receive(signalAbort))

	for {
		selector.Select(ctx)
		if fired {
			return signalNone
		}
		if got == signalCancel && !cancellable() {
			logger.Warn("cancellation no longer allowed, signal ignored")
			got = signalNone
			continue
		}
		return got
	}
}

package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"translation-orchestrator/internal/domain"
)

// TaskConsumer imports a downloaded task payload. Returning true confirms
// the task as delivered; false or an error leaves it for the next poll.
type TaskConsumer func(ctx context.Context, payload io.Reader, task domain.TaskRecord) (bool, error)

// Tracker downloads and confirms tasks. Every operation re-lists the tasks
// it works on, so repeating an operation only touches what the provider
// still reports as open.
type Tracker struct {
	transport Transport
	log       zerolog.Logger
}

func NewTracker(transport Transport, log zerolog.Logger) *Tracker {
	return &Tracker{transport: transport, log: log}
}

// ListTasks returns every task with the given status across all pages.
func (t *Tracker) ListTasks(ctx context.Context, id domain.SubmissionID, status domain.TaskStatus) ([]domain.TaskRecord, error) {
	return collectPages(ctx, func(ctx context.Context, page int) (TaskPage, error) {
		return t.transport.ListTasks(ctx, id, status, page)
	}, t.log)
}

// DownloadCompleted feeds each completed task to consume and confirms the
// ones it accepts. It returns the number of confirmed tasks.
func (t *Tracker) DownloadCompleted(ctx context.Context, id domain.SubmissionID, consume TaskConsumer) (int, error) {
	tasks, err := t.ListTasks(ctx, id, domain.TaskCompleted)
	if err != nil {
		return 0, err
	}

	confirmed := 0
	for _, task := range tasks {
		log := t.log.With().Int64("task_id", task.TaskID).Str("locale", task.Locale).Logger()

		accepted, err := t.download(ctx, task, consume)
		if err != nil {
			return confirmed, err
		}
		if !accepted {
			log.Info().Msg("task payload not accepted, leaving task unconfirmed")
			continue
		}

		if err := t.confirm(ctx, task); err != nil {
			return confirmed, err
		}
		confirmed++
		log.Debug().Msg("task confirmed as delivered")
	}
	return confirmed, nil
}

func (t *Tracker) download(ctx context.Context, task domain.TaskRecord, consume TaskConsumer) (bool, error) {
	payload, err := t.transport.DownloadTask(ctx, task.TaskID)
	if err != nil {
		return false, asCommunication(err, "download task %d", task.TaskID)
	}
	defer func() {
		if cerr := payload.Close(); cerr != nil {
			t.log.Warn().Err(cerr).Int64("task_id", task.TaskID).Msg("close task payload")
		}
	}()

	accepted, err := consume(ctx, payload, task)
	if err != nil {
		t.log.Warn().Err(err).Int64("task_id", task.TaskID).Str("locale", task.Locale).Msg("task import failed, will retry on next poll")
		return false, nil
	}
	return accepted, nil
}

// ConfirmCompleted confirms completed tasks without downloading them and
// adds their locales to outLocales.
func (t *Tracker) ConfirmCompleted(ctx context.Context, id domain.SubmissionID, outLocales map[string]struct{}) (int, error) {
	tasks, err := t.ListTasks(ctx, id, domain.TaskCompleted)
	if err != nil {
		return 0, err
	}
	confirmed := 0
	for _, task := range tasks {
		if err := t.confirm(ctx, task); err != nil {
			return confirmed, err
		}
		confirmed++
		if outLocales != nil {
			outLocales[task.Locale] = struct{}{}
		}
	}
	return confirmed, nil
}

// ConfirmCancelled acknowledges cancelled tasks not yet confirmed. Nothing
// is sent when there are none. The first rejected confirmation aborts the
// run; tasks confirmed before it stay confirmed.
func (t *Tracker) ConfirmCancelled(ctx context.Context, id domain.SubmissionID) (int, error) {
	cancelled, err := t.ListTasks(ctx, id, domain.TaskCancelled)
	if err != nil {
		return 0, err
	}

	pending := make([]domain.TaskRecord, 0, len(cancelled))
	for _, task := range cancelled {
		if !task.CancelConfirmed {
			pending = append(pending, task)
		}
	}
	if len(pending) == 0 {
		t.log.Debug().Str("submission_id", id.String()).Msg("no cancelled tasks to confirm")
		return 0, nil
	}

	confirmed := 0
	for _, task := range pending {
		status, err := t.transport.ConfirmTaskCancellation(ctx, task.TaskID)
		if err != nil {
			return confirmed, asCommunication(err, "confirm cancellation of task %d", task.TaskID)
		}
		if status != http.StatusOK {
			return confirmed, domain.CommunicationFailure(nil, "confirm cancellation of task %d: provider answered %d", task.TaskID, status)
		}
		confirmed++
	}
	t.log.Info().Str("submission_id", id.String()).Int("confirmed", confirmed).Msg("cancelled tasks confirmed")
	return confirmed, nil
}

func (t *Tracker) confirm(ctx context.Context, task domain.TaskRecord) error {
	ok, err := t.transport.ConfirmTask(ctx, task.TaskID)
	if err != nil {
		return asCommunication(err, "confirm task %d", task.TaskID)
	}
	if !ok {
		return domain.CommunicationFailure(nil, "provider rejected confirmation of task %d", task.TaskID)
	}
	return nil
}

// asCommunication keeps classified failures and treats anything else from
// the transport as a communication problem.
func asCommunication(err error, format string, args ...any) error {
	if f := domain.Classify(err); f.Kind != domain.FailureUnknown {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
	}
	return domain.CommunicationFailure(err, format, args...)
}

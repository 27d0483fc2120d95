package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"translation-orchestrator/internal/domain"
)

// MockError injects failures into a mock session.
type MockError string

const (
	MockErrorNone                  MockError = ""
	MockErrorUploadCommunication   MockError = "upload_communication"
	MockErrorSubmitCommunication   MockError = "submit_communication"
	MockErrorDownloadCommunication MockError = "download_communication"
	MockErrorCancelCommunication   MockError = "cancel_communication"
	MockErrorCancelResult          MockError = "cancel_result"
	MockErrorDownloadPayload       MockError = "download_payload"
)

// Scenario shapes the states a mock submission reports.
type Scenario struct {
	Name string
	// Before is reported ahead of the regular lifecycle, one state per poll.
	Before []string
	// Override replaces the reported name of a regular state.
	Override map[string]string
	// After is reported once every task was delivered, one state per poll.
	After []string
	// Final is reported after After is exhausted. Defaults to "Delivered".
	Final string
}

var builtinScenarios = map[string]Scenario{
	"":        {Name: "default"},
	"default": {Name: "default"},
	"approval": {
		Name:   "approval",
		Before: []string{"Pre-Process", "Analyzed", "Awaiting Approval", "Awaiting Quote Approval"},
	},
	"redeliver": {
		Name:  "redeliver",
		After: []string{"Completed"},
		Final: "Redelivered",
	},
	"unknown-state": {
		Name:   "unknown-state",
		Before: []string{"Hibernating"},
	},
	"silent-cancel": {
		Name:     "silent-cancel",
		Override: map[string]string{"Cancelled": "Translate"},
	},
}

// ScenarioNames lists the built-in scenarios.
func ScenarioNames() []string {
	names := make([]string, 0, len(builtinScenarios))
	for name := range builtinScenarios {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// regularStates is the lifecycle every mock submission walks through.
var regularStates = []string{"Started", "Translate", "Completed"}

type mockTask struct {
	record  domain.TaskRecord
	fileID  string
	payload []byte
}

// mockSubmission is the replay state of one submission. The provider keeps
// one per submission id so a submission seen again resumes where it left off.
type mockSubmission struct {
	id        domain.SubmissionID
	scenario  Scenario
	polls     int
	afterStep int
	cancelled bool
	tasks     []*mockTask
	pdIDs     []string
}

// MockProvider simulates a provider in memory.
type MockProvider struct {
	mu          sync.Mutex
	submissions map[domain.SubmissionID]*mockSubmission
	scenarios   map[string]Scenario
	files       map[string][]byte
	nextID      int64
	nextTask    int64
	nextFile    int64
	pageSize    int
	requests    map[string]int
}

func NewMockProvider() *MockProvider {
	scenarios := make(map[string]Scenario, len(builtinScenarios))
	for name, s := range builtinScenarios {
		scenarios[name] = s
	}
	return &MockProvider{
		submissions: make(map[domain.SubmissionID]*mockSubmission),
		scenarios:   scenarios,
		files:       make(map[string][]byte),
		nextID:      1000,
		nextTask:    1,
		nextFile:    1,
		pageSize:    2,
		requests:    make(map[string]int),
	}
}

// Requests returns how often an operation was called.
func (p *MockProvider) Requests(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[op]
}

// Transport returns a view of the provider for one session.
func (p *MockProvider) Transport(mode MockError, scenario string) Transport {
	return &mockTransport{provider: p, mode: mode, scenario: scenario}
}

// AddScenario registers a custom scenario.
func (p *MockProvider) AddScenario(s Scenario) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scenarios[strings.ToLower(s.Name)] = s
}

type mockTransport struct {
	provider *MockProvider
	mode     MockError
	scenario string
}

func (t *mockTransport) GetSubmission(_ context.Context, id domain.SubmissionID) (domain.RawSubmission, error) {
	p := t.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests["get_submission"]++

	sub, ok := p.submissions[id]
	if !ok {
		return domain.RawSubmission{}, domain.NewFailure(domain.FailureSubmissionNotFound, nil, "submission %s not found", id)
	}
	state := sub.advance()
	raw := domain.RawSubmission{ID: id, State: &state, PDSubmissionIDs: sub.pdIDs}
	if sub.cancelled {
		cancelled := true
		raw.Cancelled = &cancelled
	}
	return raw, nil
}

// advance reports the state for this poll and moves the replay forward.
func (s *mockSubmission) advance() string {
	defer func() { s.polls++ }()

	if s.cancelled {
		return s.reported("Cancelled")
	}
	if s.polls < len(s.scenario.Before) {
		return s.scenario.Before[s.polls]
	}
	step := s.polls - len(s.scenario.Before)
	if step < len(regularStates) {
		state := regularStates[step]
		switch state {
		case "Translate":
			s.pdIDs = []string{fmt.Sprintf("PD-%d", s.id)}
		case "Completed":
			s.completeTasks()
		}
		return s.reported(state)
	}
	if !s.allDelivered() {
		return s.reported("Completed")
	}

	if s.afterStep < len(s.scenario.After) {
		state := s.scenario.After[s.afterStep]
		s.afterStep++
		if state == "Completed" {
			s.redeliver()
		}
		return state
	}
	if s.scenario.Final != "" {
		return s.scenario.Final
	}
	return "Delivered"
}

func (s *mockSubmission) reported(state string) string {
	if override, ok := s.scenario.Override[state]; ok {
		return override
	}
	return state
}

func (s *mockSubmission) completeTasks() {
	for _, task := range s.tasks {
		if task.record.Status == domain.TaskProcessing {
			task.record.Status = domain.TaskCompleted
		}
	}
}

func (s *mockSubmission) redeliver() {
	for _, task := range s.tasks {
		task.record.Status = domain.TaskCompleted
	}
}

func (s *mockSubmission) allDelivered() bool {
	for _, task := range s.tasks {
		if task.record.Status != domain.TaskDelivered {
			return false
		}
	}
	return true
}

func (t *mockTransport) ListTasks(_ context.Context, id domain.SubmissionID, status domain.TaskStatus, page int) (TaskPage, error) {
	p := t.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests["list_tasks"]++

	sub, ok := p.submissions[id]
	if !ok {
		return TaskPage{}, domain.NewFailure(domain.FailureSubmissionNotFound, nil, "submission %s not found", id)
	}
	matching := make([]domain.TaskRecord, 0, len(sub.tasks))
	for _, task := range sub.tasks {
		if status == "" || task.record.Status == status {
			matching = append(matching, task.record)
		}
	}
	if len(matching) == 0 {
		// the provider omits the page count for empty results
		return TaskPage{}, nil
	}

	total := (len(matching) + p.pageSize - 1) / p.pageSize
	start := (page - 1) * p.pageSize
	if start >= len(matching) || start < 0 {
		return TaskPage{TotalPages: &total}, nil
	}
	end := min(start+p.pageSize, len(matching))
	return TaskPage{Tasks: matching[start:end], TotalPages: &total}, nil
}

func (t *mockTransport) DownloadTask(_ context.Context, taskID int64) (io.ReadCloser, error) {
	p := t.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests["download_task"]++

	if t.mode == MockErrorDownloadCommunication {
		return nil, domain.CommunicationFailure(nil, "mock: download failed")
	}
	task := p.findTask(taskID)
	if task == nil {
		return nil, domain.NewFailure(domain.FailureSubmission, nil, "task %d not found", taskID)
	}
	payload := task.payload
	if t.mode == MockErrorDownloadPayload {
		payload = []byte("<broken")
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (t *mockTransport) ConfirmTask(_ context.Context, taskID int64) (bool, error) {
	p := t.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests["confirm_task"]++

	task := p.findTask(taskID)
	if task == nil || task.record.Status != domain.TaskCompleted {
		return false, nil
	}
	task.record.Status = domain.TaskDelivered
	return true, nil
}

func (t *mockTransport) ConfirmTaskCancellation(_ context.Context, taskID int64) (int, error) {
	p := t.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests["confirm_task_cancellation"]++

	task := p.findTask(taskID)
	if task == nil {
		return http.StatusNotFound, nil
	}
	if task.record.Status != domain.TaskCancelled {
		return http.StatusConflict, nil
	}
	task.record.CancelConfirmed = true
	return http.StatusOK, nil
}

func (t *mockTransport) CancelSubmission(_ context.Context, id domain.SubmissionID) (int, error) {
	p := t.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests["cancel_submission"]++

	switch t.mode {
	case MockErrorCancelCommunication:
		return 0, domain.CommunicationFailure(nil, "mock: cancel failed")
	case MockErrorCancelResult:
		return http.StatusNotFound, nil
	}
	sub, ok := p.submissions[id]
	if !ok {
		return http.StatusNotFound, nil
	}
	sub.cancelled = true
	for _, task := range sub.tasks {
		if task.record.Status != domain.TaskDelivered {
			task.record.Status = domain.TaskCancelled
		}
	}
	return http.StatusOK, nil
}

func (t *mockTransport) UploadContent(_ context.Context, fileName string, content []byte) (string, error) {
	p := t.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests["upload_content"]++

	if t.mode == MockErrorUploadCommunication {
		return "", domain.CommunicationFailure(nil, "mock: upload of %s failed", fileName)
	}
	fileID := fmt.Sprintf("file-%d", p.nextFile)
	p.nextFile++
	p.files[fileID] = append([]byte(nil), content...)
	return fileID, nil
}

func (t *mockTransport) SubmitSubmission(_ context.Context, req SubmitRequest) (domain.SubmissionID, error) {
	p := t.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests["submit_submission"]++

	if t.mode == MockErrorSubmitCommunication {
		return 0, domain.CommunicationFailure(nil, "mock: submit failed")
	}
	scenario, ok := p.scenarios[strings.ToLower(t.scenario)]
	if !ok {
		return 0, domain.NewFailure(domain.FailureConfig, nil, "unknown mock scenario %q", t.scenario)
	}

	id := domain.SubmissionID(p.nextID)
	p.nextID++
	sub := &mockSubmission{id: id, scenario: scenario}
	for fileID, locales := range req.Files {
		content, ok := p.files[fileID]
		if !ok {
			return 0, domain.NewFailure(domain.FailureSubmission, nil, "unknown file %s", fileID)
		}
		for _, locale := range locales {
			sub.tasks = append(sub.tasks, &mockTask{
				record:  domain.TaskRecord{TaskID: p.nextTask, Locale: locale, Status: domain.TaskProcessing},
				fileID:  fileID,
				payload: pseudoTranslate(content, req.SourceLocale, locale),
			})
			p.nextTask++
		}
	}
	p.submissions[id] = sub
	return id, nil
}

func (t *mockTransport) Logout(context.Context) error {
	t.provider.mu.Lock()
	defer t.provider.mu.Unlock()
	t.provider.requests["logout"]++
	return nil
}

func (p *MockProvider) findTask(taskID int64) *mockTask {
	for _, sub := range p.submissions {
		for _, task := range sub.tasks {
			if task.record.TaskID == taskID {
				return task
			}
		}
	}
	return nil
}

// pseudoTranslate marks the target language in the payload so imports can
// tell locales apart.
func pseudoTranslate(content []byte, source, target string) []byte {
	out := bytes.ReplaceAll(content, []byte(`target-language="`+source+`"`), []byte(`target-language="`+target+`"`))
	return append(out, []byte(fmt.Sprintf("\n<!-- translated %s to %s -->\n", source, target))...)
}

package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"translation-orchestrator/internal/config"
	"translation-orchestrator/internal/domain"
	"translation-orchestrator/internal/settings"
)

// Session is a short-lived view of the provider, opened for one action run.
type Session struct {
	transport Transport
	tracker   *Tracker
	log       zerolog.Logger
}

func NewSession(transport Transport, log zerolog.Logger) *Session {
	return &Session{transport: transport, tracker: NewTracker(transport, log), log: log}
}

// Submission fetches the submission and resolves its canonical state. The
// task set is only listed when the provider signals a cancellation.
func (s *Session) Submission(ctx context.Context, id domain.SubmissionID) (domain.Submission, error) {
	raw, err := s.transport.GetSubmission(ctx, id)
	if err != nil {
		return domain.Submission{}, err
	}

	var tasks []domain.TaskRecord
	if domain.SignalsCancellation(raw.State, raw.Cancelled) {
		tasks, err = s.tracker.ListTasks(ctx, id, "")
		if err != nil {
			return domain.Submission{}, err
		}
	}

	return domain.Submission{
		ID:              id,
		State:           domain.ResolveSubmissionState(raw.State, raw.Cancelled, tasks, s.log),
		PDSubmissionIDs: raw.PDSubmissionIDs,
		Error:           raw.Error,
		Tasks:           tasks,
	}, nil
}

func (s *Session) DownloadCompleted(ctx context.Context, id domain.SubmissionID, consume TaskConsumer) (int, error) {
	return s.tracker.DownloadCompleted(ctx, id, consume)
}

func (s *Session) ConfirmCompleted(ctx context.Context, id domain.SubmissionID, outLocales map[string]struct{}) (int, error) {
	return s.tracker.ConfirmCompleted(ctx, id, outLocales)
}

func (s *Session) ConfirmCancelled(ctx context.Context, id domain.SubmissionID) (int, error) {
	return s.tracker.ConfirmCancelled(ctx, id)
}

// Cancel asks the provider to cancel. It reports whether the provider
// accepted the request.
func (s *Session) Cancel(ctx context.Context, id domain.SubmissionID) (bool, error) {
	status, err := s.transport.CancelSubmission(ctx, id)
	if err != nil {
		return false, asCommunication(err, "cancel submission %s", id)
	}
	if status != http.StatusOK {
		s.log.Warn().Str("submission_id", id.String()).Int("status", status).Msg("provider refused cancellation")
		return false, nil
	}
	return true, nil
}

func (s *Session) Upload(ctx context.Context, fileName string, content []byte) (string, error) {
	fileID, err := s.transport.UploadContent(ctx, fileName, content)
	if err != nil {
		return "", asCommunication(err, "upload %s", fileName)
	}
	return fileID, nil
}

func (s *Session) Submit(ctx context.Context, req SubmitRequest) (domain.SubmissionID, error) {
	id, err := s.transport.SubmitSubmission(ctx, req)
	if err != nil {
		return 0, asCommunication(err, "submit submission %q", req.Subject)
	}
	return id, nil
}

// Close logs out. Failures are logged, never returned.
func (s *Session) Close(ctx context.Context) {
	if err := s.transport.Logout(ctx); err != nil {
		s.log.Warn().Err(err).Msg("provider logout failed")
	}
}

// SessionFactory opens a provider session for the given settings.
type SessionFactory interface {
	Open(ctx context.Context, s settings.Settings) (*Session, error)
}

// Factory picks the transport from the "type" setting.
type Factory struct {
	HTTPClient *http.Client
	Mock       *MockProvider
	Log        zerolog.Logger
}

func NewFactory(httpClient *http.Client, mock *MockProvider, log zerolog.Logger) *Factory {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Factory{HTTPClient: httpClient, Mock: mock, Log: log}
}

func (f *Factory) Open(_ context.Context, s settings.Settings) (*Session, error) {
	providerType := s.Str(config.SettingProviderType, config.ProviderTypeDefault)
	switch providerType {
	case config.ProviderTypeDefault:
		transport, err := f.restTransport(s)
		if err != nil {
			return nil, err
		}
		return NewSession(transport, f.Log), nil
	case config.ProviderTypeMock:
		if f.Mock == nil {
			return nil, domain.NewFailure(domain.FailureConfig, nil, "mock provider requested but not available")
		}
		return NewSession(f.Mock.Transport(MockError(s.Str(config.SettingMockError, "")), s.Str(config.SettingMockScenario, "")), f.Log), nil
	case config.ProviderTypeDisabled:
		return nil, domain.NewFailure(domain.FailureConfig, nil, "provider access is disabled")
	default:
		return nil, domain.NewFailure(domain.FailureConfig, nil, "unknown provider type %q", providerType)
	}
}

func (f *Factory) restTransport(s settings.Settings) (*RESTTransport, error) {
	baseURL := s.Str(config.SettingProviderURL, "")
	if baseURL == "" {
		return nil, domain.NewFailure(domain.FailureConfig, nil, "provider url is not configured")
	}
	apiKey := s.Str(config.SettingProviderAPIKey, "")
	if apiKey == "" {
		return nil, domain.NewFailure(domain.FailureAccess, nil, "provider api key is not configured")
	}
	connectorKey := s.Str(config.SettingProviderConnectorKey, "")
	if connectorKey == "" {
		return nil, domain.NewFailure(domain.FailureConnectorKey, nil, "provider connector key is not configured")
	}
	timeout := 30 * time.Second
	if raw := s.Str(config.SettingProviderTimeout, ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			timeout = d
		}
	}
	return NewRESTTransport(f.HTTPClient, baseURL, apiKey, connectorKey, timeout), nil
}

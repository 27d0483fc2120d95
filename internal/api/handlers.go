package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/converter"

	"translation-orchestrator/internal/config"
	"translation-orchestrator/internal/domain"
	"translation-orchestrator/internal/storage"
	appTemporal "translation-orchestrator/internal/temporal"
)

// exportField prefixes the multipart field carrying the export for a locale,
// e.g. export_de.
const exportField = "export_"

type requestStore interface {
	CreateRequest(ctx context.Context, requestID string, req domain.SubmissionRequest) error
	GetRequest(ctx context.Context, requestID string) (domain.SubmissionRequest, error)
	GetSnapshot(ctx context.Context, requestID string) (domain.SubmissionSnapshot, error)
	ListSnapshots(ctx context.Context, state domain.CanonicalState, limit int) ([]domain.SubmissionSnapshot, error)
	PutSettings(ctx context.Context, scope string, values map[string]any) error
	Ping(ctx context.Context) error
}

type exportStore interface {
	PutExport(ctx context.Context, requestID, locale string, payload []byte) (string, error)
	PutManifest(ctx context.Context, manifest storage.Manifest) (string, error)
}

// workflowClient is the part of the Temporal client the API uses.
type workflowClient interface {
	SignalWorkflow(ctx context.Context, workflowID string, runID string, signalName string, arg interface{}) error
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type Handler struct {
	cfg       config.Config
	store     requestStore
	blob      exportStore
	workflows workflowClient
	validate  *validator.Validate
	log       zerolog.Logger
	now       func() time.Time
}

type startRequest struct {
	Subject       string            `json:"subject" validate:"required,max=255"`
	Comment       string            `json:"comment" validate:"max=4000"`
	SourceLocale  string            `json:"source_locale" validate:"required"`
	TargetLocales []string          `json:"target_locales" validate:"required,min=1,max=50,dive,required"`
	DueDate       time.Time         `json:"due_date" validate:"required"`
	Workflow      string            `json:"workflow" validate:"max=128"`
	Submitter     string            `json:"submitter" validate:"omitempty,email"`
	Site          string            `json:"site" validate:"max=128"`
	Attributes    map[string]string `json:"attributes" validate:"max=32"`
}

type controlRequest struct {
	Operator string `json:"operator" validate:"max=128"`
	Reason   string `json:"reason" validate:"max=1000"`
}

func NewHandler(cfg config.Config, store requestStore, blob exportStore, workflows workflowClient, log zerolog.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		store:     store,
		blob:      blob,
		workflows: workflows,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       log,
		now:       time.Now,
	}
}

// StartTranslation stores the request and its export payloads. The manifest
// is written last; the event handler starts the workflow once it appears.
func (h *Handler) StartTranslation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := r.ParseMultipartForm(h.cfg.AllowedUploadBytes); err != nil {
		badRequest(w, r, "invalid multipart payload")
		return
	}

	var in startRequest
	if err := json.Unmarshal([]byte(r.FormValue("request")), &in); err != nil {
		badRequest(w, r, "request form field must hold the translation request as JSON")
		return
	}
	if err := h.validate.StructCtx(ctx, in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			rules := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				rules = append(rules, fmt.Sprintf("%s.%s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			invalidRequest(w, r, rules)
			return
		}
		badRequest(w, r, err.Error())
		return
	}

	req := domain.SubmissionRequest(in)
	if failed := domain.ValidateSubmissionRequest(req, h.now()); len(failed) > 0 {
		invalidRequest(w, r, failed)
		return
	}

	payloads := make(map[string][]byte, len(req.TargetLocales))
	for _, locale := range req.TargetLocales {
		body, err := h.readExport(r, locale)
		if err != nil {
			badRequest(w, r, err.Error())
			return
		}
		if !domain.IsTranslatablePayload(body) {
			writeProblem(w, r, http.StatusUnsupportedMediaType, "unsupported_export",
				fmt.Sprintf("export for %s is not an XLIFF document", locale))
			return
		}
		payloads[locale] = body
	}

	requestID := uuid.NewString()
	log := h.log.With().Str("request_id", requestID).Logger()
	if err := h.store.CreateRequest(ctx, requestID, req); err != nil {
		log.Error().Err(err).Msg("failed to record translation request")
		internalError(w, r, errors.New("failed to record translation request"))
		return
	}

	exports := make(map[string]string, len(payloads))
	for locale, body := range payloads {
		key, err := h.blob.PutExport(ctx, requestID, locale, body)
		if err != nil {
			log.Error().Err(err).Str("locale", locale).Msg("failed to store export")
			internalError(w, r, fmt.Errorf("failed to store export for %s", locale))
			return
		}
		exports[locale] = key
	}

	if _, err := h.blob.PutManifest(ctx, storage.Manifest{
		RequestID: requestID,
		Site:      req.Site,
		Request:   req,
		Exports:   exports,
		CreatedAt: h.now().UTC(),
	}); err != nil {
		log.Error().Err(err).Msg("failed to store manifest")
		internalError(w, r, errors.New("failed to store manifest"))
		return
	}

	log.Info().Strs("target_locales", req.TargetLocales).Msg("translation request accepted")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"request_id":  requestID,
		"workflow_id": h.cfg.WorkflowID(requestID),
		"status":      "RECEIVED",
	})
}

func (h *Handler) readExport(r *http.Request, locale string) ([]byte, error) {
	file, _, err := r.FormFile(exportField + locale)
	if err != nil {
		return nil, fmt.Errorf("%s%s form field is required", exportField, locale)
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, h.cfg.AllowedUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read export for %s", locale)
	}
	if int64(len(body)) > h.cfg.AllowedUploadBytes {
		return nil, fmt.Errorf("export for %s exceeds size limit", locale)
	}
	return body, nil
}

func (h *Handler) GetTranslation(w http.ResponseWriter, r *http.Request, requestID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snap, err := h.store.GetSnapshot(ctx, requestID)
	if err == nil {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	if !errors.Is(err, domain.ErrNotFound) {
		internalError(w, r, errors.New("failed to fetch translation"))
		return
	}

	// No action ran yet.
	if _, err := h.store.GetRequest(ctx, requestID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w, r, "translation request not found")
			return
		}
		internalError(w, r, errors.New("failed to fetch translation"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id":  requestID,
		"workflow_id": h.cfg.WorkflowID(requestID),
		"status":      "RECEIVED",
	})
}

func (h *Handler) ListTranslations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var state domain.CanonicalState
	if raw := r.URL.Query().Get("state"); raw != "" {
		parsed, ok := domain.ParseCanonicalState(raw)
		if !ok {
			badRequest(w, r, fmt.Sprintf("unknown state %q", raw))
			return
		}
		state = parsed
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			badRequest(w, r, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	items, err := h.store.ListSnapshots(ctx, state, limit)
	if err != nil {
		internalError(w, r, errors.New("failed to list translations"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// LiveStatus asks the running workflow for its in-memory state.
func (h *Handler) LiveStatus(w http.ResponseWriter, r *http.Request, requestID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	val, err := h.workflows.QueryWorkflow(ctx, h.cfg.WorkflowID(requestID), "", appTemporal.StatusQueryName)
	if err != nil {
		h.log.Warn().Err(err).Str("request_id", requestID).Msg("status query failed")
		writeProblem(w, r, http.StatusBadGateway, "workflow_unavailable", "workflow did not answer the status query")
		return
	}
	var view appTemporal.StatusView
	if err := val.Get(&view); err != nil {
		internalError(w, r, errors.New("failed to decode workflow status"))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Control forwards retry, cancel and abort to the workflow as signals.
func (h *Handler) Control(w http.ResponseWriter, r *http.Request, requestID, command string) {
	signalName, ok := appTemporal.SignalNames[command]
	if !ok {
		notFound(w, r, fmt.Sprintf("unknown command %q", command))
		return
	}

	var in controlRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
			badRequest(w, r, "invalid json")
			return
		}
	}
	if err := h.validate.Struct(in); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	signal := appTemporal.ControlSignal{Operator: in.Operator, Reason: in.Reason}
	if err := h.workflows.SignalWorkflow(r.Context(), h.cfg.WorkflowID(requestID), "", signalName, signal); err != nil {
		h.log.Warn().Err(err).Str("request_id", requestID).Str("signal", signalName).Msg("signal failed")
		writeProblem(w, r, http.StatusBadGateway, "workflow_unavailable", "failed to signal workflow")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"request_id": requestID, "status": command + "_signal_sent"})
}

// PutSettings replaces the stored settings layer for scope.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request, scope string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var values map[string]any
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	for _, key := range []string{
		config.SettingDefaultRetryDelay,
		config.SettingSendRetryDelay,
		config.SettingDownloadRetryDelay,
		config.SettingDownloadEarlyRetryDelay,
		config.SettingCancelRetryDelay,
	} {
		if v, ok := values[key]; ok {
			if _, valid := domain.RetryDelayFromAny(v); !valid {
				badRequest(w, r, fmt.Sprintf("%s is not a valid retry delay", key))
				return
			}
		}
	}

	if err := h.store.PutSettings(ctx, scope, values); err != nil {
		internalError(w, r, errors.New("failed to store settings"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scope": scope, "settings": values})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

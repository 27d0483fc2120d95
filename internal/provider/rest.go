package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"translation-orchestrator/internal/domain"
)

// RESTTransport is the HTTP/JSON provider client.
type RESTTransport struct {
	baseURL      string
	apiKey       string
	connectorKey string
	timeout      time.Duration
	httpClient   *http.Client
}

func NewRESTTransport(httpClient *http.Client, baseURL, apiKey, connectorKey string, timeout time.Duration) *RESTTransport {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RESTTransport{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		connectorKey: connectorKey,
		timeout:      timeout,
		httpClient:   httpClient,
	}
}

type errorResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type submissionResponse struct {
	ID              int64    `json:"id"`
	State           *string  `json:"state"`
	Cancelled       *bool    `json:"cancelled"`
	PDSubmissionIDs []string `json:"pd_submission_ids"`
	Error           bool     `json:"error"`
}

type uploadResponse struct {
	FileID string `json:"file_id"`
}

type submitResponse struct {
	SubmissionID int64 `json:"submission_id"`
}

func (c *RESTTransport) GetSubmission(ctx context.Context, id domain.SubmissionID) (domain.RawSubmission, error) {
	var parsed submissionResponse
	status, err := c.doJSON(ctx, http.MethodGet, "/submissions/"+id.String(), nil, &parsed)
	if err != nil {
		if status == http.StatusNotFound {
			return domain.RawSubmission{}, domain.NewFailure(domain.FailureSubmissionNotFound, err, "submission %s not found", id)
		}
		return domain.RawSubmission{}, err
	}
	return domain.RawSubmission{
		ID:              domain.SubmissionID(parsed.ID),
		State:           parsed.State,
		Cancelled:       parsed.Cancelled,
		PDSubmissionIDs: parsed.PDSubmissionIDs,
		Error:           parsed.Error,
	}, nil
}

func (c *RESTTransport) ListTasks(ctx context.Context, id domain.SubmissionID, status domain.TaskStatus, page int) (TaskPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	if status != "" {
		query.Set("status", string(status))
	}
	var parsed TaskPage
	code, err := c.doJSON(ctx, http.MethodGet, "/submissions/"+id.String()+"/tasks?"+query.Encode(), nil, &parsed)
	if err != nil {
		if code == http.StatusNotFound {
			return TaskPage{}, domain.NewFailure(domain.FailureSubmissionNotFound, err, "submission %s not found", id)
		}
		return TaskPage{}, err
	}
	return parsed, nil
}

// DownloadTask streams the payload; the caller closes it.
func (c *RESTTransport) DownloadTask(ctx context.Context, taskID int64) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tasks/%d/download", taskID), "", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, statusFailure(resp.StatusCode, body, "download task %d", taskID)
	}
	return resp.Body, nil
}

func (c *RESTTransport) ConfirmTask(ctx context.Context, taskID int64) (bool, error) {
	status, err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/tasks/%d/confirm", taskID), nil, nil)
	if err != nil {
		if status == http.StatusConflict || status == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return status == http.StatusOK, nil
}

// ConfirmTaskCancellation returns the provider's status code; non-2xx codes
// other than server errors are not treated as transport errors.
func (c *RESTTransport) ConfirmTaskCancellation(ctx context.Context, taskID int64) (int, error) {
	return c.statusOnly(ctx, fmt.Sprintf("/tasks/%d/confirm-cancellation", taskID))
}

func (c *RESTTransport) CancelSubmission(ctx context.Context, id domain.SubmissionID) (int, error) {
	return c.statusOnly(ctx, "/submissions/"+id.String()+"/cancel")
}

func (c *RESTTransport) UploadContent(ctx context.Context, fileName string, content []byte) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/files?name="+url.QueryEscape(fileName), "application/octet-stream", content)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.CommunicationFailure(err, "read upload response")
	}
	if resp.StatusCode >= 400 {
		return "", statusFailure(resp.StatusCode, body, "upload %s", fileName)
	}
	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.FileID == "" {
		return "", domain.CommunicationFailure(err, "unable to parse upload response")
	}
	return parsed.FileID, nil
}

func (c *RESTTransport) SubmitSubmission(ctx context.Context, req SubmitRequest) (domain.SubmissionID, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}
	var parsed submitResponse
	if _, err := c.doJSON(ctx, http.MethodPost, "/submissions", payload, &parsed); err != nil {
		return 0, err
	}
	if parsed.SubmissionID <= 0 {
		return 0, domain.NewFailure(domain.FailureSubmission, nil, "provider returned no submission id")
	}
	return domain.SubmissionID(parsed.SubmissionID), nil
}

func (c *RESTTransport) Logout(ctx context.Context) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/logout", nil, nil)
	return err
}

func (c *RESTTransport) statusOnly(ctx context.Context, path string) (int, error) {
	resp, err := c.do(ctx, http.MethodPost, path, "", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return resp.StatusCode, domain.CommunicationFailure(nil, "POST %s: provider answered %d", path, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// doJSON returns the status code alongside any error so callers can map
// specific codes.
func (c *RESTTransport) doJSON(ctx context.Context, method, path string, payload []byte, out any) (int, error) {
	contentType := ""
	if payload != nil {
		contentType = "application/json"
	}
	resp, err := c.do(ctx, method, path, contentType, payload)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, domain.CommunicationFailure(err, "read provider response")
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, statusFailure(resp.StatusCode, body, "%s %s", method, path)
	}
	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, domain.CommunicationFailure(err, "unable to parse provider response")
		}
	}
	return resp.StatusCode, nil
}

func (c *RESTTransport) do(ctx context.Context, method, path, contentType string, payload []byte) (*http.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, body)
	if err != nil {
		cancel()
		return nil, domain.NewFailure(domain.FailureConfig, err, "build provider request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Connector-Key", c.connectorKey)
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, domain.CommunicationFailure(err, "%s %s", method, path)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func statusFailure(status int, body []byte, format string, args ...any) *domain.Failure {
	var parsed errorResponse
	_ = json.Unmarshal(body, &parsed)
	detail := fmt.Sprintf("provider answered %d", status)
	code := ""
	if parsed.Error != nil {
		code = parsed.Error.Code
		if parsed.Error.Message != "" {
			detail = fmt.Sprintf("%s: %s", detail, parsed.Error.Message)
		}
	}
	cause := errors.New(detail)
	msg := fmt.Sprintf(format, args...)

	switch {
	case status == http.StatusUnauthorized:
		return domain.NewFailure(domain.FailureAccess, cause, "%s", msg)
	case status == http.StatusForbidden && code == "invalid_connector_key":
		return domain.NewFailure(domain.FailureConnectorKey, cause, "%s", msg)
	case status == http.StatusForbidden:
		return domain.NewFailure(domain.FailureAccess, cause, "%s", msg)
	case status == http.StatusUnsupportedMediaType:
		return domain.NewFailure(domain.FailureFileType, cause, "%s", msg)
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return domain.CommunicationFailure(cause, "%s", msg)
	case status == http.StatusNotFound:
		return domain.NewFailure(domain.FailureSubmission, cause, "%s", msg)
	default:
		return domain.NewFailure(domain.FailureUnknown, cause, "%s", msg)
	}
}

package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"translation-orchestrator/internal/domain"
)

//go:embed sql/schema.sql
var schemaSQL string

const (
	ScopeGlobal     = "global"
	siteScopePrefix = "site:"
)

// SiteScope is the settings scope of a single site.
func SiteScope(site string) string {
	return siteScopePrefix + site
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the tables if they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	trimmed := strings.TrimSpace(schemaSQL)
	if trimmed == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, trimmed); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateRequest(ctx context.Context, requestID string, req domain.SubmissionRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO translation_requests (request_id, site, request)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (request_id) DO NOTHING
	`, requestID, req.Site, string(payload))
	return err
}

func (s *PostgresStore) GetRequest(ctx context.Context, requestID string) (domain.SubmissionRequest, error) {
	var payload []byte
	row := s.db.QueryRowContext(ctx, `SELECT request FROM translation_requests WHERE request_id = $1`, requestID)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SubmissionRequest{}, fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
		}
		return domain.SubmissionRequest{}, err
	}
	var req domain.SubmissionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return domain.SubmissionRequest{}, fmt.Errorf("decode request %s: %w", requestID, err)
	}
	return req, nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap domain.SubmissionSnapshot) error {
	retry, err := json.Marshal(snap.Retry)
	if err != nil {
		return err
	}
	var issues *string
	if len(snap.Issues) > 0 && string(snap.Issues) != "null" {
		v := string(snap.Issues)
		issues = &v
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO translation_snapshots (
			request_id, workflow_id, submission_id, state, action, outcome,
			pd_submission_ids, completed_locales, cancellation_allowed, retry, issues, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11::jsonb, $12)
		ON CONFLICT (request_id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			submission_id = EXCLUDED.submission_id,
			state = EXCLUDED.state,
			action = EXCLUDED.action,
			outcome = EXCLUDED.outcome,
			pd_submission_ids = EXCLUDED.pd_submission_ids,
			completed_locales = EXCLUDED.completed_locales,
			cancellation_allowed = EXCLUDED.cancellation_allowed,
			retry = EXCLUDED.retry,
			issues = EXCLUDED.issues,
			updated_at = EXCLUDED.updated_at
	`,
		snap.RequestID,
		snap.WorkflowID,
		snap.SubmissionID,
		snap.State,
		snap.Action,
		snap.Outcome,
		pq.Array(snap.PDSubmissionIDs),
		pq.Array(snap.CompletedLocales),
		snap.CancellationAllowed,
		string(retry),
		issues,
		snap.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, requestID string) (domain.SubmissionSnapshot, error) {
	var (
		snap   domain.SubmissionSnapshot
		state  string
		retry  []byte
		issues []byte
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT request_id, workflow_id, submission_id, state, action, outcome,
		       pd_submission_ids, completed_locales, cancellation_allowed, retry, issues, updated_at
		FROM translation_snapshots
		WHERE request_id = $1
	`, requestID)
	if err := row.Scan(
		&snap.RequestID,
		&snap.WorkflowID,
		&snap.SubmissionID,
		&state,
		&snap.Action,
		&snap.Outcome,
		pq.Array(&snap.PDSubmissionIDs),
		pq.Array(&snap.CompletedLocales),
		&snap.CancellationAllowed,
		&retry,
		&issues,
		&snap.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SubmissionSnapshot{}, fmt.Errorf("snapshot %s: %w", requestID, domain.ErrNotFound)
		}
		return domain.SubmissionSnapshot{}, err
	}

	if state != "" {
		snap.State, _ = domain.ParseCanonicalState(state)
	}
	if err := json.Unmarshal(retry, &snap.Retry); err != nil {
		return domain.SubmissionSnapshot{}, fmt.Errorf("decode retry state: %w", err)
	}
	if len(issues) > 0 {
		snap.Issues = issues
	}
	return snap, nil
}

// ListSnapshots returns the snapshots in the given canonical state, most
// recently updated first. An empty state lists everything.
func (s *PostgresStore) ListSnapshots(ctx context.Context, state domain.CanonicalState, limit int) ([]domain.SubmissionSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, workflow_id, submission_id, state, action, outcome, cancellation_allowed, updated_at
		FROM translation_snapshots
		WHERE $1 = '' OR state = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, string(state), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SubmissionSnapshot, 0)
	for rows.Next() {
		var snap domain.SubmissionSnapshot
		var st string
		if err := rows.Scan(&snap.RequestID, &snap.WorkflowID, &snap.SubmissionID, &st, &snap.Action, &snap.Outcome, &snap.CancellationAllowed, &snap.UpdatedAt); err != nil {
			return nil, err
		}
		if st != "" {
			snap.State, _ = domain.ParseCanonicalState(st)
		}
		items = append(items, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) InsertAudit(ctx context.Context, requestID string, event string, detail any) error {
	var payload []byte
	switch v := detail.(type) {
	case nil:
		payload = []byte("{}")
	case []byte:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		payload = b
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (request_id, event, detail)
		VALUES ($1, $2, $3::jsonb)
	`, requestID, event, string(payload))
	return err
}

func (s *PostgresStore) GlobalSettings(ctx context.Context) (map[string]any, error) {
	return s.settings(ctx, ScopeGlobal)
}

func (s *PostgresStore) SiteSettings(ctx context.Context, site string) (map[string]any, error) {
	return s.settings(ctx, SiteScope(site))
}

// PutSettings replaces the stored layer for scope.
func (s *PostgresStore) PutSettings(ctx context.Context, scope string, values map[string]any) error {
	if scope != ScopeGlobal && !strings.HasPrefix(scope, siteScopePrefix) {
		return fmt.Errorf("invalid settings scope %q", scope)
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO translation_settings (scope, value)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (scope) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, scope, string(payload))
	return err
}

// settings returns nil when the scope has no stored layer.
func (s *PostgresStore) settings(ctx context.Context, scope string) (map[string]any, error) {
	var payload []byte
	row := s.db.QueryRowContext(ctx, `SELECT value FROM translation_settings WHERE scope = $1`, scope)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load settings %s: %w", scope, err)
	}
	var values map[string]any
	if err := json.Unmarshal(payload, &values); err != nil {
		return nil, fmt.Errorf("decode settings %s: %w", scope, err)
	}
	return values, nil
}

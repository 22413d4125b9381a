package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"podcast-ai-backend/internal/models"
)

// PostgresStore backs the workflow state machine with Postgres. Content
// and job-error writes use jsonb concatenation so concurrent
// unrelated-field patches never clobber each other.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// checkOwnership distinguishes a missing project from a foreign one.
func checkOwnership(ctx context.Context, q querier, projectID uuid.UUID, userID string) error {
	var owner string
	err := q.QueryRowContext(ctx, `
		SELECT user_id FROM projects
		WHERE id = $1 AND deleted_at IS NULL
	`, projectID).Scan(&owner)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check project owner: %w", err)
	}
	if owner != userID {
		return ErrUnauthorized
	}
	return nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *models.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	contentJSON, err := json.Marshal(p.Content)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	// Seed counters from existing rows before the insert so the
	// increment below is exact whether or not a counters row existed.
	if err := backfillCounters(ctx, tx, p.UserID); err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO projects (
			id, user_id, name, status, transcription_status, content_generation_status,
			file_url, file_name, file_size, duration, format, mime_type, content
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, p.ID, p.UserID, p.Name, p.Status, p.Transcription, p.ContentGeneration,
		p.FileURL, p.FileName, p.FileSize, p.Duration, p.Format, p.MimeType,
		contentJSON,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE user_project_counters
		SET total_count = total_count + 1, active_count = active_count + 1
		WHERE user_id = $1
	`, p.UserID); err != nil {
		return fmt.Errorf("failed to increment counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project create: %w", err)
	}
	return nil
}

const projectColumns = `
	id, user_id, name, status, transcription_status, content_generation_status,
	file_url, file_name, file_size, duration, format, mime_type,
	transcript, content, job_errors, error,
	created_at, updated_at, completed_at, deleted_at
`

func (s *PostgresStore) GetProject(ctx context.Context, projectID uuid.UUID, userID string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE id = $1 AND deleted_at IS NULL
	`, projectID)

	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if p.UserID != userID {
		return nil, ErrUnauthorized
	}
	return p, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, projectID uuid.UUID, userID string, status models.ProjectStatus) error {
	if err := checkOwnership(ctx, s.db, projectID, userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET status = $1,
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
		    updated_at = NOW()
		WHERE id = $2
	`, status, projectID)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateJobStatuses(ctx context.Context, projectID uuid.UUID, userID string, transcription *models.TranscriptionStatus, content *models.ContentStatus) error {
	if err := checkOwnership(ctx, s.db, projectID, userID); err != nil {
		return err
	}
	var tr, ct sql.NullString
	if transcription != nil {
		tr = sql.NullString{String: string(*transcription), Valid: true}
	}
	if content != nil {
		ct = sql.NullString{String: string(*content), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET transcription_status = COALESCE($1, transcription_status),
		    content_generation_status = COALESCE($2, content_generation_status),
		    updated_at = NOW()
		WHERE id = $3
	`, tr, ct, projectID)
	if err != nil {
		return fmt.Errorf("failed to update job statuses: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveTranscript(ctx context.Context, projectID uuid.UUID, userID string, t *models.Transcript) error {
	if err := checkOwnership(ctx, s.db, projectID, userID); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE projects SET transcript = $1, updated_at = NOW() WHERE id = $2
	`, data, projectID)
	if err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveGeneratedContent(ctx context.Context, projectID uuid.UUID, userID string, patch models.GeneratedContent) error {
	if err := checkOwnership(ctx, s.db, projectID, userID); err != nil {
		return err
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal content patch: %w", err)
	}
	// jsonb || only replaces keys present in the patch.
	_, err = s.db.ExecContext(ctx, `
		UPDATE projects SET content = content || $1::jsonb, updated_at = NOW() WHERE id = $2
	`, data, projectID)
	if err != nil {
		return fmt.Errorf("failed to save generated content: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveJobErrors(ctx context.Context, projectID uuid.UUID, userID string, errs map[models.JobKey]string) error {
	if err := checkOwnership(ctx, s.db, projectID, userID); err != nil {
		return err
	}
	data, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("failed to marshal job errors: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE projects SET job_errors = job_errors || $1::jsonb, updated_at = NOW() WHERE id = $2
	`, data, projectID)
	if err != nil {
		return fmt.Errorf("failed to save job errors: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordWorkflowError(ctx context.Context, projectID uuid.UUID, userID string, we models.WorkflowError) error {
	if err := checkOwnership(ctx, s.db, projectID, userID); err != nil {
		return err
	}
	data, err := json.Marshal(we)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow error: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE projects SET error = $1, status = 'failed', updated_at = NOW() WHERE id = $2
	`, data, projectID)
	if err != nil {
		return fmt.Errorf("failed to record workflow error: %w", err)
	}
	return nil
}

func (s *PostgresStore) RenameProject(ctx context.Context, projectID uuid.UUID, userID string, name string) error {
	trimmed, err := NormalizeProjectName(name)
	if err != nil {
		return err
	}
	if err := checkOwnership(ctx, s.db, projectID, userID); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE projects SET name = $1, updated_at = NOW()
		WHERE id = $2 AND name IS DISTINCT FROM $1
	`, trimmed, projectID)
	if err != nil {
		return fmt.Errorf("failed to rename project: %w", err)
	}
	return nil
}

func (s *PostgresStore) SoftDeleteProject(ctx context.Context, projectID uuid.UUID, userID string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkOwnership(ctx, tx, projectID, userID); err != nil {
		return "", err
	}
	if err := backfillCounters(ctx, tx, userID); err != nil {
		return "", err
	}

	var fileURL string
	err = tx.QueryRowContext(ctx, `
		UPDATE projects SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING file_url
	`, projectID).Scan(&fileURL)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to soft delete project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE user_project_counters
		SET active_count = GREATEST(active_count - 1, 0)
		WHERE user_id = $1
	`, userID); err != nil {
		return "", fmt.Errorf("failed to decrement active counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit soft delete: %w", err)
	}
	return fileURL, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, userID string, limit, offset int) ([]models.Project, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM projects WHERE user_id = $1 AND deleted_at IS NULL
	`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, total, rows.Err()
}

func (s *PostgresStore) GetCounters(ctx context.Context, userID string) (models.UserProjectCounters, error) {
	c := models.UserProjectCounters{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT total_count, active_count FROM user_project_counters WHERE user_id = $1
	`, userID).Scan(&c.TotalCount, &c.ActiveCount)
	if err == nil {
		return c, nil
	}
	if err != sql.ErrNoRows {
		return c, fmt.Errorf("failed to get counters: %w", err)
	}

	if err := backfillCounters(ctx, s.db, userID); err != nil {
		return c, err
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT total_count, active_count FROM user_project_counters WHERE user_id = $1
	`, userID).Scan(&c.TotalCount, &c.ActiveCount)
	if err != nil {
		return c, fmt.Errorf("failed to get counters after backfill: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) RecordOrphanedFile(ctx context.Context, f models.OrphanedFile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orphaned_files (id, project_id, user_id, file_url, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, f.ID, f.ProjectID, f.UserID, f.FileURL, f.Reason)
	if err != nil {
		return fmt.Errorf("failed to record orphaned file: %w", err)
	}
	return nil
}

// CompletedStep reports the memoized result of a workflow step, if any.
func (s *PostgresStore) CompletedStep(ctx context.Context, runID, stepName string) (json.RawMessage, bool, error) {
	var result []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT result FROM workflow_steps WHERE run_id = $1 AND step_name = $2
	`, runID, stepName).Scan(&result)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read step log: %w", err)
	}
	return result, true, nil
}

// RecordStep commits a step result; the first committed result wins so
// concurrent replays stay idempotent.
func (s *PostgresStore) RecordStep(ctx context.Context, runID, stepName string, result json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_steps (run_id, step_name, result)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id, step_name) DO NOTHING
	`, runID, stepName, []byte(result))
	if err != nil {
		return fmt.Errorf("failed to record step: %w", err)
	}
	return nil
}

type execQuerier interface {
	querier
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// backfillCounters seeds the denormalized counters from project rows when
// the row is missing. ON CONFLICT DO NOTHING makes concurrent backfills
// collapse to a single winner.
func backfillCounters(ctx context.Context, q execQuerier, userID string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO user_project_counters (user_id, total_count, active_count)
		SELECT $1,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE deleted_at IS NULL)
		FROM projects WHERE user_id = $1
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to backfill counters: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var (
		p                      models.Project
		duration               sql.NullFloat64
		format, mimeType       sql.NullString
		transcript, content    []byte
		jobErrors, workflowErr []byte
		completedAt, deletedAt sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Status, &p.Transcription, &p.ContentGeneration,
		&p.FileURL, &p.FileName, &p.FileSize, &duration, &format, &mimeType,
		&transcript, &content, &jobErrors, &workflowErr,
		&p.CreatedAt, &p.UpdatedAt, &completedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	if duration.Valid {
		p.Duration = &duration.Float64
	}
	p.Format = format.String
	p.MimeType = mimeType.String
	if len(transcript) > 0 {
		if err := json.Unmarshal(transcript, &p.Transcript); err != nil {
			return nil, fmt.Errorf("failed to decode transcript: %w", err)
		}
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &p.Content); err != nil {
			return nil, fmt.Errorf("failed to decode content: %w", err)
		}
	}
	if len(jobErrors) > 0 {
		if err := json.Unmarshal(jobErrors, &p.JobErrors); err != nil {
			return nil, fmt.Errorf("failed to decode job errors: %w", err)
		}
		if len(p.JobErrors) == 0 {
			p.JobErrors = nil
		}
	}
	if len(workflowErr) > 0 {
		if err := json.Unmarshal(workflowErr, &p.Error); err != nil {
			return nil, fmt.Errorf("failed to decode workflow error: %w", err)
		}
	}
	if completedAt.Valid {
		p.CompletedAt = &completedAt.Time
	}
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Time
	}
	return &p, nil
}

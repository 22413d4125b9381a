package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"podcast-ai-backend/internal/models"
)

// ErrNotFound is returned when a project does not exist or is soft-deleted.
var ErrNotFound = errors.New("project not found")

// ErrUnauthorized is returned when the caller is not the project owner.
// Ownership mismatch is an authorization failure, not a not-found.
var ErrUnauthorized = errors.New("caller does not own project")

// ErrInvalidName is returned by rename when the trimmed name is empty or
// longer than MaxProjectNameLen.
var ErrInvalidName = errors.New("invalid project name")

const MaxProjectNameLen = 200

// ProjectStore is the durable state machine backing the workflow. Every
// mutation verifies the caller's identity against the project's owner.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, projectID uuid.UUID, userID string) (*models.Project, error)

	UpdateStatus(ctx context.Context, projectID uuid.UUID, userID string, status models.ProjectStatus) error
	// UpdateJobStatuses patches the granular sub-statuses; nil fields are
	// left untouched.
	UpdateJobStatuses(ctx context.Context, projectID uuid.UUID, userID string, transcription *models.TranscriptionStatus, content *models.ContentStatus) error

	SaveTranscript(ctx context.Context, projectID uuid.UUID, userID string, t *models.Transcript) error
	// SaveGeneratedContent merges the populated fields of patch into the
	// stored content, never overwriting fields the patch leaves nil.
	SaveGeneratedContent(ctx context.Context, projectID uuid.UUID, userID string, patch models.GeneratedContent) error
	// SaveJobErrors merges entries into the per-job error map.
	SaveJobErrors(ctx context.Context, projectID uuid.UUID, userID string, errs map[models.JobKey]string) error
	// RecordWorkflowError stores the fatal error and sets status to failed.
	RecordWorkflowError(ctx context.Context, projectID uuid.UUID, userID string, we models.WorkflowError) error

	RenameProject(ctx context.Context, projectID uuid.UUID, userID string, name string) error
	// SoftDeleteProject marks deletedAt, decrements the active counter and
	// returns the stored input URL so blob cleanup can be attempted.
	SoftDeleteProject(ctx context.Context, projectID uuid.UUID, userID string) (string, error)

	ListProjects(ctx context.Context, userID string, limit, offset int) ([]models.Project, int, error)
	GetCounters(ctx context.Context, userID string) (models.UserProjectCounters, error)

	RecordOrphanedFile(ctx context.Context, f models.OrphanedFile) error
}

// NormalizeProjectName trims and validates a rename target.
func NormalizeProjectName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || len(trimmed) > MaxProjectNameLen {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

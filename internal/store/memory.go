package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"podcast-ai-backend/internal/models"
)

// MemoryStore is the in-process ProjectStore used when DATABASE_URL is
// not configured, and by tests. It applies the same ownership and merge
// semantics as the Postgres store.
type MemoryStore struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*models.Project
	counters map[string]*models.UserProjectCounters
	steps    map[string]json.RawMessage
	orphans  []models.OrphanedFile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[uuid.UUID]*models.Project),
		counters: make(map[string]*models.UserProjectCounters),
		steps:    make(map[string]json.RawMessage),
	}
}

func (s *MemoryStore) CreateProject(ctx context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	cp := *p
	s.projects[p.ID] = &cp

	c := s.countersLocked(p.UserID)
	c.TotalCount++
	c.ActiveCount++
	return nil
}

func (s *MemoryStore) GetProject(ctx context.Context, projectID uuid.UUID, userID string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.ownedLocked(projectID, userID)
	if err != nil {
		return nil, err
	}
	return cloneProject(p), nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, projectID uuid.UUID, userID string, status models.ProjectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.ownedLocked(projectID, userID)
	if err != nil {
		return err
	}
	p.Status = status
	if status == models.StatusCompleted {
		now := time.Now()
		p.CompletedAt = &now
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) UpdateJobStatuses(ctx context.Context, projectID uuid.UUID, userID string, transcription *models.TranscriptionStatus, content *models.ContentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.ownedLocked(projectID, userID)
	if err != nil {
		return err
	}
	if transcription != nil {
		p.Transcription = *transcription
	}
	if content != nil {
		p.ContentGeneration = *content
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SaveTranscript(ctx context.Context, projectID uuid.UUID, userID string, t *models.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.ownedLocked(projectID, userID)
	if err != nil {
		return err
	}
	p.Transcript = t
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SaveGeneratedContent(ctx context.Context, projectID uuid.UUID, userID string, patch models.GeneratedContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.ownedLocked(projectID, userID)
	if err != nil {
		return err
	}
	p.Content.Merge(patch)
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SaveJobErrors(ctx context.Context, projectID uuid.UUID, userID string, errs map[models.JobKey]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.ownedLocked(projectID, userID)
	if err != nil {
		return err
	}
	if p.JobErrors == nil {
		p.JobErrors = make(map[models.JobKey]string, len(errs))
	}
	for k, v := range errs {
		p.JobErrors[k] = v
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) RecordWorkflowError(ctx context.Context, projectID uuid.UUID, userID string, we models.WorkflowError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.ownedLocked(projectID, userID)
	if err != nil {
		return err
	}
	p.Error = &we
	p.Status = models.StatusFailed
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) RenameProject(ctx context.Context, projectID uuid.UUID, userID string, name string) error {
	trimmed, err := NormalizeProjectName(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.ownedLocked(projectID, userID)
	if err != nil {
		return err
	}
	if p.Name == trimmed {
		return nil
	}
	p.Name = trimmed
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SoftDeleteProject(ctx context.Context, projectID uuid.UUID, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.ownedLocked(projectID, userID)
	if err != nil {
		return "", err
	}
	now := time.Now()
	p.DeletedAt = &now
	p.UpdatedAt = now

	c := s.countersLocked(userID)
	if c.ActiveCount > 0 {
		c.ActiveCount--
	}
	return p.FileURL, nil
}

func (s *MemoryStore) ListProjects(ctx context.Context, userID string, limit, offset int) ([]models.Project, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.Project
	for _, p := range s.projects {
		if p.UserID == userID && p.DeletedAt == nil {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}

	out := make([]models.Project, 0, end-offset)
	for _, p := range all[offset:end] {
		out = append(out, *cloneProject(p))
	}
	return out, total, nil
}

func (s *MemoryStore) GetCounters(ctx context.Context, userID string) (models.UserProjectCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.countersLocked(userID), nil
}

func (s *MemoryStore) RecordOrphanedFile(ctx context.Context, f models.OrphanedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orphans = append(s.orphans, f)
	return nil
}

// OrphanedFiles returns recorded blob-cleanup failures; used by tests.
func (s *MemoryStore) OrphanedFiles() []models.OrphanedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OrphanedFile(nil), s.orphans...)
}

// CompletedStep reports the memoized result of a workflow step, if any.
func (s *MemoryStore) CompletedStep(ctx context.Context, runID, stepName string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.steps[runID+"/"+stepName]
	return res, ok, nil
}

// RecordStep commits a step result so replays skip re-execution.
func (s *MemoryStore) RecordStep(ctx context.Context, runID, stepName string, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[runID+"/"+stepName] = result
	return nil
}

// countersLocked lazily backfills missing counters from project rows.
func (s *MemoryStore) countersLocked(userID string) *models.UserProjectCounters {
	if c, ok := s.counters[userID]; ok {
		return c
	}
	c := &models.UserProjectCounters{UserID: userID}
	for _, p := range s.projects {
		if p.UserID != userID {
			continue
		}
		c.TotalCount++
		if p.DeletedAt == nil {
			c.ActiveCount++
		}
	}
	s.counters[userID] = c
	return c
}

func (s *MemoryStore) ownedLocked(projectID uuid.UUID, userID string) (*models.Project, error) {
	p, ok := s.projects[projectID]
	if !ok || p.DeletedAt != nil {
		return nil, ErrNotFound
	}
	if p.UserID != userID {
		return nil, ErrUnauthorized
	}
	return p, nil
}

func cloneProject(p *models.Project) *models.Project {
	cp := *p
	if p.JobErrors != nil {
		cp.JobErrors = make(map[models.JobKey]string, len(p.JobErrors))
		for k, v := range p.JobErrors {
			cp.JobErrors[k] = v
		}
	}
	return &cp
}

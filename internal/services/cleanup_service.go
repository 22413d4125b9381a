package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"podcast-ai-backend/internal/models"
	"podcast-ai-backend/internal/store"
	"podcast-ai-backend/internal/supabase"
)

// CleanupService removes audio blobs after a project soft delete.
// Deletion is best-effort: a blob that cannot be removed is recorded as
// orphaned for a later sweep, and the delete request still succeeds.
type CleanupService struct {
	store          store.ProjectStore
	storageClient  *supabase.StorageClient
	realtimeClient *supabase.RealtimeClient
}

func NewCleanupService(
	st store.ProjectStore,
	storageClient *supabase.StorageClient,
	realtimeClient *supabase.RealtimeClient,
) *CleanupService {
	return &CleanupService{
		store:          st,
		storageClient:  storageClient,
		realtimeClient: realtimeClient,
	}
}

// RemoveProjectAudio deletes the audio blob behind fileURL. Failures
// are logged and tracked, never returned to the deleting request.
func (s *CleanupService) RemoveProjectAudio(ctx context.Context, projectID uuid.UUID, userID, fileURL string) {
	if fileURL == "" || s.storageClient == nil {
		return
	}

	if err := s.storageClient.DeleteByURL(fileURL); err != nil {
		log.Printf("failed to delete audio for project %s, recording orphan: %v", projectID, err)
		orphan := models.OrphanedFile{
			ID:        uuid.New(),
			ProjectID: projectID,
			UserID:    userID,
			FileURL:   fileURL,
			Reason:    err.Error(),
			CreatedAt: time.Now(),
		}
		if recErr := s.store.RecordOrphanedFile(ctx, orphan); recErr != nil {
			log.Printf("failed to record orphaned file for project %s: %v", projectID, recErr)
		}
		return
	}

	if s.realtimeClient != nil {
		if err := s.realtimeClient.PublishProjectEvent(projectID, "project_deleted",
			supabase.ProjectDeletedPayload(projectID)); err != nil {
			log.Printf("failed to publish delete event for project %s: %v", projectID, err)
		}
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"podcast-ai-backend/internal/models"
	"podcast-ai-backend/internal/store"
)

type StatusHandler struct {
	store store.ProjectStore
}

func NewStatusHandler(st store.ProjectStore) *StatusHandler {
	return &StatusHandler{
		store: st,
	}
}

// GetStatus returns the lightweight polling view of a project: the
// top-level status, both sub-statuses and any recorded errors.
func (h *StatusHandler) GetStatus(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	projectID, ok := pathProjectID(c)
	if !ok {
		return
	}

	project, err := h.store.GetProject(c.Request.Context(), projectID, userID)
	if err != nil {
		respondStoreError(c, err, "failed to get project status")
		return
	}

	c.JSON(http.StatusOK, models.StatusResponse{
		ProjectID:         projectID.String(),
		Status:            project.Status,
		Transcription:     project.Transcription,
		ContentGeneration: project.ContentGeneration,
		JobErrors:         project.JobErrors,
		Error:             project.Error,
		UpdatedAt:         project.UpdatedAt,
	})
}

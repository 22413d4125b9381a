package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"podcast-ai-backend/internal/middleware"
	"podcast-ai-backend/internal/models"
	"podcast-ai-backend/internal/services"
	"podcast-ai-backend/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type ProjectsHandler struct {
	store   store.ProjectStore
	cleanup *services.CleanupService
}

func NewProjectsHandler(st store.ProjectStore, cleanup *services.CleanupService) *ProjectsHandler {
	return &ProjectsHandler{
		store:   st,
		cleanup: cleanup,
	}
}

func (h *ProjectsHandler) CreateProject(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	name, err := store.NormalizeProjectName(req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid project name",
			Message: fmt.Sprintf("name must be 1-%d characters", store.MaxProjectNameLen),
		})
		return
	}

	plan := requestPlan(c, req.Plan)
	counters, err := h.store.GetCounters(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to check project quota",
			Message: err.Error(),
		})
		return
	}
	if limit, ok := models.ActiveProjectLimits[plan]; ok && counters.ActiveCount >= limit {
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:   "project limit reached",
			Message: fmt.Sprintf("plan %q allows %d active projects", plan, limit),
		})
		return
	}

	var duration *float64
	if req.Duration > 0 {
		d := req.Duration
		duration = &d
	}

	now := time.Now()
	project := &models.Project{
		ID:                uuid.New(),
		UserID:            userID,
		Name:              name,
		Status:            models.StatusPending,
		Transcription:     models.TranscriptionPending,
		ContentGeneration: models.ContentPending,
		FileURL:           req.FileURL,
		FileName:          req.FileName,
		FileSize:          req.FileSize,
		Duration:          duration,
		Format:            req.Format,
		MimeType:          req.MimeType,
		Content:           models.GeneratedContent{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := h.store.CreateProject(c.Request.Context(), project); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to create project",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, project.ToResponse())
}

func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	limit := queryInt(c, "limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	projects, total, err := h.store.ListProjects(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list projects",
			Message: err.Error(),
		})
		return
	}

	summaries := make([]models.ProjectSummary, len(projects))
	for i := range projects {
		summaries[i] = projects[i].ToSummary()
	}

	c.JSON(http.StatusOK, models.ProjectListResponse{Projects: summaries, Total: total})
}

func (h *ProjectsHandler) GetProject(c *gin.Context) {
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
		respondStoreError(c, err, "failed to get project")
		return
	}

	c.JSON(http.StatusOK, project.ToResponse())
}

func (h *ProjectsHandler) RenameProject(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	projectID, ok := pathProjectID(c)
	if !ok {
		return
	}

	var req models.RenameProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	if err := h.store.RenameProject(c.Request.Context(), projectID, userID, req.Name); err != nil {
		respondStoreError(c, err, "failed to rename project")
		return
	}

	project, err := h.store.GetProject(c.Request.Context(), projectID, userID)
	if err != nil {
		respondStoreError(c, err, "failed to get project")
		return
	}

	c.JSON(http.StatusOK, project.ToResponse())
}

func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	projectID, ok := pathProjectID(c)
	if !ok {
		return
	}

	fileURL, err := h.store.SoftDeleteProject(c.Request.Context(), projectID, userID)
	if err != nil {
		respondStoreError(c, err, "failed to delete project")
		return
	}

	// Blob cleanup is best-effort and must not delay or fail the request.
	if h.cleanup != nil && fileURL != "" {
		go h.cleanup.RemoveProjectAudio(context.Background(), projectID, userID, fileURL)
	}

	c.JSON(http.StatusOK, gin.H{"message": "project deleted successfully"})
}

// requestUserID pulls the authenticated subject set by the auth
// middleware; it writes the error response itself when missing.
func requestUserID(c *gin.Context) (string, bool) {
	val, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return "", false
	}
	userID, ok := val.(string)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid user id"})
		return "", false
	}
	return userID, true
}

func pathProjectID(c *gin.Context) (uuid.UUID, bool) {
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return uuid.Nil, false
	}
	return projectID, true
}

// requestPlan resolves the effective plan: explicit request field first,
// then the token claim, then free.
func requestPlan(c *gin.Context, requested models.Plan) models.Plan {
	if requested != "" {
		return requested
	}
	if val, exists := c.Get(middleware.PlanKey); exists {
		if plan, ok := val.(string); ok && plan != "" {
			return models.Plan(plan)
		}
	}
	return models.PlanFree
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func respondStoreError(c *gin.Context, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
	case errors.Is(err, store.ErrUnauthorized):
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "project belongs to another user"})
	case errors.Is(err, store.ErrInvalidName):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid project name",
			Message: fmt.Sprintf("name must be 1-%d characters", store.MaxProjectNameLen),
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   fallbackMsg,
			Message: err.Error(),
		})
	}
}

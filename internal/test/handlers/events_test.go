package handlers_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"podcast-ai-backend/internal/handlers"
	"podcast-ai-backend/internal/models"
	"podcast-ai-backend/internal/store"
	"podcast-ai-backend/internal/workflow"
)

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, audioURL string) (*models.Transcript, error) {
	return &models.Transcript{
		Text: "hello world",
		Segments: []models.Segment{
			{ID: 0, Start: 0, End: 2, Text: "hello world"},
		},
	}, nil
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, text string) (*models.Summary, error) {
	return &models.Summary{TLDR: "hello", Full: "hello", Bullets: []string{}, Insights: []string{}}, nil
}

func eventsRouter(st *store.MemoryStore, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	orch := workflow.NewOrchestrator(st, st, stubTranscriber{}, stubSummarizer{})
	h := handlers.NewEventsHandler(orch, nil)

	router := gin.New()
	router.POST("/api/v1/events", fakeAuth(userID), h.HandleEvent)
	return router
}

func postEvent(router *gin.Engine, payload string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/api/v1/events", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleEvent_UploadedRunsWorkflow(t *testing.T) {
	st := store.NewMemoryStore()
	router := eventsRouter(st, "user-1")

	project := &models.Project{
		ID:      uuid.New(),
		UserID:  "user-1",
		Name:    "Ep 1",
		Status:  models.StatusPending,
		FileURL: "https://cdn.example.com/ep1.mp3",
	}
	require.NoError(t, st.CreateProject(context.Background(), project))

	w := postEvent(router, `{
		"name": "podcast/uploaded",
		"data": {
			"projectId": "`+project.ID.String()+`",
			"userId": "user-1",
			"plan": "free",
			"fileUrl": "https://cdn.example.com/ep1.mp3"
		}
	}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		got, err := st.GetProject(context.Background(), project.ID, "user-1")
		return err == nil && got.Status == models.StatusCompleted
	}, 3*time.Second, 10*time.Millisecond)
}

func TestHandleEvent_ForeignUserRejected(t *testing.T) {
	st := store.NewMemoryStore()
	// Authenticated as a different user than the event names.
	router := eventsRouter(st, "user-2")

	project := &models.Project{
		ID:      uuid.New(),
		UserID:  "user-1",
		Name:    "Ep 1",
		Status:  models.StatusPending,
		FileURL: "https://cdn.example.com/ep1.mp3",
	}
	require.NoError(t, st.CreateProject(context.Background(), project))

	w := postEvent(router, `{
		"name": "podcast/uploaded",
		"data": {
			"projectId": "`+project.ID.String()+`",
			"userId": "user-1",
			"plan": "free",
			"fileUrl": "https://cdn.example.com/ep1.mp3"
		}
	}`)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	// The owner's project must not have been touched.
	got, err := st.GetProject(context.Background(), project.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	w = postEvent(router, `{
		"name": "podcast/retry-job",
		"data": {
			"projectId": "`+project.ID.String()+`",
			"userId": "user-1",
			"job": "titles",
			"currentPlan": "pro"
		}
	}`)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
}

func TestHandleEvent_InvalidEnvelope(t *testing.T) {
	router := eventsRouter(store.NewMemoryStore(), "user-1")

	w := postEvent(router, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEvent_UnknownName(t *testing.T) {
	router := eventsRouter(store.NewMemoryStore(), "user-1")

	w := postEvent(router, `{"name":"podcast/unknown","data":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown event name")
}

func TestHandleEvent_MissingFields(t *testing.T) {
	router := eventsRouter(store.NewMemoryStore(), "user-1")

	w := postEvent(router, `{"name":"podcast/uploaded","data":{"userId":"user-1"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEvent_RetryNonRetryableJob(t *testing.T) {
	router := eventsRouter(store.NewMemoryStore(), "user-1")

	// Summary only re-runs through the full workflow.
	w := postEvent(router, `{
		"name": "podcast/retry-job",
		"data": {
			"projectId": "6e9dcd39-02fa-4b88-a6a3-08e6c1cd9aac",
			"userId": "user-1",
			"job": "summary",
			"currentPlan": "pro"
		}
	}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not retryable")
}

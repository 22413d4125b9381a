package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"podcast-ai-backend/internal/events"
	"podcast-ai-backend/internal/generators"
	"podcast-ai-backend/internal/models"
	"podcast-ai-backend/internal/supabase"
	"podcast-ai-backend/internal/workflow"
)

type EventsHandler struct {
	orchestrator *workflow.Orchestrator
	realtime     *supabase.RealtimeClient
}

func NewEventsHandler(orchestrator *workflow.Orchestrator, realtime *supabase.RealtimeClient) *EventsHandler {
	return &EventsHandler{
		orchestrator: orchestrator,
		realtime:     realtime,
	}
}

// HandleEvent accepts a trigger envelope, validates it synchronously
// and runs the workflow in the background. The request context ends
// when the response is written, so the workflow gets its own. Events
// naming a user other than the authenticated subject are rejected.
func (h *EventsHandler) HandleEvent(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	var envelope events.Envelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid event envelope",
			Message: err.Error(),
		})
		return
	}

	switch envelope.Name {
	case events.NamePodcastUploaded:
		var evt events.PodcastUploaded
		if err := json.Unmarshal(envelope.Data, &evt); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid event data",
				Message: err.Error(),
			})
			return
		}
		if err := evt.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid event",
				Message: err.Error(),
			})
			return
		}
		if evt.UserID != userID {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error: "event user does not match authenticated user",
			})
			return
		}

		go h.runUploaded(evt)

		c.JSON(http.StatusAccepted, models.EventAcceptedResponse{
			ProjectID: evt.ProjectID,
			Status:    "accepted",
		})

	case events.NamePodcastRetryJob:
		var evt events.PodcastRetryJob
		if err := json.Unmarshal(envelope.Data, &evt); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid event data",
				Message: err.Error(),
			})
			return
		}
		if err := evt.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid event",
				Message: err.Error(),
			})
			return
		}
		if evt.UserID != userID {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error: "event user does not match authenticated user",
			})
			return
		}

		go func() {
			if err := h.orchestrator.RetryJob(context.Background(), evt); err != nil {
				log.Printf("retry of job %s for project %s failed: %v", evt.Job, evt.ProjectID, err)
			}
		}()

		c.JSON(http.StatusAccepted, models.EventAcceptedResponse{
			ProjectID: evt.ProjectID,
			Status:    "accepted",
		})

	default:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "unknown event name: " + envelope.Name,
		})
	}
}

func (h *EventsHandler) runUploaded(evt events.PodcastUploaded) {
	err := h.orchestrator.HandleUploaded(context.Background(), evt)

	if h.realtime == nil {
		if err != nil {
			log.Printf("workflow for project %s failed: %v", evt.ProjectID, err)
		}
		return
	}
	projectID, parseErr := uuid.Parse(evt.ProjectID)
	if parseErr != nil {
		return
	}

	if err != nil {
		log.Printf("workflow for project %s failed: %v", evt.ProjectID, err)
		if pubErr := h.realtime.PublishProjectEvent(projectID, "processing_failed",
			supabase.ProcessingFailedPayload(projectID, err.Error())); pubErr != nil {
			log.Printf("failed to publish failure event for project %s: %v", evt.ProjectID, pubErr)
		}
		return
	}

	jobs := generators.JobsForPlan(evt.Plan)
	names := make([]string, len(jobs))
	for i, j := range jobs {
		names[i] = string(j)
	}
	if pubErr := h.realtime.PublishProjectEvent(projectID, "content_ready",
		supabase.ContentReadyPayload(projectID, names)); pubErr != nil {
		log.Printf("failed to publish completion event for project %s: %v", evt.ProjectID, pubErr)
	}
}

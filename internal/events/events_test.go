package events_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"podcast-ai-backend/internal/events"
	"podcast-ai-backend/internal/models"
)

func TestPodcastUploaded_Validate(t *testing.T) {
	valid := events.PodcastUploaded{
		ProjectID: "p1",
		UserID:    "u1",
		FileURL:   "https://cdn.example.com/a.mp3",
	}
	assert.NoError(t, valid.Validate())

	missingProject := valid
	missingProject.ProjectID = ""
	assert.Error(t, missingProject.Validate())

	missingUser := valid
	missingUser.UserID = ""
	assert.Error(t, missingUser.Validate())

	missingURL := valid
	missingURL.FileURL = ""
	assert.Error(t, missingURL.Validate())
}

func TestPodcastRetryJob_Validate(t *testing.T) {
	base := events.PodcastRetryJob{
		ProjectID:   "p1",
		UserID:      "u1",
		CurrentPlan: models.PlanUltra,
	}

	for _, job := range []models.JobKey{
		models.JobSocialPosts, models.JobTitles, models.JobHashtags,
		models.JobKeyMoments, models.JobYouTubeTimestamps,
	} {
		evt := base
		evt.Job = job
		assert.NoError(t, evt.Validate(), "job %s", job)
	}

	// Summary re-runs only through the full workflow.
	summary := base
	summary.Job = models.JobSummary
	assert.Error(t, summary.Validate())

	transcript := base
	transcript.Job = models.JobTranscript
	assert.Error(t, transcript.Validate())

	missing := base
	missing.Job = models.JobKeyMoments
	missing.ProjectID = ""
	assert.Error(t, missing.Validate())
}

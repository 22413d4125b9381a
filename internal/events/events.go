package events

import (
	"encoding/json"
	"fmt"

	"podcast-ai-backend/internal/models"
)

const (
	NamePodcastUploaded = "podcast/uploaded"
	NamePodcastRetryJob = "podcast/retry-job"
)

// Envelope is the inbound trigger wrapper: {name, data}.
type Envelope struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// PodcastUploaded triggers the full processing workflow for one project.
type PodcastUploaded struct {
	ProjectID    string      `json:"projectId"`
	UserID       string      `json:"userId"`
	Plan         models.Plan `json:"plan"`
	FileURL      string      `json:"fileUrl"`
	FileName     string      `json:"fileName"`
	FileSize     int64       `json:"fileSize"`
	FileDuration *float64    `json:"fileDuration,omitempty"`
	FileFormat   string      `json:"fileFormat"`
	MimeType     string      `json:"mimeType"`
}

// Validate fails fast on missing identity fields; these failures are
// never retried.
func (e PodcastUploaded) Validate() error {
	if e.ProjectID == "" {
		return fmt.Errorf("missing projectId in %s event", NamePodcastUploaded)
	}
	if e.UserID == "" {
		return fmt.Errorf("missing userId in %s event", NamePodcastUploaded)
	}
	if e.FileURL == "" {
		return fmt.Errorf("missing fileUrl in %s event", NamePodcastUploaded)
	}
	return nil
}

// PodcastRetryJob re-runs a single generator, after plan upgrades or
// point failures.
type PodcastRetryJob struct {
	ProjectID    string        `json:"projectId"`
	Job          models.JobKey `json:"job"`
	UserID       string        `json:"userId"`
	OriginalPlan models.Plan   `json:"originalPlan"`
	CurrentPlan  models.Plan   `json:"currentPlan"`
}

// retryableJobs are the generators a retry event may name. Summary is
// excluded: it re-runs only through the full workflow.
var retryableJobs = map[models.JobKey]bool{
	models.JobKeyMoments:        true,
	models.JobSocialPosts:       true,
	models.JobTitles:            true,
	models.JobHashtags:          true,
	models.JobYouTubeTimestamps: true,
}

func (e PodcastRetryJob) Validate() error {
	if e.ProjectID == "" {
		return fmt.Errorf("missing projectId in %s event", NamePodcastRetryJob)
	}
	if e.UserID == "" {
		return fmt.Errorf("missing userId in %s event", NamePodcastRetryJob)
	}
	if !retryableJobs[e.Job] {
		return fmt.Errorf("job %q is not retryable", e.Job)
	}
	return nil
}

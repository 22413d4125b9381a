package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus is the top-level lifecycle state of a project.
// Progression is monotonic except "failed", which is reachable from "processing".
type ProjectStatus string

const (
	StatusPending    ProjectStatus = "pending"
	StatusUploading  ProjectStatus = "uploading"
	StatusProcessing ProjectStatus = "processing"
	StatusCompleted  ProjectStatus = "completed"
	StatusFailed     ProjectStatus = "failed"
)

// TranscriptionStatus is the transcription sub-state nested in a project.
type TranscriptionStatus string

const (
	TranscriptionPending    TranscriptionStatus = "pending"
	TranscriptionUploading  TranscriptionStatus = "uploading"
	TranscriptionProcessing TranscriptionStatus = "processing"
	TranscriptionCompleted  TranscriptionStatus = "completed"
	TranscriptionFailed     TranscriptionStatus = "failed"
)

// ContentStatus is the content-generation sub-state nested in a project.
type ContentStatus string

const (
	ContentPending   ContentStatus = "pending"
	ContentRunning   ContentStatus = "running"
	ContentCompleted ContentStatus = "completed"
	ContentFailed    ContentStatus = "failed"
)

// Plan is the subscription tier gating which generators run.
type Plan string

const (
	PlanFree  Plan = "free"
	PlanPro   Plan = "pro"
	PlanUltra Plan = "ultra"
)

// ActiveProjectLimits caps active (non-deleted) projects per plan tier.
var ActiveProjectLimits = map[Plan]int{
	PlanFree:  3,
	PlanPro:   25,
	PlanUltra: 200,
}

// JobKey identifies one generator job, and doubles as the key of the
// per-job error map. "transcript" and "general" only appear as error keys.
type JobKey string

const (
	JobTranscript        JobKey = "transcript"
	JobSummary           JobKey = "summary"
	JobSocialPosts       JobKey = "socialPosts"
	JobTitles            JobKey = "titles"
	JobHashtags          JobKey = "hashtags"
	JobKeyMoments        JobKey = "keyMoments"
	JobYouTubeTimestamps JobKey = "youtubeTimestamps"
	JobGeneral           JobKey = "general"
)

// WorkflowError records a fatal workflow failure with the step that was
// active when it happened.
type WorkflowError struct {
	Message   string    `json:"message"`
	Step      string    `json:"step"`
	Stack     string    `json:"stack,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Project struct {
	ID                uuid.UUID           `json:"id"`
	UserID            string              `json:"user_id"`
	Name              string              `json:"name"`
	Status            ProjectStatus       `json:"status"`
	Transcription     TranscriptionStatus `json:"transcription_status"`
	ContentGeneration ContentStatus       `json:"content_generation_status"`

	FileURL  string   `json:"file_url"`
	FileName string   `json:"file_name"`
	FileSize int64    `json:"file_size"`
	Duration *float64 `json:"duration,omitempty"`
	Format   string   `json:"format,omitempty"`
	MimeType string   `json:"mime_type,omitempty"`

	Transcript *Transcript       `json:"transcript,omitempty"`
	Content    GeneratedContent  `json:"content"`
	JobErrors  map[JobKey]string `json:"job_errors,omitempty"`
	Error      *WorkflowError    `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DeletedAt   *time.Time `json:"-"`
}

// UserProjectCounters is the denormalized per-user aggregate used for
// quota checks, updated alongside project create/delete.
type UserProjectCounters struct {
	UserID      string `json:"user_id"`
	TotalCount  int    `json:"total_count"`
	ActiveCount int    `json:"active_count"`
}

// OrphanedFile tracks a blob whose storage cleanup failed after a soft
// delete, so a later sweep can retry it.
type OrphanedFile struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	UserID    string    `json:"user_id"`
	FileURL   string    `json:"file_url"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

package models

import "time"

type ProjectResponse struct {
	ID                string              `json:"project_id"`
	Name              string              `json:"name"`
	Status            ProjectStatus       `json:"status"`
	Transcription     TranscriptionStatus `json:"transcription_status"`
	ContentGeneration ContentStatus       `json:"content_generation_status"`
	FileName          string              `json:"file_name"`
	FileSize          int64               `json:"file_size"`
	Duration          *float64            `json:"duration,omitempty"`
	Transcript        *Transcript         `json:"transcript,omitempty"`
	Content           GeneratedContent    `json:"content"`
	JobErrors         map[JobKey]string   `json:"job_errors,omitempty"`
	Error             *WorkflowError      `json:"error,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	CompletedAt       *time.Time          `json:"completed_at,omitempty"`
}

type ProjectListResponse struct {
	Projects []ProjectSummary `json:"projects"`
	Total    int              `json:"total"`
}

type ProjectSummary struct {
	ID        string        `json:"project_id"`
	Name      string        `json:"name"`
	Status    ProjectStatus `json:"status"`
	FileName  string        `json:"file_name"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type StatusResponse struct {
	ProjectID         string              `json:"project_id"`
	Status            ProjectStatus       `json:"status"`
	Transcription     TranscriptionStatus `json:"transcription_status"`
	ContentGeneration ContentStatus       `json:"content_generation_status"`
	JobErrors         map[JobKey]string   `json:"job_errors,omitempty"`
	Error             *WorkflowError      `json:"error,omitempty"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

type EventAcceptedResponse struct {
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ToResponse projects the stored row into its API shape.
func (p *Project) ToResponse() ProjectResponse {
	return ProjectResponse{
		ID:                p.ID.String(),
		Name:              p.Name,
		Status:            p.Status,
		Transcription:     p.Transcription,
		ContentGeneration: p.ContentGeneration,
		FileName:          p.FileName,
		FileSize:          p.FileSize,
		Duration:          p.Duration,
		Transcript:        p.Transcript,
		Content:           p.Content,
		JobErrors:         p.JobErrors,
		Error:             p.Error,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		CompletedAt:       p.CompletedAt,
	}
}

// ToSummary projects the stored row into its listing shape.
func (p *Project) ToSummary() ProjectSummary {
	return ProjectSummary{
		ID:        p.ID.String(),
		Name:      p.Name,
		Status:    p.Status,
		FileName:  p.FileName,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

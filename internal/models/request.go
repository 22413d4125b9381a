package models

type CreateProjectRequest struct {
	Name     string  `json:"name" binding:"required"`
	FileURL  string  `json:"file_url" binding:"required"`
	FileName string  `json:"file_name" binding:"required"`
	FileSize int64   `json:"file_size"`
	Duration float64 `json:"duration,omitempty"`
	Format   string  `json:"format,omitempty"`
	MimeType string  `json:"mime_type,omitempty"`
	Plan     Plan    `json:"plan,omitempty"`
}

type RenameProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

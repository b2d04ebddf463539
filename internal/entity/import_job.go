package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/constants"
)

// DiscoveryDiagnostics is a structured sidecar for what discovery found. It is
// stored in its own column rather than concatenated into error_message so the
// job's error channel stays machine-parseable.
type DiscoveryDiagnostics struct {
	RawCount       int      `json:"raw_count"`
	UniqueCount    int      `json:"unique_count"`
	DuplicateCount int      `json:"duplicate_count"`
	Names          []string `json:"names,omitempty"`
	Notices        []string `json:"notices,omitempty"`
}

// ImportJob represents one bulk import run for data transfer between layers.
type ImportJob struct {
	ID             uuid.UUID             `json:"id"`
	UserID         uuid.UUID             `json:"user_id"`
	CustomerName   string                `json:"customer_name"`
	SourceURL      string                `json:"source_url"`
	BucketName     string                `json:"bucket_name"`
	Status         constants.JobStatus   `json:"status"`
	TotalFiles     int                   `json:"total_files"`
	ProcessedFiles int                   `json:"processed_files"`
	FailedFiles    int                   `json:"failed_files"`
	ErrorMessage   *string               `json:"error_message,omitempty"`
	Diagnostics    *DiscoveryDiagnostics `json:"diagnostics,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	CompletedAt    *time.Time            `json:"completed_at,omitempty"`
}

// Progress returns the completion percentage, 0 when nothing was discovered.
func (j *ImportJob) Progress() float64 {
	if j.TotalFiles == 0 {
		return 0
	}
	return float64(j.ProcessedFiles) / float64(j.TotalFiles) * 100
}

package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/constants"
)

// ImportFile represents one discovered audio file within a job.
// At most one row exists per (job_id, original_url).
type ImportFile struct {
	ID           uuid.UUID            `json:"id"`
	JobID        uuid.UUID            `json:"job_id"`
	FileName     string               `json:"file_name"`
	OriginalURL  string               `json:"original_url"`
	StoragePath  *string              `json:"storage_path,omitempty"`
	FileSize     *int64               `json:"file_size,omitempty"`
	FileFormat   *string              `json:"file_format,omitempty"`
	CallRecordID *uuid.UUID           `json:"call_record_id,omitempty"`
	Status       constants.FileStatus `json:"status"`
	ErrorMessage *string              `json:"error_message,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

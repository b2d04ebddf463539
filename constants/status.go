package constants

// JobStatus is the canonical status for rows in import_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending     JobStatus = "PENDING"     // created, not yet started
	JobStatusDiscovering JobStatus = "DISCOVERING" // remote source being scanned
	JobStatusConverting  JobStatus = "CONVERTING"  // file count known, per-file work starting
	JobStatusUploading   JobStatus = "UPLOADING"   // files moving into storage
	JobStatusAnalyzing   JobStatus = "ANALYZING"   // transcription/analysis in flight
	JobStatusCompleted   JobStatus = "COMPLETED"   // terminal (failed files allowed)
	JobStatusFailed      JobStatus = "FAILED"      // terminal failure
)

// Terminal reports whether a job status is terminal.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// FileStatus is the canonical status for rows in import_files.
type FileStatus string

const (
	FileStatusPending      FileStatus = "PENDING"
	FileStatusDownloading  FileStatus = "DOWNLOADING"
	FileStatusUploading    FileStatus = "UPLOADING"
	FileStatusTranscribing FileStatus = "TRANSCRIBING"
	FileStatusAnalyzing    FileStatus = "ANALYZING"
	FileStatusCompleted    FileStatus = "COMPLETED"
	FileStatusFailed       FileStatus = "FAILED"
)

// Terminal reports whether a file status is terminal.
func (s FileStatus) Terminal() bool {
	return s == FileStatusCompleted || s == FileStatusFailed
}

// SharingStatus is the lifecycle of a context sharing request.
type SharingStatus string

const (
	SharingStatusPending  SharingStatus = "PENDING"
	SharingStatusApproved SharingStatus = "APPROVED"
	SharingStatusRejected SharingStatus = "REJECTED"
)

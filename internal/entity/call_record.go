package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/constants"
)

// AnalysisSource records which engine produced an analysis value. Stored as a
// structured column so heuristic output is distinguishable without magic
// markers in free text.
type AnalysisSource string

const (
	SourceOpenAI    AnalysisSource = "openai"
	SourceGemini    AnalysisSource = "gemini"
	SourceHeuristic AnalysisSource = "heuristic"
)

// CallRecord represents one analyzed call for data transfer between layers.
type CallRecord struct {
	ID                        uuid.UUID               `json:"id"`
	UserID                    uuid.UUID               `json:"user_id"`
	CustomerName              string                  `json:"customer_name"`
	Transcript                string                  `json:"transcript"`
	AudioFileURL              string                  `json:"audio_file_url"`
	BulkImportJobID           *uuid.UUID              `json:"bulk_import_job_id,omitempty"`
	CallCategory              *constants.CallCategory `json:"call_category,omitempty"`
	CallType                  *constants.CallType     `json:"call_type,omitempty"`
	CategorizationConfidence  *float32                `json:"categorization_confidence,omitempty"`
	CategorizationNotes       *string                 `json:"categorization_notes,omitempty"`
	CategorizationSource      *AnalysisSource         `json:"categorization_source,omitempty"`
	CreatedAt                 time.Time               `json:"created_at"`
	UpdatedAt                 time.Time               `json:"updated_at"`
}

// Categorized reports whether the analysis engine has classified this call.
func (c *CallRecord) Categorized() bool {
	return c.CallCategory != nil
}

// Objection represents one caller objection detected in a transcript.
type Objection struct {
	ID                uuid.UUID               `json:"id"`
	CallRecordID      uuid.UUID               `json:"call_record_id"`
	ObjectionType     constants.ObjectionType `json:"objection_type"`
	ObjectionText     string                  `json:"objection_text"`
	Speaker           string                  `json:"speaker"`
	Confidence        float32                 `json:"confidence"`
	TranscriptSegment string                  `json:"transcript_segment"`
	Source            AnalysisSource          `json:"source"`
	CreatedAt         time.Time               `json:"created_at"`
}

// ObjectionOvercomeDetail records how an objection was overcome on a call
// that ended with a consult scheduled.
type ObjectionOvercomeDetail struct {
	ID              uuid.UUID `json:"id"`
	CallRecordID    uuid.UUID `json:"call_record_id"`
	ObjectionID     uuid.UUID `json:"objection_id"`
	OvercomeMethod  string    `json:"overcome_method"`
	TranscriptQuote string    `json:"transcript_quote"`
	Speaker         string    `json:"speaker"`
	Confidence      float32   `json:"confidence"`
	CreatedAt       time.Time `json:"created_at"`
}

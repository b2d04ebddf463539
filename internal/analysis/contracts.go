package analysis

import (
	"context"

	"github.com/ks2178o2/callharbor/constants"
	"github.com/ks2178o2/callharbor/internal/entity"
)

// Provider is one LLM backend in the fallback chain. Complete returns the raw
// model text for a system+user prompt pair; the engine owns parsing and
// validation.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// CategorizationResult is the normalized shape we want from categorization.
type CategorizationResult struct {
	Category   constants.CallCategory `json:"category"`
	CallType   constants.CallType     `json:"call_type"`
	Confidence float32                `json:"confidence"`
	Reasoning  string                 `json:"reasoning"`
	Source     entity.AnalysisSource  `json:"source"`
}

// DetectedObjection is one objection as reported by a provider or the
// heuristic, before persistence.
type DetectedObjection struct {
	ObjectionType     constants.ObjectionType `json:"objection_type"`
	ObjectionText     string                  `json:"objection_text"`
	Speaker           string                  `json:"speaker"`
	Confidence        float32                 `json:"confidence"`
	TranscriptSegment string                  `json:"transcript_segment"`
	Source            entity.AnalysisSource   `json:"source"`
}

// OvercomeResult describes how one detected objection was overcome. Only
// meaningful for calls that ended with a consult scheduled.
type OvercomeResult struct {
	ObjectionIndex  int     `json:"objection_index"`
	OvercomeMethod  string  `json:"overcome_method"`
	TranscriptQuote string  `json:"transcript_quote"`
	Speaker         string  `json:"speaker"`
	Confidence      float32 `json:"confidence"`
}

// Heuristic confidence placeholders. These are fixed, not computed; callers
// must not compare them against LLM-reported confidence.
const (
	heuristicCategoryConfidence  = 0.3
	heuristicObjectionConfidence = 0.4
)

func clampConfidence(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

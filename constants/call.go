package constants

import "strings"

// TranscriptSentinel is the placeholder transcript a call record carries until
// the transcription subsystem writes the real text back.
const TranscriptSentinel = "Processing..."

// HasTranscript reports whether a call record's transcript is real text rather
// than the processing sentinel or whitespace.
func HasTranscript(transcript string) bool {
	t := strings.TrimSpace(transcript)
	return t != "" && t != TranscriptSentinel
}

// CallCategory is the top-level outcome classification of a call.
type CallCategory string

const (
	CategoryConsultScheduled    CallCategory = "consult_scheduled"
	CategoryConsultNotScheduled CallCategory = "consult_not_scheduled"
	CategoryOtherQuestion       CallCategory = "other_question"
)

var allCategories = []CallCategory{
	CategoryConsultScheduled,
	CategoryConsultNotScheduled,
	CategoryOtherQuestion,
}

// CallType is the finer-grained intent of a call.
type CallType string

const (
	TypeScheduling              CallType = "scheduling"
	TypePricing                 CallType = "pricing"
	TypeDirections              CallType = "directions"
	TypeBilling                 CallType = "billing"
	TypeComplaint               CallType = "complaint"
	TypeTransferToOffice        CallType = "transfer_to_office"
	TypeGeneralQuestion         CallType = "general_question"
	TypeReschedule              CallType = "reschedule"
	TypeConfirmingExistingAppt  CallType = "confirming_existing_appointment"
	TypeCancellation            CallType = "cancellation"
)

var allCallTypes = []CallType{
	TypeScheduling,
	TypePricing,
	TypeDirections,
	TypeBilling,
	TypeComplaint,
	TypeTransferToOffice,
	TypeGeneralQuestion,
	TypeReschedule,
	TypeConfirmingExistingAppt,
	TypeCancellation,
}

// ObjectionType buckets the reasons a caller pushes back.
type ObjectionType string

const (
	ObjectionCostValue         ObjectionType = "cost-value"
	ObjectionTiming            ObjectionType = "timing"
	ObjectionSafetyRisk        ObjectionType = "safety-risk"
	ObjectionSocialConcerns    ObjectionType = "social-concerns"
	ObjectionProviderTrust     ObjectionType = "provider-trust"
	ObjectionResultsSkepticism ObjectionType = "results-skepticism"
	ObjectionOther             ObjectionType = "other"
)

var allObjectionTypes = []ObjectionType{
	ObjectionCostValue,
	ObjectionTiming,
	ObjectionSafetyRisk,
	ObjectionSocialConcerns,
	ObjectionProviderTrust,
	ObjectionResultsSkepticism,
	ObjectionOther,
}

// CategoriesAsStrings returns the category enum for prompt/schema building.
func CategoriesAsStrings() []string {
	out := make([]string, len(allCategories))
	for i, c := range allCategories {
		out[i] = string(c)
	}
	return out
}

// CallTypesAsStrings returns the call-type enum for prompt/schema building.
func CallTypesAsStrings() []string {
	out := make([]string, len(allCallTypes))
	for i, t := range allCallTypes {
		out[i] = string(t)
	}
	return out
}

// ObjectionTypesAsStrings returns the objection-type enum for prompt/schema building.
func ObjectionTypesAsStrings() []string {
	out := make([]string, len(allObjectionTypes))
	for i, t := range allObjectionTypes {
		out[i] = string(t)
	}
	return out
}

// CanonicalizeObjectionType maps free-form model output onto the stable enum.
func CanonicalizeObjectionType(input string) (ObjectionType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return ObjectionOther, false
	}

	synonyms := map[string]ObjectionType{
		"cost":       ObjectionCostValue,
		"price":      ObjectionCostValue,
		"expensive":  ObjectionCostValue,
		"schedule":   ObjectionTiming,
		"time":       ObjectionTiming,
		"safety":     ObjectionSafetyRisk,
		"risk":       ObjectionSafetyRisk,
		"trust":      ObjectionProviderTrust,
		"skeptical":  ObjectionResultsSkepticism,
		"skepticism": ObjectionResultsSkepticism,
	}
	if t, ok := synonyms[normalized]; ok {
		return t, true
	}

	for _, t := range allObjectionTypes {
		if normalized == string(t) {
			return t, true
		}
	}
	return ObjectionOther, false
}

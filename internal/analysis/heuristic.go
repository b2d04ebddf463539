package analysis

import (
	"strings"

	"github.com/ks2178o2/callharbor/constants"
	"github.com/ks2178o2/callharbor/internal/entity"
)

// Deterministic keyword fallback used when every configured provider fails.
// Output carries Source=heuristic and fixed placeholder confidences so
// downstream consumers never mistake it for model output.

var callTypeKeywords = []struct {
	callType constants.CallType
	words    []string
}{
	{constants.TypeCancellation, []string{"cancel my", "cancel the", "cancellation"}},
	{constants.TypeReschedule, []string{"reschedule", "move my appointment", "change my appointment"}},
	{constants.TypeConfirmingExistingAppt, []string{"confirm my appointment", "confirming my appointment", "still on for"}},
	{constants.TypeBilling, []string{"bill", "invoice", "charge", "payment", "insurance"}},
	{constants.TypePricing, []string{"how much", "price", "cost", "pricing", "quote"}},
	{constants.TypeDirections, []string{"where are you located", "directions", "address", "how do i get"}},
	{constants.TypeComplaint, []string{"complaint", "unhappy", "disappointed", "manager", "terrible"}},
	{constants.TypeTransferToOffice, []string{"transfer me", "speak to the office", "put me through"}},
	{constants.TypeScheduling, []string{"schedule", "appointment", "book", "availability", "opening"}},
}

var objectionKeywords = []struct {
	objType constants.ObjectionType
	words   []string
}{
	{constants.ObjectionCostValue, []string{"too expensive", "can't afford", "cannot afford", "a lot of money", "cheaper"}},
	{constants.ObjectionTiming, []string{"not a good time", "too busy", "maybe later", "call back", "need to think"}},
	{constants.ObjectionSafetyRisk, []string{"is it safe", "side effect", "risk", "dangerous", "complications"}},
	{constants.ObjectionSocialConcerns, []string{"my husband", "my wife", "what will people", "embarrassed"}},
	{constants.ObjectionProviderTrust, []string{"never heard of", "reviews", "qualified", "credentials", "second opinion"}},
	{constants.ObjectionResultsSkepticism, []string{"does it work", "really work", "guarantee", "proof", "before and after"}},
}

func heuristicCategorize(transcript string) *CategorizationResult {
	lower := strings.ToLower(transcript)

	callType := constants.TypeGeneralQuestion
	for _, ck := range callTypeKeywords {
		if containsAny(lower, ck.words) {
			callType = ck.callType
			break
		}
	}

	category := constants.CategoryOtherQuestion
	switch {
	case containsAny(lower, []string{"see you then", "booked you", "scheduled for", "we have you down", "confirmed your appointment"}):
		category = constants.CategoryConsultScheduled
	case callType == constants.TypeScheduling || callType == constants.TypePricing:
		category = constants.CategoryConsultNotScheduled
	}

	return &CategorizationResult{
		Category:   category,
		CallType:   callType,
		Confidence: heuristicCategoryConfidence,
		Reasoning:  "keyword-based classification; all LLM providers were unavailable",
		Source:     entity.SourceHeuristic,
	}
}

func heuristicObjections(transcript string) []DetectedObjection {
	lower := strings.ToLower(transcript)

	var out []DetectedObjection
	for _, ok := range objectionKeywords {
		for _, w := range ok.words {
			idx := strings.Index(lower, w)
			if idx < 0 {
				continue
			}
			out = append(out, DetectedObjection{
				ObjectionType:     ok.objType,
				ObjectionText:     "caller mentioned: " + w,
				Speaker:           "caller",
				Confidence:        heuristicObjectionConfidence,
				TranscriptSegment: surroundingText(transcript, idx, len(w)),
				Source:            entity.SourceHeuristic,
			})
			break
		}
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func surroundingText(s string, idx, matchLen int) string {
	const window = 80
	lo := max(0, idx-window)
	hi := min(len(s), idx+matchLen+window)
	return strings.TrimSpace(s[lo:hi])
}

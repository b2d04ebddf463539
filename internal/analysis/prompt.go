package analysis

import (
	"fmt"
	"strings"

	"github.com/ks2178o2/callharbor/constants"
)

// transcriptPromptCap bounds how much transcript we send per request.
const transcriptPromptCap = 12000

// BuildCategorizePrompt composes the system and user messages for call
// categorization.
func BuildCategorizePrompt(transcript string) (system, user string) {
	parts := []string{
		"You are a call-center quality analyst for medical and aesthetic practices.",
		"Classify the call transcript. Return ONLY JSON matching the provided JSON Schema.",
		"'category' MUST be exactly one of: " + strings.Join(constants.CategoriesAsStrings(), ", ") + ".",
		"Pick 'consult_scheduled' only when the caller actually commits to an appointment during the call.",
		"'call_type' MUST be exactly one of: " + strings.Join(constants.CallTypesAsStrings(), ", ") + ".",
		"'confidence' is your own 0..1 estimate.",
		"Keep 'reasoning' to one or two sentences. Never output null; omit optional fields instead.",
	}
	return strings.Join(parts, " "), userPromptWithTranscript(transcript)
}

// BuildObjectionsPrompt composes the messages for objection detection.
func BuildObjectionsPrompt(transcript string) (system, user string) {
	parts := []string{
		"You are a call-center quality analyst.",
		"Find every objection the CALLER raises in the transcript. Return ONLY JSON matching the provided JSON Schema.",
		"'objection_type' MUST be exactly one of: " + strings.Join(constants.ObjectionTypesAsStrings(), ", ") + ".",
		"'objection_text' is a short paraphrase of the objection.",
		"'transcript_segment' is the verbatim quote where the objection appears.",
		"'speaker' labels who voiced it (e.g. caller, agent).",
		"If the transcript contains no objections, return {\"objections\": []}.",
	}
	return strings.Join(parts, " "), userPromptWithTranscript(transcript)
}

// BuildOvercomePrompt composes the messages for overcome analysis. The
// objections list is indexed so the model can reference each one.
func BuildOvercomePrompt(transcript string, objections []DetectedObjection) (system, user string) {
	parts := []string{
		"You are a call-center quality analyst.",
		"The call ended with a consult scheduled, so the listed objections were overcome.",
		"For each objection, explain how the agent overcame it. Return ONLY JSON matching the provided JSON Schema.",
		"'objection_index' references the numbered list below.",
		"'transcript_quote' is the verbatim passage where the objection is resolved.",
		"Skip objections you cannot find a resolution for.",
	}

	var b strings.Builder
	b.WriteString("Objections:\n")
	for i, o := range objections {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i, o.ObjectionType, o.ObjectionText)
	}
	b.WriteString("\n")
	b.WriteString(userPromptWithTranscript(transcript))
	return strings.Join(parts, " "), b.String()
}

func userPromptWithTranscript(transcript string) string {
	t := strings.TrimSpace(transcript)
	var b strings.Builder
	b.WriteString("Transcript:\n")
	if len(t) > transcriptPromptCap {
		b.WriteString(t[:transcriptPromptCap])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(t)
	}
	return b.String()
}

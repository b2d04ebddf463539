package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/constants"
	"github.com/ks2178o2/callharbor/internal/entity"
)

// Engine runs the three analysis operations over an ordered provider chain.
// It is a pure function of (transcript, providers); persistence belongs to
// ApplyService and the orchestrator.
type Engine struct {
	providers []Provider
	logger    *slog.Logger
}

func NewEngine(providers []Provider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{providers: providers, logger: logger}
}

// ErrNoTranscript guards analysis against the processing sentinel.
var ErrNoTranscript = fmt.Errorf("call has no transcript yet")

func sourceForProvider(name string) entity.AnalysisSource {
	switch name {
	case "openai":
		return entity.SourceOpenAI
	case "gemini":
		return entity.SourceGemini
	default:
		return entity.AnalysisSource(name)
	}
}

// complete walks the provider chain. A provider error OR a schema-validation
// failure both mean "try the next provider"; the typed attempt log keeps the
// failure reasons distinguishable.
func (e *Engine) complete(ctx context.Context, op, system, user string, schema map[string]any) ([]byte, entity.AnalysisSource, error) {
	rid := uuid.New().String()
	var lastErr error

	for _, p := range e.providers {
		start := time.Now()
		raw, err := p.Complete(ctx, system, user)
		if err != nil {
			e.logger.Warn("llm."+op+".provider_error",
				"req_id", rid,
				"provider", p.Name(),
				"error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			lastErr = fmt.Errorf("%s: %w", p.Name(), err)
			continue
		}

		doc := ExtractJSONObject(raw)
		if err := ValidateJSONAgainstSchema(schema, doc); err != nil {
			e.logger.Warn("llm."+op+".schema_validation_failed",
				"req_id", rid,
				"provider", p.Name(),
				"error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			lastErr = fmt.Errorf("%s schema validation: %w", p.Name(), err)
			continue
		}

		e.logger.Info("llm."+op+".ok",
			"req_id", rid,
			"provider", p.Name(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return doc, sourceForProvider(p.Name()), nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured")
	}
	return nil, "", fmt.Errorf("all providers exhausted: %w", lastErr)
}

// Categorize classifies the transcript, degrading to the keyword heuristic
// when every provider fails.
func (e *Engine) Categorize(ctx context.Context, transcript string) (*CategorizationResult, error) {
	if !constants.HasTranscript(transcript) {
		return nil, ErrNoTranscript
	}

	system, user := BuildCategorizePrompt(transcript)
	doc, source, err := e.complete(ctx, "categorize", system, user, BuildCategorizeSchema())
	if err != nil {
		e.logger.Warn("llm.categorize.falling_back_to_heuristic", "error", err)
		return heuristicCategorize(transcript), nil
	}

	var out CategorizationResult
	if err := json.Unmarshal(doc, &out); err != nil {
		e.logger.Warn("llm.categorize.unmarshal_failed", "error", err)
		return heuristicCategorize(transcript), nil
	}
	out.Confidence = clampConfidence(out.Confidence)
	out.Source = source
	return &out, nil
}

// DetectObjections finds caller objections, degrading to the keyword
// heuristic when every provider fails.
func (e *Engine) DetectObjections(ctx context.Context, transcript string) ([]DetectedObjection, error) {
	if !constants.HasTranscript(transcript) {
		return nil, ErrNoTranscript
	}

	system, user := BuildObjectionsPrompt(transcript)
	doc, source, err := e.complete(ctx, "objections", system, user, BuildObjectionsSchema())
	if err != nil {
		e.logger.Warn("llm.objections.falling_back_to_heuristic", "error", err)
		return heuristicObjections(transcript), nil
	}

	var wrapper struct {
		Objections []DetectedObjection `json:"objections"`
	}
	if err := json.Unmarshal(doc, &wrapper); err != nil {
		e.logger.Warn("llm.objections.unmarshal_failed", "error", err)
		return heuristicObjections(transcript), nil
	}
	for i := range wrapper.Objections {
		wrapper.Objections[i].Confidence = clampConfidence(wrapper.Objections[i].Confidence)
		wrapper.Objections[i].Source = source
		t, _ := constants.CanonicalizeObjectionType(string(wrapper.Objections[i].ObjectionType))
		wrapper.Objections[i].ObjectionType = t
	}
	return wrapper.Objections, nil
}

// AnalyzeOvercome explains how each objection was overcome. There is no
// heuristic for this; exhaustion yields an empty list.
func (e *Engine) AnalyzeOvercome(ctx context.Context, transcript string, objections []DetectedObjection) ([]OvercomeResult, error) {
	if !constants.HasTranscript(transcript) {
		return nil, ErrNoTranscript
	}
	if len(objections) == 0 {
		return nil, nil
	}

	system, user := BuildOvercomePrompt(transcript, objections)
	doc, _, err := e.complete(ctx, "overcome", system, user, BuildOvercomeSchema())
	if err != nil {
		e.logger.Warn("llm.overcome.exhausted", "error", err)
		return nil, nil
	}

	var wrapper struct {
		OvercomeDetails []OvercomeResult `json:"overcome_details"`
	}
	if err := json.Unmarshal(doc, &wrapper); err != nil {
		e.logger.Warn("llm.overcome.unmarshal_failed", "error", err)
		return nil, nil
	}

	var out []OvercomeResult
	for _, d := range wrapper.OvercomeDetails {
		if d.ObjectionIndex < 0 || d.ObjectionIndex >= len(objections) {
			continue
		}
		d.Confidence = clampConfidence(d.Confidence)
		out = append(out, d)
	}
	return out, nil
}

package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/constants"
	"github.com/ks2178o2/callharbor/internal/entity"
	"github.com/ks2178o2/callharbor/internal/repository"
)

// Service runs the engine against a call record and persists the results.
// This is where the regeneration rule lives: objections and overcome details
// are always a full replace for the call, never an accumulate.
type Service struct {
	engine    *Engine
	calls     repository.CallRecordRepository
	objs      repository.ObjectionRepository
	overcomes repository.OvercomeDetailRepository
	logger    *slog.Logger
}

func NewService(engine *Engine, calls repository.CallRecordRepository, objs repository.ObjectionRepository, overcomes repository.OvercomeDetailRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, calls: calls, objs: objs, overcomes: overcomes, logger: logger}
}

// AnalyzeCall categorizes the call, regenerates its objections and, when the
// consult was scheduled, regenerates the overcome details. The transcript
// must have left the processing sentinel behind before this runs.
func (s *Service) AnalyzeCall(ctx context.Context, callRecordID uuid.UUID) error {
	start := time.Now()

	call, err := s.calls.GetByID(ctx, callRecordID)
	if err != nil {
		return err
	}
	if !constants.HasTranscript(call.Transcript) {
		return ErrNoTranscript
	}

	cat, err := s.engine.Categorize(ctx, call.Transcript)
	if err != nil {
		return err
	}
	if err := s.calls.SetCategorization(ctx, callRecordID, cat.Category, cat.CallType, cat.Confidence, cat.Reasoning, cat.Source); err != nil {
		return err
	}

	detected, err := s.engine.DetectObjections(ctx, call.Transcript)
	if err != nil {
		return err
	}

	objections := make([]*entity.Objection, 0, len(detected))
	for _, d := range detected {
		objections = append(objections, &entity.Objection{
			ID:                uuid.New(),
			CallRecordID:      callRecordID,
			ObjectionType:     d.ObjectionType,
			ObjectionText:     d.ObjectionText,
			Speaker:           d.Speaker,
			Confidence:        d.Confidence,
			TranscriptSegment: d.TranscriptSegment,
			Source:            d.Source,
		})
	}
	// Overcome details reference objections, so a prior run's details must be
	// cleared before the objection rows they point at are replaced.
	if err := s.overcomes.DeleteForCall(ctx, callRecordID); err != nil {
		return err
	}
	if err := s.objs.ReplaceForCall(ctx, callRecordID, objections); err != nil {
		return err
	}

	var details []*entity.ObjectionOvercomeDetail
	if cat.Category == constants.CategoryConsultScheduled && len(detected) > 0 {
		results, err := s.engine.AnalyzeOvercome(ctx, call.Transcript, detected)
		if err != nil {
			return err
		}
		for _, r := range results {
			details = append(details, &entity.ObjectionOvercomeDetail{
				ID:              uuid.New(),
				CallRecordID:    callRecordID,
				ObjectionID:     objections[r.ObjectionIndex].ID,
				OvercomeMethod:  r.OvercomeMethod,
				TranscriptQuote: r.TranscriptQuote,
				Speaker:         r.Speaker,
				Confidence:      r.Confidence,
			})
		}
	}
	// Overcome details are regenerated even when empty so stale rows from a
	// previous analysis never outlive their objections.
	if err := s.overcomes.ReplaceForCall(ctx, callRecordID, details); err != nil {
		return err
	}

	s.logger.Info("analysis.call.ok",
		"call_record_id", callRecordID,
		"category", cat.Category,
		"call_type", cat.CallType,
		"source", cat.Source,
		"objections", len(objections),
		"overcome_details", len(details),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/constants"
	"github.com/ks2178o2/callharbor/internal/common"
	"github.com/ks2178o2/callharbor/internal/entity"
)

type mockCallRepo struct {
	calls map[uuid.UUID]*entity.CallRecord
}

func (m *mockCallRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.CallRecord, error) {
	c, ok := m.calls[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *mockCallRepo) Create(_ context.Context, userID uuid.UUID, customerName, audioFileURL string, jobID *uuid.UUID) (*entity.CallRecord, error) {
	c := &entity.CallRecord{
		ID:              uuid.New(),
		UserID:          userID,
		CustomerName:    customerName,
		Transcript:      constants.TranscriptSentinel,
		AudioFileURL:    audioFileURL,
		BulkImportJobID: jobID,
	}
	m.calls[c.ID] = c
	return c, nil
}

func (m *mockCallRepo) ListByJob(_ context.Context, _ uuid.UUID) ([]*entity.CallRecord, error) {
	return nil, nil
}

func (m *mockCallRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*entity.CallRecord, error) {
	var out []*entity.CallRecord
	for _, id := range ids {
		if c, ok := m.calls[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCallRepo) SetTranscript(_ context.Context, id uuid.UUID, transcript string) error {
	c, ok := m.calls[id]
	if !ok {
		return common.ErrNotFound
	}
	c.Transcript = transcript
	return nil
}

func (m *mockCallRepo) SetCategorization(_ context.Context, id uuid.UUID, category constants.CallCategory, callType constants.CallType, confidence float32, notes string, source entity.AnalysisSource) error {
	c, ok := m.calls[id]
	if !ok {
		return common.ErrNotFound
	}
	c.CallCategory = &category
	c.CallType = &callType
	c.CategorizationConfidence = &confidence
	c.CategorizationNotes = &notes
	c.CategorizationSource = &source
	return nil
}

func (m *mockCallRepo) ResetForRetranscription(_ context.Context, id uuid.UUID) error {
	c, ok := m.calls[id]
	if !ok {
		return common.ErrNotFound
	}
	c.Transcript = constants.TranscriptSentinel
	c.CallCategory = nil
	c.CallType = nil
	c.CategorizationConfidence = nil
	c.CategorizationNotes = nil
	c.CategorizationSource = nil
	return nil
}

type mockObjectionRepo struct {
	byCall   map[uuid.UUID][]*entity.Objection
	replaces int

	// Mirrors the foreign key from overcome details to objections: removing
	// objection rows that details still point at is an error, like it is in
	// the real store.
	overcomes *mockOvercomeRepo
}

func (m *mockObjectionRepo) stillReferenced(callID uuid.UUID) bool {
	if m.overcomes == nil {
		return false
	}
	live := make(map[uuid.UUID]bool, len(m.byCall[callID]))
	for _, o := range m.byCall[callID] {
		live[o.ID] = true
	}
	for _, d := range m.overcomes.byCall[callID] {
		if live[d.ObjectionID] {
			return true
		}
	}
	return false
}

func (m *mockObjectionRepo) ListByCall(_ context.Context, callID uuid.UUID) ([]*entity.Objection, error) {
	return m.byCall[callID], nil
}

func (m *mockObjectionRepo) ListByCalls(_ context.Context, callIDs []uuid.UUID) ([]*entity.Objection, error) {
	var out []*entity.Objection
	for _, id := range callIDs {
		out = append(out, m.byCall[id]...)
	}
	return out, nil
}

func (m *mockObjectionRepo) ReplaceForCall(_ context.Context, callID uuid.UUID, objections []*entity.Objection) error {
	if m.stillReferenced(callID) {
		return fmt.Errorf("objections for call %s are still referenced by overcome details", callID)
	}
	m.replaces++
	m.byCall[callID] = objections
	return nil
}

func (m *mockObjectionRepo) DeleteForCall(_ context.Context, callID uuid.UUID) error {
	if m.stillReferenced(callID) {
		return fmt.Errorf("objections for call %s are still referenced by overcome details", callID)
	}
	delete(m.byCall, callID)
	return nil
}

type mockOvercomeRepo struct {
	byCall   map[uuid.UUID][]*entity.ObjectionOvercomeDetail
	replaces int
}

func (m *mockOvercomeRepo) ListByCalls(_ context.Context, callIDs []uuid.UUID) ([]*entity.ObjectionOvercomeDetail, error) {
	var out []*entity.ObjectionOvercomeDetail
	for _, id := range callIDs {
		out = append(out, m.byCall[id]...)
	}
	return out, nil
}

func (m *mockOvercomeRepo) ReplaceForCall(_ context.Context, callID uuid.UUID, details []*entity.ObjectionOvercomeDetail) error {
	m.replaces++
	m.byCall[callID] = details
	return nil
}

func (m *mockOvercomeRepo) DeleteForCall(_ context.Context, callID uuid.UUID) error {
	delete(m.byCall, callID)
	return nil
}

func newServiceFixture(t *testing.T, providers ...Provider) (*Service, *mockCallRepo, *mockObjectionRepo, *mockOvercomeRepo) {
	t.Helper()
	calls := &mockCallRepo{calls: make(map[uuid.UUID]*entity.CallRecord)}
	objs := &mockObjectionRepo{byCall: make(map[uuid.UUID][]*entity.Objection)}
	overcomes := &mockOvercomeRepo{byCall: make(map[uuid.UUID][]*entity.ObjectionOvercomeDetail)}
	objs.overcomes = overcomes
	svc := NewService(NewEngine(providers, nil), calls, objs, overcomes, nil)
	return svc, calls, objs, overcomes
}

func seedCall(t *testing.T, calls *mockCallRepo, transcript string) uuid.UUID {
	t.Helper()
	c, err := calls.Create(context.Background(), uuid.New(), "Jordan", "bucket/audio.wav", nil)
	if err != nil {
		t.Fatalf("seed call: %v", err)
	}
	c.Transcript = transcript
	return c.ID
}

type scriptedProvider struct {
	name    string
	replies []string
	next    int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(_ context.Context, _, _ string) (string, error) {
	if p.next >= len(p.replies) {
		return "", errors.New("script exhausted")
	}
	r := p.replies[p.next]
	p.next++
	return r, nil
}

func TestAnalyzeCallPersistsFullResult(t *testing.T) {
	provider := &scriptedProvider{name: "openai", replies: []string{
		`{"category":"consult_scheduled","call_type":"scheduling","confidence":0.9,"reasoning":"booked"}`,
		`{"objections":[{"objection_type":"cost-value","objection_text":"too expensive","speaker":"caller","confidence":0.8}]}`,
		`{"overcome_details":[{"objection_index":0,"overcome_method":"offered payment plan","transcript_quote":"we can split it","speaker":"agent","confidence":0.7}]}`,
	}}
	svc, calls, objs, overcomes := newServiceFixture(t, provider)
	callID := seedCall(t, calls, "It is too expensive. We can split it. Booked you for Tuesday.")

	if err := svc.AnalyzeCall(context.Background(), callID); err != nil {
		t.Fatalf("AnalyzeCall: %v", err)
	}

	call := calls.calls[callID]
	if call.CallCategory == nil || *call.CallCategory != constants.CategoryConsultScheduled {
		t.Errorf("category = %v", call.CallCategory)
	}
	if call.CategorizationSource == nil || *call.CategorizationSource != entity.SourceOpenAI {
		t.Errorf("source = %v", call.CategorizationSource)
	}

	stored := objs.byCall[callID]
	if len(stored) != 1 {
		t.Fatalf("objections = %d, want 1", len(stored))
	}
	if stored[0].CallRecordID != callID || stored[0].ObjectionType != constants.ObjectionCostValue {
		t.Errorf("objection = %+v", stored[0])
	}

	details := overcomes.byCall[callID]
	if len(details) != 1 {
		t.Fatalf("overcome details = %d, want 1", len(details))
	}
	if details[0].ObjectionID != stored[0].ID {
		t.Errorf("detail links %s, want objection %s", details[0].ObjectionID, stored[0].ID)
	}
}

func TestAnalyzeCallRejectsSentinelTranscript(t *testing.T) {
	svc, calls, objs, _ := newServiceFixture(t)
	callID := seedCall(t, calls, constants.TranscriptSentinel)

	err := svc.AnalyzeCall(context.Background(), callID)
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("err = %v, want ErrNoTranscript", err)
	}
	if objs.replaces != 0 {
		t.Errorf("objections replaced %d times, want 0", objs.replaces)
	}
}

func TestAnalyzeCallRegenerationReplacesPriorRows(t *testing.T) {
	provider := &scriptedProvider{name: "openai", replies: []string{
		// First run: two objections.
		`{"category":"consult_not_scheduled","call_type":"pricing","confidence":0.8,"reasoning":"asked price"}`,
		`{"objections":[
			{"objection_type":"cost-value","objection_text":"too expensive","confidence":0.8},
			{"objection_type":"timing","objection_text":"too busy","confidence":0.6}
		]}`,
		// Second run: one objection.
		`{"category":"consult_not_scheduled","call_type":"pricing","confidence":0.8,"reasoning":"asked price"}`,
		`{"objections":[{"objection_type":"timing","objection_text":"too busy","confidence":0.6}]}`,
	}}
	svc, calls, objs, overcomes := newServiceFixture(t, provider)
	callID := seedCall(t, calls, "That is too expensive and I am too busy right now.")

	if err := svc.AnalyzeCall(context.Background(), callID); err != nil {
		t.Fatalf("first AnalyzeCall: %v", err)
	}
	if len(objs.byCall[callID]) != 2 {
		t.Fatalf("first run objections = %d, want 2", len(objs.byCall[callID]))
	}

	if err := svc.AnalyzeCall(context.Background(), callID); err != nil {
		t.Fatalf("second AnalyzeCall: %v", err)
	}
	stored := objs.byCall[callID]
	if len(stored) != 1 {
		t.Fatalf("second run objections = %d, want exactly the last run's rows", len(stored))
	}
	if stored[0].ObjectionType != constants.ObjectionTiming {
		t.Errorf("surviving objection = %s", stored[0].ObjectionType)
	}
	if overcomes.replaces != 2 {
		t.Errorf("overcome replaces = %d, want one per analysis run", overcomes.replaces)
	}
}

func TestAnalyzeCallRegenerationSurvivesExistingOvercomeRows(t *testing.T) {
	run := []string{
		`{"category":"consult_scheduled","call_type":"scheduling","confidence":0.9,"reasoning":"booked"}`,
		`{"objections":[{"objection_type":"cost-value","objection_text":"too expensive","confidence":0.8}]}`,
		`{"overcome_details":[{"objection_index":0,"overcome_method":"offered payment plan","transcript_quote":"we can split it","confidence":0.7}]}`,
	}
	provider := &scriptedProvider{name: "openai", replies: append(append([]string{}, run...), run...)}
	svc, calls, objs, overcomes := newServiceFixture(t, provider)
	callID := seedCall(t, calls, "It is too expensive. We can split it. Booked you for Tuesday.")

	if err := svc.AnalyzeCall(context.Background(), callID); err != nil {
		t.Fatalf("first AnalyzeCall: %v", err)
	}
	if len(overcomes.byCall[callID]) != 1 {
		t.Fatalf("first run overcome details = %d, want 1", len(overcomes.byCall[callID]))
	}

	// The second run hits a call that already has overcome rows pointing at
	// the first run's objections.
	if err := svc.AnalyzeCall(context.Background(), callID); err != nil {
		t.Fatalf("second AnalyzeCall: %v", err)
	}
	stored := objs.byCall[callID]
	details := overcomes.byCall[callID]
	if len(stored) != 1 || len(details) != 1 {
		t.Fatalf("second run rows = %d objections, %d details, want 1 and 1", len(stored), len(details))
	}
	if details[0].ObjectionID != stored[0].ID {
		t.Errorf("detail links %s, want the second run's objection %s", details[0].ObjectionID, stored[0].ID)
	}
}

func TestAnalyzeCallSkipsOvercomeUnlessConsultScheduled(t *testing.T) {
	provider := &scriptedProvider{name: "openai", replies: []string{
		`{"category":"consult_not_scheduled","call_type":"pricing","confidence":0.8,"reasoning":"asked price"}`,
		`{"objections":[{"objection_type":"cost-value","objection_text":"too expensive","confidence":0.8}]}`,
	}}
	svc, calls, _, overcomes := newServiceFixture(t, provider)
	callID := seedCall(t, calls, "That is too expensive for me, thanks anyway.")

	if err := svc.AnalyzeCall(context.Background(), callID); err != nil {
		t.Fatalf("AnalyzeCall: %v", err)
	}
	if len(overcomes.byCall[callID]) != 0 {
		t.Errorf("overcome details = %d, want 0 for non-scheduled call", len(overcomes.byCall[callID]))
	}
	if overcomes.replaces != 1 {
		t.Errorf("overcome replaces = %d, want 1 (stale rows still cleared)", overcomes.replaces)
	}
	if provider.next != 2 {
		t.Errorf("provider completions = %d, want 2 (no overcome prompt)", provider.next)
	}
}

func TestAnalyzeCallUnknownCall(t *testing.T) {
	svc, _, _, _ := newServiceFixture(t)

	err := svc.AnalyzeCall(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

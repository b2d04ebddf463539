package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/constants"
	"github.com/ks2178o2/callharbor/internal/common"
	"github.com/ks2178o2/callharbor/internal/discovery"
	"github.com/ks2178o2/callharbor/internal/entity"
	"github.com/ks2178o2/callharbor/internal/transcription"
	"github.com/ks2178o2/callharbor/internal/transfer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*entity.ImportJob
}

func (m *mockJobRepo) Create(_ context.Context, userID uuid.UUID, customerName, sourceURL, bucket string) (*entity.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := &entity.ImportJob{
		ID:           uuid.New(),
		UserID:       userID,
		CustomerName: customerName,
		SourceURL:    sourceURL,
		BucketName:   bucket,
		Status:       constants.JobStatusPending,
	}
	m.jobs[j.ID] = j
	return j, nil
}

func (m *mockJobRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *j
	return &copied, nil
}

func (m *mockJobRepo) SetStatus(_ context.Context, id uuid.UUID, status constants.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id].Status = status
	return nil
}

func (m *mockJobRepo) SetFailed(_ context.Context, id uuid.UUID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id].Status = constants.JobStatusFailed
	m.jobs[id].ErrorMessage = &message
	return nil
}

func (m *mockJobRepo) SetCompleted(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.jobs[id].Status = constants.JobStatusCompleted
	m.jobs[id].CompletedAt = &now
	return nil
}

func (m *mockJobRepo) SetTotals(_ context.Context, id uuid.UUID, totalFiles int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id].TotalFiles = totalFiles
	return nil
}

func (m *mockJobRepo) SetProgress(_ context.Context, id uuid.UUID, processed, failed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id].ProcessedFiles = processed
	m.jobs[id].FailedFiles = failed
	return nil
}

func (m *mockJobRepo) SetDiagnostics(_ context.Context, id uuid.UUID, d *entity.DiscoveryDiagnostics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id].Diagnostics = d
	return nil
}

func (m *mockJobRepo) ListByUser(_ context.Context, _ uuid.UUID, _ int) ([]*entity.ImportJob, error) {
	return nil, nil
}

type mockFileRepo struct {
	mu    sync.Mutex
	files map[uuid.UUID]*entity.ImportFile
	order []uuid.UUID
}

func (m *mockFileRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.ImportFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *f
	return &copied, nil
}

func (m *mockFileRepo) GetByJobAndURL(_ context.Context, jobID uuid.UUID, url string) (*entity.ImportFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		f := m.files[id]
		if f.JobID == jobID && f.OriginalURL == url {
			copied := *f
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *mockFileRepo) Create(_ context.Context, jobID uuid.UUID, fileName, originalURL string) (*entity.ImportFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := &entity.ImportFile{
		ID:          uuid.New(),
		JobID:       jobID,
		FileName:    fileName,
		OriginalURL: originalURL,
		Status:      constants.FileStatusPending,
	}
	m.files[f.ID] = f
	m.order = append(m.order, f.ID)
	copied := *f
	return &copied, nil
}

func (m *mockFileRepo) ListByJob(_ context.Context, jobID uuid.UUID) ([]*entity.ImportFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ImportFile
	for _, id := range m.order {
		if m.files[id].JobID == jobID {
			copied := *m.files[id]
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockFileRepo) SetStatus(_ context.Context, id uuid.UUID, status constants.FileStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id].Status = status
	return nil
}

func (m *mockFileRepo) SetFailed(_ context.Context, id uuid.UUID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id].Status = constants.FileStatusFailed
	m.files[id].ErrorMessage = &message
	return nil
}

func (m *mockFileRepo) SetUploaded(_ context.Context, id uuid.UUID, storagePath string, size int64, format string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.files[id]
	f.StoragePath = &storagePath
	f.FileSize = &size
	f.FileFormat = &format
	return nil
}

func (m *mockFileRepo) LinkCallRecord(_ context.Context, id, callRecordID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id].CallRecordID = &callRecordID
	return nil
}

type mockCallRepo struct {
	mu    sync.Mutex
	calls map[uuid.UUID]*entity.CallRecord
}

func (m *mockCallRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *mockCallRepo) Create(_ context.Context, userID uuid.UUID, customerName, audioFileURL string, jobID *uuid.UUID) (*entity.CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &entity.CallRecord{
		ID:              uuid.New(),
		UserID:          userID,
		CustomerName:    customerName,
		Transcript:      constants.TranscriptSentinel,
		AudioFileURL:    audioFileURL,
		BulkImportJobID: jobID,
	}
	m.calls[c.ID] = c
	copied := *c
	return &copied, nil
}

func (m *mockCallRepo) ListByJob(_ context.Context, jobID uuid.UUID) ([]*entity.CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.CallRecord
	for _, c := range m.calls {
		if c.BulkImportJobID != nil && *c.BulkImportJobID == jobID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockCallRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*entity.CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.CallRecord
	for _, id := range ids {
		if c, ok := m.calls[id]; ok {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockCallRepo) SetTranscript(_ context.Context, id uuid.UUID, transcript string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[id]
	if !ok {
		return common.ErrNotFound
	}
	c.Transcript = transcript
	return nil
}

func (m *mockCallRepo) SetCategorization(_ context.Context, id uuid.UUID, category constants.CallCategory, callType constants.CallType, confidence float32, notes string, source entity.AnalysisSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	m.mu.Lock()
	defer m.mu.Unlock()
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
	mu     sync.Mutex
	byCall map[uuid.UUID][]*entity.Objection
}

func (m *mockObjectionRepo) ListByCall(_ context.Context, callID uuid.UUID) ([]*entity.Objection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byCall[callID], nil
}

func (m *mockObjectionRepo) ListByCalls(_ context.Context, callIDs []uuid.UUID) ([]*entity.Objection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Objection
	for _, id := range callIDs {
		out = append(out, m.byCall[id]...)
	}
	return out, nil
}

func (m *mockObjectionRepo) ReplaceForCall(_ context.Context, callID uuid.UUID, objections []*entity.Objection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byCall[callID] = objections
	return nil
}

func (m *mockObjectionRepo) DeleteForCall(_ context.Context, callID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byCall, callID)
	return nil
}

type mockOvercomeRepo struct {
	mu     sync.Mutex
	byCall map[uuid.UUID][]*entity.ObjectionOvercomeDetail
}

func (m *mockOvercomeRepo) ListByCalls(_ context.Context, callIDs []uuid.UUID) ([]*entity.ObjectionOvercomeDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ObjectionOvercomeDetail
	for _, id := range callIDs {
		out = append(out, m.byCall[id]...)
	}
	return out, nil
}

func (m *mockOvercomeRepo) ReplaceForCall(_ context.Context, callID uuid.UUID, details []*entity.ObjectionOvercomeDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byCall[callID] = details
	return nil
}

func (m *mockOvercomeRepo) DeleteForCall(_ context.Context, callID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byCall, callID)
	return nil
}

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	signs   int
}

func (b *fakeBucket) Upload(_ context.Context, bucket, path string, data []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[bucket+"/"+path] = data
	return nil
}

func (b *fakeBucket) SignedURL(_ context.Context, bucket, path string, _ time.Duration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signs++
	return "https://storage.example.com/sign/" + bucket + "/" + path + "?token=t", nil
}

type fakeDiscoverer struct {
	files []discovery.FileDescriptor
	err   error
	runs  int
}

func (d *fakeDiscoverer) Discover(_ context.Context, _ string) ([]discovery.FileDescriptor, error) {
	d.runs++
	if d.err != nil {
		return nil, d.err
	}
	return d.files, nil
}

type fakeDownloader struct {
	mu          sync.Mutex
	failURLs    map[string]error
	serverNames map[string]string
	downloads   int
}

func (d *fakeDownloader) Download(_ context.Context, url string) (*transfer.DownloadResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.downloads++
	if err, ok := d.failURLs[url]; ok {
		return nil, err
	}
	return &transfer.DownloadResult{
		Data:           []byte("RIFF fake audio for " + url),
		ContentType:    "audio/wav",
		ServerFilename: d.serverNames[url],
	}, nil
}

// completingTrigger simulates the transcription subsystem finishing instantly:
// the transcript and categorization land in the store before the poll loop
// checks again.
type completingTrigger struct {
	calls    *mockCallRepo
	mu       sync.Mutex
	requests []transcription.Request
}

func (t *completingTrigger) Trigger(ctx context.Context, req transcription.Request) error {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	t.mu.Unlock()
	if err := t.calls.SetTranscript(ctx, req.CallRecordID, "Hello, I would like to book a consult."); err != nil {
		return err
	}
	return t.calls.SetCategorization(ctx, req.CallRecordID,
		constants.CategoryConsultScheduled, constants.TypeScheduling, 0.9, "booked", entity.SourceOpenAI)
}

func (t *completingTrigger) requestCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

func (t *completingTrigger) lastRequest() transcription.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests[len(t.requests)-1]
}

// silentTrigger accepts the hand-off and never completes anything.
type silentTrigger struct{}

func (silentTrigger) Trigger(context.Context, transcription.Request) error { return nil }

type harness struct {
	jobs       *mockJobRepo
	files      *mockFileRepo
	calls      *mockCallRepo
	objections *mockObjectionRepo
	overcomes  *mockOvercomeRepo
	bucket     *fakeBucket
	discoverer *fakeDiscoverer
	downloader *fakeDownloader
	orch       *Orchestrator
}

func newHarness(t *testing.T, trigger transcription.Trigger, analyzer Analyzer) *harness {
	t.Helper()
	h := &harness{
		jobs:       &mockJobRepo{jobs: make(map[uuid.UUID]*entity.ImportJob)},
		files:      &mockFileRepo{files: make(map[uuid.UUID]*entity.ImportFile)},
		calls:      &mockCallRepo{calls: make(map[uuid.UUID]*entity.CallRecord)},
		objections: &mockObjectionRepo{byCall: make(map[uuid.UUID][]*entity.Objection)},
		overcomes:  &mockOvercomeRepo{byCall: make(map[uuid.UUID][]*entity.ObjectionOvercomeDetail)},
		bucket:     &fakeBucket{objects: make(map[string][]byte)},
		discoverer: &fakeDiscoverer{},
		downloader: &fakeDownloader{failURLs: make(map[string]error), serverNames: make(map[string]string)},
	}
	h.orch = NewOrchestrator(
		Config{PollInterval: 2 * time.Millisecond, PollCeiling: 2 * time.Second},
		Deps{
			Jobs:       h.jobs,
			Files:      h.files,
			Calls:      h.calls,
			Objections: h.objections,
			Overcomes:  h.overcomes,
			Bucket:     h.bucket,
			Trigger:    trigger,
			Analyzer:   analyzer,
			Discoverer: h.discoverer,
			Downloader: h.downloader,
		},
		testLogger(),
	)
	return h
}

func (h *harness) seedJob(t *testing.T) *entity.ImportJob {
	t.Helper()
	job, err := h.jobs.Create(context.Background(), uuid.New(), "Acme Dental", "https://example.com/recordings/", "call-audio")
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func descriptorSet(urls ...string) []discovery.FileDescriptor {
	out := make([]discovery.FileDescriptor, 0, len(urls))
	for _, u := range urls {
		name := u[strings.LastIndexByte(u, '/')+1:]
		out = append(out, discovery.FileDescriptor{Name: name, URL: u})
	}
	return out
}

func TestRunDedupesDiscoveryAndCompletes(t *testing.T) {
	trigger := &completingTrigger{}
	h := newHarness(t, trigger, nil)
	trigger.calls = h.calls
	job := h.seedJob(t)

	// Seven raw descriptors, five unique URLs.
	raw := descriptorSet(
		"https://example.com/a.wav",
		"https://example.com/b.wav",
		"https://example.com/a.wav",
		"https://example.com/c.mp3",
		"https://example.com/d.m4a",
		"https://example.com/b.wav",
		"https://example.com/e.ogg",
	)
	h.discoverer.files = raw

	if err := h.orch.Run(context.Background(), job.ID, "https://example.com/calllog.xlsx"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, _ := h.jobs.GetByID(context.Background(), job.ID)
	if got.Status != constants.JobStatusCompleted {
		t.Errorf("job status = %s, want COMPLETED", got.Status)
	}
	if got.TotalFiles != 5 || got.ProcessedFiles != 5 || got.FailedFiles != 0 {
		t.Errorf("totals = %d/%d/%d, want 5/5/0", got.TotalFiles, got.ProcessedFiles, got.FailedFiles)
	}
	if got.Diagnostics == nil {
		t.Fatal("diagnostics not persisted")
	}
	if got.Diagnostics.RawCount != 7 || got.Diagnostics.UniqueCount != 5 || got.Diagnostics.DuplicateCount != 2 {
		t.Errorf("diagnostics = %+v", got.Diagnostics)
	}

	files, _ := h.files.ListByJob(context.Background(), job.ID)
	if len(files) != 5 {
		t.Fatalf("file rows = %d, want 5", len(files))
	}
	for _, f := range files {
		if f.Status != constants.FileStatusCompleted {
			t.Errorf("file %s status = %s, want COMPLETED", f.FileName, f.Status)
		}
		if f.CallRecordID == nil || f.StoragePath == nil {
			t.Errorf("file %s missing call link or storage path", f.FileName)
		}
	}
	if trigger.requestCount() != 5 {
		t.Errorf("trigger requests = %d, want 5", trigger.requestCount())
	}
	// Uploads land under user/job prefixes in the job's bucket.
	key := fmt.Sprintf("call-audio/%s/%s/a.wav", job.UserID, job.ID)
	if _, ok := h.bucket.objects[key]; !ok {
		t.Errorf("upload missing at %s (have %d objects)", key, len(h.bucket.objects))
	}
}

func TestRunIsolatesPerFileFailure(t *testing.T) {
	trigger := &completingTrigger{}
	h := newHarness(t, trigger, nil)
	trigger.calls = h.calls
	job := h.seedJob(t)

	h.discoverer.files = descriptorSet(
		"https://example.com/a.wav",
		"https://example.com/broken.wav",
		"https://example.com/c.wav",
	)
	h.downloader.failURLs["https://example.com/broken.wav"] = errors.New("connection reset by peer")

	if err := h.orch.Run(context.Background(), job.ID, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, _ := h.jobs.GetByID(context.Background(), job.ID)
	if got.Status != constants.JobStatusCompleted {
		t.Errorf("job status = %s, want COMPLETED despite one failed file", got.Status)
	}
	if got.ProcessedFiles != 3 || got.FailedFiles != 1 {
		t.Errorf("processed/failed = %d/%d, want 3/1", got.ProcessedFiles, got.FailedFiles)
	}

	// The missing call-log URL is recorded as a notice, not an error.
	if got.Diagnostics == nil || len(got.Diagnostics.Notices) != 1 {
		t.Errorf("diagnostics notices = %+v", got.Diagnostics)
	}

	files, _ := h.files.ListByJob(context.Background(), job.ID)
	var failedFile *entity.ImportFile
	for _, f := range files {
		if f.OriginalURL == "https://example.com/broken.wav" {
			failedFile = f
		}
	}
	if failedFile == nil || failedFile.Status != constants.FileStatusFailed {
		t.Fatalf("broken file = %+v, want FAILED", failedFile)
	}
	if failedFile.ErrorMessage == nil || !strings.Contains(*failedFile.ErrorMessage, "connection reset") {
		t.Errorf("error message = %v", failedFile.ErrorMessage)
	}
}

func TestRunEmptyDiscoveryCompletesWithZeroTotals(t *testing.T) {
	h := newHarness(t, silentTrigger{}, nil)
	job := h.seedJob(t)
	h.discoverer.files = nil

	if err := h.orch.Run(context.Background(), job.ID, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, _ := h.jobs.GetByID(context.Background(), job.ID)
	if got.Status != constants.JobStatusCompleted || got.TotalFiles != 0 {
		t.Errorf("job = status %s totals %d, want COMPLETED with 0", got.Status, got.TotalFiles)
	}
}

func TestRunDiscoveryErrorFailsJob(t *testing.T) {
	h := newHarness(t, silentTrigger{}, nil)
	job := h.seedJob(t)
	h.discoverer.err = &discovery.NoFilesError{SourceURL: job.SourceURL, Hint: "folder is empty"}

	err := h.orch.Run(context.Background(), job.ID, "")
	if err == nil {
		t.Fatal("Run succeeded, want discovery failure")
	}
	got, _ := h.jobs.GetByID(context.Background(), job.ID)
	if got.Status != constants.JobStatusFailed {
		t.Errorf("job status = %s, want FAILED", got.Status)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "folder is empty") {
		t.Errorf("error message = %v", got.ErrorMessage)
	}
}

func TestRunRetrySkipsSettledFiles(t *testing.T) {
	trigger := &completingTrigger{}
	h := newHarness(t, trigger, nil)
	trigger.calls = h.calls
	job := h.seedJob(t)

	h.discoverer.files = descriptorSet(
		"https://example.com/a.wav",
		"https://example.com/b.wav",
	)

	if err := h.orch.Run(context.Background(), job.ID, ""); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	firstDownloads := h.downloader.downloads

	if err := h.orch.Run(context.Background(), job.ID, ""); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if h.downloader.downloads != firstDownloads {
		t.Errorf("retry re-downloaded settled files: %d -> %d", firstDownloads, h.downloader.downloads)
	}
	files, _ := h.files.ListByJob(context.Background(), job.ID)
	if len(files) != 2 {
		t.Errorf("file rows = %d, want the original 2 reused", len(files))
	}
	got, _ := h.jobs.GetByID(context.Background(), job.ID)
	if got.ProcessedFiles != 2 || got.Status != constants.JobStatusCompleted {
		t.Errorf("retry totals = %d, status = %s", got.ProcessedFiles, got.Status)
	}
}

func TestRunFallsBackToServerFilename(t *testing.T) {
	trigger := &completingTrigger{}
	h := newHarness(t, trigger, nil)
	trigger.calls = h.calls
	job := h.seedJob(t)

	h.discoverer.files = []discovery.FileDescriptor{
		{Name: "file_1aB2cD3eF4gH5iJ6kL7mN8oP9qR0sT1uV", URL: "https://example.com/download?id=x"},
	}
	h.downloader.serverNames["https://example.com/download?id=x"] = "tuesday_call.mp3"

	if err := h.orch.Run(context.Background(), job.ID, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	key := fmt.Sprintf("call-audio/%s/%s/tuesday_call.mp3", job.UserID, job.ID)
	if _, ok := h.bucket.objects[key]; !ok {
		t.Errorf("upload not stored under the server-provided filename (have %v)", len(h.bucket.objects))
	}
}

func TestRunPollTimeoutAdvancesWithoutFailing(t *testing.T) {
	h := newHarness(t, silentTrigger{}, nil)
	h.orch.cfg.PollCeiling = 10 * time.Millisecond
	job := h.seedJob(t)
	h.discoverer.files = descriptorSet("https://example.com/slow.wav")

	if err := h.orch.Run(context.Background(), job.ID, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, _ := h.jobs.GetByID(context.Background(), job.ID)
	if got.Status != constants.JobStatusCompleted {
		t.Errorf("job status = %s, want COMPLETED after poll timeout", got.Status)
	}
	files, _ := h.files.ListByJob(context.Background(), job.ID)
	if files[0].Status != constants.FileStatusAnalyzing {
		t.Errorf("file status = %s, want still ANALYZING (transcription may land later)", files[0].Status)
	}
	if got.FailedFiles != 0 {
		t.Errorf("failed = %d, want 0; a poll timeout is not a file failure", got.FailedFiles)
	}
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	err      error
	analyzed []uuid.UUID
}

func (a *fakeAnalyzer) AnalyzeCall(_ context.Context, callID uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.analyzed = append(a.analyzed, callID)
	return nil
}

func TestCompleteTranscriptionRejectsSentinel(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	h := newHarness(t, silentTrigger{}, analyzer)
	call, _ := h.calls.Create(context.Background(), uuid.New(), "Acme", "call-audio/x/a.wav", nil)

	for _, transcript := range []string{"", "   ", constants.TranscriptSentinel} {
		err := h.orch.CompleteTranscription(context.Background(), call.ID, uuid.Nil, transcript)
		if !errors.Is(err, common.ErrInvalidInput) {
			t.Errorf("CompleteTranscription(%q) err = %v, want invalid input", transcript, err)
		}
	}
	if len(analyzer.analyzed) != 0 {
		t.Errorf("analyzer ran %d times on rejected transcripts", len(analyzer.analyzed))
	}
}

func TestCompleteTranscriptionStoresAnalyzesAndSettles(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	h := newHarness(t, silentTrigger{}, analyzer)
	job := h.seedJob(t)
	call, _ := h.calls.Create(context.Background(), job.UserID, "Acme", "call-audio/x/a.wav", &job.ID)
	file, _ := h.files.Create(context.Background(), job.ID, "a.wav", "https://example.com/a.wav")

	err := h.orch.CompleteTranscription(context.Background(), call.ID, file.ID, "Agent: hello. Caller: I want to book.")
	if err != nil {
		t.Fatalf("CompleteTranscription: %v", err)
	}

	stored, _ := h.calls.GetByID(context.Background(), call.ID)
	if !constants.HasTranscript(stored.Transcript) {
		t.Errorf("transcript = %q", stored.Transcript)
	}
	if len(analyzer.analyzed) != 1 || analyzer.analyzed[0] != call.ID {
		t.Errorf("analyzed = %v", analyzer.analyzed)
	}
	f, _ := h.files.GetByID(context.Background(), file.ID)
	if f.Status != constants.FileStatusCompleted {
		t.Errorf("file status = %s, want COMPLETED", f.Status)
	}
}

func TestCompleteTranscriptionAnalysisFailureFailsFile(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("all providers exhausted: boom")}
	h := newHarness(t, silentTrigger{}, analyzer)
	job := h.seedJob(t)
	call, _ := h.calls.Create(context.Background(), job.UserID, "Acme", "call-audio/x/a.wav", &job.ID)
	file, _ := h.files.Create(context.Background(), job.ID, "a.wav", "https://example.com/a.wav")

	err := h.orch.CompleteTranscription(context.Background(), call.ID, file.ID, "real transcript text")
	if err == nil {
		t.Fatal("CompleteTranscription succeeded, want analyzer error")
	}
	f, _ := h.files.GetByID(context.Background(), file.ID)
	if f.Status != constants.FileStatusFailed {
		t.Errorf("file status = %s, want FAILED", f.Status)
	}
}

func TestRetranscribeResetsAnalysisAndRefires(t *testing.T) {
	trigger := &completingTrigger{}
	h := newHarness(t, trigger, nil)
	trigger.calls = h.calls
	job := h.seedJob(t)
	h.discoverer.files = descriptorSet("https://example.com/a.wav")

	if err := h.orch.Run(context.Background(), job.ID, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	files, _ := h.files.ListByJob(context.Background(), job.ID)
	file := files[0]
	callID := *file.CallRecordID

	// Seed stale analysis children to verify they are dropped.
	h.objections.byCall[callID] = []*entity.Objection{{ID: uuid.New(), CallRecordID: callID}}
	h.overcomes.byCall[callID] = []*entity.ObjectionOvercomeDetail{{ID: uuid.New(), CallRecordID: callID}}
	triggersBefore := trigger.requestCount()

	if err := h.orch.Retranscribe(context.Background(), file.ID); err != nil {
		t.Fatalf("Retranscribe: %v", err)
	}

	if len(h.objections.byCall[callID]) != 0 || len(h.overcomes.byCall[callID]) != 0 {
		t.Error("stale analysis rows survived retranscription")
	}
	call, _ := h.calls.GetByID(context.Background(), callID)
	if call.Transcript != constants.TranscriptSentinel || call.CallCategory != nil {
		t.Errorf("call not reset: transcript=%q category=%v", call.Transcript, call.CallCategory)
	}
	f, _ := h.files.GetByID(context.Background(), file.ID)
	if f.Status != constants.FileStatusTranscribing {
		t.Errorf("file status = %s, want TRANSCRIBING", f.Status)
	}

	// The trigger goroutine is asynchronous; wait briefly for the refire.
	deadline := time.Now().Add(time.Second)
	for trigger.requestCount() <= triggersBefore && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if trigger.requestCount() != triggersBefore+1 {
		t.Fatalf("trigger requests = %d, want %d", trigger.requestCount(), triggersBefore+1)
	}
	last := trigger.lastRequest()
	if last.FileExtension != "wav" || last.CallRecordID != callID {
		t.Errorf("refire request = %+v", last)
	}
}

func TestRetranscribeRequiresUploadedFile(t *testing.T) {
	h := newHarness(t, silentTrigger{}, nil)
	job := h.seedJob(t)
	file, _ := h.files.Create(context.Background(), job.ID, "a.wav", "https://example.com/a.wav")

	err := h.orch.Retranscribe(context.Background(), file.ID)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("err = %v, want invalid input for a never-uploaded file", err)
	}
}

func TestJobStatusBatchesDetail(t *testing.T) {
	trigger := &completingTrigger{}
	h := newHarness(t, trigger, nil)
	trigger.calls = h.calls
	job := h.seedJob(t)
	h.discoverer.files = descriptorSet(
		"https://example.com/a.wav",
		"https://example.com/b.wav",
	)

	if err := h.orch.Run(context.Background(), job.ID, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	status, err := h.orch.JobStatus(context.Background(), job.ID, true)
	if err != nil {
		t.Fatalf("JobStatus: %v", err)
	}
	if status.ProgressPercent != 100 {
		t.Errorf("progress = %v, want 100", status.ProgressPercent)
	}
	if len(status.Files) != 2 {
		t.Fatalf("files = %d, want 2", len(status.Files))
	}
	for _, d := range status.Files {
		if d.CallRecord == nil {
			t.Errorf("file %s missing call record detail", d.File.FileName)
		}
	}

	slim, err := h.orch.JobStatus(context.Background(), job.ID, false)
	if err != nil {
		t.Fatalf("JobStatus: %v", err)
	}
	if slim.Files != nil {
		t.Errorf("slim view carries %d files, want none", len(slim.Files))
	}
}

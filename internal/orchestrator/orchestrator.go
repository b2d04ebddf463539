package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/constants"
	"github.com/ks2178o2/callharbor/internal/common"
	"github.com/ks2178o2/callharbor/internal/discovery"
	"github.com/ks2178o2/callharbor/internal/entity"
	"github.com/ks2178o2/callharbor/internal/repository"
	"github.com/ks2178o2/callharbor/internal/transcription"
	"github.com/ks2178o2/callharbor/internal/transfer"
)

// Downloader is the slice of transfer.Downloader the per-file loop needs.
type Downloader interface {
	Download(ctx context.Context, url string) (*transfer.DownloadResult, error)
}

// Analyzer runs categorization and objection analysis for one call record and
// persists the results.
type Analyzer interface {
	AnalyzeCall(ctx context.Context, callRecordID uuid.UUID) error
}

// Config bounds the polling loop and the per-run HTTP client.
type Config struct {
	PollInterval    time.Duration
	PollCeiling     time.Duration
	DownloadTimeout time.Duration
	ProbeTimeout    time.Duration
	SignedURLTTL    time.Duration
}

// Deps collects the orchestrator's collaborators. Discoverer and Downloader
// are optional; when nil they are built per run around the run's shared HTTP
// client.
type Deps struct {
	Jobs       repository.ImportJobRepository
	Files      repository.ImportFileRepository
	Calls      repository.CallRecordRepository
	Objections repository.ObjectionRepository
	Overcomes  repository.OvercomeDetailRepository
	Bucket     transfer.Bucket
	Trigger    transcription.Trigger
	Analyzer   Analyzer

	Discoverer discovery.Discoverer
	Downloader Downloader
}

// Orchestrator drives one import job end to end: discovery, dedup, per-file
// download/upload/transcription hand-off, bounded polling, progress counters.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

func NewOrchestrator(cfg Config, deps Deps, logger *slog.Logger) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.PollCeiling <= 0 {
		cfg.PollCeiling = 600 * time.Second
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 5 * time.Minute
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, deps: deps, logger: logger}
}

// Run executes the job state machine. Per-file failures are isolated; any
// error returned here is job-fatal and has already been persisted as such.
// callLogURL is optional metadata enrichment; absence is recorded, not fatal.
func (o *Orchestrator) Run(ctx context.Context, jobID uuid.UUID, callLogURL string) (err error) {
	start := time.Now()
	log := o.logger.With("job_id", jobID, "req_id", uuid.New().String())

	job, err := o.deps.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	// One pooled client per run, shared by discovery and downloads. Closed on
	// every exit route.
	client := &http.Client{Timeout: o.cfg.DownloadTimeout}
	defer client.CloseIdleConnections()

	defer func() {
		if err != nil {
			log.Error("orchestrator.job.failed", "elapsed_ms", time.Since(start).Milliseconds(), "error", err)
			if ferr := o.deps.Jobs.SetFailed(context.WithoutCancel(ctx), jobID, err.Error()); ferr != nil {
				log.Error("orchestrator.job.fail_persist_failed", "error", ferr)
			}
		}
	}()

	log.Info("orchestrator.job.start", "source_url", job.SourceURL)
	if err = o.deps.Jobs.SetStatus(ctx, jobID, constants.JobStatusDiscovering); err != nil {
		return err
	}

	diag := &entity.DiscoveryDiagnostics{}
	if callLogURL == "" {
		diag.Notices = append(diag.Notices, "call log mapping url not supplied; skipping call metadata enrichment")
		log.Info("orchestrator.calllog.skipped")
	}

	disc := o.deps.Discoverer
	if disc == nil {
		disc = discovery.NewService(client, o.logger, o.cfg.ProbeTimeout)
	}
	descriptors, err := disc.Discover(ctx, job.SourceURL)
	if err != nil {
		return err
	}

	unique := dedupeByURL(descriptors)
	diag.RawCount = len(descriptors)
	diag.UniqueCount = len(unique)
	diag.DuplicateCount = len(descriptors) - len(unique)
	for _, fd := range unique {
		diag.Names = append(diag.Names, fd.Name)
	}
	if derr := o.deps.Jobs.SetDiagnostics(ctx, jobID, diag); derr != nil {
		log.Warn("orchestrator.diagnostics.persist_failed", "error", derr)
	}

	files, err := o.ensureFiles(ctx, jobID, unique)
	if err != nil {
		return err
	}

	if err = o.deps.Jobs.SetTotals(ctx, jobID, len(files)); err != nil {
		return err
	}
	if len(files) == 0 {
		log.Info("orchestrator.job.empty")
		return o.deps.Jobs.SetCompleted(ctx, jobID)
	}
	if err = o.deps.Jobs.SetStatus(ctx, jobID, constants.JobStatusConverting); err != nil {
		return err
	}

	dl := o.deps.Downloader
	if dl == nil {
		dl = transfer.NewDownloader(client, o.logger)
	}

	if err = o.deps.Jobs.SetStatus(ctx, jobID, constants.JobStatusUploading); err != nil {
		return err
	}

	processed, failed := 0, 0
	for _, f := range files {
		if f.Status.Terminal() {
			// Retry of a partially-run job: already-finished files count, but
			// are not reprocessed.
			processed++
			if f.Status == constants.FileStatusFailed {
				failed++
			}
			continue
		}

		if perr := o.processFile(ctx, job, f, dl, log); perr != nil {
			failed++
			log.Warn("orchestrator.file.failed", "file_id", f.ID, "file_name", f.FileName, "error", perr)
			if serr := o.deps.Files.SetFailed(ctx, f.ID, perr.Error()); serr != nil {
				log.Error("orchestrator.file.fail_persist_failed", "file_id", f.ID, "error", serr)
			}
		}
		processed++

		if perr := o.deps.Jobs.SetProgress(ctx, jobID, processed, failed); perr != nil {
			log.Error("orchestrator.progress.persist_failed", "error", perr)
		}
		if processed < len(files) {
			if serr := o.deps.Jobs.SetStatus(ctx, jobID, constants.JobStatusAnalyzing); serr != nil {
				log.Error("orchestrator.status.persist_failed", "error", serr)
			}
		}
	}

	// failed_files > 0 does not flip the terminal status; the per-file error
	// messages are the audit trail.
	if err = o.deps.Jobs.SetCompleted(ctx, jobID); err != nil {
		return err
	}
	log.Info("orchestrator.job.done",
		"total", len(files),
		"failed", failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// dedupeByURL keeps the first descriptor for each URL, preserving discovery
// order.
func dedupeByURL(in []discovery.FileDescriptor) []discovery.FileDescriptor {
	seen := make(map[string]bool, len(in))
	out := make([]discovery.FileDescriptor, 0, len(in))
	for _, fd := range in {
		if seen[fd.URL] {
			continue
		}
		seen[fd.URL] = true
		out = append(out, fd)
	}
	return out
}

// ensureFiles creates one ImportFile per unique URL, reusing any row an
// earlier run already created for the same (job, url).
func (o *Orchestrator) ensureFiles(ctx context.Context, jobID uuid.UUID, descriptors []discovery.FileDescriptor) ([]*entity.ImportFile, error) {
	out := make([]*entity.ImportFile, 0, len(descriptors))
	for _, fd := range descriptors {
		existing, err := o.deps.Files.GetByJobAndURL(ctx, jobID, fd.URL)
		if err == nil {
			out = append(out, existing)
			continue
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		f, err := o.deps.Files.Create(ctx, jobID, fd.Name, fd.URL)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// processFile runs one file through download, upload, call-record creation and
// the transcription hand-off, then polls until the file settles or the
// ceiling expires. Any error is file-fatal only.
func (o *Orchestrator) processFile(ctx context.Context, job *entity.ImportJob, f *entity.ImportFile, dl Downloader, log *slog.Logger) error {
	if err := o.deps.Files.SetStatus(ctx, f.ID, constants.FileStatusDownloading); err != nil {
		return err
	}
	res, err := dl.Download(ctx, f.OriginalURL)
	if err != nil {
		return err
	}

	name := f.FileName
	if !constants.IsAllowedExt(path.Ext(name)) && res.ServerFilename != "" {
		name = res.ServerFilename
	}
	data, ext, err := transfer.EnsureCompatible(res.Data, name)
	if err != nil {
		return err
	}

	if err := o.deps.Files.SetStatus(ctx, f.ID, constants.FileStatusUploading); err != nil {
		return err
	}
	storagePath := fmt.Sprintf("%s/%s/%s", job.UserID, job.ID, name)
	if err := o.deps.Bucket.Upload(ctx, job.BucketName, storagePath, data, constants.ContentTypeForExt(ext)); err != nil {
		return err
	}
	if err := o.deps.Files.SetUploaded(ctx, f.ID, storagePath, int64(len(data)), ext); err != nil {
		return err
	}
	if err := o.deps.Files.SetStatus(ctx, f.ID, constants.FileStatusTranscribing); err != nil {
		return err
	}

	call, err := o.deps.Calls.Create(ctx, job.UserID, job.CustomerName, job.BucketName+"/"+storagePath, &job.ID)
	if err != nil {
		return err
	}
	if err := o.deps.Files.LinkCallRecord(ctx, f.ID, call.ID); err != nil {
		return err
	}
	if err := o.deps.Files.SetStatus(ctx, f.ID, constants.FileStatusAnalyzing); err != nil {
		return err
	}

	signed, err := o.deps.Bucket.SignedURL(ctx, job.BucketName, storagePath, o.cfg.SignedURLTTL)
	if err != nil {
		return err
	}
	o.fireTrigger(storagePath, signed, ext, call.ID, f.ID, log)

	o.pollUntilSettled(ctx, f.ID, call.ID, log)
	return nil
}

// fireTrigger hands the file to the transcription subsystem in the
// background. The hand-off is fire-and-forget; the poll loop observes the
// outcome through the database.
func (o *Orchestrator) fireTrigger(storagePath, signedURL, ext string, callID, fileID uuid.UUID, log *slog.Logger) {
	if o.deps.Trigger == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		req := transcription.Request{
			StoragePath:   storagePath,
			SignedURL:     signedURL,
			ProviderName:  "assemblyai",
			FileExtension: ext,
			SpeakerLabels: true,
			CallRecordID:  callID,
			FileID:        fileID,
		}
		if err := o.deps.Trigger.Trigger(ctx, req); err != nil {
			log.Error("orchestrator.trigger.failed", "file_id", fileID, "error", err)
		}
	}()
}

// pollUntilSettled watches the file and its call record until the file
// reaches a terminal status, the transcript plus categorization arrive, or
// the ceiling expires. Timeout advances the job; the transcription may still
// finish later and update the record out of band.
func (o *Orchestrator) pollUntilSettled(ctx context.Context, fileID, callID uuid.UUID, log *slog.Logger) {
	deadline := time.Now().Add(o.cfg.PollCeiling)
	for {
		f, err := o.deps.Files.GetByID(ctx, fileID)
		if err == nil && f.Status.Terminal() {
			return
		}

		c, err := o.deps.Calls.GetByID(ctx, callID)
		if err == nil && constants.HasTranscript(c.Transcript) && c.Categorized() {
			if serr := o.deps.Files.SetStatus(ctx, fileID, constants.FileStatusCompleted); serr != nil {
				log.Error("orchestrator.poll.complete_persist_failed", "file_id", fileID, "error", serr)
			}
			return
		}

		if time.Now().After(deadline) {
			log.Warn("orchestrator.poll.timeout", "file_id", fileID, "call_record_id", callID)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.cfg.PollInterval):
		}
	}
}

// CompleteTranscription is the callback path for the transcription subsystem:
// it stores the transcript, runs analysis, and settles the file.
func (o *Orchestrator) CompleteTranscription(ctx context.Context, callID, fileID uuid.UUID, transcript string) error {
	if !constants.HasTranscript(transcript) {
		return common.NewAppError("INVALID_TRANSCRIPT", "transcript is empty or still the processing placeholder", common.ErrInvalidInput)
	}
	if err := o.deps.Calls.SetTranscript(ctx, callID, transcript); err != nil {
		return err
	}

	if o.deps.Analyzer != nil {
		if err := o.deps.Analyzer.AnalyzeCall(ctx, callID); err != nil {
			if fileID != uuid.Nil {
				if serr := o.deps.Files.SetFailed(ctx, fileID, err.Error()); serr != nil {
					o.logger.Error("orchestrator.completion.fail_persist_failed", "file_id", fileID, "error", serr)
				}
			}
			return err
		}
	}

	if fileID != uuid.Nil {
		if err := o.deps.Files.SetStatus(ctx, fileID, constants.FileStatusCompleted); err != nil {
			return err
		}
	}
	o.logger.Info("orchestrator.completion.ok", "call_record_id", callID, "file_id", fileID)
	return nil
}

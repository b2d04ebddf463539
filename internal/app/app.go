package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ks2178o2/callharbor/internal/analysis"
	"github.com/ks2178o2/callharbor/internal/analysis/gemini"
	"github.com/ks2178o2/callharbor/internal/analysis/openai"
	"github.com/ks2178o2/callharbor/internal/common"
	"github.com/ks2178o2/callharbor/internal/export"
	"github.com/ks2178o2/callharbor/internal/orchestrator"
	"github.com/ks2178o2/callharbor/internal/repository"
	"github.com/ks2178o2/callharbor/internal/server"
	"github.com/ks2178o2/callharbor/internal/sharing"
	"github.com/ks2178o2/callharbor/internal/tenancy"
	"github.com/ks2178o2/callharbor/internal/transcription"
	"github.com/ks2178o2/callharbor/internal/transfer"
)

// App wires configuration into the full service graph. Both the daemon and
// the CLI's serve command boot through here.
type App struct {
	Pool         *pgxpool.Pool
	Handler      http.Handler
	Orchestrator *orchestrator.Orchestrator
	Export       *export.Service
	Jobs         repository.ImportJobRepository
	Logger       *slog.Logger
}

func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		repository.Close(pool, logger)
		return nil, err
	}

	jobs := repository.NewImportJobRepository(pool, logger)
	files := repository.NewImportFileRepository(pool, logger)
	calls := repository.NewCallRecordRepository(pool, logger)
	objections := repository.NewObjectionRepository(pool, logger)
	overcomes := repository.NewOvercomeDetailRepository(pool, logger)
	orgs := repository.NewOrganizationRepository(pool, logger)
	features := repository.NewRAGFeatureRepository(pool, logger)
	items := repository.NewContextItemRepository(pool, logger)
	quotas := repository.NewQuotaRepository(pool, logger)
	sharingRepo := repository.NewSharingRepository(pool, logger)

	var providers []analysis.Provider
	if cfg.LLM.OpenAIAPIKey != "" {
		providers = append(providers, openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.OpenAIAPIKey,
			BaseURL:     cfg.LLM.OpenAIBaseURL,
			Model:       cfg.LLM.OpenAIModel,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger))
	}
	if cfg.LLM.GeminiAPIKey != "" {
		providers = append(providers, gemini.NewClient(gemini.Config{
			APIKey:      cfg.LLM.GeminiAPIKey,
			Model:       cfg.LLM.GeminiModel,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger))
	}
	engine := analysis.NewEngine(providers, logger)
	analyzer := analysis.NewService(engine, calls, objections, overcomes, logger)

	var bucket transfer.Bucket
	if cfg.Storage.BaseURL != "" {
		bucket = transfer.NewHTTPBucket(cfg.Storage.BaseURL, cfg.Storage.ServiceKey, nil, logger)
	} else {
		bucket = transfer.NewFSBucket("storage", logger)
	}

	var trigger transcription.Trigger
	if cfg.Transcription.BaseURL != "" {
		trigger = transcription.NewHTTPTrigger(cfg.Transcription.BaseURL, cfg.Transcription.APIKey, cfg.Transcription.Timeout, logger)
	}

	orch := orchestrator.NewOrchestrator(orchestrator.Config{
		PollInterval:    cfg.Import.PollInterval,
		PollCeiling:     cfg.Import.PollCeiling,
		DownloadTimeout: cfg.Import.DownloadTimeout,
		ProbeTimeout:    cfg.Import.ProbeTimeout,
		SignedURLTTL:    cfg.Storage.SignedURLTTL,
	}, orchestrator.Deps{
		Jobs:       jobs,
		Files:      files,
		Calls:      calls,
		Objections: objections,
		Overcomes:  overcomes,
		Bucket:     bucket,
		Trigger:    trigger,
		Analyzer:   analyzer,
	}, logger)

	featureSvc := tenancy.NewFeatureService(orgs, features, logger)
	quotaSvc := tenancy.NewQuotaService(quotas, logger)
	sharingSvc := sharing.NewService(orgs, items, sharingRepo, logger)
	exportSvc := export.NewService(jobs, files, calls, objections, logger)

	handler := server.NewHandler(server.Deps{
		Orchestrator:  orch,
		Features:      featureSvc,
		Quotas:        quotaSvc,
		Sharing:       sharingSvc,
		Export:        exportSvc,
		Jobs:          jobs,
		Token:         cfg.Server.AuthToken,
		DefaultBucket: cfg.Storage.DefaultBucket,
		Logger:        logger,
	})

	return &App{
		Pool:         pool,
		Handler:      handler,
		Orchestrator: orch,
		Export:       exportSvc,
		Jobs:         jobs,
		Logger:       logger,
	}, nil
}

// Close releases the database pool.
func (a *App) Close() {
	repository.Close(a.Pool, a.Logger)
}

package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"SejmAudit/internal/config"
	"SejmAudit/internal/domain"
	"SejmAudit/internal/infrastructure/cache"
	"SejmAudit/internal/infrastructure/extract"
	"SejmAudit/internal/infrastructure/fetch"
	"SejmAudit/internal/infrastructure/sejm"
	"SejmAudit/internal/infrastructure/storage"
	"SejmAudit/internal/infrastructure/telegram"
	"SejmAudit/internal/logging"
	"SejmAudit/internal/ports"
	"SejmAudit/internal/risk"
	"SejmAudit/internal/tree"
	"SejmAudit/internal/usecase"
)

// Application wires configuration into the audit orchestrator.
type Application struct {
	cfg     config.Config
	auditor *usecase.Auditor
	db      *sql.DB
	logger  *slog.Logger
}

// New builds a runnable application instance. It fails fast on invalid
// configuration before any network or disk work starts.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := cache.New(cfg.Run.CacheDir)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.New(cfg.Fetch, nil, logging.Component(baseLogger, "fetcher"))
	source := sejm.NewClient(cfg.API.BaseURL, fetcher, logging.Component(baseLogger, "sejm"))

	extractor := extract.New(
		cfg.Extract,
		extract.FitzRenderer{},
		extract.NewTesseractRecognizer(cfg.Extract.OCRLanguage),
		logging.Component(baseLogger, "extractor"),
	)

	var db *sql.DB
	var repository ports.AuditRepository
	if cfg.Database.DSN != "" {
		db, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		repository = storage.NewPostgresRepository(db)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	auditor := usecase.NewAuditor(usecase.AuditorDeps{
		Source:              source,
		Fetcher:             fetcher,
		Extractor:           extractor,
		Builder:             tree.NewBuilder(cfg.Risk.GapDays),
		Engine:              risk.NewEngine(cfg.Risk),
		Cache:               store,
		Repository:          repository,
		Notifier:            notifier,
		Logger:              logging.Component(baseLogger, "auditor"),
		Workers:             cfg.Run.Workers,
		DocWorkers:          cfg.Run.DocWorkers,
		DownloadAttachments: cfg.Run.AttachmentsEnabled(),
		OutputDir:           cfg.Run.OutputDir,
	})

	return &Application{cfg: cfg, auditor: auditor, db: db, logger: baseLogger}, nil
}

// Run executes one audit over the configured scope and logs the outcome.
func (a *Application) Run(ctx context.Context) error {
	defer a.Close()

	scope := domain.RunScope{Term: a.cfg.Scope.Term, Number: a.cfg.Scope.Process}
	run, err := a.auditor.Run(ctx, scope)
	if err != nil {
		return err
	}

	succeeded, partial, failed := run.Counts()
	a.logger.Info("audit run finished",
		"succeeded", succeeded, "partial", partial, "failed", failed,
		"duration", run.Finished.Sub(run.Started).String())
	return nil
}

// Close releases long-lived resources.
func (a *Application) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

// Package bootstrap wires configuration into the import pipeline and its
// HTTP surface.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	app "github.com/mohammadpnp/school-import/internal/application/importer"
	"github.com/mohammadpnp/school-import/internal/config"
	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"github.com/mohammadpnp/school-import/internal/infrastructure/db"
	infrafile "github.com/mohammadpnp/school-import/internal/infrastructure/file"
	"github.com/mohammadpnp/school-import/internal/infrastructure/llm"
	"github.com/mohammadpnp/school-import/internal/infrastructure/postal"
	"github.com/mohammadpnp/school-import/internal/infrastructure/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds the long-lived dependencies shared by the API server and the CLI.
type App struct {
	Config     config.Config
	Logger     *logrus.Logger
	DB         *gorm.DB
	Pool       *pgxpool.Pool
	Controller app.JobController
	Schools    app.GetSchoolBySlug
	Worker     *app.ImportWorker
}

func New(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*App, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("bootstrap: DATABASE_URL is required")
	}

	gormDB, err := db.Connect(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gormDB); err != nil {
		return nil, err
	}

	pool, err := db.ConnectPool(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	log := logrus.NewEntry(logger)

	jobs := repository.NewImportJobRepository(gormDB)
	enricher := app.NewEnricher(newNormalizer(cfg, log), newPostalLookup(cfg, log), app.EnricherConfig{
		ChunkSize:   cfg.Import.EnrichChunkSize,
		Concurrency: cfg.Import.EnrichConcurrency,
	}, log.WithField("component", "enricher"))

	policy := app.DefaultRetryPolicy()
	policy.ChunkSize = cfg.Import.CommitChunkSize
	committer := app.NewCommitter(repository.NewSchoolRepository(pool), policy, log.WithField("component", "committer"))

	controller := app.NewJobController(
		jobs,
		infrafile.NewLocalStore(cfg.Uploads.Dir),
		enricher,
		committer,
		app.ControllerConfig{
			BatchSize:     cfg.Import.BatchSize,
			LeaseDuration: cfg.Import.LeaseDuration,
		},
		log.WithField("component", "controller"),
	)

	worker := app.NewImportWorker(jobs, controller, app.ImportWorkerConfig{
		Workers:  cfg.Worker.Workers,
		Schedule: cfg.Worker.Schedule,
	}, log.WithField("component", "worker"))

	return &App{
		Config:     cfg,
		Logger:     logger,
		DB:         gormDB,
		Pool:       pool,
		Controller: controller,
		Schools:    app.NewGetSchoolBySlug(repository.NewSchoolQueryRepository(gormDB)),
		Worker:     worker,
	}, nil
}

func (a *App) Close() error {
	a.Pool.Close()

	sqlDB, err := a.DB.DB()
	if err != nil {
		return fmt.Errorf("bootstrap: sql handle: %w", err)
	}
	return sqlDB.Close()
}

// newNormalizer returns nil when no API key is configured; every row then
// keeps its deterministic cleanup.
func newNormalizer(cfg config.Config, log *logrus.Entry) domain.TextNormalizer {
	if cfg.OpenAI.APIKey == "" {
		log.Warn("OPENAI_API_KEY not set, text normalization disabled")
		return nil
	}
	return llm.NewOpenAINormalizer(llm.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.OpenAI.Timeout,
	})
}

func newPostalLookup(cfg config.Config, log *logrus.Entry) domain.PostalLookup {
	if !cfg.Postal.Enabled {
		log.Info("postal lookup disabled")
		return nil
	}
	return postal.NewClient(cfg.Postal.BaseURL, cfg.Postal.Timeout)
}

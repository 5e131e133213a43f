package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"github.com/mohammadpnp/school-import/internal/logging"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type BatchProcessor interface {
	ProcessNextBatch(ctx context.Context, jobID string) (BatchResult, error)
}

type resumableJobLister interface {
	ListResumable(ctx context.Context, limit int) ([]domain.ImportJob, error)
}

type ImportWorkerConfig struct {
	Workers  int
	Schedule string
	// MaxJobsPerRun bounds how many queued jobs one tick picks up.
	MaxJobsPerRun int
}

// ImportWorker drives unfinished jobs to completion in the background, one
// batch at a time, so uploads progress even when no client is looping.
type ImportWorker struct {
	jobs      resumableJobLister
	processor BatchProcessor
	cfg       ImportWorkerConfig
	logger    *logrus.Entry

	once sync.Once
}

func NewImportWorker(jobs resumableJobLister, processor BatchProcessor, cfg ImportWorkerConfig, logger *logrus.Entry) *ImportWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 15s"
	}
	if cfg.MaxJobsPerRun <= 0 {
		cfg.MaxJobsPerRun = cfg.Workers * 10
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &ImportWorker{jobs: jobs, processor: processor, cfg: cfg, logger: logger}
}

// Start schedules RunOnce until ctx is cancelled. Overlapping ticks are
// skipped while a run is still in progress.
func (w *ImportWorker) Start(ctx context.Context) error {
	var startErr error
	w.once.Do(func() {
		cronLogger := cron.PrintfLogger(w.logger)
		c := cron.New(
			cron.WithParser(scheduleParser),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		)
		if _, err := c.AddFunc(w.cfg.Schedule, func() { w.RunOnce(ctx) }); err != nil {
			startErr = fmt.Errorf("schedule import worker %q: %w", w.cfg.Schedule, err)
			return
		}
		c.Start()

		go func() {
			<-ctx.Done()
			<-c.Stop().Done()
		}()
	})
	return startErr
}

// RunOnce drives every resumable job until it is done or another invocation
// holds it.
func (w *ImportWorker) RunOnce(ctx context.Context) {
	jobs, err := w.jobs.ListResumable(ctx, w.cfg.MaxJobsPerRun)
	if err != nil {
		w.logger.WithError(err).Error("list resumable import jobs")
		return
	}

	var g errgroup.Group
	g.SetLimit(w.cfg.Workers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			w.drive(ctx, job.ID)
			return nil
		})
	}
	_ = g.Wait()
}

func (w *ImportWorker) drive(ctx context.Context, jobID string) {
	log := w.logger.WithField("job_id", jobID)
	res, err := Drive(ctx, w.processor, jobID, nil)
	switch {
	case err == nil:
		log.WithFields(logrus.Fields{
			"status":    res.Status,
			"processed": res.ProcessedRecords,
			"inserted":  res.InsertedRecords,
		}).Info("import job driven to completion")
	case errors.Is(err, ErrJobBusy):
		log.Debug("import job held by another invocation")
	case errors.Is(err, context.Canceled):
		log.Info("import worker stopped")
	default:
		log.WithError(err).Warn("import job stopped")
	}
}

// Drive calls ProcessNextBatch until the job is done. It stops between
// batches when ctx is cancelled; onBatch may be nil.
func Drive(ctx context.Context, processor BatchProcessor, jobID string, onBatch func(BatchResult)) (BatchResult, error) {
	var last BatchResult
	for {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		res, err := processor.ProcessNextBatch(ctx, jobID)
		if err != nil {
			return last, err
		}
		last = res
		if onBatch != nil {
			onBatch(res)
		}
		if res.Done {
			return res, nil
		}
	}
}

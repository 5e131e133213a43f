package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"github.com/mohammadpnp/school-import/internal/infrastructure/tabular"
	"github.com/mohammadpnp/school-import/internal/logging"
	"github.com/sirupsen/logrus"
)

const sniffLen = 3072

// FileStore keeps uploaded source files for the lifetime of a job.
type FileStore interface {
	Save(ctx context.Context, fileName string, body io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, path string) error
}

type CreateJobInput struct {
	FileName string
	Body     io.Reader
}

type CreateJobOutput struct {
	JobID     string `json:"job_id"`
	TotalRows int64  `json:"total_rows"`
}

type BatchResult struct {
	JobID            string `json:"job_id"`
	Done             bool   `json:"done"`
	Status           string `json:"status"`
	CursorLine       int64  `json:"cursor_line"`
	TotalRecords     int64  `json:"total_records"`
	ProcessedRecords int64  `json:"processed_records"`
	InsertedRecords  int64  `json:"inserted_records"`
	SkippedRecords   int64  `json:"skipped_records"`
	FailedRecords    int64  `json:"failed_records"`
	CurrentBatch     int    `json:"current_batch"`
}

type JobStatus struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	FileName         string            `json:"file_name"`
	TotalRecords     int64             `json:"total_records"`
	ProcessedRecords int64             `json:"processed_records"`
	InsertedRecords  int64             `json:"inserted_records"`
	SkippedRecords   int64             `json:"skipped_records"`
	FailedRecords    int64             `json:"failed_records"`
	CurrentBatch     int               `json:"current_batch"`
	BatchSize        int               `json:"batch_size"`
	CursorLine       int64             `json:"cursor_line"`
	ErrorMessage     *string           `json:"error_message"`
	ErrorDetails     []domain.RowError `json:"error_details"`
	StartedAt        *time.Time        `json:"started_at"`
	CompletedAt      *time.Time        `json:"completed_at"`
	CreatedAt        time.Time         `json:"created_at"`
	ElapsedSeconds   float64           `json:"elapsed_seconds"`
	RowsPerSecond    float64           `json:"rows_per_second"`
	ETASeconds       *float64          `json:"eta_seconds"`
}

type JobController interface {
	CreateJob(ctx context.Context, in CreateJobInput) (CreateJobOutput, error)
	ProcessNextBatch(ctx context.Context, jobID string) (BatchResult, error)
	GetStatus(ctx context.Context, jobID string) (JobStatus, error)
}

type ControllerConfig struct {
	BatchSize     int
	LeaseDuration time.Duration
	// HeartbeatInterval defaults to half the lease.
	HeartbeatInterval time.Duration
}

type jobController struct {
	jobs      domain.ImportJobRepository
	files     FileStore
	enricher  *Enricher
	committer *Committer
	cfg       ControllerConfig
	logger    *logrus.Entry
	now       func() time.Time
}

func NewJobController(
	jobs domain.ImportJobRepository,
	files FileStore,
	enricher *Enricher,
	committer *Committer,
	cfg ControllerConfig,
	logger *logrus.Entry,
) JobController {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1500
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 5 * time.Minute
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = cfg.LeaseDuration / 2
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &jobController{
		jobs:      jobs,
		files:     files,
		enricher:  enricher,
		committer: committer,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (c *jobController) CreateJob(ctx context.Context, in CreateJobInput) (CreateJobOutput, error) {
	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" || in.Body == nil {
		return CreateJobOutput{}, fmt.Errorf("%w: missing file", ErrInvalidImportFile)
	}

	path, err := c.files.Save(ctx, fileName, in.Body)
	if err != nil {
		return CreateJobOutput{}, fmt.Errorf("%w: %v", ErrCreateJob, err)
	}

	format, total, err := c.inspect(ctx, fileName, path)
	if err != nil {
		c.discardUpload(ctx, path)
		return CreateJobOutput{}, err
	}

	job := domain.NewImportJob(fileName, path, string(format), total, c.cfg.BatchSize)
	jobID, err := c.jobs.Enqueue(ctx, job)
	if err != nil {
		c.discardUpload(ctx, path)
		return CreateJobOutput{}, fmt.Errorf("%w: %v", ErrCreateJob, err)
	}

	c.logger.WithFields(logrus.Fields{
		"job_id":     jobID,
		"file_name":  fileName,
		"format":     format,
		"total_rows": total,
	}).Info("import job queued")

	return CreateJobOutput{JobID: jobID, TotalRows: total}, nil
}

// discardUpload removes a stored upload that no job will reference.
func (c *jobController) discardUpload(ctx context.Context, path string) {
	if err := c.files.Remove(ctx, path); err != nil {
		c.logger.WithError(err).WithField("path", path).Warn("remove unused upload")
	}
}

// inspect detects the format, validates the header and counts data rows.
func (c *jobController) inspect(ctx context.Context, fileName, path string) (tabular.Format, int64, error) {
	f, err := c.files.Open(ctx, path)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrCreateJob, err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", 0, fmt.Errorf("%w: %v", ErrCreateJob, err)
	}
	head = head[:n]

	format, err := tabular.DetectFormat(fileName, head)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidImportFile, err)
	}

	rows, err := tabular.Open(format, io.MultiReader(bytes.NewReader(head), f))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidImportFile, err)
	}
	defer rows.Close()

	if _, err := domain.ResolveHeader(rows.Header()); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidImportFile, err)
	}

	total, err := tabular.CountRows(rows)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidImportFile, err)
	}
	return format, total, nil
}

// ProcessNextBatch runs on a context detached from the caller: once started,
// a batch always commits its checkpoint.
func (c *jobController) ProcessNextBatch(ctx context.Context, jobID string) (BatchResult, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return BatchResult{}, ErrInvalidJobID
	}
	ctx = context.WithoutCancel(ctx)

	job, err := c.load(ctx, jobID)
	if err != nil {
		return BatchResult{}, err
	}
	if job.Status.Terminal() {
		return batchResult(job), nil
	}

	acquired, err := c.jobs.AcquireLease(ctx, jobID, c.cfg.LeaseDuration)
	if err != nil {
		return BatchResult{}, fmt.Errorf("%w: %v", ErrInfrastructure, err)
	}
	if !acquired {
		return BatchResult{}, ErrJobBusy
	}
	stopHeartbeat := c.keepLease(ctx, jobID)
	defer func() {
		stopHeartbeat()
		if err := c.jobs.ReleaseLease(ctx, jobID); err != nil {
			c.logger.WithError(err).WithField("job_id", jobID).Warn("release import job lease")
		}
	}()

	// Reload under the lease; the previous holder may have advanced the job.
	job, err = c.load(ctx, jobID)
	if err != nil {
		return BatchResult{}, err
	}
	if job.Status.Terminal() {
		return batchResult(job), nil
	}

	m := getMetrics()
	started := time.Now()
	log := c.logger.WithFields(logrus.Fields{
		"job_id": jobID,
		"batch":  job.CurrentBatch + 1,
		"cursor": job.CursorLine,
	})

	outcome, err := c.runBatch(ctx, job)
	if err != nil {
		m.batchesTotal.WithLabelValues("failed").Inc()
		return c.fail(ctx, job, err, log)
	}

	next := domain.Advance(job, outcome, c.now())
	if err := c.jobs.SaveCheckpoint(ctx, next); err != nil {
		if errors.Is(err, domain.ErrStaleCheckpoint) {
			m.batchesTotal.WithLabelValues("stale").Inc()
			return BatchResult{}, fmt.Errorf("%w: %v", ErrJobBusy, err)
		}
		m.batchesTotal.WithLabelValues("failed").Inc()
		return c.fail(ctx, job, fmt.Errorf("save checkpoint: %w", err), log)
	}

	m.batchesTotal.WithLabelValues("ok").Inc()
	m.batchDuration.Observe(time.Since(started).Seconds())
	m.rowsTotal.WithLabelValues("inserted").Add(float64(outcome.Inserted))
	m.rowsTotal.WithLabelValues("skipped").Add(float64(outcome.Skipped))
	m.rowsTotal.WithLabelValues("failed").Add(float64(outcome.Failed))

	log.WithFields(logrus.Fields{
		"rows":      outcome.RowsRead,
		"inserted":  outcome.Inserted,
		"skipped":   outcome.Skipped,
		"failed":    outcome.Failed,
		"status":    next.Status,
		"processed": next.ProcessedRecords,
		"total":     next.TotalRecords,
	}).Info("import batch committed")

	return batchResult(next), nil
}

// keepLease extends the lease until the returned stop func is called, so a
// slow batch is not picked up by another invocation.
func (c *jobController) keepLease(ctx context.Context, jobID string) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.cfg.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.jobs.Heartbeat(ctx, jobID, c.cfg.LeaseDuration); err != nil {
					c.logger.WithError(err).WithField("job_id", jobID).Warn("heartbeat import job lease")
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (c *jobController) fail(ctx context.Context, job domain.ImportJob, cause error, log *logrus.Entry) (BatchResult, error) {
	failed := domain.Fail(job, cause.Error(), c.now())
	if err := c.jobs.MarkFailed(ctx, job.ID, *failed.ErrorMessage); err != nil {
		log.WithError(err).Error("mark import job failed")
	}
	log.WithError(cause).Error("import batch aborted")
	return batchResult(failed), fmt.Errorf("%w: %v", ErrInfrastructure, cause)
}

// runBatch reads the next batch from the cursor and commits it. Only errors
// that prevent reading the source or reaching the store are returned.
func (c *jobController) runBatch(ctx context.Context, job domain.ImportJob) (domain.BatchOutcome, error) {
	raws, eof, err := c.readBatch(ctx, job)
	if err != nil {
		return domain.BatchOutcome{}, err
	}
	if len(raws) == 0 {
		return domain.BatchOutcome{EOF: true}, nil
	}

	enriched := c.enricher.Enrich(ctx, job.ID, raws)
	committed, err := c.committer.Commit(ctx, enriched.Records)
	if err != nil {
		return domain.BatchOutcome{}, fmt.Errorf("commit batch: %w", err)
	}

	return domain.BatchOutcome{
		RowsRead: int64(len(raws)),
		Inserted: committed.Inserted,
		Skipped:  int64(len(enriched.Skipped)),
		Failed:   committed.Failed,
		Errors:   append(enriched.Skipped, committed.Errors...),
		EOF:      eof,
	}, nil
}

// readBatch returns up to BatchSize rows starting at the cursor. eof reports
// that no row follows the batch.
func (c *jobController) readBatch(ctx context.Context, job domain.ImportJob) ([]domain.RawSchoolRecord, bool, error) {
	src, err := c.files.Open(ctx, job.SourcePath)
	if err != nil {
		return nil, false, fmt.Errorf("open source file: %w", err)
	}
	defer src.Close()

	rows, err := tabular.Open(tabular.Format(job.FileFormat), src)
	if err != nil {
		return nil, false, fmt.Errorf("read source file: %w", err)
	}
	defer rows.Close()

	index, err := domain.ResolveHeader(rows.Header())
	if err != nil {
		return nil, false, fmt.Errorf("read source header: %w", err)
	}
	if err := tabular.Skip(rows, job.CursorLine); err != nil {
		return nil, false, fmt.Errorf("seek to row %d: %w", job.CursorLine, err)
	}

	batch := make([]domain.RawSchoolRecord, 0, job.BatchSize)
	for len(batch) < job.BatchSize {
		cells, err := rows.Next()
		if errors.Is(err, io.EOF) {
			return batch, true, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("read row %d: %w", job.CursorLine+int64(len(batch)), err)
		}
		batch = append(batch, index.Record(job.CursorLine+int64(len(batch)), cells))
	}

	if _, err := rows.Next(); err != nil {
		if errors.Is(err, io.EOF) {
			return batch, true, nil
		}
		return nil, false, fmt.Errorf("read row %d: %w", job.CursorLine+int64(len(batch)), err)
	}
	return batch, false, nil
}

func (c *jobController) GetStatus(ctx context.Context, jobID string) (JobStatus, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return JobStatus{}, ErrInvalidJobID
	}

	job, err := c.load(ctx, jobID)
	if err != nil {
		return JobStatus{}, err
	}

	p := job.Progress(c.now())
	out := JobStatus{
		ID:               job.ID,
		Status:           string(job.Status),
		FileName:         job.FileName,
		TotalRecords:     job.TotalRecords,
		ProcessedRecords: job.ProcessedRecords,
		InsertedRecords:  job.InsertedRecords,
		SkippedRecords:   job.SkippedRecords,
		FailedRecords:    job.FailedRecords,
		CurrentBatch:     job.CurrentBatch,
		BatchSize:        job.BatchSize,
		CursorLine:       job.CursorLine,
		ErrorMessage:     job.ErrorMessage,
		ErrorDetails:     job.ErrorDetails,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
		CreatedAt:        job.CreatedAt,
		ElapsedSeconds:   p.Elapsed.Seconds(),
		RowsPerSecond:    p.RowsPerSecond,
	}
	if out.ErrorDetails == nil {
		out.ErrorDetails = []domain.RowError{}
	}
	if p.Remaining != nil {
		eta := p.Remaining.Seconds()
		out.ETASeconds = &eta
	}
	return out, nil
}

func (c *jobController) load(ctx context.Context, jobID string) (domain.ImportJob, error) {
	job, err := c.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return domain.ImportJob{}, ErrJobNotFound
		}
		return domain.ImportJob{}, fmt.Errorf("%w: %v", ErrInfrastructure, err)
	}
	return job, nil
}

func batchResult(job domain.ImportJob) BatchResult {
	return BatchResult{
		JobID:            job.ID,
		Done:             job.Status.Terminal(),
		Status:           string(job.Status),
		CursorLine:       job.CursorLine,
		TotalRecords:     job.TotalRecords,
		ProcessedRecords: job.ProcessedRecords,
		InsertedRecords:  job.InsertedRecords,
		SkippedRecords:   job.SkippedRecords,
		FailedRecords:    job.FailedRecords,
		CurrentBatch:     job.CurrentBatch,
	}
}

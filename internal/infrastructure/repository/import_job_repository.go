package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"github.com/mohammadpnp/school-import/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

var nonTerminalStatuses = []string{string(domain.StatusQueued), string(domain.StatusProcessing)}

type ImportJobRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ domain.ImportJobRepository = (*ImportJobRepository)(nil)

func NewImportJobRepository(db *gorm.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *ImportJobRepository) Enqueue(ctx context.Context, job domain.ImportJob) (string, error) {
	row, err := toModel(job)
	if err != nil {
		return "", err
	}
	row.Status = string(domain.StatusQueued)

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("create import job: %w", err)
	}

	return row.ID, nil
}

func (r *ImportJobRepository) Get(ctx context.Context, jobID string) (domain.ImportJob, error) {
	var row models.ImportJob
	err := r.db.WithContext(ctx).First(&row, "id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ImportJob{}, domain.ErrJobNotFound
		}
		return domain.ImportJob{}, fmt.Errorf("get import job: %w", err)
	}
	return toDomain(row)
}

// SaveCheckpoint writes the job counters in a single conditional update. The
// write is refused when the job is already terminal or the stored cursor is
// ahead of the new one.
func (r *ImportJobRepository) SaveCheckpoint(ctx context.Context, job domain.ImportJob) error {
	details, err := json.Marshal(nonNilErrors(job.ErrorDetails))
	if err != nil {
		return fmt.Errorf("encode error details: %w", err)
	}

	res := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ? AND status IN ? AND cursor_line <= ?", job.ID, nonTerminalStatuses, job.CursorLine).
		Updates(map[string]any{
			"status":            string(job.Status),
			"total_records":     job.TotalRecords,
			"processed_records": job.ProcessedRecords,
			"inserted_records":  job.InsertedRecords,
			"skipped_records":   job.SkippedRecords,
			"failed_records":    job.FailedRecords,
			"current_batch":     job.CurrentBatch,
			"cursor_line":       job.CursorLine,
			"error_details":     string(details),
			"started_at":        job.StartedAt,
			"completed_at":      job.CompletedAt,
			"updated_at":        r.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("save import checkpoint: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: job %s", domain.ErrStaleCheckpoint, job.ID)
	}
	return nil
}

// MarkFailed only touches status and error columns so the last committed
// counters and cursor are preserved.
func (r *ImportJobRepository) MarkFailed(ctx context.Context, jobID string, reason string) error {
	msg := domain.TruncateReason(reason)
	res := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ? AND status IN ?", jobID, nonTerminalStatuses).
		Updates(map[string]any{
			"status":        string(domain.StatusFailed),
			"error_message": msg,
			"locked_until":  nil,
			"updated_at":    r.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("mark import job failed: %w", res.Error)
	}
	return nil
}

// AcquireLease claims the job for one invocation. It returns false when
// another invocation holds an unexpired lease.
func (r *ImportJobRepository) AcquireLease(ctx context.Context, jobID string, d time.Duration) (bool, error) {
	now := r.now()
	res := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ? AND (locked_until IS NULL OR locked_until < ?)", jobID, now).
		Update("locked_until", now.Add(d))
	if res.Error != nil {
		return false, fmt.Errorf("acquire import job lease: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *ImportJobRepository) Heartbeat(ctx context.Context, jobID string, d time.Duration) error {
	err := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ? AND locked_until IS NOT NULL", jobID).
		Update("locked_until", r.now().Add(d)).Error
	if err != nil {
		return fmt.Errorf("heartbeat import job lease: %w", err)
	}
	return nil
}

func (r *ImportJobRepository) ReleaseLease(ctx context.Context, jobID string) error {
	err := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ?", jobID).
		Update("locked_until", nil).Error
	if err != nil {
		return fmt.Errorf("release import job lease: %w", err)
	}
	return nil
}

func (r *ImportJobRepository) ListResumable(ctx context.Context, limit int) ([]domain.ImportJob, error) {
	var rows []models.ImportJob
	err := r.db.WithContext(ctx).
		Where("status IN ?", nonTerminalStatuses).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list resumable import jobs: %w", err)
	}

	jobs := make([]domain.ImportJob, 0, len(rows))
	for _, row := range rows {
		job, err := toDomain(row)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func toModel(job domain.ImportJob) (models.ImportJob, error) {
	details, err := json.Marshal(nonNilErrors(job.ErrorDetails))
	if err != nil {
		return models.ImportJob{}, fmt.Errorf("encode error details: %w", err)
	}

	return models.ImportJob{
		ID:               job.ID,
		Status:           string(job.Status),
		FileName:         job.FileName,
		SourcePath:       job.SourcePath,
		FileFormat:       job.FileFormat,
		TotalRecords:     job.TotalRecords,
		ProcessedRecords: job.ProcessedRecords,
		InsertedRecords:  job.InsertedRecords,
		SkippedRecords:   job.SkippedRecords,
		FailedRecords:    job.FailedRecords,
		CurrentBatch:     job.CurrentBatch,
		BatchSize:        job.BatchSize,
		CursorLine:       job.CursorLine,
		ErrorMessage:     job.ErrorMessage,
		ErrorDetails:     string(details),
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
	}, nil
}

func toDomain(row models.ImportJob) (domain.ImportJob, error) {
	var details []domain.RowError
	if row.ErrorDetails != "" {
		if err := json.Unmarshal([]byte(row.ErrorDetails), &details); err != nil {
			return domain.ImportJob{}, fmt.Errorf("decode error details of job %s: %w", row.ID, err)
		}
	}

	return domain.ImportJob{
		ID:               row.ID,
		Status:           domain.ImportStatus(row.Status),
		FileName:         row.FileName,
		SourcePath:       row.SourcePath,
		FileFormat:       row.FileFormat,
		TotalRecords:     row.TotalRecords,
		ProcessedRecords: row.ProcessedRecords,
		InsertedRecords:  row.InsertedRecords,
		SkippedRecords:   row.SkippedRecords,
		FailedRecords:    row.FailedRecords,
		CurrentBatch:     row.CurrentBatch,
		BatchSize:        row.BatchSize,
		CursorLine:       row.CursorLine,
		ErrorMessage:     row.ErrorMessage,
		ErrorDetails:     details,
		StartedAt:        row.StartedAt,
		CompletedAt:      row.CompletedAt,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}

func nonNilErrors(errs []domain.RowError) []domain.RowError {
	if errs == nil {
		return []domain.RowError{}
	}
	return errs
}

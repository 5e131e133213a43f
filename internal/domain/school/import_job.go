package school

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxStoredRowErrors caps the row errors kept on a job checkpoint.
const MaxStoredRowErrors = 100

const maxErrorMessageLen = 1000

type ImportStatus string

const (
	StatusQueued     ImportStatus = "queued"
	StatusProcessing ImportStatus = "processing"
	StatusCompleted  ImportStatus = "completed"
	StatusFailed     ImportStatus = "failed"
)

func (s ImportStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ImportJob is the persisted checkpoint of one file import.
type ImportJob struct {
	ID               string
	Status           ImportStatus
	FileName         string
	SourcePath       string
	FileFormat       string
	TotalRecords     int64
	ProcessedRecords int64
	InsertedRecords  int64
	SkippedRecords   int64
	FailedRecords    int64
	CurrentBatch     int
	BatchSize        int
	CursorLine       int64
	ErrorMessage     *string
	ErrorDetails     []RowError
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type RowErrorKind string

const (
	RowEnrichmentSkip             RowErrorKind = "enrichment_skip"
	RowDuplicateKeyRetryExhausted RowErrorKind = "duplicate_key_retry_exhausted"
	RowOtherInsertError           RowErrorKind = "other_insert_error"
)

// RowError records why a single source row was not inserted. Row is the
// zero-based data row offset, the same unit as ImportJob.CursorLine.
type RowError struct {
	Row    int64        `json:"row"`
	Kind   RowErrorKind `json:"kind"`
	Reason string       `json:"reason"`
}

// BatchOutcome is what one batch invocation did to the source rows it read.
type BatchOutcome struct {
	RowsRead int64
	Inserted int64
	Skipped  int64
	Failed   int64
	Errors   []RowError
	EOF      bool
}

// NewImportJob returns a queued job positioned at the start of the file.
func NewImportJob(fileName, sourcePath, format string, totalRecords int64, batchSize int) ImportJob {
	return ImportJob{
		Status:       StatusQueued,
		FileName:     fileName,
		SourcePath:   sourcePath,
		FileFormat:   format,
		TotalRecords: totalRecords,
		BatchSize:    batchSize,
	}
}

// Advance applies a committed batch to the checkpoint and returns the next
// checkpoint. Terminal jobs are returned unchanged.
func Advance(job ImportJob, outcome BatchOutcome, now time.Time) ImportJob {
	if job.Status.Terminal() {
		return job
	}

	next := job
	next.ErrorDetails = append([]RowError(nil), job.ErrorDetails...)
	if next.StartedAt == nil {
		started := now
		next.StartedAt = &started
	}
	next.Status = StatusProcessing

	if outcome.RowsRead > 0 {
		next.CursorLine += outcome.RowsRead
		next.ProcessedRecords += outcome.RowsRead
		next.InsertedRecords += outcome.Inserted
		next.SkippedRecords += outcome.Skipped
		next.FailedRecords += outcome.Failed
		next.CurrentBatch++

		for _, rowErr := range outcome.Errors {
			if len(next.ErrorDetails) >= MaxStoredRowErrors {
				break
			}
			next.ErrorDetails = append(next.ErrorDetails, rowErr)
		}
	}

	if next.ProcessedRecords > next.TotalRecords {
		next.TotalRecords = next.ProcessedRecords
	}

	if outcome.RowsRead == 0 || outcome.EOF {
		completed := now
		next.Status = StatusCompleted
		next.CompletedAt = &completed
		next.TotalRecords = next.ProcessedRecords
	}

	next.UpdatedAt = now
	return next
}

// Fail moves a job to the failed state keeping its last committed counters.
func Fail(job ImportJob, reason string, now time.Time) ImportJob {
	if job.Status.Terminal() {
		return job
	}

	msg := TruncateReason(reason)
	job.Status = StatusFailed
	job.ErrorMessage = &msg
	job.UpdatedAt = now
	return job
}

// Progress is derived timing information for a job snapshot.
type Progress struct {
	Elapsed       time.Duration
	RowsPerSecond float64
	Remaining     *time.Duration
}

func (j ImportJob) Progress(now time.Time) Progress {
	if j.StartedAt == nil {
		return Progress{}
	}

	end := now
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	} else if j.Status == StatusFailed {
		end = j.UpdatedAt
	}

	p := Progress{Elapsed: end.Sub(*j.StartedAt)}
	if p.Elapsed <= 0 || j.ProcessedRecords == 0 {
		return p
	}

	p.RowsPerSecond = float64(j.ProcessedRecords) / p.Elapsed.Seconds()
	if !j.Status.Terminal() && j.TotalRecords > j.ProcessedRecords {
		left := float64(j.TotalRecords-j.ProcessedRecords) / p.RowsPerSecond
		remaining := time.Duration(left * float64(time.Second))
		p.Remaining = &remaining
	}
	return p
}

// TruncateReason caps reason at 1000 bytes without splitting a rune. Invalid
// UTF-8 is replaced since the store rejects it.
func TruncateReason(reason string) string {
	reason = strings.ToValidUTF8(strings.TrimSpace(reason), "\uFFFD")
	if len(reason) <= maxErrorMessageLen {
		return reason
	}
	n := maxErrorMessageLen
	for n > 0 && !utf8.RuneStart(reason[n]) {
		n--
	}
	return reason[:n]
}

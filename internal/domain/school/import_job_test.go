package school_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceScenarioThreeBatches(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	job := domain.NewImportJob("schools.csv", "uploads/schools.csv", "csv", 3200, 1500)
	job.ID = "job-1"

	outcomes := []domain.BatchOutcome{
		{RowsRead: 1500, Inserted: 1490, Skipped: 10},
		{RowsRead: 1500, Inserted: 1500},
		{RowsRead: 200, Inserted: 198, Failed: 2, EOF: true},
	}
	wantProcessed := []int64{1500, 3000, 3200}

	for i, outcome := range outcomes {
		job = domain.Advance(job, outcome, now.Add(time.Duration(i)*time.Second))
		assert.Equal(t, i+1, job.CurrentBatch)
		assert.Equal(t, wantProcessed[i], job.ProcessedRecords)
		assert.Equal(t, wantProcessed[i], job.CursorLine)
		assert.Equal(t, job.ProcessedRecords, job.InsertedRecords+job.SkippedRecords+job.FailedRecords)
	}

	assert.Equal(t, domain.StatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
	require.NotNil(t, job.StartedAt)
	assert.Equal(t, now, *job.StartedAt)
}

func TestAdvanceEmptyBatchCompletes(t *testing.T) {
	t.Parallel()

	job := domain.NewImportJob("schools.csv", "p", "csv", 10, 5)
	job.Status = domain.StatusProcessing
	job.CursorLine = 8
	job.ProcessedRecords = 8
	job.InsertedRecords = 8
	job.CurrentBatch = 2

	next := domain.Advance(job, domain.BatchOutcome{}, time.Now())

	assert.Equal(t, domain.StatusCompleted, next.Status)
	assert.Equal(t, 2, next.CurrentBatch)
	assert.Equal(t, int64(8), next.CursorLine)
	assert.Equal(t, int64(8), next.TotalRecords)
}

func TestAdvanceTerminalIsNoop(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.ImportStatus{domain.StatusCompleted, domain.StatusFailed} {
		job := domain.ImportJob{ID: "job-1", Status: status, CursorLine: 10, ProcessedRecords: 10, CurrentBatch: 1}
		next := domain.Advance(job, domain.BatchOutcome{RowsRead: 5, Inserted: 5}, time.Now())
		assert.Equal(t, job, next)
	}
}

func TestAdvanceCapsStoredRowErrors(t *testing.T) {
	t.Parallel()

	errs := make([]domain.RowError, 0, 150)
	for i := 0; i < 150; i++ {
		errs = append(errs, domain.RowError{Row: int64(i), Kind: domain.RowEnrichmentSkip, Reason: "missing name"})
	}

	job := domain.NewImportJob("f.csv", "p", "csv", 1000, 500)
	next := domain.Advance(job, domain.BatchOutcome{RowsRead: 500, Inserted: 350, Skipped: 150, Errors: errs}, time.Now())

	assert.Len(t, next.ErrorDetails, domain.MaxStoredRowErrors)
	assert.Empty(t, job.ErrorDetails)
}

func TestAdvanceGrowsUnderestimatedTotal(t *testing.T) {
	t.Parallel()

	job := domain.NewImportJob("f.csv", "p", "csv", 3, 5)
	next := domain.Advance(job, domain.BatchOutcome{RowsRead: 5, Inserted: 5}, time.Now())

	assert.Equal(t, int64(5), next.TotalRecords)
	assert.LessOrEqual(t, next.ProcessedRecords, next.TotalRecords)
}

func TestFailKeepsCheckpoint(t *testing.T) {
	t.Parallel()

	job := domain.ImportJob{ID: "job-1", Status: domain.StatusProcessing, CursorLine: 1500, ProcessedRecords: 1500, InsertedRecords: 1500, CurrentBatch: 1}
	failed := domain.Fail(job, "  connection refused  ", time.Now())

	assert.Equal(t, domain.StatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "connection refused", *failed.ErrorMessage)
	assert.Equal(t, int64(1500), failed.CursorLine)
	assert.Equal(t, int64(1500), failed.ProcessedRecords)

	again := domain.Fail(failed, "other", time.Now())
	assert.Equal(t, "connection refused", *again.ErrorMessage)
}

func TestProgressEstimatesRemaining(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	job := domain.ImportJob{
		Status:           domain.StatusProcessing,
		TotalRecords:     3000,
		ProcessedRecords: 1000,
		StartedAt:        &started,
	}

	p := job.Progress(started.Add(10 * time.Second))

	assert.Equal(t, 10*time.Second, p.Elapsed)
	assert.InDelta(t, 100.0, p.RowsPerSecond, 0.001)
	require.NotNil(t, p.Remaining)
	assert.Equal(t, 20*time.Second, *p.Remaining)
}

func TestTruncateReason(t *testing.T) {
	t.Parallel()

	assert.Len(t, domain.TruncateReason(strings.Repeat("x", 5000)), 1000)

	accented := domain.TruncateReason(strings.Repeat("a", 999) + "ção")
	assert.True(t, utf8.ValidString(accented))
	assert.Equal(t, strings.Repeat("a", 999), accented)

	latin1 := domain.TruncateReason("Col\xe9gio duplicado")
	assert.True(t, utf8.ValidString(latin1))
	assert.Equal(t, "Col\uFFFDgio duplicado", latin1)
}

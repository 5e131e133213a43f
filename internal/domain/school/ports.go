package school

import (
	"context"
	"time"
)

type ImportJobRepository interface {
	Enqueue(ctx context.Context, job ImportJob) (string, error)
	Get(ctx context.Context, jobID string) (ImportJob, error)
	SaveCheckpoint(ctx context.Context, job ImportJob) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	AcquireLease(ctx context.Context, jobID string, d time.Duration) (bool, error)
	// Heartbeat extends a held lease. It does not revive a released one.
	Heartbeat(ctx context.Context, jobID string, d time.Duration) error
	ReleaseLease(ctx context.Context, jobID string) error
	ListResumable(ctx context.Context, limit int) ([]ImportJob, error)
}

// SchoolStore inserts records atomically per call. Rejections are reported by
// wrapping ErrDuplicateSlug, ErrAlreadyImported or ErrRejectedRecord; any
// other error means the store itself failed.
type SchoolStore interface {
	InsertSchools(ctx context.Context, records []NormalizedSchoolRecord) error
}

type SchoolQueryRepository interface {
	GetBySlug(ctx context.Context, slug string) (*NormalizedSchoolRecord, error)
}

// TextNormalizer returns best-effort corrections for a group of rows.
type TextNormalizer interface {
	Normalize(ctx context.Context, hints []NormalizationHint) ([]NormalizationResult, error)
}

// PostalLookup resolves a normalized postal code. found is false when the code
// does not exist.
type PostalLookup interface {
	Lookup(ctx context.Context, postalCode string) (addr PostalAddress, found bool, err error)
}

package importer

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"github.com/mohammadpnp/school-import/internal/logging"
	"github.com/sirupsen/logrus"
)

type CommitResult struct {
	Inserted int64
	Failed   int64
	Errors   []domain.RowError
}

func (r *CommitResult) fail(row int64, kind domain.RowErrorKind, reason string) {
	r.Failed++
	r.Errors = append(r.Errors, domain.RowError{Row: row, Kind: kind, Reason: domain.TruncateReason(reason)})
}

// Committer writes normalized records following a RetryPolicy. Row-level
// rejections are counted; any other store error aborts the commit.
type Committer struct {
	store  domain.SchoolStore
	policy RetryPolicy
	logger *logrus.Entry
}

func NewCommitter(store domain.SchoolStore, policy RetryPolicy, logger *logrus.Entry) *Committer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Committer{store: store, policy: policy.withDefaults(), logger: logger}
}

func (c *Committer) Commit(ctx context.Context, records []domain.NormalizedSchoolRecord) (CommitResult, error) {
	var res CommitResult
	for start := 0; start < len(records); start += c.policy.ChunkSize {
		end := min(start+c.policy.ChunkSize, len(records))
		if err := c.commitChunk(ctx, records[start:end], &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (c *Committer) commitChunk(ctx context.Context, chunk []domain.NormalizedSchoolRecord, res *CommitResult) error {
	err := c.store.InsertSchools(ctx, chunk)
	if err == nil {
		res.Inserted += int64(len(chunk))
		return nil
	}
	if !rowRejection(err) {
		return err
	}

	if !c.policy.IsolateRows {
		for _, rec := range chunk {
			res.fail(rec.SourceRow, kindOf(err), err.Error())
		}
		return nil
	}

	c.logger.WithError(err).WithFields(logrus.Fields{
		"first_row": chunk[0].SourceRow,
		"rows":      len(chunk),
	}).Debug("bulk insert rejected, retrying row by row")

	for _, rec := range chunk {
		if err := c.commitRow(ctx, rec, res); err != nil {
			return err
		}
	}
	return nil
}

func (c *Committer) commitRow(ctx context.Context, rec domain.NormalizedSchoolRecord, res *CommitResult) error {
	baseSlug := rec.Slug
	for attempt := 0; ; attempt++ {
		err := c.store.InsertSchools(ctx, []domain.NormalizedSchoolRecord{rec})
		switch {
		case err == nil, errors.Is(err, domain.ErrAlreadyImported):
			// An earlier attempt of this job already stored the row.
			res.Inserted++
			return nil
		case errors.Is(err, domain.ErrDuplicateSlug):
			if attempt < c.policy.DisambiguateAttempts {
				rec.Slug = domain.WithSuffix(baseSlug, c.policy.Suffix())
				continue
			}
			res.fail(rec.SourceRow, domain.RowDuplicateKeyRetryExhausted,
				fmt.Sprintf("slug %q collides after %d disambiguation attempts: %v", baseSlug, attempt, err))
			return nil
		case errors.Is(err, domain.ErrRejectedRecord):
			res.fail(rec.SourceRow, domain.RowOtherInsertError, err.Error())
			return nil
		default:
			return err
		}
	}
}

func rowRejection(err error) bool {
	return errors.Is(err, domain.ErrDuplicateSlug) ||
		errors.Is(err, domain.ErrAlreadyImported) ||
		errors.Is(err, domain.ErrRejectedRecord)
}

func kindOf(err error) domain.RowErrorKind {
	if errors.Is(err, domain.ErrDuplicateSlug) {
		return domain.RowDuplicateKeyRetryExhausted
	}
	return domain.RowOtherInsertError
}

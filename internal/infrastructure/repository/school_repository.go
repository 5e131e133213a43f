package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"github.com/mohammadpnp/school-import/internal/infrastructure/db/models"
)

const uniqueViolation = "23505"

var schoolColumns = []string{
	"name", "slug", "postal_code", "address", "neighborhood", "city", "state",
	"phone", "email", "school_type", "education_levels", "is_active",
	"import_job_id", "source_row", "created_at", "updated_at",
}

// SchoolRepository writes imported schools with plain multi-row INSERTs so a
// uniqueness violation rejects the whole statement.
type SchoolRepository struct {
	pool *pgxpool.Pool
}

var _ domain.SchoolStore = (*SchoolRepository)(nil)

func NewSchoolRepository(pool *pgxpool.Pool) *SchoolRepository {
	return &SchoolRepository{pool: pool}
}

func (r *SchoolRepository) InsertSchools(ctx context.Context, records []domain.NormalizedSchoolRecord) error {
	if len(records) == 0 {
		return nil
	}

	query, args, err := buildSchoolInsert(records)
	if err != nil {
		return fmt.Errorf("build school insert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return classifyInsertError(err)
	}
	return nil
}

func buildSchoolInsert(records []domain.NormalizedSchoolRecord) (string, []any, error) {
	now := sq.Expr("NOW()")
	q := sq.Insert(models.School{}.TableName()).
		Columns(schoolColumns...).
		PlaceholderFormat(sq.Dollar)

	for _, rec := range records {
		var jobID *string
		if rec.ImportJobID != "" {
			id := rec.ImportJobID
			jobID = &id
		}
		q = q.Values(
			rec.Name,
			rec.Slug,
			domain.FormatPostalCode(rec.PostalCode),
			rec.Address,
			rec.Neighborhood,
			rec.City,
			rec.State,
			rec.Phone,
			rec.Email,
			rec.SchoolType,
			strings.Join(rec.EducationLevels, ","),
			rec.IsActive,
			jobID,
			rec.SourceRow,
			now,
			now,
		)
	}

	return q.ToSql()
}

// classifyInsertError maps server-side rejections onto domain errors. Errors
// that never reached the server are returned as store failures.
func classifyInsertError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("insert schools: %w", err)
	}

	if pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case models.SchoolSlugIndex:
			return fmt.Errorf("%w: %s", domain.ErrDuplicateSlug, pgErr.Detail)
		case models.SchoolSourceRowIndex:
			return fmt.Errorf("%w: %s", domain.ErrAlreadyImported, pgErr.Detail)
		}
	}

	// Class 08 is connection exceptions, 53 insufficient resources, 57 operator
	// intervention: the store is unavailable rather than the row being bad.
	if len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "08", "53", "57":
			return fmt.Errorf("insert schools: %w", err)
		}
	}

	return fmt.Errorf("%w: %s (%s)", domain.ErrRejectedRecord, pgErr.Message, pgErr.Code)
}

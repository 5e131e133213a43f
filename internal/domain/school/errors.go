package school

import "errors"

var (
	ErrInvalidFormat   = errors.New("invalid import file format")
	ErrJobNotFound     = errors.New("import job not found")
	ErrStaleCheckpoint = errors.New("stale import checkpoint")
	ErrSchoolNotFound  = errors.New("school not found")

	// Record store outcomes for a rejected insert.
	ErrDuplicateSlug   = errors.New("duplicate school slug")
	ErrAlreadyImported = errors.New("source row already imported")
	ErrRejectedRecord  = errors.New("school record rejected")
)

package importer

import "errors"

var (
	ErrInvalidImportFile = errors.New("invalid import file")
	ErrCreateJob         = errors.New("failed to create import job")
	ErrInvalidJobID      = errors.New("invalid import job id")
	ErrJobNotFound       = errors.New("import job not found")
	ErrJobBusy           = errors.New("import job is being processed by another invocation")
	ErrInfrastructure    = errors.New("import infrastructure failure")
	ErrInvalidSlug       = errors.New("invalid school slug")
	ErrSchoolNotFound    = errors.New("school not found")
	ErrGetSchool         = errors.New("failed to get school")
)

package importer

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	domain "github.com/mohammadpnp/school-import/internal/domain/school"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type GetSchoolBySlugInput struct {
	Slug string
}

type GetSchoolBySlugOutput struct {
	Name            string   `json:"name"`
	Slug            string   `json:"slug"`
	PostalCode      string   `json:"postal_code"`
	Address         string   `json:"address"`
	Neighborhood    string   `json:"neighborhood"`
	City            string   `json:"city"`
	State           string   `json:"state"`
	Phone           string   `json:"phone"`
	Email           string   `json:"email"`
	SchoolType      string   `json:"school_type"`
	EducationLevels []string `json:"education_levels"`
	IsActive        bool     `json:"is_active"`
	ImportJobID     string   `json:"import_job_id,omitempty"`
	SourceRow       int64    `json:"source_row"`
}

type GetSchoolBySlug interface {
	Execute(ctx context.Context, in GetSchoolBySlugInput) (GetSchoolBySlugOutput, error)
}

type getSchoolBySlug struct {
	repo domain.SchoolQueryRepository
}

func NewGetSchoolBySlug(repo domain.SchoolQueryRepository) GetSchoolBySlug {
	return &getSchoolBySlug{repo: repo}
}

func (uc *getSchoolBySlug) Execute(ctx context.Context, in GetSchoolBySlugInput) (GetSchoolBySlugOutput, error) {
	if len(in.Slug) > 80 || !slugPattern.MatchString(in.Slug) {
		return GetSchoolBySlugOutput{}, ErrInvalidSlug
	}

	school, err := uc.repo.GetBySlug(ctx, in.Slug)
	if err != nil {
		if errors.Is(err, domain.ErrSchoolNotFound) {
			return GetSchoolBySlugOutput{}, ErrSchoolNotFound
		}
		return GetSchoolBySlugOutput{}, fmt.Errorf("%w: %v", ErrGetSchool, err)
	}

	levels := school.EducationLevels
	if levels == nil {
		levels = []string{}
	}

	return GetSchoolBySlugOutput{
		Name:            school.Name,
		Slug:            school.Slug,
		PostalCode:      domain.FormatPostalCode(school.PostalCode),
		Address:         school.Address,
		Neighborhood:    school.Neighborhood,
		City:            school.City,
		State:           school.State,
		Phone:           school.Phone,
		Email:           school.Email,
		SchoolType:      school.SchoolType,
		EducationLevels: levels,
		IsActive:        school.IsActive,
		ImportJobID:     school.ImportJobID,
		SourceRow:       school.SourceRow,
	}, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"github.com/mohammadpnp/school-import/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

type SchoolQueryRepository struct {
	db *gorm.DB
}

var _ domain.SchoolQueryRepository = (*SchoolQueryRepository)(nil)

func NewSchoolQueryRepository(db *gorm.DB) *SchoolQueryRepository {
	return &SchoolQueryRepository{db: db}
}

func (r *SchoolQueryRepository) GetBySlug(ctx context.Context, slug string) (*domain.NormalizedSchoolRecord, error) {
	var row models.School

	err := r.db.WithContext(ctx).First(&row, "slug = ?", slug).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSchoolNotFound
		}
		return nil, fmt.Errorf("get school by slug: %w", err)
	}

	var levels []string
	if row.EducationLevels != "" {
		levels = strings.Split(row.EducationLevels, ",")
	}

	rec := &domain.NormalizedSchoolRecord{
		Name:            row.Name,
		Slug:            row.Slug,
		PostalCode:      strings.ReplaceAll(row.PostalCode, "-", ""),
		Address:         row.Address,
		Neighborhood:    row.Neighborhood,
		City:            row.City,
		State:           row.State,
		Phone:           row.Phone,
		Email:           row.Email,
		SchoolType:      row.SchoolType,
		EducationLevels: levels,
		IsActive:        row.IsActive,
	}
	if row.ImportJobID != nil {
		rec.ImportJobID = *row.ImportJobID
	}
	if row.SourceRow != nil {
		rec.SourceRow = *row.SourceRow
	}

	return rec, nil
}

package repository_test

import (
	"context"
	"errors"
	"testing"

	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"github.com/mohammadpnp/school-import/internal/infrastructure/db/models"
	"github.com/mohammadpnp/school-import/internal/infrastructure/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchoolQueryRepositoryGetBySlug(t *testing.T) {
	t.Parallel()

	db := openJobTestDB(t)
	require.NoError(t, db.AutoMigrate(&models.School{}))

	jobID := "4955eb4d-c7f2-42f6-80ca-33838ce37c31"
	row := int64(41)
	require.NoError(t, db.Create(&models.School{
		Name:            "Escola Estadual A",
		Slug:            "escola-estadual-a-santos",
		PostalCode:      "11010-000",
		City:            "Santos",
		State:           "SP",
		SchoolType:      domain.TypePublic,
		EducationLevels: "elementary,high_school",
		IsActive:        true,
		ImportJobID:     &jobID,
		SourceRow:       &row,
	}).Error)

	repo := repository.NewSchoolQueryRepository(db)

	got, err := repo.GetBySlug(context.Background(), "escola-estadual-a-santos")
	require.NoError(t, err)
	assert.Equal(t, "Escola Estadual A", got.Name)
	assert.Equal(t, "11010000", got.PostalCode)
	assert.Equal(t, []string{"elementary", "high_school"}, got.EducationLevels)
	assert.Equal(t, jobID, got.ImportJobID)
	assert.Equal(t, int64(41), got.SourceRow)

	_, err = repo.GetBySlug(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrSchoolNotFound))
}

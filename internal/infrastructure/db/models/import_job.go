package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ImportJob struct {
	ID               string  `gorm:"type:uuid;primaryKey"`
	Status           string  `gorm:"type:text;not null;index"`
	FileName         string  `gorm:"type:text;not null"`
	SourcePath       string  `gorm:"type:text;not null"`
	FileFormat       string  `gorm:"type:text;not null"`
	TotalRecords     int64   `gorm:"not null;default:0"`
	ProcessedRecords int64   `gorm:"not null;default:0"`
	InsertedRecords  int64   `gorm:"not null;default:0"`
	SkippedRecords   int64   `gorm:"not null;default:0"`
	FailedRecords    int64   `gorm:"not null;default:0"`
	CurrentBatch     int     `gorm:"not null;default:0"`
	BatchSize        int     `gorm:"not null"`
	CursorLine       int64   `gorm:"not null;default:0"`
	ErrorMessage     *string `gorm:"type:text"`
	ErrorDetails     string  `gorm:"type:text;not null;default:'[]'"`
	LockedUntil      *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (ImportJob) TableName() string {
	return "import_jobs"
}

func (j *ImportJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

package models

import "time"

const (
	SchoolSlugIndex      = "idx_schools_slug"
	SchoolSourceRowIndex = "idx_schools_import_row"
)

type School struct {
	ID              int64   `gorm:"primaryKey"`
	Name            string  `gorm:"size:255;not null"`
	Slug            string  `gorm:"size:120;not null;uniqueIndex:idx_schools_slug"`
	PostalCode      string  `gorm:"size:9;not null"`
	Address         string  `gorm:"size:255;not null;default:''"`
	Neighborhood    string  `gorm:"size:120;not null;default:''"`
	City            string  `gorm:"size:120;not null;default:''"`
	State           string  `gorm:"size:60;not null;default:''"`
	Phone           string  `gorm:"size:40;not null;default:''"`
	Email           string  `gorm:"size:320;not null;default:''"`
	SchoolType      string  `gorm:"size:20;not null;default:''"`
	EducationLevels string  `gorm:"type:text;not null;default:''"`
	IsActive        bool    `gorm:"not null;default:true"`
	ImportJobID     *string `gorm:"type:uuid;uniqueIndex:idx_schools_import_row"`
	SourceRow       *int64  `gorm:"uniqueIndex:idx_schools_import_row"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (School) TableName() string {
	return "schools"
}

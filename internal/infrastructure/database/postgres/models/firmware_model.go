package models

import (
	"time"

	"github.com/google/uuid"
)

// FirmwareMetadataModel represents the database model for published firmware
// versions. The unique index on Version backs the duplicate check; the
// partial state "exactly one active row" is maintained transactionally by
// the repository.
type FirmwareMetadataModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	Version        string    `gorm:"type:varchar(50);not null;uniqueIndex"`
	Filename       string    `gorm:"type:varchar(255);not null"`
	StoragePath    string    `gorm:"type:varchar(500);not null"`
	Checksum       string    `gorm:"type:varchar(64);not null"`
	FileSize       int64     `gorm:"not null"`
	URL            string    `gorm:"type:varchar(500);not null"`
	ReleaseNotes   *string   `gorm:"type:text"`
	RolloutPercent int       `gorm:"not null;default:100"`
	IsActive       bool      `gorm:"not null;default:false;index"`
	UploadedBy     *string   `gorm:"type:varchar(100)"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (FirmwareMetadataModel) TableName() string {
	return "firmware_metadata"
}

// FirmwareReportModel represents the append-only OTA report log. DeviceID
// and FirmwareVersion are deliberately free of foreign keys.
type FirmwareReportModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	DeviceID        string    `gorm:"type:varchar(100);not null;index"`
	FirmwareVersion string    `gorm:"type:varchar(50);not null;index"`
	Status          string    `gorm:"type:varchar(50);not null"`
	ErrorMessage    *string   `gorm:"type:varchar(500)"`
	ProgressPercent *int
	IPAddress       *string   `gorm:"type:varchar(50)"`
	ReportedAt      time.Time `gorm:"not null;index"`
}

func (FirmwareReportModel) TableName() string {
	return "firmware_reports"
}

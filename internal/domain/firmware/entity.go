package firmware

import (
	"time"

	"github.com/google/uuid"
)

// Metadata describes one published firmware version.
type Metadata struct {
	ID             uuid.UUID
	Version        string
	Filename       string
	StoragePath    string
	Checksum       string // SHA-256 hex digest computed at upload time
	FileSize       int64
	URL            string
	ReleaseNotes   *string
	RolloutPercent int
	IsActive       bool
	UploadedBy     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Report is one OTA status report from a device. Device IDs and versions are
// opaque strings with no referential integrity to Metadata: a device may
// report a factory image or a version that was never published here.
type Report struct {
	ID              uuid.UUID
	DeviceID        string
	FirmwareVersion string
	Status          ReportStatus
	ErrorMessage    *string
	ProgressPercent *int
	IPAddress       *string
	ReportedAt      time.Time
}

// ReportStatus represents the outcome a device reports for an OTA attempt.
type ReportStatus string

const (
	StatusSuccess    ReportStatus = "success"
	StatusFailed     ReportStatus = "failed"
	StatusInProgress ReportStatus = "in_progress"
)

// IsValid checks the status against the three known values.
func (s ReportStatus) IsValid() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusInProgress:
		return true
	}
	return false
}

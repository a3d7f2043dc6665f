package firmware

import (
	"time"

	domainFirmware "firmware-ota-server/internal/domain/firmware"
)

// UploadRequest carries the multipart form fields of a firmware upload.
type UploadRequest struct {
	Version        string  `form:"version" validate:"required,firmware_version"`
	ReleaseNotes   *string `form:"release_notes"`
	RolloutPercent *int    `form:"rollout_percent" validate:"omitempty,gte=0,lte=100"`
	UploadedBy     *string `validate:"-"`
}

// MetadataResponse is the JSON shape of one published firmware version.
type MetadataResponse struct {
	ID             string    `json:"id"`
	Version        string    `json:"version"`
	Filename       string    `json:"filename"`
	Checksum       string    `json:"checksum"`
	FileSize       int64     `json:"file_size"`
	URL            string    `json:"url"`
	ReleaseNotes   *string   `json:"release_notes,omitempty"`
	RolloutPercent int       `json:"rollout_percent"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ReportRequest is an OTA status report as submitted by a device.
type ReportRequest struct {
	DeviceID        string  `json:"device_id" validate:"required,max=100"`
	FirmwareVersion string  `json:"firmware_version" validate:"required,max=50"`
	Status          string  `json:"status" validate:"required,report_status"`
	ErrorMessage    *string `json:"error_message" validate:"required_if=Status failed,omitempty,max=500"`
	ProgressPercent *int    `json:"progress_percent" validate:"omitempty,gte=0,lte=100"`
	IPAddress       *string `json:"ip_address" validate:"omitempty,max=50"`
}

// ReportResponse is one row of the admin report listing.
type ReportResponse struct {
	ID              string    `json:"id"`
	DeviceID        string    `json:"device_id"`
	FirmwareVersion string    `json:"firmware_version"`
	Status          string    `json:"status"`
	ErrorMessage    *string   `json:"error_message,omitempty"`
	ProgressPercent *int      `json:"progress_percent,omitempty"`
	IPAddress       *string   `json:"ip_address,omitempty"`
	ReportedAt      time.Time `json:"reported_at"`
}

// ReportListResponse wraps the listing with its row count.
type ReportListResponse struct {
	Count   int              `json:"count"`
	Reports []ReportResponse `json:"reports"`
}

// ReportListRequest holds the admin listing query parameters.
type ReportListRequest struct {
	DeviceID        string `form:"device_id"`
	FirmwareVersion string `form:"firmware_version"`
	Limit           int    `form:"limit" validate:"omitempty,gte=1,lte=1000"`
}

func ToMetadataResponse(m *domainFirmware.Metadata) *MetadataResponse {
	return &MetadataResponse{
		ID:             m.ID.String(),
		Version:        m.Version,
		Filename:       m.Filename,
		Checksum:       m.Checksum,
		FileSize:       m.FileSize,
		URL:            m.URL,
		ReleaseNotes:   m.ReleaseNotes,
		RolloutPercent: m.RolloutPercent,
		IsActive:       m.IsActive,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func ToReportResponse(r *domainFirmware.Report) ReportResponse {
	return ReportResponse{
		ID:              r.ID.String(),
		DeviceID:        r.DeviceID,
		FirmwareVersion: r.FirmwareVersion,
		Status:          string(r.Status),
		ErrorMessage:    r.ErrorMessage,
		ProgressPercent: r.ProgressPercent,
		IPAddress:       r.IPAddress,
		ReportedAt:      r.ReportedAt,
	}
}

package postgres

import (
	"context"
	"fmt"
	"time"

	domainFirmware "firmware-ota-server/internal/domain/firmware"
	"firmware-ota-server/internal/infrastructure/database/postgres/models"

	"github.com/google/uuid"
)

const defaultReportLimit = 100

// ReportRepository implements firmware.ReportRepository on top of gorm.
type ReportRepository struct {
	db *DB
}

// NewReportRepository creates a new OTA report repository.
func NewReportRepository(db *DB) domainFirmware.ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Append(ctx context.Context, report *domainFirmware.Report) error {
	report.ID = uuid.New()
	if report.ReportedAt.IsZero() {
		report.ReportedAt = time.Now().UTC()
	}

	dbModel := toReportModel(report)
	if err := r.db.DB.WithContext(ctx).Create(dbModel).Error; err != nil {
		return fmt.Errorf("failed to append firmware report: %w", err)
	}

	return nil
}

func (r *ReportRepository) List(ctx context.Context, filter *domainFirmware.ReportFilter) ([]*domainFirmware.Report, error) {
	query := r.db.DB.WithContext(ctx).Model(&models.FirmwareReportModel{})

	if filter != nil {
		if filter.DeviceID != "" {
			query = query.Where("device_id = ?", filter.DeviceID)
		}
		if filter.FirmwareVersion != "" {
			query = query.Where("firmware_version = ?", filter.FirmwareVersion)
		}
	}

	limit := defaultReportLimit
	if filter != nil && filter.Limit > 0 {
		limit = filter.Limit
	}

	var dbModels []models.FirmwareReportModel
	err := query.Order("reported_at DESC").Limit(limit).Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list firmware reports: %w", err)
	}

	reports := make([]*domainFirmware.Report, 0, len(dbModels))
	for i := range dbModels {
		reports = append(reports, toReportEntity(&dbModels[i]))
	}

	return reports, nil
}

func toReportModel(r *domainFirmware.Report) *models.FirmwareReportModel {
	return &models.FirmwareReportModel{
		ID:              r.ID,
		DeviceID:        r.DeviceID,
		FirmwareVersion: r.FirmwareVersion,
		Status:          string(r.Status),
		ErrorMessage:    r.ErrorMessage,
		ProgressPercent: r.ProgressPercent,
		IPAddress:       r.IPAddress,
		ReportedAt:      r.ReportedAt,
	}
}

func toReportEntity(m *models.FirmwareReportModel) *domainFirmware.Report {
	return &domainFirmware.Report{
		ID:              m.ID,
		DeviceID:        m.DeviceID,
		FirmwareVersion: m.FirmwareVersion,
		Status:          domainFirmware.ReportStatus(m.Status),
		ErrorMessage:    m.ErrorMessage,
		ProgressPercent: m.ProgressPercent,
		IPAddress:       m.IPAddress,
		ReportedAt:      m.ReportedAt,
	}
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainFirmware "firmware-ota-server/internal/domain/firmware"
	"firmware-ota-server/internal/infrastructure/database/postgres/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FirmwareRepository implements firmware.Repository on top of gorm.
type FirmwareRepository struct {
	db *DB
}

// NewFirmwareRepository creates a new firmware metadata repository.
func NewFirmwareRepository(db *DB) domainFirmware.Repository {
	return &FirmwareRepository{db: db}
}

// Register inserts the new version and demotes the previously active row in
// one transaction. A crash between the two statements therefore cannot leave
// zero or two active rows, and the unique index on version closes the race
// left open by the service-level duplicate pre-check.
func (r *FirmwareRepository) Register(ctx context.Context, meta *domainFirmware.Metadata) error {
	meta.ID = uuid.New()
	now := time.Now().UTC()
	meta.CreatedAt = now
	meta.UpdatedAt = now
	meta.IsActive = true

	dbModel := toFirmwareModel(meta)

	err := r.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.FirmwareMetadataModel{}).
			Where("is_active = ?", true).
			Updates(map[string]interface{}{"is_active": false, "updated_at": now}).Error; err != nil {
			return err
		}
		return tx.Create(dbModel).Error
	})
	if err != nil {
		if isDuplicateKeyErr(err) {
			return domainFirmware.ErrVersionExists
		}
		return fmt.Errorf("failed to register firmware: %w", err)
	}

	meta.CreatedAt = dbModel.CreatedAt
	meta.UpdatedAt = dbModel.UpdatedAt

	return nil
}

func (r *FirmwareRepository) GetLatestActive(ctx context.Context) (*domainFirmware.Metadata, error) {
	var dbModel models.FirmwareMetadataModel
	err := r.db.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainFirmware.ErrNoFirmware
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest firmware: %w", err)
	}

	return toFirmwareEntity(&dbModel), nil
}

func (r *FirmwareRepository) GetByVersion(ctx context.Context, version string) (*domainFirmware.Metadata, error) {
	var dbModel models.FirmwareMetadataModel
	err := r.db.DB.WithContext(ctx).
		Where("version = ?", version).
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainFirmware.ErrNoFirmware
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get firmware by version: %w", err)
	}

	return toFirmwareEntity(&dbModel), nil
}

func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// pgx surfaces 23505 in the message; sqlite says "UNIQUE constraint failed"
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

func toFirmwareModel(m *domainFirmware.Metadata) *models.FirmwareMetadataModel {
	return &models.FirmwareMetadataModel{
		ID:             m.ID,
		Version:        m.Version,
		Filename:       m.Filename,
		StoragePath:    m.StoragePath,
		Checksum:       m.Checksum,
		FileSize:       m.FileSize,
		URL:            m.URL,
		ReleaseNotes:   m.ReleaseNotes,
		RolloutPercent: m.RolloutPercent,
		IsActive:       m.IsActive,
		UploadedBy:     m.UploadedBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toFirmwareEntity(m *models.FirmwareMetadataModel) *domainFirmware.Metadata {
	return &domainFirmware.Metadata{
		ID:             m.ID,
		Version:        m.Version,
		Filename:       m.Filename,
		StoragePath:    m.StoragePath,
		Checksum:       m.Checksum,
		FileSize:       m.FileSize,
		URL:            m.URL,
		ReleaseNotes:   m.ReleaseNotes,
		RolloutPercent: m.RolloutPercent,
		IsActive:       m.IsActive,
		UploadedBy:     m.UploadedBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

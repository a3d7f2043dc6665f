package firmware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	domainFirmware "firmware-ota-server/internal/domain/firmware"
	"firmware-ota-server/internal/logger"
	appErrors "firmware-ota-server/pkg/errors"
	"firmware-ota-server/pkg/utils"

	"go.uber.org/zap"
)

const defaultRolloutPercent = 100

// Notifier announces a freshly published version. Implementations must not
// block: publication has already committed by the time this is called.
type Notifier interface {
	NotifyNewVersion(version string, releaseNotes *string)
}

// Service implements the firmware use cases: publish, distribute, ingest
// device reports.
type Service struct {
	repo       domainFirmware.Repository
	reportRepo domainFirmware.ReportRepository
	store      domainFirmware.ArtifactStore
	notifier   Notifier
	baseURL    string
	maxSize    int64
}

// NewService creates a new firmware service.
func NewService(
	repo domainFirmware.Repository,
	reportRepo domainFirmware.ReportRepository,
	store domainFirmware.ArtifactStore,
	notifier Notifier,
	baseURL string,
	maxSize int64,
) *Service {
	return &Service{
		repo:       repo,
		reportRepo: reportRepo,
		store:      store,
		notifier:   notifier,
		baseURL:    baseURL,
		maxSize:    maxSize,
	}
}

// Upload validates and publishes a new firmware version. Ordering matters:
// the cheap checks run before any I/O, the artifact write precedes the
// registry transaction, and the registry row is the last durable side
// effect, so no failure path can leave the registry advertising a version
// whose artifact is missing.
func (s *Service) Upload(ctx context.Context, req *UploadRequest, binary io.Reader) (*MetadataResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		if !utils.IsValidFirmwareVersion(req.Version) {
			return nil, domainFirmware.ErrInvalidVersion
		}
		return nil, appErrors.NewAppError("VALIDATION_ERROR", "Invalid upload parameters", err)
	}

	// Pre-flight duplicate check; the unique index re-validates atomically
	// inside Register to close the race between concurrent uploads.
	existing, err := s.repo.GetByVersion(ctx, req.Version)
	if err != nil && !errors.Is(err, domainFirmware.ErrNoFirmware) {
		return nil, err
	}
	if existing != nil {
		return nil, domainFirmware.ErrVersionExists
	}

	filename := fmt.Sprintf("esp32p4_v%s.bin", req.Version)

	result, err := s.store.Put(ctx, req.Version, filename, binary, s.maxSize)
	if err != nil {
		return nil, err
	}

	rollout := defaultRolloutPercent
	if req.RolloutPercent != nil {
		rollout = *req.RolloutPercent
	}

	meta := &domainFirmware.Metadata{
		Version:        req.Version,
		Filename:       filename,
		StoragePath:    result.StoragePath,
		Checksum:       result.Checksum,
		FileSize:       result.Size,
		URL:            s.baseURL + "/api/firmware/download",
		ReleaseNotes:   req.ReleaseNotes,
		RolloutPercent: rollout,
		UploadedBy:     req.UploadedBy,
	}

	if err := s.repo.Register(ctx, meta); err != nil {
		// registration failed, so the stored artifact is an orphan
		if rmErr := s.store.Remove(result.StoragePath); rmErr != nil {
			logger.Error("Failed to clean up orphaned artifact",
				zap.String("version", req.Version),
				zap.String("path", result.StoragePath),
				zap.Error(rmErr),
			)
		}
		return nil, err
	}

	logger.Info("Firmware published",
		zap.String("version", meta.Version),
		zap.String("checksum", meta.Checksum),
		zap.Int64("file_size", meta.FileSize),
		zap.Int("rollout_percent", meta.RolloutPercent),
	)

	s.notifier.NotifyNewVersion(meta.Version, meta.ReleaseNotes)

	return ToMetadataResponse(meta), nil
}

// GetLatest returns the metadata of the single active version.
func (s *Service) GetLatest(ctx context.Context) (*MetadataResponse, error) {
	meta, err := s.repo.GetLatestActive(ctx)
	if err != nil {
		return nil, err
	}
	return ToMetadataResponse(meta), nil
}

// Artifact couples the active version's metadata with a seekable handle on
// its binary.
type Artifact struct {
	Meta *domainFirmware.Metadata
	File io.ReadSeekCloser
}

// OpenLatest resolves the active version and opens its binary for
// streaming. A missing artifact for a registered version is a server-side
// inconsistency, not a NotFound.
func (s *Service) OpenLatest(ctx context.Context) (*Artifact, error) {
	meta, err := s.repo.GetLatestActive(ctx)
	if err != nil {
		return nil, err
	}

	f, err := s.store.Open(meta.StoragePath)
	if err != nil {
		if errors.Is(err, domainFirmware.ErrArtifactNotFound) {
			logger.Error("Registered firmware artifact is missing from storage",
				zap.String("version", meta.Version),
				zap.String("path", meta.StoragePath),
			)
			return nil, fmt.Errorf("artifact for version %s is missing: %w", meta.Version, err)
		}
		return nil, err
	}

	return &Artifact{Meta: meta, File: f}, nil
}

// ReportStatus appends one device report. Device IDs and versions are taken
// as-is: devices are unauthenticated and may report versions unknown to the
// registry.
func (s *Service) ReportStatus(ctx context.Context, req *ReportRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		if req.Status != "" && !domainFirmware.ReportStatus(req.Status).IsValid() {
			return domainFirmware.ErrInvalidReportStatus
		}
		return appErrors.NewAppError("VALIDATION_ERROR", "Invalid report payload", err)
	}

	report := &domainFirmware.Report{
		DeviceID:        req.DeviceID,
		FirmwareVersion: req.FirmwareVersion,
		Status:          domainFirmware.ReportStatus(req.Status),
		ErrorMessage:    req.ErrorMessage,
		ProgressPercent: req.ProgressPercent,
		IPAddress:       req.IPAddress,
		ReportedAt:      time.Now().UTC(),
	}

	if err := s.reportRepo.Append(ctx, report); err != nil {
		return err
	}

	logger.Info("OTA report received",
		zap.String("device_id", report.DeviceID),
		zap.String("firmware_version", report.FirmwareVersion),
		zap.String("status", string(report.Status)),
	)

	return nil
}

// ListReports returns reports newest first, optionally filtered.
func (s *Service) ListReports(ctx context.Context, req *ReportListRequest) (*ReportListResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError("VALIDATION_ERROR", "Invalid listing parameters", err)
	}

	filter := &domainFirmware.ReportFilter{
		DeviceID:        req.DeviceID,
		FirmwareVersion: req.FirmwareVersion,
		Limit:           req.Limit,
	}

	reports, err := s.reportRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]ReportResponse, 0, len(reports))
	for _, r := range reports {
		items = append(items, ToReportResponse(r))
	}

	return &ReportListResponse{
		Count:   len(items),
		Reports: items,
	}, nil
}

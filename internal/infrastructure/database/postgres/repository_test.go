package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	domainFirmware "firmware-ota-server/internal/domain/firmware"
	"firmware-ota-server/internal/infrastructure/database/postgres/models"
	"firmware-ota-server/internal/logger"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("test"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// newTestDB opens an in-process sqlite database with the production schema.
// The repository logic under test (transactions, unique index, ordering) is
// portable between sqlite and postgres.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	db := &DB{DB: gdb}
	require.NoError(t, db.Migrate())
	return db
}

func testMetadata(version string) *domainFirmware.Metadata {
	return &domainFirmware.Metadata{
		Version:        version,
		Filename:       fmt.Sprintf("esp32p4_v%s.bin", version),
		StoragePath:    fmt.Sprintf("/firmware/esp32p4_v%s.bin", version),
		Checksum:       "deadbeef",
		FileSize:       500000,
		URL:            "http://localhost:8080/api/firmware/download",
		RolloutPercent: 100,
	}
}

func countActive(t *testing.T, db *DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.DB.Model(&models.FirmwareMetadataModel{}).
		Where("is_active = ?", true).Count(&n).Error)
	return n
}

func TestRegisterFirstVersionBecomesActive(t *testing.T) {
	db := newTestDB(t)
	repo := NewFirmwareRepository(db)

	meta := testMetadata("1.0.4")
	require.NoError(t, repo.Register(context.Background(), meta))

	assert.True(t, meta.IsActive)
	assert.NotZero(t, meta.ID)
	assert.False(t, meta.CreatedAt.IsZero())

	latest, err := repo.GetLatestActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.4", latest.Version)
	assert.Equal(t, int64(1), countActive(t, db))
}

func TestRegisterDemotesPreviousActive(t *testing.T) {
	db := newTestDB(t)
	repo := NewFirmwareRepository(db)

	require.NoError(t, repo.Register(context.Background(), testMetadata("1.0.4")))
	require.NoError(t, repo.Register(context.Background(), testMetadata("1.0.5")))

	latest, err := repo.GetLatestActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.5", latest.Version)
	assert.Equal(t, int64(1), countActive(t, db))

	old, err := repo.GetByVersion(context.Background(), "1.0.4")
	require.NoError(t, err)
	assert.False(t, old.IsActive)
}

func TestRegisterDuplicateVersion(t *testing.T) {
	db := newTestDB(t)
	repo := NewFirmwareRepository(db)

	require.NoError(t, repo.Register(context.Background(), testMetadata("1.0.4")))

	err := repo.Register(context.Background(), testMetadata("1.0.4"))
	assert.ErrorIs(t, err, domainFirmware.ErrVersionExists)

	// the failed transaction must not have demoted the existing active row
	latest, err := repo.GetLatestActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.4", latest.Version)
	assert.Equal(t, int64(1), countActive(t, db))
}

func TestGetLatestActiveEmptyRegistry(t *testing.T) {
	db := newTestDB(t)
	repo := NewFirmwareRepository(db)

	_, err := repo.GetLatestActive(context.Background())
	assert.ErrorIs(t, err, domainFirmware.ErrNoFirmware)
}

func TestGetByVersionMissing(t *testing.T) {
	db := newTestDB(t)
	repo := NewFirmwareRepository(db)

	_, err := repo.GetByVersion(context.Background(), "9.9.9")
	assert.ErrorIs(t, err, domainFirmware.ErrNoFirmware)
}

func TestSingleActiveAcrossManyUploads(t *testing.T) {
	db := newTestDB(t)
	repo := NewFirmwareRepository(db)

	for i := 0; i < 10; i++ {
		require.NoError(t, repo.Register(context.Background(), testMetadata(fmt.Sprintf("1.0.%d", i))))
	}

	latest, err := repo.GetLatestActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.9", latest.Version)
	assert.Equal(t, int64(1), countActive(t, db))
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func testReport(deviceID, version string, status domainFirmware.ReportStatus) *domainFirmware.Report {
	return &domainFirmware.Report{
		DeviceID:        deviceID,
		FirmwareVersion: version,
		Status:          status,
	}
}

func TestAppendAndListReports(t *testing.T) {
	db := newTestDB(t)
	repo := NewReportRepository(db)

	report := testReport("ESP32-1", "1.0.4", domainFirmware.StatusFailed)
	report.ErrorMessage = strPtr("flash write error")
	require.NoError(t, repo.Append(context.Background(), report))
	assert.NotZero(t, report.ID)
	assert.False(t, report.ReportedAt.IsZero())

	reports, err := repo.List(context.Background(), &domainFirmware.ReportFilter{DeviceID: "ESP32-1"})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "ESP32-1", reports[0].DeviceID)
	assert.Equal(t, domainFirmware.StatusFailed, reports[0].Status)
	require.NotNil(t, reports[0].ErrorMessage)
	assert.Equal(t, "flash write error", *reports[0].ErrorMessage)
}

func TestListReportsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	repo := NewReportRepository(db)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		r := testReport("ESP32-1", "1.0.4", domainFirmware.StatusInProgress)
		r.ProgressPercent = intPtr(i * 30)
		r.ReportedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Append(context.Background(), r))
	}

	reports, err := repo.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	require.NotNil(t, reports[0].ProgressPercent)
	assert.Equal(t, 60, *reports[0].ProgressPercent)
	assert.True(t, reports[0].ReportedAt.After(reports[2].ReportedAt))
}

func TestListReportsFiltersAndLimit(t *testing.T) {
	db := newTestDB(t)
	repo := NewReportRepository(db)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Append(context.Background(), testReport("ESP32-1", "1.0.4", domainFirmware.StatusSuccess)))
		require.NoError(t, repo.Append(context.Background(), testReport("ESP32-2", "1.0.5", domainFirmware.StatusSuccess)))
	}

	byDevice, err := repo.List(context.Background(), &domainFirmware.ReportFilter{DeviceID: "ESP32-2"})
	require.NoError(t, err)
	assert.Len(t, byDevice, 5)

	byVersion, err := repo.List(context.Background(), &domainFirmware.ReportFilter{FirmwareVersion: "1.0.4"})
	require.NoError(t, err)
	assert.Len(t, byVersion, 5)

	limited, err := repo.List(context.Background(), &domainFirmware.ReportFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, limited, 3)
}

// Reports are telemetry: a version unknown to the registry must still be
// accepted and retrievable.
func TestReportsIndependentOfRegistry(t *testing.T) {
	db := newTestDB(t)
	repo := NewReportRepository(db)

	require.NoError(t, repo.Append(context.Background(), testReport("ESP32-1", "0.0.0-factory", domainFirmware.StatusSuccess)))

	reports, err := repo.List(context.Background(), &domainFirmware.ReportFilter{FirmwareVersion: "0.0.0-factory"})
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	domainFirmware "firmware-ota-server/internal/domain/firmware"
	"firmware-ota-server/internal/logger"
	usecaseFirmware "firmware-ota-server/internal/usecase/firmware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Init("test"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type captureReportRepo struct {
	mu      sync.Mutex
	gate    chan struct{} // when non-nil, Append blocks on it
	reports []*domainFirmware.Report
}

func (r *captureReportRepo) Append(ctx context.Context, report *domainFirmware.Report) error {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *captureReportRepo) List(context.Context, *domainFirmware.ReportFilter) ([]*domainFirmware.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domainFirmware.Report(nil), r.reports...), nil
}

func (r *captureReportRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func newTestProcessor(repo *captureReportRepo, workers, buffer int) *Processor {
	service := usecaseFirmware.NewService(nil, repo, nil, nil, "http://localhost:8080", 1<<20)
	return NewProcessor(service, workers, buffer)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestProcessorPersistsEnqueuedReports(t *testing.T) {
	repo := &captureReportRepo{}
	p := newTestProcessor(repo, 2, 16)
	p.Start()
	defer p.Stop()

	for i := 0; i < 5; i++ {
		p.Enqueue(&ReportMessage{
			DeviceID:        fmt.Sprintf("ESP32-%d", i),
			FirmwareVersion: "1.0.4",
			Status:          "success",
		})
	}

	waitFor(t, func() bool { return repo.count() == 5 })

	processed, failed, dropped := p.Stats()
	assert.Equal(t, int64(5), processed)
	assert.Equal(t, int64(0), failed)
	assert.Equal(t, int64(0), dropped)
}

func TestProcessorCountsInvalidReports(t *testing.T) {
	repo := &captureReportRepo{}
	p := newTestProcessor(repo, 1, 16)
	p.Start()
	defer p.Stop()

	p.Enqueue(&ReportMessage{
		DeviceID:        "ESP32-1",
		FirmwareVersion: "1.0.4",
		Status:          "exploded",
	})

	waitFor(t, func() bool {
		_, failed, _ := p.Stats()
		return failed == 1
	})
	assert.Equal(t, 0, repo.count())
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	repo := &captureReportRepo{gate: make(chan struct{})}
	p := newTestProcessor(repo, 1, 1)
	p.Start()

	// one message stalls the worker, one fills the buffer, the rest drop
	for i := 0; i < 10; i++ {
		p.Enqueue(&ReportMessage{
			DeviceID:        "ESP32-1",
			FirmwareVersion: "1.0.4",
			Status:          "in_progress",
		})
	}

	_, _, dropped := p.Stats()
	assert.GreaterOrEqual(t, dropped, int64(8))

	close(repo.gate)
	p.Stop()
}

func TestStopDrainsQueuedMessages(t *testing.T) {
	repo := &captureReportRepo{}
	p := newTestProcessor(repo, 1, 16)
	p.Start()

	for i := 0; i < 8; i++ {
		p.Enqueue(&ReportMessage{
			DeviceID:        "ESP32-1",
			FirmwareVersion: "1.0.4",
			Status:          "success",
		})
	}

	p.Stop()

	processed, _, dropped := p.Stats()
	assert.Equal(t, int64(8), processed+dropped)
	assert.Equal(t, repo.count(), int(processed))
}

func TestEnqueueAfterStopDrops(t *testing.T) {
	repo := &captureReportRepo{}
	p := newTestProcessor(repo, 1, 16)
	p.Start()
	p.Stop()

	p.Enqueue(&ReportMessage{
		DeviceID:        "ESP32-1",
		FirmwareVersion: "1.0.4",
		Status:          "success",
	})

	_, _, dropped := p.Stats()
	assert.Equal(t, int64(1), dropped)
}

func TestDeviceIDFromTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"devices/ESP32-AABBCC/ota/status", "ESP32-AABBCC"},
		{"devices/ESP32-AABBCC", "ESP32-AABBCC"},
		{"devices", ""},
		{"sensors/ESP32-AABBCC/ota/status", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, deviceIDFromTopic(tt.topic), "topic %q", tt.topic)
	}
}

func TestReportMessageUnmarshal(t *testing.T) {
	var msg ReportMessage
	payload := `{"device_id":"ESP32-1","firmware_version":"1.0.4","status":"failed","error_message":"flash write error","progress_percent":80}`
	require.NoError(t, json.Unmarshal([]byte(payload), &msg))

	assert.Equal(t, "ESP32-1", msg.DeviceID)
	assert.Equal(t, "failed", msg.Status)
	require.NotNil(t, msg.ErrorMessage)
	assert.Equal(t, "flash write error", *msg.ErrorMessage)
	require.NotNil(t, msg.ProgressPercent)
	assert.Equal(t, 80, *msg.ProgressPercent)
}

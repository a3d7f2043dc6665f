package ingestion

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"firmware-ota-server/internal/logger"
	usecaseFirmware "firmware-ota-server/internal/usecase/firmware"

	"go.uber.org/zap"
)

const appendTimeout = 10 * time.Second

// Processor drains OTA report messages through a bounded queue and a pool of
// workers. The enqueue path never blocks: when the queue is full the message
// is dropped and counted, so a slow database cannot back-pressure into the
// MQTT callback.
type Processor struct {
	service *usecaseFirmware.Service

	reportChan  chan *ReportMessage
	workerCount int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewProcessor creates a new report processor.
func NewProcessor(service *usecaseFirmware.Service, workerCount, bufferSize int) *Processor {
	if workerCount <= 0 {
		workerCount = 4
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		service:     service,
		reportChan:  make(chan *ReportMessage, bufferSize),
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker pool.
func (p *Processor) Start() {
	logger.Info("Starting report processor",
		zap.Int("workers", p.workerCount),
		zap.Int("buffer_size", cap(p.reportChan)),
	)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop signals the workers, lets them drain what is already queued and
// waits for them to exit.
func (p *Processor) Stop() {
	p.cancel()
	p.wg.Wait()

	logger.Info("Report processor stopped",
		zap.Int64("processed", p.processed.Load()),
		zap.Int64("failed", p.failed.Load()),
		zap.Int64("dropped", p.dropped.Load()),
	)
}

// Enqueue hands a message to the worker pool without blocking.
func (p *Processor) Enqueue(msg *ReportMessage) {
	if p.ctx.Err() != nil {
		p.dropped.Add(1)
		return
	}

	select {
	case p.reportChan <- msg:
	default:
		p.dropped.Add(1)
		logger.Warn("Report queue full, dropping message",
			zap.String("device_id", msg.DeviceID),
			zap.String("firmware_version", msg.FirmwareVersion),
		)
	}
}

func (p *Processor) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case msg := <-p.reportChan:
			p.handle(id, msg)
		case <-p.ctx.Done():
			for {
				select {
				case msg := <-p.reportChan:
					p.handle(id, msg)
				default:
					return
				}
			}
		}
	}
}

func (p *Processor) handle(id int, msg *ReportMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	err := p.service.ReportStatus(ctx, &usecaseFirmware.ReportRequest{
		DeviceID:        msg.DeviceID,
		FirmwareVersion: msg.FirmwareVersion,
		Status:          msg.Status,
		ErrorMessage:    msg.ErrorMessage,
		ProgressPercent: msg.ProgressPercent,
		IPAddress:       msg.IPAddress,
	})
	if err != nil {
		p.failed.Add(1)
		logger.Warn("Failed to ingest MQTT report",
			zap.Int("worker", id),
			zap.String("device_id", msg.DeviceID),
			zap.Error(err),
		)
		return
	}

	p.processed.Add(1)
}

// Stats returns processed/failed/dropped counters.
func (p *Processor) Stats() (processed, failed, dropped int64) {
	return p.processed.Load(), p.failed.Load(), p.dropped.Load()
}

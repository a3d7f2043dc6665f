package notification

import (
	"context"
	"sync"
	"time"

	"firmware-ota-server/internal/logger"

	"go.uber.org/zap"
)

// Sender is the push-delivery backend (FCM in production).
type Sender interface {
	SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) error
}

// Dispatcher fans out a "new firmware" push after a publish has committed.
// Delivery is best-effort: every failure is logged and swallowed, and the
// send runs on its own goroutine with a short deadline so a slow push
// provider can never stall or fail an upload response.
type Dispatcher struct {
	sender  Sender // nil disables dispatch entirely
	topic   string
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, topic string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		sender:  sender,
		topic:   topic,
		timeout: timeout,
	}
}

// NotifyNewVersion announces version to the configured topic. Returns
// immediately; the actual send happens in the background.
func (d *Dispatcher) NotifyNewVersion(version string, releaseNotes *string) {
	if d.sender == nil {
		logger.Debug("Push notifications disabled, skipping firmware announcement",
			zap.String("version", version),
		)
		return
	}

	title := "Firmware v" + version + " Available"
	body := "A new firmware update is available. Connect to your device and update now."
	if releaseNotes != nil && *releaseNotes != "" {
		body = *releaseNotes
	}
	data := map[string]string{
		"type":    "firmware_update",
		"version": version,
		"action":  "update_available",
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.SendToTopic(ctx, d.topic, title, body, data); err != nil {
			logger.Warn("Failed to send firmware notification",
				zap.String("version", version),
				zap.String("topic", d.topic),
				zap.Error(err),
			)
			return
		}

		logger.Info("Firmware notification sent",
			zap.String("version", version),
			zap.String("topic", d.topic),
		)
	}()
}

// Wait blocks until all in-flight sends have finished. Used on shutdown and
// in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

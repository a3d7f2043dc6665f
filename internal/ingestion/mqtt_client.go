package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"firmware-ota-server/internal/config"
	"firmware-ota-server/internal/logger"
	pkgmqtt "firmware-ota-server/pkg/mqtt"

	"go.uber.org/zap"
)

// MQTTIngestionClient subscribes to the device OTA status topic and feeds
// incoming reports into the processor. Devices publish to
// devices/<device_id>/ota/status.
type MQTTIngestionClient struct {
	cfg       *config.MQTTConfig
	client    *pkgmqtt.Client
	processor *Processor

	mu      sync.Mutex
	started bool
}

// NewMQTTIngestionClient builds a new MQTT client for report ingestion.
func NewMQTTIngestionClient(cfg *config.MQTTConfig, processor *Processor) (*MQTTIngestionClient, error) {
	if cfg == nil || cfg.Broker == "" {
		return nil, errors.New("mqtt broker is not configured")
	}
	if processor == nil {
		return nil, errors.New("processor is required")
	}

	client := pkgmqtt.NewClient(&pkgmqtt.Config{
		Broker:               cfg.Broker,
		ClientID:             cfg.ClientID,
		Username:             cfg.Username,
		Password:             cfg.Password,
		CleanSession:         true,
		KeepAlive:            30,
		ConnectTimeout:       10,
		AutoReconnect:        true,
		MaxReconnectInterval: 2 * time.Minute,
	})

	return &MQTTIngestionClient{
		cfg:       cfg,
		client:    client,
		processor: processor,
	}, nil
}

// Start establishes the MQTT connection and subscribes to the report topic.
func (c *MQTTIngestionClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	if err := c.client.Subscribe(c.cfg.ReportTopic, c.cfg.QoS, c.handleReport); err != nil {
		c.client.Disconnect()
		return err
	}

	logger.Info("MQTT report ingestion started",
		zap.String("broker", c.cfg.Broker),
		zap.String("topic", c.cfg.ReportTopic),
	)

	c.started = true
	return nil
}

// Stop disconnects from the broker.
func (c *MQTTIngestionClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}

	c.client.Disconnect()
	c.started = false
}

func (c *MQTTIngestionClient) handleReport(topic string, payload []byte) {
	var msg ReportMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		logger.Warn("Discarding malformed MQTT report",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}

	// the topic segment wins over whatever the payload claims
	if id := deviceIDFromTopic(topic); id != "" {
		msg.DeviceID = id
	}

	c.processor.Enqueue(&msg)
}

// deviceIDFromTopic extracts <device_id> from devices/<device_id>/ota/status.
func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 && parts[0] == "devices" {
		return parts[1]
	}
	return ""
}

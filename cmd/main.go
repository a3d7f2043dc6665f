package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"firmware-ota-server/internal/config"
	"firmware-ota-server/internal/delivery/http/handler"
	"firmware-ota-server/internal/infrastructure/database/postgres"
	"firmware-ota-server/internal/infrastructure/push"
	"firmware-ota-server/internal/infrastructure/storage"
	"firmware-ota-server/internal/ingestion"
	"firmware-ota-server/internal/logger"
	"firmware-ota-server/internal/notification"
	"firmware-ota-server/internal/routes"
	usecaseFirmware "firmware-ota-server/internal/usecase/firmware"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	env := cfg.Server.Environment
	if env == "" {
		env = "development"
	}
	if err := logger.Init(env); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting firmware OTA server",
		zap.String("environment", env),
	)

	if cfg.Database.Host == "" || cfg.Database.DBName == "" {
		logger.Fatal("Database configuration is missing. Please set DB_HOST and DB_NAME environment variables.")
	}

	db, err := postgres.NewDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	store, err := storage.NewLocalStore(cfg.Firmware.Dir)
	if err != nil {
		logger.Fatal("Failed to initialize firmware storage", zap.Error(err))
	}

	// Push delivery is optional; a missing service account only disables
	// the announcement fan-out, never uploads.
	var sender notification.Sender
	fcmClient, err := push.NewFCMClient(push.Config{
		ProjectID:   cfg.Firebase.ProjectID,
		ClientEmail: cfg.Firebase.ClientEmail,
		PrivateKey:  cfg.Firebase.PrivateKey,
		Timeout:     cfg.Firebase.Timeout,
	})
	if err != nil {
		logger.Warn("Push notifications disabled", zap.Error(err))
	} else {
		sender = fcmClient
	}
	dispatcher := notification.NewDispatcher(sender, cfg.Firebase.Topic, cfg.Firebase.Timeout)

	firmwareRepo := postgres.NewFirmwareRepository(db)
	reportRepo := postgres.NewReportRepository(db)
	firmwareService := usecaseFirmware.NewService(
		firmwareRepo,
		reportRepo,
		store,
		dispatcher,
		cfg.Server.BaseURL,
		cfg.Firmware.MaxSize,
	)
	firmwareHandler := handler.NewFirmwareHandler(firmwareService)

	router := routes.SetupRoutes(cfg, db, firmwareHandler)

	// Optional MQTT path for devices that report OTA status over the broker
	// instead of HTTP.
	var processor *ingestion.Processor
	var mqttClient *ingestion.MQTTIngestionClient
	if cfg.MQTT.Broker != "" {
		processor = ingestion.NewProcessor(firmwareService, cfg.MQTT.WorkerCount, cfg.MQTT.BufferSize)
		processor.Start()

		mqttClient, err = ingestion.NewMQTTIngestionClient(&cfg.MQTT, processor)
		if err != nil {
			logger.Fatal("Failed to build MQTT ingestion client", zap.Error(err))
		}
		if err := mqttClient.Start(); err != nil {
			logger.Fatal("Failed to start MQTT ingestion", zap.Error(err))
		}
	}

	host := cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	addr := net.JoinHostPort(host, port)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Minute, // firmware upload over a slow uplink
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			zap.String("address", addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", zap.Error(err))
	}

	if mqttClient != nil {
		mqttClient.Stop()
	}
	if processor != nil {
		processor.Stop()
	}
	dispatcher.Wait()

	log.Println("Server exited properly")
}

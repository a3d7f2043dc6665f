package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Firmware  FirmwareConfig
	Admin     AdminConfig
	Firebase  FirebaseConfig
	MQTT      MQTTConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
	BaseURL     string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type FirmwareConfig struct {
	Dir     string // directory holding one binary per version
	MaxSize int64  // maximum accepted upload size in bytes
}

type AdminConfig struct {
	Username     string
	Password     string // plain text, compared in constant time
	PasswordHash string // bcrypt hash; takes precedence over Password
}

type FirebaseConfig struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string // PEM-encoded service account key
	Topic       string
	Timeout     time.Duration
}

type MQTTConfig struct {
	Broker      string // empty disables MQTT report ingestion
	ClientID    string
	Username    string
	Password    string
	ReportTopic string
	QoS         byte
	WorkerCount int
	BufferSize  int
}

type RateLimitConfig struct {
	GeneralRPS   float64 // Requests per second for general endpoints
	GeneralBurst int     // Burst size for general endpoints
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

const (
	defaultFirmwareDir     = "./firmware"
	defaultFirmwareMaxSize = 16 << 20 // ESP32 flash tops out well below this
	defaultFirebaseTimeout = 5 * time.Second
	defaultMQTTReportTopic = "devices/+/ota/status"
)

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(homeDir)
	}
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("Warning: config file not found: %v. Falling back to environment variables only.", err)
	}

	viper.SetDefault("FIRMWARE_DIR", defaultFirmwareDir)
	viper.SetDefault("FIRMWARE_MAX_SIZE", defaultFirmwareMaxSize)
	viper.SetDefault("FIREBASE_TOPIC", "all_users")
	viper.SetDefault("FIREBASE_TIMEOUT_SECONDS", 5)
	viper.SetDefault("MQTT_REPORT_TOPIC", defaultMQTTReportTopic)
	viper.SetDefault("MQTT_CLIENT_ID", "firmware-ota-server")
	viper.SetDefault("MQTT_QOS", 1)
	viper.SetDefault("MQTT_WORKER_COUNT", 4)
	viper.SetDefault("MQTT_BUFFER_SIZE", 256)
	viper.SetDefault("RATE_LIMIT_GENERAL_RPS", 20)
	viper.SetDefault("RATE_LIMIT_GENERAL_BURST", 40)

	firebaseTimeout := time.Duration(viper.GetInt("FIREBASE_TIMEOUT_SECONDS")) * time.Second
	if firebaseTimeout <= 0 {
		firebaseTimeout = defaultFirebaseTimeout
	}

	config := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("SERVER_PORT"),
			Host:        viper.GetString("SERVER_HOST"),
			Environment: viper.GetString("ENVIRONMENT"),
			BaseURL:     viper.GetString("BASE_URL"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Firmware: FirmwareConfig{
			Dir:     viper.GetString("FIRMWARE_DIR"),
			MaxSize: viper.GetInt64("FIRMWARE_MAX_SIZE"),
		},
		Admin: AdminConfig{
			Username:     viper.GetString("ADMIN_USER"),
			Password:     viper.GetString("ADMIN_PASS"),
			PasswordHash: viper.GetString("ADMIN_PASS_HASH"),
		},
		Firebase: FirebaseConfig{
			ProjectID:   viper.GetString("FIREBASE_PROJECT_ID"),
			ClientEmail: viper.GetString("FIREBASE_CLIENT_EMAIL"),
			PrivateKey:  viper.GetString("FIREBASE_PRIVATE_KEY"),
			Topic:       viper.GetString("FIREBASE_TOPIC"),
			Timeout:     firebaseTimeout,
		},
		MQTT: MQTTConfig{
			Broker:      viper.GetString("MQTT_BROKER"),
			ClientID:    viper.GetString("MQTT_CLIENT_ID"),
			Username:    viper.GetString("MQTT_USERNAME"),
			Password:    viper.GetString("MQTT_PASSWORD"),
			ReportTopic: viper.GetString("MQTT_REPORT_TOPIC"),
			QoS:         byte(viper.GetUint("MQTT_QOS")),
			WorkerCount: viper.GetInt("MQTT_WORKER_COUNT"),
			BufferSize:  viper.GetInt("MQTT_BUFFER_SIZE"),
		},
		RateLimit: RateLimitConfig{
			GeneralRPS:   viper.GetFloat64("RATE_LIMIT_GENERAL_RPS"),
			GeneralBurst: viper.GetInt("RATE_LIMIT_GENERAL_BURST"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders:   viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
			ExposedHeaders:   viper.GetStringSlice("CORS_EXPOSED_HEADERS"),
			AllowCredentials: viper.GetBool("CORS_ALLOW_CREDENTIALS"),
			MaxAge:           viper.GetInt("CORS_MAX_AGE"),
		},
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

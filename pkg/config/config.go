package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config holds the configuration for a Canopy agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Postgres configuration (zone registry)
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Service configuration
	ServiceName string
	HealthPort  int
	APIPort     int
	LogLevel    string

	// Collector configuration
	SensorTopics     []string
	HistoryRetention time.Duration
	MaxSensorHistory int

	// Registry configuration
	RegistrySource     string // "postgres" or "file"
	RegistryFile       string
	RegistryRefreshSec int
	MaxConcurrentZones int

	// Inference configuration
	TuningFile         string
	TrendQueryTimeout  time.Duration
	EvaluationTimeout  time.Duration
	EvaluationInterval time.Duration

	// Daylight configuration for greenhouse zones (Helsinki default)
	Latitude  float64
	Longitude float64

	// Notification configuration
	NotifyCooldown       time.Duration
	NotifyMessageBudget  int
	NotifyWebhookURL     string
	NotifyWebhookTimeout time.Duration
	KafkaBrokers         []string
	KafkaAlertTopic      string
	Personality          string

	// LLM rewrite configuration
	LLMEnabled   bool
	LLMEndpoint  string
	LLMModel     string
	LLMMaxLength int
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:           "localhost",
		MQTTPort:             1883,
		RedisHost:            "localhost",
		RedisPort:            6379,
		RedisDB:              0,
		PostgresHost:         "localhost",
		PostgresPort:         5432,
		PostgresDB:           "canopy",
		PostgresUser:         "canopy",
		PostgresSSLMode:      "disable",
		ServiceName:          "canopy-agent",
		HealthPort:           8080,
		APIPort:              3002,
		LogLevel:             "info",
		SensorTopics:         []string{"canopy/raw/+"},
		HistoryRetention:     24 * time.Hour,
		MaxSensorHistory:     5000,
		RegistrySource:       "file",
		RegistryFile:         "zones.yaml",
		RegistryRefreshSec:   300,
		MaxConcurrentZones:   8,
		TrendQueryTimeout:    5 * time.Second,
		EvaluationTimeout:    15 * time.Second,
		EvaluationInterval:   time.Minute,
		Latitude:             60.1695,
		Longitude:            24.9354,
		NotifyCooldown:       5 * time.Minute,
		NotifyMessageBudget:  65,
		NotifyWebhookTimeout: 10 * time.Second,
		KafkaAlertTopic:      "canopy.alerts",
		Personality:          "standard",
		LLMEnabled:           false,
		LLMEndpoint:          "http://localhost:11434",
		LLMModel:             "llama3.2:3b",
		LLMMaxLength:         250,
	}
}

// LoadFromEnv loads configuration from environment variables with CANOPY_ prefix.
// A .env file in the working directory is read first if present; variables
// already set in the process environment win.
func (c *Config) LoadFromEnv() {
	_ = godotenv.Load()

	// MQTT configuration
	envString("CANOPY_MQTT_BROKER", &c.MQTTBroker)
	envInt("CANOPY_MQTT_PORT", &c.MQTTPort)
	envString("CANOPY_MQTT_USER", &c.MQTTUser)
	envString("CANOPY_MQTT_PASSWORD", &c.MQTTPassword)
	envString("CANOPY_MQTT_CLIENT_ID", &c.MQTTClientID)

	// Redis configuration
	envString("CANOPY_REDIS_HOST", &c.RedisHost)
	envInt("CANOPY_REDIS_PORT", &c.RedisPort)
	envString("CANOPY_REDIS_PASSWORD", &c.RedisPassword)
	envInt("CANOPY_REDIS_DB", &c.RedisDB)

	// Postgres configuration
	envString("CANOPY_POSTGRES_HOST", &c.PostgresHost)
	envInt("CANOPY_POSTGRES_PORT", &c.PostgresPort)
	envString("CANOPY_POSTGRES_DB", &c.PostgresDB)
	envString("CANOPY_POSTGRES_USER", &c.PostgresUser)
	envString("CANOPY_POSTGRES_PASSWORD", &c.PostgresPassword)
	envString("CANOPY_POSTGRES_SSLMODE", &c.PostgresSSLMode)

	// Service configuration
	envString("CANOPY_SERVICE_NAME", &c.ServiceName)
	envInt("CANOPY_HEALTH_PORT", &c.HealthPort)
	envInt("CANOPY_API_PORT", &c.APIPort)
	envString("CANOPY_LOG_LEVEL", &c.LogLevel)

	// Collector configuration
	envDuration("CANOPY_HISTORY_RETENTION", &c.HistoryRetention)
	envInt("CANOPY_MAX_SENSOR_HISTORY", &c.MaxSensorHistory)

	// Registry configuration
	envString("CANOPY_REGISTRY_SOURCE", &c.RegistrySource)
	envString("CANOPY_REGISTRY_FILE", &c.RegistryFile)
	envInt("CANOPY_REGISTRY_REFRESH_SEC", &c.RegistryRefreshSec)
	envInt("CANOPY_MAX_CONCURRENT_ZONES", &c.MaxConcurrentZones)

	// Inference configuration
	envString("CANOPY_TUNING_FILE", &c.TuningFile)
	envDuration("CANOPY_TREND_QUERY_TIMEOUT", &c.TrendQueryTimeout)
	envDuration("CANOPY_EVALUATION_TIMEOUT", &c.EvaluationTimeout)
	envDuration("CANOPY_EVALUATION_INTERVAL", &c.EvaluationInterval)

	envFloat("CANOPY_LATITUDE", &c.Latitude)
	envFloat("CANOPY_LONGITUDE", &c.Longitude)

	// Notification configuration
	envDuration("CANOPY_NOTIFY_COOLDOWN", &c.NotifyCooldown)
	envInt("CANOPY_NOTIFY_MESSAGE_BUDGET", &c.NotifyMessageBudget)
	envString("CANOPY_NOTIFY_WEBHOOK_URL", &c.NotifyWebhookURL)
	envDuration("CANOPY_NOTIFY_WEBHOOK_TIMEOUT", &c.NotifyWebhookTimeout)
	if v := os.Getenv("CANOPY_KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}
	envString("CANOPY_KAFKA_ALERT_TOPIC", &c.KafkaAlertTopic)
	envString("CANOPY_PERSONALITY", &c.Personality)

	// LLM configuration
	if v := os.Getenv("CANOPY_LLM_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.LLMEnabled = enabled
		}
	}
	envString("CANOPY_LLM_ENDPOINT", &c.LLMEndpoint)
	envString("CANOPY_LLM_MODEL", &c.LLMModel)
	envInt("CANOPY_LLM_MAX_LENGTH", &c.LLMMaxLength)
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	c.RegisterFlags(pflag.CommandLine)
	pflag.Parse()
}

// RegisterFlags binds config fields to the given flag set
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	fs.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	fs.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	fs.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database")
	fs.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres user")
	fs.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	fs.IntVar(&c.APIPort, "api-port", c.APIPort, "Status API HTTP port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Collector flags
	fs.DurationVar(&c.HistoryRetention, "history-retention", c.HistoryRetention, "How long sensor history is kept")
	fs.IntVar(&c.MaxSensorHistory, "max-sensor-history", c.MaxSensorHistory, "Maximum history entries per sensor")

	// Registry flags
	fs.StringVar(&c.RegistrySource, "registry-source", c.RegistrySource, "Zone registry source (postgres, file)")
	fs.StringVar(&c.RegistryFile, "registry-file", c.RegistryFile, "Zone registry YAML file")
	fs.IntVar(&c.RegistryRefreshSec, "registry-refresh", c.RegistryRefreshSec, "Zone registry refresh interval in seconds")
	fs.IntVar(&c.MaxConcurrentZones, "max-concurrent-zones", c.MaxConcurrentZones, "Zones loaded concurrently during refresh")

	// Inference flags
	fs.StringVar(&c.TuningFile, "tuning-file", c.TuningFile, "YAML file with priors, thresholds and band overrides")
	fs.DurationVar(&c.TrendQueryTimeout, "trend-query-timeout", c.TrendQueryTimeout, "Timeout for a single history query")
	fs.DurationVar(&c.EvaluationTimeout, "evaluation-timeout", c.EvaluationTimeout, "Timeout for a single evaluation cycle")
	fs.DurationVar(&c.EvaluationInterval, "evaluation-interval", c.EvaluationInterval, "Re-evaluate every zone at this interval without new readings")
	fs.Float64Var(&c.Latitude, "latitude", c.Latitude, "Geographic latitude for daylight zones")
	fs.Float64Var(&c.Longitude, "longitude", c.Longitude, "Geographic longitude for daylight zones")

	// Notification flags
	fs.DurationVar(&c.NotifyCooldown, "notify-cooldown", c.NotifyCooldown, "Minimum spacing between alerts per zone signal")
	fs.IntVar(&c.NotifyMessageBudget, "notify-message-budget", c.NotifyMessageBudget, "Character budget for alert messages")
	fs.StringVar(&c.NotifyWebhookURL, "notify-webhook-url", c.NotifyWebhookURL, "Webhook URL for alerts")
	fs.StringSliceVar(&c.KafkaBrokers, "kafka-brokers", c.KafkaBrokers, "Kafka brokers for the alert stream")
	fs.StringVar(&c.KafkaAlertTopic, "kafka-alert-topic", c.KafkaAlertTopic, "Kafka topic for alerts")
	fs.StringVar(&c.Personality, "personality", c.Personality, "Alert rewrite personality")

	// LLM flags
	fs.BoolVar(&c.LLMEnabled, "llm-enabled", c.LLMEnabled, "Rewrite alert messages with the LLM")
	fs.StringVar(&c.LLMEndpoint, "llm-endpoint", c.LLMEndpoint, "Ollama base URL")
	fs.StringVar(&c.LLMModel, "llm-model", c.LLMModel, "LLM model name")
	fs.IntVar(&c.LLMMaxLength, "llm-max-length", c.LLMMaxLength, "Maximum length of a rewritten message")
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}

	switch c.RegistrySource {
	case "postgres":
		if c.PostgresHost == "" || c.PostgresDB == "" {
			return fmt.Errorf("postgres registry requires host and database")
		}
	case "file":
		if c.RegistryFile == "" {
			return fmt.Errorf("file registry requires a registry file")
		}
	default:
		return fmt.Errorf("invalid registry source: %s (must be postgres or file)", c.RegistrySource)
	}

	if c.NotifyCooldown < 0 {
		return fmt.Errorf("notify cooldown must not be negative")
	}
	if c.NotifyMessageBudget <= 0 {
		return fmt.Errorf("notify message budget must be positive")
	}
	if c.TrendQueryTimeout <= 0 {
		return fmt.Errorf("trend query timeout must be positive")
	}
	if c.EvaluationTimeout <= 0 || c.EvaluationInterval <= 0 {
		return fmt.Errorf("evaluation timeout and interval must be positive")
	}
	if c.MaxConcurrentZones <= 0 {
		return fmt.Errorf("max concurrent zones must be positive")
	}
	if c.LLMEnabled && c.LLMMaxLength <= 0 {
		return fmt.Errorf("LLM max length must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns a lib/pq connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

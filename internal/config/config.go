package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string

	DatabaseURL string

	RedisURL       string
	UnreadCacheTTL time.Duration

	JWTSecret string

	LogLevel  string
	LogFormat string

	CORSOrigins string

	ResendAPIKey string
	FromEmail    string
	FromName     string

	TelegramBotToken string
	TelegramAPIURL   string
	SlackBotToken    string
	SlackAPIURL      string
	PushGatewayURL   string
	SMSGatewayURL    string
	GatewayAPIKey    string
	NotifierTimeout  time.Duration

	TemplatesPath   string
	TemplatesBucket string
	TemplatesObject string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool

	Stream StreamConfig
}

// StreamConfig holds the live stream tradeoffs: latency is bounded by
// PollInterval, connection lifetime by MaxIterations*PollInterval.
type StreamConfig struct {
	PollInterval    time.Duration
	MaxIterations   int
	HeartbeatEvery  int
	BatchSize       int
	ProbeInterval   time.Duration
	MaxPollFailures int
	Lookback        time.Duration
}

func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PollInterval:    10 * time.Second,
		MaxIterations:   300,
		HeartbeatEvery:  3,
		BatchSize:       10,
		ProbeInterval:   2 * time.Second,
		MaxPollFailures: 5,
		Lookback:        5 * time.Second,
	}
}

func Load() *Config {
	def := DefaultStreamConfig()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", "sqlite://taskhub.db"),

		RedisURL:       getEnv("REDIS_URL", ""),
		UnreadCacheTTL: getDurationEnv("UNREAD_CACHE_TTL", time.Minute),

		JWTSecret: getEnv("JWT_SECRET", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:5173"),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		FromEmail:    getEnv("FROM_EMAIL", "noreply@example.com"),
		FromName:     getEnv("FROM_NAME", "TaskHub"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAPIURL:   getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		SlackBotToken:    getEnv("SLACK_BOT_TOKEN", ""),
		SlackAPIURL:      getEnv("SLACK_API_URL", "https://slack.com"),
		PushGatewayURL:   getEnv("PUSH_GATEWAY_URL", ""),
		SMSGatewayURL:    getEnv("SMS_GATEWAY_URL", ""),
		GatewayAPIKey:    getEnv("GATEWAY_API_KEY", ""),
		NotifierTimeout:  getDurationEnv("NOTIFIER_TIMEOUT", 10*time.Second),

		TemplatesPath:   getEnv("TEMPLATES_PATH", "templates/notifications.yaml"),
		TemplatesBucket: getEnv("TEMPLATES_BUCKET", ""),
		TemplatesObject: getEnv("TEMPLATES_OBJECT", "notifications.yaml"),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOUseSSL:    getBoolEnv("MINIO_USE_SSL", false),

		Stream: StreamConfig{
			PollInterval:    getDurationEnv("STREAM_POLL_INTERVAL", def.PollInterval),
			MaxIterations:   getIntEnv("STREAM_MAX_ITERATIONS", def.MaxIterations),
			HeartbeatEvery:  getIntEnv("STREAM_HEARTBEAT_EVERY", def.HeartbeatEvery),
			BatchSize:       getIntEnv("STREAM_BATCH_SIZE", def.BatchSize),
			ProbeInterval:   getDurationEnv("STREAM_PROBE_INTERVAL", def.ProbeInterval),
			MaxPollFailures: getIntEnv("STREAM_MAX_POLL_FAILURES", def.MaxPollFailures),
			Lookback:        getDurationEnv("STREAM_LOOKBACK", def.Lookback),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

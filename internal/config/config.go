package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"ticketshow/internal/cache"
	"ticketshow/internal/database"
	"ticketshow/internal/external"
	"ticketshow/internal/jobs"
	"ticketshow/internal/messaging"
	"ticketshow/internal/middleware"
	"ticketshow/internal/notify"
	"ticketshow/internal/scheduler"
	"ticketshow/internal/service"

	"github.com/joho/godotenv"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	MetricsAddr    string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	Database      database.Config
	NATS          messaging.Config
	Valkey        cache.Config
	Elasticsearch ElasticsearchConfig
	Payment       external.PaymentConfig
	Identity      external.IdentityConfig
	Mailer        external.MailerConfig
	Booking       service.BookingConfig
	Scheduler     scheduler.Config
	Jobs          jobs.Config
	Notify        notify.Config
	Auth          middleware.AuthConfig
	RateLimit     middleware.RateLimitConfig
}

// Load загружает конфигурацию из .env (если есть) и переменных окружения
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	return &Config{
		Port:           getEnv("PORT", "8081"),
		MetricsAddr:    getEnv("METRICS_ADDR", ":9091"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "ticketshow"),
			Password:           getEnv("DB_PASSWORD", "ticketshow"),
			DBName:             getEnv("DB_NAME", "ticketshow"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "ticketshow"),
			ClientID:  getEnv("NATS_CLIENT_ID", "ticketshow-api"),
			AckWait:   getEnvDuration("NATS_ACK_WAIT", 30*time.Second),
		},

		Valkey: cache.Config{
			Addr:            getEnv("VALKEY_ADDR", "localhost:6379"),
			Password:        getEnv("VALKEY_PASSWORD", ""),
			DB:              getEnvInt("VALKEY_DB", 0),
			ProfileTTL:      getEnvDuration("IDENTITY_CACHE_TTL", 10*time.Minute),
			NotificationTTL: getEnvDuration("NOTIFY_DEDUPE_TTL", 72*time.Hour),
		},

		Elasticsearch: LoadElasticsearchConfig(),

		Payment: external.PaymentConfig{
			BaseURL:   getEnv("PAYMENT_GATEWAY_URL", "https://api.razorpay.com"),
			KeyID:     getEnv("PAYMENT_KEY_ID", ""),
			KeySecret: getEnv("PAYMENT_KEY_SECRET", ""),
			Timeout:   time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 10)) * time.Second,
		},

		Identity: external.IdentityConfig{
			BaseURL:   getEnv("IDENTITY_URL", "https://api.clerk.com"),
			SecretKey: getEnv("IDENTITY_SECRET_KEY", ""),
			Timeout:   time.Duration(getEnvInt("IDENTITY_TIMEOUT_SEC", 5)) * time.Second,
		},

		Mailer: external.MailerConfig{
			Host:     getEnv("SMTP_HOST", "smtp-relay.brevo.com"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASS", ""),
			Sender:   getEnv("SENDER_EMAIL", ""),
			Timeout:  time.Duration(getEnvInt("SMTP_TIMEOUT_SEC", 10)) * time.Second,
		},

		Booking: service.BookingConfig{
			HoldDuration:   getEnvDuration("HOLD_DURATION", 10*time.Minute),
			Currency:       getEnv("PAYMENT_CURRENCY", "INR"),
			GatewayTimeout: time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 10)) * time.Second,
		},

		Scheduler: scheduler.Config{
			PollInterval: getEnvDuration("SCHEDULER_POLL_INTERVAL", time.Second),
			BatchSize:    getEnvInt("SCHEDULER_BATCH_SIZE", 20),
			Lease:        getEnvDuration("SCHEDULER_LEASE", time.Minute),
			MaxAttempts:  getEnvInt("SCHEDULER_MAX_ATTEMPTS", 5),
			RetryBackoff: getEnvDuration("SCHEDULER_RETRY_BACKOFF", 30*time.Second),
		},

		Notify: notify.Config{
			Timezone:      getEnv("NOTIFY_TIMEZONE", "Asia/Kolkata"),
			MaxDeliveries: getEnvInt("NOTIFY_MAX_DELIVERIES", 5),
			AppURL:        getEnv("NOTIFY_APP_URL", "https://ticketshowapp.vercel.app"),
			Currency:      getEnv("PAYMENT_CURRENCY", "INR"),
		},

		Jobs: jobs.Config{
			CleanupCron:     getEnv("CLEANUP_CRON", "0 0 1 1,7 *"),
			RetentionMonths: getEnvInt("RETENTION_MONTHS", 6),
		},

		Auth: middleware.AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},

		RateLimit: middleware.RateLimitConfig{
			Enabled: getEnv("RATE_LIMIT_ENABLED", "true") == "true",
			RPS:     getEnvFloat("RATE_LIMIT_RPS", 5),
			Burst:   getEnvInt("RATE_LIMIT_BURST", 10),
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat получает дробное значение переменной окружения
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration принимает "10m", "30s" и т.п.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

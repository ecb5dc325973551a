package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Evidence EvidenceConfig
	Verifier VerifierConfig
	Ledger   LedgerConfig
	Payout   PayoutConfig

	Verify    VerifyConfig
	RateLimit RateLimitConfig

	CloudMetrics CloudMetricsConfig
}

// EvidenceConfig points at the content-addressed evidence store.
type EvidenceConfig struct {
	Endpoint      string
	UploadTimeout time.Duration
	LocalDir      string
}

// VerifierConfig points at the ML verification service.
type VerifierConfig struct {
	Endpoint      string
	CallTimeout   time.Duration
	HealthTimeout time.Duration
	MaxAttempts   int
}

// LedgerConfig points at the claims ledger node.
type LedgerConfig struct {
	Endpoint    string
	CallTimeout time.Duration
}

// PayoutConfig selects and configures the payout gateway.
type PayoutConfig struct {
	Mode        string // "simulated" or "gateway"
	Endpoint    string
	CallTimeout time.Duration
}

// VerifyConfig tunes the background verification pipeline.
type VerifyConfig struct {
	Workers           int
	QueueSize         int
	SweepInterval     time.Duration
	RecoveryThreshold time.Duration
	SweepBatchSize    int
}

// RateLimitConfig tunes claim submission rate limiting. Disabled when
// RedisAddr is empty.
type RateLimitConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SubmitRate    float64
	SubmitBurst   int
}

// CloudMetricsConfig configures the optional remote-write metrics pusher.
type CloudMetricsConfig struct {
	Enabled      bool
	Endpoint     string
	AuthToken    string
	PushInterval time.Duration
	NodeID       string
}

const (
	PayoutModeSimulated = "simulated"
	PayoutModeGateway   = "gateway"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "claimsd"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "claims"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		Evidence: EvidenceConfig{
			Endpoint:      getenv("EVIDENCE_STORE_ENDPOINT", "http://localhost:5001"),
			UploadTimeout: getenvDuration("EVIDENCE_UPLOAD_TIMEOUT", 15*time.Second),
			LocalDir:      getenv("EVIDENCE_LOCAL_DIR", "uploads"),
		},
		Verifier: VerifierConfig{
			Endpoint:      getenv("VERIFIER_ENDPOINT", "http://localhost:8000"),
			CallTimeout:   getenvDuration("VERIFIER_CALL_TIMEOUT", 15*time.Second),
			HealthTimeout: getenvDuration("VERIFIER_HEALTH_TIMEOUT", 5*time.Second),
			MaxAttempts:   getenvInt("VERIFIER_MAX_ATTEMPTS", 3),
		},
		Ledger: LedgerConfig{
			Endpoint:    getenv("LEDGER_ENDPOINT", "http://localhost:3001"),
			CallTimeout: getenvDuration("LEDGER_CALL_TIMEOUT", 15*time.Second),
		},
		Payout: PayoutConfig{
			Mode:        normalizePayoutMode(getenv("PAYOUT_MODE", PayoutModeSimulated)),
			Endpoint:    getenv("PAYOUT_GATEWAY_ENDPOINT", ""),
			CallTimeout: getenvDuration("PAYOUT_CALL_TIMEOUT", 15*time.Second),
		},

		Verify: VerifyConfig{
			Workers:           getenvInt("VERIFY_WORKERS", 4),
			QueueSize:         getenvInt("VERIFY_QUEUE_SIZE", 256),
			SweepInterval:     getenvDuration("VERIFY_SWEEP_INTERVAL", time.Minute),
			RecoveryThreshold: getenvDuration("VERIFY_RECOVERY_THRESHOLD", 5*time.Minute),
			SweepBatchSize:    getenvInt("VERIFY_SWEEP_BATCH_SIZE", 50),
		},
		RateLimit: RateLimitConfig{
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			SubmitRate:    getenvFloat("RATE_LIMIT_SUBMIT_RATE", 5),
			SubmitBurst:   getenvInt("RATE_LIMIT_SUBMIT_BURST", 10),
		},

		CloudMetrics: CloudMetricsConfig{
			Enabled:      getenvBool("CLOUD_METRICS_ENABLED", false),
			Endpoint:     strings.TrimSpace(getenv("CLOUD_METRICS_ENDPOINT", "")),
			AuthToken:    strings.TrimSpace(getenv("CLOUD_METRICS_AUTH_TOKEN", "")),
			PushInterval: getenvDuration("CLOUD_METRICS_PUSH_INTERVAL", 30*time.Second),
			NodeID:       strings.TrimSpace(getenv("CLOUD_METRICS_NODE_ID", "")),
		},
	}

	return cfg
}

func normalizePayoutMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case PayoutModeGateway:
		return PayoutModeGateway
	default:
		return PayoutModeSimulated
	}
}

// Module provides Config and the crop parameter holder.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewCropConfigHolder),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

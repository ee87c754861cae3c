package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	MFA      MFAConfig
	Lockout  LockoutConfig
	Monitor  MonitorConfig
	Alerts   AlertsConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	SessionIdleTimeout time.Duration
	SweepInterval      time.Duration
	AttemptRetention   time.Duration
	AuditRetention     time.Duration
}

type MFAConfig struct {
	// EncryptionKey is the 32-byte AES-256 key for TOTP secrets at rest.
	// Its absence is a fatal configuration error, never a plaintext fallback.
	EncryptionKey []byte
	Issuer        string
}

type LockoutConfig struct {
	MaxFailedAttempts int
	LockDuration      time.Duration
}

type MonitorConfig struct {
	ScanInterval        time.Duration
	BruteForceWindow    time.Duration
	BruteForceThreshold int
	AtRiskThreshold     int
}

type AlertsConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
	ToAddress   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	mfaKey, err := parseMFAEncryptionKey(getEnv("MFA_ENCRYPTION_KEY", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "securitycore"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			SessionIdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			SweepInterval:      getEnvAsDuration("SWEEP_INTERVAL", 1*time.Hour),
			AttemptRetention:   getEnvAsDuration("LOGIN_ATTEMPT_RETENTION", 30*24*time.Hour),
			AuditRetention:     getEnvAsDuration("AUDIT_LOG_RETENTION", 365*24*time.Hour),
		},
		MFA: MFAConfig{
			EncryptionKey: mfaKey,
			Issuer:        getEnv("MFA_ISSUER", "CareBridge Clinic"),
		},
		Lockout: LockoutConfig{
			MaxFailedAttempts: getEnvAsInt("LOCKOUT_MAX_FAILED_ATTEMPTS", 5),
			LockDuration:      getEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),
		},
		Monitor: MonitorConfig{
			ScanInterval:        getEnvAsDuration("MONITOR_SCAN_INTERVAL", 15*time.Minute),
			BruteForceWindow:    getEnvAsDuration("MONITOR_BRUTE_FORCE_WINDOW", 1*time.Hour),
			BruteForceThreshold: getEnvAsInt("MONITOR_BRUTE_FORCE_THRESHOLD", 10),
			AtRiskThreshold:     getEnvAsInt("MONITOR_AT_RISK_THRESHOLD", 3),
		},
		Alerts: AlertsConfig{
			Enabled:     getEnvAsBool("ALERT_EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("ALERT_FROM_ADDRESS", ""),
			ToAddress:   getEnv("ALERT_TO_ADDRESS", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if cfg.Alerts.Enabled && (cfg.Alerts.FromAddress == "" || cfg.Alerts.ToAddress == "") {
		return nil, fmt.Errorf("ALERT_FROM_ADDRESS and ALERT_TO_ADDRESS are required when ALERT_EMAIL_ENABLED=true")
	}

	return cfg, nil
}

// parseMFAEncryptionKey decodes and validates the AES-256 key for MFA
// secrets. The key is hex-encoded in the environment (64 hex characters).
func parseMFAEncryptionKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY is required")
	}

	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must be hex-encoded: %w", err)
	}

	if len(key) != 32 {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must decode to exactly 32 bytes, got %d", len(key))
	}

	return key, nil
}

// validateJWTSecret enforces minimum security standards for the JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

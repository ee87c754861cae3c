package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const testMFAKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("MFA_ENCRYPTION_KEY", testMFAKey)
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"AccessTokenExpiry", cfg.Auth.AccessTokenExpiry, 15 * time.Minute},
		{"SessionIdleTimeout", cfg.Auth.SessionIdleTimeout, 30 * time.Minute},
		{"AttemptRetention", cfg.Auth.AttemptRetention, 30 * 24 * time.Hour},
		{"AuditRetention", cfg.Auth.AuditRetention, 365 * 24 * time.Hour},
		{"LockDuration", cfg.Lockout.LockDuration, 15 * time.Minute},
		{"BruteForceWindow", cfg.Monitor.BruteForceWindow, 1 * time.Hour},
		{"ScanInterval", cfg.Monitor.ScanInterval, 15 * time.Minute},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Lockout.MaxFailedAttempts != 5 {
		t.Errorf("MaxFailedAttempts: got %d, want 5", cfg.Lockout.MaxFailedAttempts)
	}
	if cfg.Monitor.BruteForceThreshold != 10 {
		t.Errorf("BruteForceThreshold: got %d, want 10", cfg.Monitor.BruteForceThreshold)
	}
	if cfg.Monitor.AtRiskThreshold != 3 {
		t.Errorf("AtRiskThreshold: got %d, want 3", cfg.Monitor.AtRiskThreshold)
	}
	if cfg.Alerts.Enabled {
		t.Error("Alerts.Enabled: got true, want false by default")
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("MFA_ENCRYPTION_KEY", testMFAKey)
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Error("Load() without JWT_SECRET = nil, want error")
	}
}

func TestLoad_RejectsShortJWTSecretInProduction(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("ENV", "production")
	os.Setenv("JWT_SECRET", "only-20-characters!!")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Error("Load() with short production secret = nil, want error")
	}
}

func TestLoad_AcceptsShortSecretInDevelopment(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("JWT_SECRET", "sixteen-chars-ok")
	defer os.Clearenv()

	if _, err := Load(); err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
}

func TestLoad_MFAEncryptionKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr string
	}{
		{
			name:    "missing key",
			key:     "",
			wantErr: "MFA_ENCRYPTION_KEY is required",
		},
		{
			name:    "not hex",
			key:     strings.Repeat("zz", 32),
			wantErr: "must be hex-encoded",
		},
		{
			name:    "wrong length",
			key:     "0001020304",
			wantErr: "exactly 32 bytes",
		},
		{
			name: "valid key",
			key:  testMFAKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			os.Setenv("MFA_ENCRYPTION_KEY", tt.key)
			defer os.Clearenv()

			cfg, err := Load()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Load() = %v, want nil", err)
				}
				if len(cfg.MFA.EncryptionKey) != 32 {
					t.Errorf("EncryptionKey length = %d, want 32", len(cfg.MFA.EncryptionKey))
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_AlertsRequireAddresses(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("ALERT_EMAIL_ENABLED", "true")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Error("Load() with alerts enabled but no addresses = nil, want error")
	}

	os.Setenv("ALERT_FROM_ADDRESS", "security@clinic.test")
	os.Setenv("ALERT_TO_ADDRESS", "oncall@clinic.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if !cfg.Alerts.Enabled {
		t.Error("Alerts.Enabled: got false, want true")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		Name:     "securitycore",
		SSLMode:  "disable",
	}

	want := "host=localhost port=5432 user=postgres password=secret dbname=securitycore sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Core     CoreConfig
	Auth     AuthConfig
}

type DatabaseConfig struct {
	Path string
}

type CoreConfig struct {
	Env      string
	LogLevel string
}

type AuthConfig struct {
	// MasterKey is the 32-byte device master key. Per-user ledger signing
	// keys and the TOTP storage key are derived from it; it never leaves
	// the device.
	MasterKey []byte

	TOTPIssuer      string
	CleanupInterval time.Duration

	TimingDelayBaseMs   int
	TimingDelayRandomMs int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	masterKey, err := loadMasterKey(getEnv("LANTERN_MASTER_KEY", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Path: getEnv("LANTERN_DB_PATH", "lantern.db"),
		},
		Core: CoreConfig{
			Env:      getEnv("ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			MasterKey:           masterKey,
			TOTPIssuer:          getEnv("LANTERN_TOTP_ISSUER", "Lantern"),
			CleanupInterval:     getEnvAsDuration("LANTERN_CLEANUP_INTERVAL", 1*time.Hour),
			TimingDelayBaseMs:   getEnvAsInt("LANTERN_TIMING_DELAY_BASE_MS", 100),
			TimingDelayRandomMs: getEnvAsInt("LANTERN_TIMING_DELAY_RANDOM_MS", 100),
		},
	}

	return cfg, nil
}

// loadMasterKey decodes and validates LANTERN_MASTER_KEY. The key is
// provisioned per device at imaging time; refusing to start without it is
// better than silently signing with a weak one.
func loadMasterKey(value string) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("LANTERN_MASTER_KEY is required")
	}

	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("LANTERN_MASTER_KEY must be hex-encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("LANTERN_MASTER_KEY must be 32 bytes (64 hex characters), got %d bytes", len(key))
	}

	uniform := true
	for _, b := range key {
		if b != key[0] {
			uniform = false
			break
		}
	}
	if uniform {
		return nil, fmt.Errorf("LANTERN_MASTER_KEY cannot be a repeated byte")
	}

	return key, nil
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

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

package services

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port           string
	DBPath         string
	SessionSecret  string
	SessionTTL     time.Duration
	DataRoot       string
	UploadDir      string
	MaxFileMB      int64
	QuotesDir      string
	AutoMigrate    bool
	AutoHealSchema bool
	CORSOrigins    []string
	LogLevel       string
	LogFormat      string
}

// LoadEnv loads variables from an env file. A missing file is not an error.
func LoadEnv(filename string) error {
	if err := godotenv.Load(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() *Config {
	dataRoot := getEnv("DATA_ROOT", "./data")
	cfg := &Config{
		Port:           getEnv("PORT", "3030"),
		DBPath:         getEnv("DB_PATH", "./admin.db"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		SessionTTL:     getDurationEnv("SESSION_TTL", 6*time.Hour),
		DataRoot:       dataRoot,
		UploadDir:      getEnv("UPLOAD_DIR", filepath.Join(dataRoot, "uploads")),
		MaxFileMB:      getIntEnv("MAX_FILE_MB", 2048),
		QuotesDir:      getEnv("QUOTES_DIR", dataRoot),
		AutoMigrate:    getBoolEnv("AUTO_MIGRATE", true),
		AutoHealSchema: getBoolEnv("AUTO_HEAL_SCHEMA", true),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "console"),
	}
	if cfg.SessionSecret == "" {
		log.Warn().Msg("SESSION_SECRET not set, sessions will not survive a restart")
	}
	return cfg
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxFileMB * 1024 * 1024
}

func (c *Config) LogoDir() string {
	return filepath.Join(c.DataRoot, "project-logos")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

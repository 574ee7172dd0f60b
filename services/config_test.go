package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "DB_PATH", "SESSION_SECRET", "SESSION_TTL", "DATA_ROOT", "UPLOAD_DIR", "MAX_FILE_MB",
	"QUOTES_DIR", "AUTO_MIGRATE", "AUTO_HEAL_SCHEMA", "CORS_ORIGINS", "LOG_LEVEL", "LOG_FORMAT",
}

// clearConfigEnv unsets every config key for the test. t.Setenv restores
// the previous values afterwards.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg := LoadConfig()

	assert.Equal(t, "3030", cfg.Port)
	assert.Equal(t, "./admin.db", cfg.DBPath)
	assert.Equal(t, 6*time.Hour, cfg.SessionTTL)
	assert.Equal(t, filepath.Join("./data", "uploads"), cfg.UploadDir)
	assert.Equal(t, "./data", cfg.QuotesDir)
	assert.Equal(t, int64(2048)*1024*1024, cfg.MaxUploadBytes())
	assert.True(t, cfg.AutoMigrate)
	assert.True(t, cfg.AutoHealSchema)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, filepath.Join("./data", "project-logos"), cfg.LogoDir())
}

func TestLoadConfigOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DATA_ROOT", "/srv/admin")
	t.Setenv("MAX_FILE_MB", "5")
	t.Setenv("AUTO_HEAL_SCHEMA", "false")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SESSION_TTL", "bogus")

	cfg := LoadConfig()
	assert.Equal(t, "/srv/admin/uploads", cfg.UploadDir)
	assert.Equal(t, "/srv/admin", cfg.QuotesDir)
	assert.Equal(t, 6*time.Hour, cfg.SessionTTL, "unparseable durations fall back")
	assert.Equal(t, int64(5)*1024*1024, cfg.MaxUploadBytes())
	assert.False(t, cfg.AutoHealSchema)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadEnv(t *testing.T) {
	clearConfigEnv(t)
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=4000\n# comment\nLOG_LEVEL=\"debug\"\n"), 0o644))
	require.NoError(t, LoadEnv(path))
	cfg := LoadConfig()
	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

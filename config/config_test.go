package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func writeJSON(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "3001", cfg.AppPort)
	assert.Equal(t, ProfileMulti, cfg.Profile)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 24, cfg.TokenTTLHours)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "hb:", cfg.RedisKeyPrefix)
}

func TestLoadGroupedJSON(t *testing.T) {
	path := writeJSON(t, `{
		"app": {"AppPort": "9000", "Profile": "single", "RateLimitPerMinute": 10},
		"database": {"SQLitePath": "/tmp/hb.db"},
		"redis": {"KeyPrefix": "hb-test:"},
		"log": {"Level": "debug", "Compress": true}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.AppPort)
	assert.Equal(t, ProfileSingle, cfg.Profile)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/tmp/hb.db", cfg.SQLitePath)
	assert.Equal(t, 10, cfg.RateLimitPerMinute)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogCompress)
	assert.Equal(t, "hb-test:", cfg.RedisKeyPrefix)
}

func TestEnvOverridesJSON(t *testing.T) {
	path := writeJSON(t, `{"app": {"AppPort": "9000", "Profile": "single"}}`)
	t.Setenv("APP_PORT", "7000")
	t.Setenv("APP_PROFILE", "local")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_KEY_PREFIX", "family:")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.AppPort)
	assert.Equal(t, ProfileLocal, cfg.Profile)
	assert.Equal(t, 6380, cfg.RedisPort)
	assert.Equal(t, "family:", cfg.RedisKeyPrefix)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadErrors(t *testing.T) {
	t.Run("multi without secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("bad integer", func(t *testing.T) {
		t.Setenv("APP_PROFILE", "single")
		t.Setenv("REDIS_PORT", "abc")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("unknown profile", func(t *testing.T) {
		t.Setenv("APP_PROFILE", "cluster")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("broken json", func(t *testing.T) {
		_, err := Load(writeJSON(t, `{"app":`))
		assert.Error(t, err)
	})
}

func TestOpenSQLiteDatabase(t *testing.T) {
	cfg := AppConfig{DBDriver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "sub", "hb.db"), LogLevel: "silent"}

	db, err := OpenDatabase(cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	assert.True(t, db.Migrator().HasTable("users"))
	assert.True(t, db.Migrator().HasTable("red_packets"))
	assert.True(t, db.Migrator().HasIndex("red_packets", "idx_red_packets_user_year"))
	assert.True(t, db.Migrator().HasIndex("red_packets", "idx_red_packets_created_at"))
}

func TestToGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, toGormLogLevel("debug"))
	assert.Equal(t, logger.Warn, toGormLogLevel("info"))
	assert.Equal(t, logger.Silent, toGormLogLevel("silent"))
}

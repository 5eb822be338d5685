package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("FEED_LIMIT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 50, cfg.Feed.Limit)
	assert.Equal(t, "15:04", cfg.Feed.TimeFormat)
	assert.Equal(t, time.UTC, cfg.Feed.Location())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/feed.db")
	t.Setenv("FEED_LIMIT", "20")
	t.Setenv("FEED_MAX_LIMIT", "10")
	t.Setenv("FEED_POLL_RPS", "0.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/feed.db", cfg.Database.SQLitePath)
	assert.Equal(t, 20, cfg.Feed.Limit)
	assert.Equal(t, 20, cfg.Feed.MaxLimit, "max limit is raised to the default limit")
	assert.Equal(t, 0.5, cfg.Feed.PollRPS)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mongo")
	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.DSN())

	c.URL = "postgres://override"
	assert.Equal(t, "postgres://override", c.DSN())
}

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, FeedConfig{Timezone: "Not/AZone"}.Location())
}

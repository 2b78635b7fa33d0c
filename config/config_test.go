package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CHAT_MAX_CONTENT", "")
	t.Setenv("REALTIME_RELAY", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Chat.HistoryLimit)
	assert.Equal(t, 500, cfg.Chat.MaxContent)
	assert.True(t, cfg.Redis.Relay)
	assert.Equal(t, "@every 1m", cfg.Worker.AutoEndCron)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHAT_MAX_CONTENT", "200")
	t.Setenv("REALTIME_RELAY", "false")
	t.Setenv("MEETING_PROVIDER", "ZEGO")
	t.Setenv("ZEGO_APP_ID", "12345")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Chat.MaxContent)
	assert.False(t, cfg.Redis.Relay)
	assert.Equal(t, "zego", cfg.Meeting.Provider)
	assert.Equal(t, uint32(12345), cfg.Meeting.ZegoAppID)

	t.Setenv("ZEGO_APP_ID", "not-a-number")
	_, err = Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "db", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/db?sslmode=disable", d.DSN())
	d.URL = "postgres://x"
	assert.Equal(t, "postgres://x", d.DSN())
}

func TestAllowedOrigins(t *testing.T) {
	s := ServerConfig{CORSAllowedOrigins: " http://a , ,http://b"}
	assert.Equal(t, []string{"http://a", "http://b"}, s.AllowedOrigins())
}

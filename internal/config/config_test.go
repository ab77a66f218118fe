package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("API_URL", "http://localhost:8080")
	t.Setenv("WEBSOCKET_URL", "ws://localhost:8080/ws")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FILE", "")
	t.Setenv("SEND_TIMEOUT", "")
	t.Setenv("PONG_WAIT", "")
	t.Setenv("BACKFILL", "")
	t.Setenv("AVATARS", "")
}

func TestFromEnv(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SEND_TIMEOUT", "3s")
	t.Setenv("BACKFILL", "true")
	t.Setenv("AVATARS", "mario,kirby")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "http://localhost:8080", cfg.APIURL)
	require.Equal(t, "ws://localhost:8080/ws", cfg.WebSocketURL)
	require.Equal(t, 3*time.Second, cfg.SendTimeout)
	require.True(t, cfg.Backfill)
	require.Equal(t, []string{"mario", "kirby"}, cfg.Avatars)
	require.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestFromEnv_Defaults(t *testing.T) {
	setBaseEnv(t)
	os.Unsetenv("LOG_LEVEL")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, "info", cfg.LogLevel)
	require.Zero(t, cfg.SendTimeout)
	require.Zero(t, cfg.PongWait)
	require.False(t, cfg.Backfill)
}

func TestFromEnv_BadDuration(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SEND_TIMEOUT", "soon")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	ok := Config{APIURL: "http://localhost:8080", WebSocketURL: "ws://localhost:8080/ws", LogLevel: "info"}
	require.NoError(t, ok.Validate())

	cases := map[string]func(c *Config){
		"missing api url":   func(c *Config) { c.APIURL = "" },
		"missing ws url":    func(c *Config) { c.WebSocketURL = "" },
		"bad api url":       func(c *Config) { c.APIURL = "localhost" },
		"bad log level":     func(c *Config) { c.LogLevel = "loud" },
		"negative timeout":  func(c *Config) { c.SendTimeout = -time.Second },
		"negative pongwait": func(c *Config) { c.PongWait = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := ok
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("NESTIA_CHAT_DOTENV_PROBE=from-file\nNESTIA_CHAT_DOTENV_KEEP=from-file\n"), 0o600))

	t.Setenv("NESTIA_CHAT_DOTENV_KEEP", "from-env")
	t.Cleanup(func() { os.Unsetenv("NESTIA_CHAT_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	require.Equal(t, "from-file", os.Getenv("NESTIA_CHAT_DOTENV_PROBE"))
	require.Equal(t, "from-env", os.Getenv("NESTIA_CHAT_DOTENV_KEEP"))
}

func TestLevel_Fallback(t *testing.T) {
	c := Config{LogLevel: "nonsense"}
	require.Equal(t, zerolog.InfoLevel, c.Level())
	c.LogLevel = "warn"
	require.Equal(t, zerolog.WarnLevel, c.Level())
}

func TestValidate_EmptyLogLevel(t *testing.T) {
	setBaseEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, "info", cfg.LogLevel)
}

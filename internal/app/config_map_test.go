package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redditcord/internal/config"
)

func baseConfig() *config.Config {
	cfg := config.Default()
	cfg.Discord.Token = "bot"
	cfg.Reddit.ClientID = "id"
	cfg.Reddit.ClientSecret = "secret"
	cfg.Reddit.RefreshToken = "refresh"
	return cfg
}

func TestMapStorageConfig(t *testing.T) {
	cfg := baseConfig()
	_, ok, err := mapStorageConfig(cfg)
	require.NoError(t, err)
	assert.False(t, ok)

	cfg.Storage = &config.StorageConfig{Driver: "SQLite", Path: "./bot.db"}
	sc, ok, err := mapStorageConfig(cfg)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, time.Second, sc.BusyTimeout)

	cfg.Storage = &config.StorageConfig{Driver: "file"}
	_, _, err = mapStorageConfig(cfg)
	assert.Error(t, err)

	cfg.Storage = &config.StorageConfig{Driver: "postgres", Path: "x"}
	_, _, err = mapStorageConfig(cfg)
	assert.Error(t, err)
}

func TestRunTimeoutDefaultAndDisable(t *testing.T) {
	cfg := baseConfig()
	d, err := runTimeout(cfg)
	require.NoError(t, err)
	assert.Equal(t, defaultRunTimeout, d)

	cfg.Feed.RunTimeout = "0s"
	d, err = runTimeout(cfg)
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestCooldownWindowZeroDisables(t *testing.T) {
	cfg := baseConfig()
	d, err := cooldownWindow(cfg)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	cfg.Commands.Cooldown = "0s"
	d, err = cooldownWindow(cfg)
	require.NoError(t, err)
	assert.Zero(t, d)

	cfg.Commands.Cooldown = ""
	d, err = cooldownWindow(cfg)
	require.NoError(t, err)
	assert.Equal(t, defaultCooldown, d)

	cfg.Commands.Cooldown = "-1s"
	_, err = cooldownWindow(cfg)
	assert.Error(t, err)
}

func TestMapDefaultsNormalizesSubreddit(t *testing.T) {
	cfg := baseConfig()
	cfg.Feed.DefaultSubreddit = "r/golang"
	cfg.Feed.DefaultChannelID = " 42 "
	d := mapDefaults(cfg)
	assert.Equal(t, "golang", d.Subreddit)
	assert.Equal(t, "42", d.ChannelID)

	cfg.Feed.DefaultSubreddit = "not a sub!"
	assert.Equal(t, config.DefaultSubreddit, mapDefaults(cfg).Subreddit)
}

func TestMapClientConfigRetryDefault(t *testing.T) {
	cfg := baseConfig()
	assert.Equal(t, defaultRetryMax, mapClientConfig(cfg).RetryMax)
	cfg.Reddit.RetryMax = 5
	assert.Equal(t, 5, mapClientConfig(cfg).RetryMax)
}

func TestValidateRuntimeRejectsBadSchedule(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, validateRuntime(context.Background(), cfg))

	cfg.Feed.Schedule = "every tuesday"
	assert.Error(t, validateRuntime(context.Background(), cfg))
}

func TestRestartOnlyChanges(t *testing.T) {
	prev := baseConfig()
	next := baseConfig()
	assert.Empty(t, restartOnlyChanges(prev, next))

	next.Feed.Schedule = "@every 5m"
	next.Commands.Cooldown = "10s"
	assert.Empty(t, restartOnlyChanges(prev, next))

	next.Reddit.ClientSecret = "rotated"
	next.Storage = &config.StorageConfig{Driver: "sqlite", Path: "a.db"}
	assert.Equal(t, []string{"reddit.credentials", "storage"}, restartOnlyChanges(prev, next))
}

func TestCheckPrintsEffectiveSettings(t *testing.T) {
	for k, v := range map[string]string{
		config.EnvBotToken:     "bot",
		config.EnvClientID:     "id",
		config.EnvClientSecret: "secret",
		config.EnvRefreshToken: "refresh",
	} {
		t.Setenv(k, v)
	}
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"feed":{"default_subreddit":"golang","schedule":"15m"},"logging":{"level":"info","console":false}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	var out bytes.Buffer
	require.NoError(t, Check(path, &out))
	assert.Contains(t, out.String(), "config ok")
	assert.Contains(t, out.String(), "r/golang")
	assert.Contains(t, out.String(), "every 15m0s (duration)")
	assert.NotContains(t, out.String(), "secret")
}

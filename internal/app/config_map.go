package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"redditcord/internal/config"
	"redditcord/internal/guild"
	"redditcord/internal/reddit"
	"redditcord/internal/router"
	"redditcord/internal/storage"
	"redditcord/internal/task/scheduler"
	logx "redditcord/pkg/logx"
)

const (
	defaultRedditTimeout = 30 * time.Second
	defaultRunTimeout    = 2 * time.Minute
	defaultCooldown      = 30 * time.Second
	defaultRetryMax      = 2
	defaultRetryBase     = 500 * time.Millisecond
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled:   lc.File.Enabled,
			Path:      lc.File.Path,
			ErrorPath: lc.File.ErrorPath,
		},
		Channel: logx.ChannelConfig{
			Enabled:    lc.Channel.Enabled,
			MinLevel:   lc.Channel.MinLevel,
			RatePerSec: lc.Channel.RatePerSec,
		},
	}
}

// mapStorageConfig returns enabled=false when no audit store is configured.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "", "none":
		return storage.Config{}, false, nil
	case "file", "sqlite", "sqlite3":
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
	path := strings.TrimSpace(sc.Path)
	if path == "" {
		return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
}

func mapCredentials(cfg *config.Config) reddit.Credentials {
	rc := cfg.Reddit
	return reddit.Credentials{
		ClientID:     rc.ClientID,
		ClientSecret: rc.ClientSecret,
		RefreshToken: rc.RefreshToken,
		UserAgent:    rc.UserAgent,
		TokenURL:     rc.TokenURL,
	}
}

func mapClientConfig(cfg *config.Config) reddit.ClientConfig {
	retry := cfg.Reddit.RetryMax
	if retry == 0 {
		retry = defaultRetryMax
	}
	return reddit.ClientConfig{
		BaseURL:   cfg.Reddit.APIBaseURL,
		UserAgent: cfg.Reddit.UserAgent,
		RetryMax:  retry,
		RetryBase: defaultRetryBase,
	}
}

func mapDefaults(cfg *config.Config) guild.Target {
	sub, ok := reddit.NormalizeSubreddit(cfg.Feed.DefaultSubreddit)
	if !ok {
		sub = config.DefaultSubreddit
	}
	return guild.Target{Subreddit: sub, ChannelID: strings.TrimSpace(cfg.Feed.DefaultChannelID)}
}

func mapRouterOptions(cfg *config.Config) (router.Options, error) {
	timeout, err := config.ParseDurationField("commands.timeout", cfg.Commands.Timeout)
	if err != nil {
		return router.Options{}, err
	}
	fetchTimeout, err := runTimeout(cfg)
	if err != nil {
		return router.Options{}, err
	}
	return router.Options{
		Prefix:        cfg.Discord.Prefix,
		Workers:       cfg.Commands.Workers,
		Timeout:       timeout,
		FetchTimeout:  fetchTimeout,
		CommentsLimit: cfg.Feed.CommentsLimit,
	}, nil
}

// cooldownWindow defaults an empty value to 30s. An explicit "0s" disables
// the limit.
func cooldownWindow(cfg *config.Config) (time.Duration, error) {
	if strings.TrimSpace(cfg.Commands.Cooldown) == "" {
		return defaultCooldown, nil
	}
	return config.ParseDurationField("commands.cooldown", cfg.Commands.Cooldown)
}

// runTimeout bounds one cycle. An explicit "0s" disables the bound.
func runTimeout(cfg *config.Config) (time.Duration, error) {
	raw := strings.TrimSpace(cfg.Feed.RunTimeout)
	if raw == "" {
		return defaultRunTimeout, nil
	}
	return config.ParseDurationField("feed.run_timeout", raw)
}

func redditTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("reddit.timeout", cfg.Reddit.Timeout, defaultRedditTimeout)
}

// validateRuntime checks everything a reload must satisfy before it is
// committed: the file-level rules plus the mappings applied live.
func validateRuntime(_ context.Context, cfg *config.Config) error {
	if _, err := scheduler.Validate(cfg.Feed.Schedule); err != nil {
		return fmt.Errorf("feed.schedule: %w", err)
	}
	if _, err := mapRouterOptions(cfg); err != nil {
		return err
	}
	if _, err := cooldownWindow(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := redditTimeout(cfg); err != nil {
		return err
	}
	return nil
}

// restartOnlyChanges lists changed settings that only take effect after a restart.
func restartOnlyChanges(prev, next *config.Config) []string {
	if prev == nil || next == nil {
		return nil
	}
	var out []string
	if prev.Discord.Token != next.Discord.Token {
		out = append(out, "discord.token")
	}
	if mapCredentials(prev) != mapCredentials(next) {
		out = append(out, "reddit.credentials")
	}
	if mapClientConfig(prev) != mapClientConfig(next) || prev.Reddit.Timeout != next.Reddit.Timeout {
		out = append(out, "reddit.client")
	}
	ps, _, _ := mapStorageConfig(prev)
	ns, _, _ := mapStorageConfig(next)
	if ps != ns {
		out = append(out, "storage")
	}
	if prev.Commands.Workers != next.Commands.Workers {
		out = append(out, "commands.workers")
	}
	return out
}

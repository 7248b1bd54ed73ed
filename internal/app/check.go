package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"redditcord/internal/config"
	"redditcord/internal/task/scheduler"
)

// Check loads and validates the config at path without connecting anywhere,
// then prints the effective settings. Secrets are never printed.
func Check(path string, w io.Writer) error {
	cfg, err := config.NewConfigManager(path).Load()
	if err != nil {
		return err
	}
	if err := validateRuntime(context.Background(), cfg); err != nil {
		return err
	}
	spec, err := scheduler.Validate(cfg.Feed.Schedule)
	if err != nil {
		return err
	}
	timeout, err := runTimeout(cfg)
	if err != nil {
		return err
	}
	window, err := cooldownWindow(cfg)
	if err != nil {
		return err
	}
	storageDesc := "disabled"
	if sc, ok, _ := mapStorageConfig(cfg); ok {
		storageDesc = sc.Driver + " (" + sc.Path + ")"
	}
	defaults := mapDefaults(cfg)

	lines := []string{
		"config ok",
		"schedule:          " + spec.String(),
		"run timeout:       " + timeout.String(),
		"prefix:            " + cfg.Discord.Prefix,
		"default subreddit: r/" + defaults.Subreddit,
		"default channel:   " + orNone(defaults.ChannelID),
		"pinned guild:      " + orNone(cfg.Discord.GuildID),
		"cooldown:          " + window.String(),
		"storage:           " + storageDesc,
	}
	_, err = fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

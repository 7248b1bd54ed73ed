package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingSecret marks startup misconfiguration that must stop the process.
var ErrMissingSecret = errors.New("missing secret")

// CheckSecrets verifies that every credential required to run is present.
func (c *Config) CheckSecrets() error {
	var missing []string
	if strings.TrimSpace(c.Discord.Token) == "" {
		missing = append(missing, EnvBotToken)
	}
	if strings.TrimSpace(c.Reddit.ClientID) == "" {
		missing = append(missing, EnvClientID)
	}
	if strings.TrimSpace(c.Reddit.ClientSecret) == "" {
		missing = append(missing, EnvClientSecret)
	}
	if strings.TrimSpace(c.Reddit.RefreshToken) == "" {
		missing = append(missing, EnvRefreshToken)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSecret, strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks value ranges and duration fields. It does not check
// secrets; hot reloads must not fail on a file that omits them.
func (c *Config) Validate() error {
	if strings.ContainsAny(c.Discord.Prefix, " \t\n") {
		return fmt.Errorf("discord.prefix must not contain whitespace")
	}
	if c.Feed.FetchLimit < 0 || c.Feed.FetchLimit > 100 {
		return fmt.Errorf("feed.fetch_limit must be within 0..100")
	}
	if c.Feed.TopCommentLimit < 0 || c.Feed.CommentsLimit < 0 {
		return fmt.Errorf("feed comment limits must be >= 0")
	}
	if c.Commands.Workers < 0 {
		return fmt.Errorf("commands.workers must be >= 0")
	}
	if c.Reddit.RetryMax < 0 {
		return fmt.Errorf("reddit.retry_max must be >= 0")
	}
	for _, ds := range durationSettings(c) {
		if _, err := ParseDurationField(ds.path, ds.raw); err != nil {
			return err
		}
	}
	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none":
		case "sqlite", "sqlite3", "file":
			if strings.TrimSpace(c.Storage.Path) == "" {
				return fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver)
			}
		default:
			return fmt.Errorf("storage.driver: unknown %q", c.Storage.Driver)
		}
	}
	return nil
}

package config

import (
	"os"
	"strings"
)

// Environment variable names. The unprefixed names match a plain .env layout.
const (
	EnvBotToken        = "BOT_TOKEN"
	EnvDiscordBotToken = "DISCORD_BOT_TOKEN"
	EnvClientID        = "CLIENT_ID"
	EnvClientSecret    = "CLIENT_SECRET"
	EnvRefreshToken    = "REFRESH_TOKEN"
	EnvAccessToken     = "ACCESS_TOKEN"
	EnvUserAgent       = "REDDIT_USER_AGENT"
)

// ApplyEnv overlays secrets from the environment. Non-empty env values win over the file.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	set(&c.Discord.Token, EnvDiscordBotToken, EnvBotToken)
	set(&c.Reddit.ClientID, EnvClientID)
	set(&c.Reddit.ClientSecret, EnvClientSecret)
	set(&c.Reddit.RefreshToken, EnvRefreshToken)
	set(&c.Reddit.AccessToken, EnvAccessToken)
	set(&c.Reddit.UserAgent, EnvUserAgent)
}

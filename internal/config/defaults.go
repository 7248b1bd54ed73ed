package config

const (
	DefaultPrefix          = "!"
	DefaultUserAgent       = "DiscordRedditBot"
	DefaultTokenURL        = "https://www.reddit.com/api/v1/access_token"
	DefaultAPIBaseURL      = "https://oauth.reddit.com"
	DefaultSubreddit       = "all"
	DefaultSchedule        = "*/10 * * * *"
	DefaultCooldown        = "30s"
	DefaultFetchLimit      = 1
	DefaultTopCommentLimit = 1
	DefaultCommentsLimit   = 5
)

// Default returns a config with every optional field filled in.
func Default() *Config {
	cfg := &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
	}
	cfg.fillDefaults()
	return cfg
}

func (c *Config) fillDefaults() {
	if c.Discord.Prefix == "" {
		c.Discord.Prefix = DefaultPrefix
	}
	if c.Reddit.UserAgent == "" {
		c.Reddit.UserAgent = DefaultUserAgent
	}
	if c.Reddit.TokenURL == "" {
		c.Reddit.TokenURL = DefaultTokenURL
	}
	if c.Reddit.APIBaseURL == "" {
		c.Reddit.APIBaseURL = DefaultAPIBaseURL
	}
	if c.Feed.DefaultSubreddit == "" {
		c.Feed.DefaultSubreddit = DefaultSubreddit
	}
	if c.Feed.Schedule == "" {
		c.Feed.Schedule = DefaultSchedule
	}
	if c.Feed.FetchLimit == 0 {
		c.Feed.FetchLimit = DefaultFetchLimit
	}
	if c.Feed.TopCommentLimit == 0 {
		c.Feed.TopCommentLimit = DefaultTopCommentLimit
	}
	if c.Feed.CommentsLimit == 0 {
		c.Feed.CommentsLimit = DefaultCommentsLimit
	}
	if c.Commands.Cooldown == "" {
		c.Commands.Cooldown = DefaultCooldown
	}
}

package config

// Config is the full runtime configuration.
//
// Secrets may be left empty in the file and supplied through the environment
// (see ApplyEnv).
type Config struct {
	Discord  DiscordConfig  `json:"discord"`
	Reddit   RedditConfig   `json:"reddit"`
	Feed     FeedConfig     `json:"feed"`
	Commands CommandsConfig `json:"commands"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

type DiscordConfig struct {
	Token  string `json:"token,omitempty"`
	Prefix string `json:"prefix,omitempty"` // default "!"
	// GuildID pins scheduled deliveries to one guild. Empty means the first
	// guild the gateway session reports.
	GuildID      string `json:"guild_id,omitempty"`
	LogChannelID string `json:"log_channel_id,omitempty"`
}

type RedditConfig struct {
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	// AccessToken optionally seeds the credential before the first refresh.
	AccessToken string `json:"access_token,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	TokenURL    string `json:"token_url,omitempty"`
	APIBaseURL  string `json:"api_base_url,omitempty"`
	// Timeout is a Go duration string applied per HTTP request.
	Timeout  string `json:"timeout,omitempty"`
	RetryMax int    `json:"retry_max,omitempty"`
}

type FeedConfig struct {
	DefaultSubreddit string `json:"default_subreddit,omitempty"`
	DefaultChannelID string `json:"default_channel_id,omitempty"`
	// Schedule accepts cron ("*/10 * * * *"), "@every 10m", "10m" or "HH:MM".
	Schedule        string `json:"schedule,omitempty"`
	FetchLimit      int    `json:"fetch_limit,omitempty"`
	TopCommentLimit int    `json:"top_comment_limit,omitempty"`
	CommentsLimit   int    `json:"comments_limit,omitempty"`
	// RunTimeout bounds one scheduled cycle. "0s" disables it.
	RunTimeout string `json:"run_timeout,omitempty"`
}

type CommandsConfig struct {
	Cooldown string `json:"cooldown,omitempty"` // default "30s"
	Workers  int    `json:"workers,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Channel LoggingChannel `json:"channel"`
}

type LoggingFile struct {
	Enabled   bool   `json:"enabled"`
	Path      string `json:"path"`
	ErrorPath string `json:"error_path,omitempty"`
}

type LoggingChannel struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the optional audit log.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./redditcord.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var errNegativeDuration = errors.New("must not be negative")

// DurationError reports a duration setting that did not parse.
type DurationError struct {
	Path string
	Raw  string
	Err  error
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("%s: invalid duration %q: %v", e.Path, e.Raw, e.Err)
}

func (e *DurationError) Unwrap() error { return e.Err }

// durationSetting names one Go-duration string in the config tree.
type durationSetting struct {
	path string
	raw  string
}

// durationSettings lists every duration string in a stable order, so
// validation always reports the same field first.
func durationSettings(c *Config) []durationSetting {
	out := []durationSetting{
		{"reddit.timeout", c.Reddit.Timeout},
		{"feed.run_timeout", c.Feed.RunTimeout},
		{"commands.cooldown", c.Commands.Cooldown},
		{"commands.timeout", c.Commands.Timeout},
	}
	if c.Storage != nil {
		out = append(out, durationSetting{"storage.busy_timeout", c.Storage.BusyTimeout})
	}
	return out
}

// ParseDurationField parses raw as a time.Duration. Blank means zero; a
// negative value is rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, &DurationError{Path: path, Raw: raw, Err: err}
	case d < 0:
		return 0, &DurationError{Path: path, Raw: raw, Err: errNegativeDuration}
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def standing in for a
// blank or zero value.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}

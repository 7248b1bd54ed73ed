// Package guild keeps the per-guild subreddit and delivery channel chosen by
// administrators. Unset fields fall back to the process defaults.
package guild

import (
	"strings"
	"sync"
)

// Target is where a guild's feed comes from and where it is delivered.
type Target struct {
	Subreddit string
	ChannelID string
}

type Settings struct {
	mu       sync.RWMutex
	entries  map[string]Target
	defaults Target
}

func NewSettings(defaults Target) *Settings {
	return &Settings{entries: map[string]Target{}, defaults: defaults}
}

// SetSubreddit overwrites the guild's subreddit. The channel is kept.
func (s *Settings) SetSubreddit(guildID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.entries[guildID]
	t.Subreddit = strings.TrimSpace(name)
	s.entries[guildID] = t
}

// SetChannel overwrites the guild's delivery channel. The subreddit is kept.
func (s *Settings) SetChannel(guildID, channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.entries[guildID]
	t.ChannelID = strings.TrimSpace(channelID)
	s.entries[guildID] = t
}

// Resolve returns the effective target of guildID. Each field falls back to
// the default independently.
func (s *Settings) Resolve(guildID string) Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.entries[guildID]
	if t.Subreddit == "" {
		t.Subreddit = s.defaults.Subreddit
	}
	if t.ChannelID == "" {
		t.ChannelID = s.defaults.ChannelID
	}
	return t
}

func (s *Settings) Subreddit(guildID string) string { return s.Resolve(guildID).Subreddit }

func (s *Settings) ChannelID(guildID string) string { return s.Resolve(guildID).ChannelID }

// Explicit reports the values set for guildID by command, without defaults.
func (s *Settings) Explicit(guildID string) (Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.entries[guildID]
	return t, ok
}

// SetDefaults swaps the fallback values (config reload).
func (s *Settings) SetDefaults(d Target) {
	s.mu.Lock()
	s.defaults = d
	s.mu.Unlock()
}

func (s *Settings) Defaults() Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults
}

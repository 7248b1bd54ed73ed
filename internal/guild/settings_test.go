package guild

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveFallsBackPerField(t *testing.T) {
	s := NewSettings(Target{Subreddit: "news", ChannelID: "c0"})
	assert.Equal(t, Target{Subreddit: "news", ChannelID: "c0"}, s.Resolve("g1"))

	s.SetSubreddit("g1", "golang")
	assert.Equal(t, Target{Subreddit: "golang", ChannelID: "c0"}, s.Resolve("g1"))

	s.SetChannel("g1", "c1")
	assert.Equal(t, Target{Subreddit: "golang", ChannelID: "c1"}, s.Resolve("g1"))
	assert.Equal(t, "golang", s.Subreddit("g1"))
	assert.Equal(t, "c1", s.ChannelID("g1"))

	// other guilds are unaffected
	assert.Equal(t, "news", s.Subreddit("g2"))
}

func TestSetDefaults(t *testing.T) {
	s := NewSettings(Target{Subreddit: "news", ChannelID: "c0"})
	s.SetChannel("g1", "c1")
	s.SetDefaults(Target{Subreddit: "golang", ChannelID: "c9"})

	assert.Equal(t, Target{Subreddit: "golang", ChannelID: "c1"}, s.Resolve("g1"))
	assert.Equal(t, Target{Subreddit: "golang", ChannelID: "c9"}, s.Defaults())

	explicit, ok := s.Explicit("g1")
	assert.True(t, ok)
	assert.Equal(t, Target{ChannelID: "c1"}, explicit)
	_, ok = s.Explicit("g2")
	assert.False(t, ok)
}

package feed

import (
	"context"
	"fmt"
	"sync/atomic"

	"redditcord/internal/eventbus"
	"redditcord/internal/reddit"
	logx "redditcord/pkg/logx"
)

// TokenRefresher forces a new access credential. *reddit.TokenGate implements it.
type TokenRefresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Lister returns the newest posts of a subreddit. *reddit.Client implements it.
type Lister interface {
	Newest(ctx context.Context, subreddit string, limit int) ([]reddit.Post, error)
}

// SubredditResolver maps a guild to its configured subreddit, falling back to
// the default when the guild has none.
type SubredditResolver interface {
	Subreddit(guildID string) string
}

// Fetcher pulls the newest posts for a guild and filters out the ones
// already delivered.
type Fetcher struct {
	tokens TokenRefresher
	source Lister
	subs   SubredditResolver
	dedup  *Dedup
	bus    eventbus.Bus
	log    logx.Logger

	limit atomic.Int32
}

func NewFetcher(tokens TokenRefresher, source Lister, subs SubredditResolver, dedup *Dedup, bus eventbus.Bus, log logx.Logger) *Fetcher {
	if dedup == nil {
		dedup = NewDedup()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	f := &Fetcher{tokens: tokens, source: source, subs: subs, dedup: dedup, bus: bus, log: log}
	f.limit.Store(1)
	return f
}

// SetLimit changes how many of the newest posts a fetch requests.
func (f *Fetcher) SetLimit(n int) {
	if n <= 0 {
		n = 1
	}
	f.limit.Store(int32(n))
}

// FetchLatest refreshes the credential, lists the newest posts of the guild's
// subreddit and returns the ones whose URL was not delivered before. Returned
// posts are claimed in the dedup set. An empty result is not an error.
//
// A refresh failure aborts the fetch with a *reddit.AuthError; a listing
// failure with a *reddit.FetchError. Neither is retried here.
func (f *Fetcher) FetchLatest(ctx context.Context, guildID string) ([]reddit.Post, error) {
	if _, err := f.tokens.Refresh(ctx); err != nil {
		return nil, err
	}

	sub := f.subs.Subreddit(guildID)
	limit := int(f.limit.Load())
	posts, err := f.source.Newest(ctx, sub, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch r/%s: %w", sub, err)
	}
	if len(posts) == 0 {
		f.log.Warn("no posts fetched", logx.String("subreddit", sub))
		return nil, nil
	}

	fresh := make([]reddit.Post, 0, len(posts))
	for _, p := range posts {
		key := dedupKey(p)
		if !f.dedup.Claim(key) {
			f.log.Info("duplicate post skipped", logx.String("url", key), logx.String("post_id", p.ID))
			f.bus.Publish(eventbus.Event{
				Type: eventbus.TypePostDuplicate,
				Data: map[string]string{"guild_id": guildID, "post_id": p.ID, "url": key},
			})
			continue
		}
		fresh = append(fresh, p)
	}
	return fresh, nil
}

// Posts without a target URL (rare) are keyed by their permalink.
func dedupKey(p reddit.Post) string {
	if p.URL != "" {
		return p.URL
	}
	return p.PermalinkURL()
}

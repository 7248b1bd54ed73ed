package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redditcord/internal/eventbus"
	"redditcord/internal/feed"
	"redditcord/internal/guild"
	"redditcord/internal/reddit"
	"redditcord/internal/session"
	"redditcord/internal/transport"
	logx "redditcord/pkg/logx"
)

type okTokens struct{}

func (okTokens) Refresh(context.Context) (string, error) { return "tok", nil }

type listing struct {
	mu    sync.Mutex
	posts []reddit.Post
	err   error
}

func (l *listing) set(posts ...reddit.Post) {
	l.mu.Lock()
	l.posts = posts
	l.mu.Unlock()
}

func (l *listing) Newest(context.Context, string, int) ([]reddit.Post, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.posts, l.err
}

type titleRenderer struct{}

func (titleRenderer) PostCard(_ context.Context, p reddit.Post) transport.Card {
	return transport.Card{Title: p.Title}
}

type sent struct {
	channelID string
	card      transport.Card
	controls  bool
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
	seq  int
}

func (s *recordingSender) SendCard(_ context.Context, channelID string, card transport.Card, withControls bool) (transport.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return transport.MessageRef{}, s.err
	}
	s.seq++
	s.sent = append(s.sent, sent{channelID: channelID, card: card, controls: withControls})
	return transport.MessageRef{ChannelID: channelID, MessageID: fmt.Sprintf("m%d", s.seq)}, nil
}

type fixture struct {
	list   *listing
	sender *recordingSender
	sess   *session.Session
	dedup  *feed.Dedup
	bus    eventbus.Bus
	p      *Pipeline
}

func newFixture(defaultChannel string) *fixture {
	f := &fixture{
		list:   &listing{},
		sender: &recordingSender{},
		sess:   session.New(),
		dedup:  feed.NewDedup(),
		bus:    eventbus.New(),
	}
	settings := guild.NewSettings(guild.Target{Subreddit: "golang", ChannelID: defaultChannel})
	fetcher := feed.NewFetcher(okTokens{}, f.list, settings, f.dedup, f.bus, logx.Nop())
	f.p = New(Deps{
		Fetcher:  fetcher,
		Session:  f.sess,
		Channels: settings,
		Renderer: titleRenderer{},
		Sender:   f.sender,
		Bus:      f.bus,
		Log:      logx.Nop(),
	})
	return f
}

func TestRunDeliversOnceAndKeepsSessionOnDuplicate(t *testing.T) {
	f := newFixture("c1")
	p1 := reddit.Post{ID: "p1", Title: "P1", URL: "u1"}
	f.list.set(p1)

	res, err := f.p.Run(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.True(t, f.dedup.Seen("u1"))
	assert.Equal(t, 1, f.sess.Len())
	assert.Equal(t, 0, f.sess.Cursor())
	cur, err := f.sess.Current()
	require.NoError(t, err)
	assert.Equal(t, "p1", cur.ID)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "c1", f.sender.sent[0].channelID)
	assert.True(t, f.sender.sent[0].controls)
	id, ok := f.sess.PostForMessage("m1")
	assert.True(t, ok)
	assert.Equal(t, "p1", id)

	// Same URL again: filtered, no render, session untouched.
	res, err = f.p.Run(context.Background(), "g1")
	require.NoError(t, err)
	assert.Zero(t, res.Fetched)
	assert.Len(t, f.sender.sent, 1)
	assert.Equal(t, 1, f.sess.Len())
	cur, _ = f.sess.Current()
	assert.Equal(t, "p1", cur.ID)
}

func TestRunNeverDeliversSeenURL(t *testing.T) {
	f := newFixture("c1")
	batches := [][]reddit.Post{
		{{ID: "a", URL: "ua"}},
		{{ID: "a", URL: "ua"}, {ID: "b", URL: "ub"}},
		{{ID: "b2", URL: "ub"}, {ID: "c", URL: "uc"}},
		{{ID: "a", URL: "ua"}},
	}
	for _, b := range batches {
		f.list.set(b...)
		_, err := f.p.Run(context.Background(), "g1")
		require.NoError(t, err)
	}
	var titles []string
	for _, s := range f.sender.sent {
		titles = append(titles, s.card.Title)
	}
	assert.Len(t, titles, 3)
	assert.Equal(t, 3, f.dedup.Len())
}

func TestRunFetchFailure(t *testing.T) {
	f := newFixture("c1")
	f.list.err = &reddit.FetchError{Op: "listing", Status: 500}
	events, unsub := f.bus.Subscribe(4)
	defer unsub()

	_, err := f.p.Run(context.Background(), "g1")
	var fe *reddit.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Zero(t, f.sess.Len())

	ev := <-events
	assert.Equal(t, eventbus.TypeCycleFailed, ev.Type)
}

func TestRunWithoutChannel(t *testing.T) {
	f := newFixture("")
	f.list.set(reddit.Post{ID: "p1", URL: "u1"})

	res, err := f.p.Run(context.Background(), "g1")
	require.ErrorIs(t, err, ErrNoChannel)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, f.sender.sent)
}

func TestRunDeliveryFailureIsReported(t *testing.T) {
	f := newFixture("c1")
	f.sender.err = errors.New("missing access")
	f.list.set(reddit.Post{ID: "p1", URL: "u1"})

	res, err := f.p.Run(context.Background(), "g1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing access")
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Delivered)
}

type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingFetcher) FetchLatest(ctx context.Context, _ string) ([]reddit.Post, error) {
	b.entered <- struct{}{}
	<-b.release
	return nil, nil
}

func TestRunIsSerialized(t *testing.T) {
	bf := &blockingFetcher{entered: make(chan struct{}, 2), release: make(chan struct{})}
	p := New(Deps{Fetcher: bf, Session: session.New()})

	done := make(chan struct{})
	go func() {
		_, _ = p.Run(context.Background(), "g1")
		close(done)
	}()
	<-bf.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Run(ctx, "g1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(bf.release)
	<-done
	assert.Len(t, bf.entered, 0)
}

package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redditcord/internal/cooldown"
	"redditcord/internal/guild"
	"redditcord/internal/pipeline"
	"redditcord/internal/reddit"
	"redditcord/internal/render"
	"redditcord/internal/session"
	"redditcord/internal/storage"
	"redditcord/internal/transport"
	logx "redditcord/pkg/logx"
)

type reply struct {
	to   transport.MessageRef
	text string
	card *transport.Card
}

type ephemeral struct {
	text string
	card *transport.Card
}

type update struct {
	card     transport.Card
	controls bool
}

type fakeAdapter struct {
	mu         sync.Mutex
	replies    []reply
	ephemerals []ephemeral
	updates    []update
	channels   map[string]string // ref -> channel id
	updateErr  error
}

func (f *fakeAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                           { return nil }

func (f *fakeAdapter) SendCard(context.Context, string, transport.Card, bool) (transport.MessageRef, error) {
	return transport.MessageRef{}, nil
}

func (f *fakeAdapter) Reply(_ context.Context, to transport.MessageRef, text string, card *transport.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply{to: to, text: text, card: card})
	return nil
}

func (f *fakeAdapter) UpdateCard(_ context.Context, _ *transport.Interaction, card transport.Card, withControls bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, update{card: card, controls: withControls})
	return nil
}

func (f *fakeAdapter) RespondEphemeral(_ context.Context, _ *transport.Interaction, text string, card *transport.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemerals = append(f.ephemerals, ephemeral{text: text, card: card})
	return nil
}

func (f *fakeAdapter) ResolveChannel(_ context.Context, _ string, ref string) (string, bool) {
	id, ok := f.channels[ref]
	return id, ok
}

func (f *fakeAdapter) DefaultGuild() string { return "g1" }

func (f *fakeAdapter) lastReply(t *testing.T) reply {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.replies)
	return f.replies[len(f.replies)-1]
}

type fakeRunner struct {
	err   error
	calls []string
}

func (f *fakeRunner) Run(_ context.Context, guildID string) (pipeline.Result, error) {
	f.calls = append(f.calls, guildID)
	return pipeline.Result{Delivered: 1}, f.err
}

type fakeComments struct {
	post     reddit.Post
	comments []reddit.Comment
	err      error
	limit    int
}

func (f *fakeComments) Submission(_ context.Context, _ string, limit, _ int) (reddit.Post, []reddit.Comment, error) {
	f.limit = limit
	return f.post, f.comments, f.err
}

func (f *fakeComments) TopComments(_ context.Context, _ string, limit int) ([]reddit.Comment, error) {
	f.limit = limit
	return f.comments, f.err
}

type titleRenderer struct{ panics bool }

func (r titleRenderer) PostCard(_ context.Context, p reddit.Post) transport.Card {
	if r.panics {
		panic("render exploded")
	}
	return transport.Card{Title: p.Title}
}

type memAudit struct {
	entries []storage.AuditEntry
}

func (m *memAudit) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type harness struct {
	r        *Router
	adapter  *fakeAdapter
	runner   *fakeRunner
	comments *fakeComments
	sess     *session.Session
	settings *guild.Settings
	audit    *memAudit
}

func newHarness(t *testing.T, renderer PostRenderer) *harness {
	t.Helper()
	if renderer == nil {
		renderer = titleRenderer{}
	}
	h := &harness{
		adapter:  &fakeAdapter{channels: map[string]string{"123": "123", "<#456>": "456"}},
		runner:   &fakeRunner{},
		comments: &fakeComments{},
		sess:     session.New(),
		settings: guild.NewSettings(guild.Target{Subreddit: "news", ChannelID: "c0"}),
		audit:    &memAudit{},
	}
	h.r = New(Deps{
		Adapter:  h.adapter,
		Pipeline: h.runner,
		Session:  h.sess,
		Settings: h.settings,
		Cooldown: cooldown.New(30 * time.Second),
		Renderer: renderer,
		Comments: h.comments,
		Audit:    h.audit,
		Log:      logx.Nop(),
	}, Options{Prefix: "!", CommentsLimit: 5})
	return h
}

func (h *harness) say(user string, admin bool, content string) {
	h.r.Handle(context.Background(), transport.Update{
		Kind: transport.UpdateMessage,
		Message: &transport.Message{
			ID: "m-" + user, GuildID: "g1", ChannelID: "c-here", AuthorID: user, IsAdmin: admin, Content: content,
		},
	})
}

func (h *harness) press(control string) {
	h.r.Handle(context.Background(), transport.Update{
		Kind:        transport.UpdateInteraction,
		Interaction: &transport.Interaction{ID: "i1", GuildID: "g1", ChannelID: "c0", UserID: "u1", CustomID: control},
	})
}

func TestIgnoredMessages(t *testing.T) {
	h := newHarness(t, nil)
	h.say("u1", false, "help")
	h.say("u1", false, "!unknown")
	h.say("u1", false, "!")
	h.r.Handle(context.Background(), transport.Update{
		Kind:    transport.UpdateMessage,
		Message: &transport.Message{GuildID: "g1", AuthorID: "bot", AuthorBot: true, Content: "!help"},
	})
	assert.Empty(t, h.adapter.replies)

	// none of the above consumed the cooldown
	h.say("u1", false, "!help")
	assert.Contains(t, h.adapter.lastReply(t).text, "**Bot Commands:**")
}

func TestHelpIsCaseInsensitive(t *testing.T) {
	h := newHarness(t, nil)
	h.say("u1", false, "!HeLp")
	r := h.adapter.lastReply(t)
	assert.Contains(t, r.text, "`!setsubreddit <subreddit>`")
	assert.Equal(t, "m-u1", r.to.MessageID)
}

func TestCooldownRejectsSecondCommand(t *testing.T) {
	h := newHarness(t, nil)
	h.say("u1", false, "!help")
	h.say("u1", false, "!fetch")
	assert.Equal(t, "Please wait 30 more second(s) before using that command again.", h.adapter.lastReply(t).text)
	assert.Empty(t, h.runner.calls, "rejected command must not run")

	// other users are not affected
	h.say("u2", false, "!fetch")
	assert.Equal(t, "New posts fetched and displayed.", h.adapter.lastReply(t).text)
}

func TestNonAdminCannotChangeSettings(t *testing.T) {
	h := newHarness(t, nil)
	h.say("u1", false, "!setsubreddit golang")
	assert.Equal(t, msgPermissionDenied, h.adapter.lastReply(t).text)
	h.say("u1", false, "!setchannel 123")
	assert.Equal(t, msgPermissionDenied, h.adapter.lastReply(t).text)

	assert.Equal(t, guild.Target{Subreddit: "news", ChannelID: "c0"}, h.settings.Resolve("g1"))
	assert.Empty(t, h.audit.entries)

	// permission rejections leave the cooldown untouched
	h.say("u1", false, "!help")
	assert.Contains(t, h.adapter.lastReply(t).text, "**Bot Commands:**")
}

func TestSetSubreddit(t *testing.T) {
	h := newHarness(t, nil)
	h.say("admin", true, "!setsubreddit r/golang")
	assert.Equal(t, "Subreddit set to r/golang.", h.adapter.lastReply(t).text)
	assert.Equal(t, "golang", h.settings.Subreddit("g1"))

	require.Len(t, h.audit.entries, 1)
	e := h.audit.entries[0]
	assert.Equal(t, "setsubreddit", e.Command)
	assert.Equal(t, "golang", e.Value)
	assert.Equal(t, "admin", e.UserID)
	assert.NotEmpty(t, e.RequestID)
}

func TestSetSubredditRequiresName(t *testing.T) {
	h := newHarness(t, nil)
	h.say("admin", true, "!setsubreddit")
	assert.Equal(t, msgInvalidSubreddit, h.adapter.lastReply(t).text)
	assert.Equal(t, "news", h.settings.Subreddit("g1"))
}

func TestSetChannel(t *testing.T) {
	h := newHarness(t, nil)
	h.say("admin", true, "!setchannel <#456>")
	assert.Equal(t, "Channel set to <#456>.", h.adapter.lastReply(t).text)
	assert.Equal(t, "456", h.settings.ChannelID("g1"))
}

func TestSetChannelUnresolvable(t *testing.T) {
	h := newHarness(t, nil)
	h.say("admin", true, "!setchannel 999")
	assert.Equal(t, msgInvalidChannel, h.adapter.lastReply(t).text)
	assert.Equal(t, "c0", h.settings.ChannelID("g1"))
	assert.Empty(t, h.audit.entries)
}

func TestFetchFailureIsReported(t *testing.T) {
	h := newHarness(t, nil)
	h.runner.err = &reddit.AuthError{Status: 401}
	h.say("u1", false, "!fetch")
	assert.Equal(t, msgFetchFailed, h.adapter.lastReply(t).text)
	assert.Equal(t, []string{"g1"}, h.runner.calls)
}

func TestCommentsCommand(t *testing.T) {
	h := newHarness(t, nil)
	h.say("u1", false, "!comments ../x")
	assert.Equal(t, msgInvalidPostID, h.adapter.lastReply(t).text)

	h.comments.post = reddit.Post{ID: "abc", Title: "Hi"}
	h.comments.comments = []reddit.Comment{{Author: "alice", Body: "yo"}}
	h.say("u2", false, "!comments abc")
	r := h.adapter.lastReply(t)
	require.NotNil(t, r.card)
	assert.Equal(t, `Top Comments for "Hi"`, r.card.Title)
	assert.Equal(t, "**1.** alice: yo", r.card.Description)
	assert.Equal(t, 5, h.comments.limit)

	h.comments.err = errors.New("timeout")
	h.say("u3", false, "!comments abc")
	assert.Equal(t, msgCommentsFailed, h.adapter.lastReply(t).text)
}

func TestNavigationWrapsAndReplacesCard(t *testing.T) {
	h := newHarness(t, nil)
	h.sess.Install([]reddit.Post{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"}})

	h.press(transport.ControlPrevious)
	h.press(transport.ControlNext)
	h.press(transport.ControlNext)

	require.Len(t, h.adapter.updates, 3)
	assert.Equal(t, "C", h.adapter.updates[0].card.Title)
	assert.Equal(t, "A", h.adapter.updates[1].card.Title)
	assert.Equal(t, "B", h.adapter.updates[2].card.Title)
	assert.True(t, h.adapter.updates[0].controls)
	assert.Empty(t, h.adapter.ephemerals)
}

func TestNavigationWithEmptySession(t *testing.T) {
	h := newHarness(t, nil)
	h.press(transport.ControlNext)
	require.Len(t, h.adapter.updates, 1)
	assert.Equal(t, render.EmptyCard(), h.adapter.updates[0].card)
}

func TestShowCommentsWithoutComments(t *testing.T) {
	h := newHarness(t, nil)
	h.sess.Install([]reddit.Post{{ID: "a", Title: "A"}})
	h.press(transport.ControlComments)

	require.Len(t, h.adapter.ephemerals, 1)
	card := h.adapter.ephemerals[0].card
	require.NotNil(t, card)
	assert.Equal(t, "No comments available.", card.Description)
	assert.Empty(t, h.adapter.updates, "the displayed card is left alone")
	assert.Equal(t, 0, h.sess.Cursor())
}

func TestShowCommentsFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.sess.Install([]reddit.Post{{ID: "a", Title: "A"}})
	h.comments.err = &reddit.FetchError{Op: "submission", Status: 500}
	h.press(transport.ControlComments)

	require.Len(t, h.adapter.ephemerals, 1)
	assert.Equal(t, msgCommentsFailed, h.adapter.ephemerals[0].text)
}

func TestInteractionPanicBecomesGenericError(t *testing.T) {
	h := newHarness(t, titleRenderer{panics: true})
	h.sess.Install([]reddit.Post{{ID: "a"}, {ID: "b"}})
	h.press(transport.ControlNext)

	assert.Empty(t, h.adapter.updates)
	require.Len(t, h.adapter.ephemerals, 1)
	assert.Equal(t, msgInteractionError, h.adapter.ephemerals[0].text)
}

func TestUpdateFailureFallsBackToEphemeral(t *testing.T) {
	h := newHarness(t, nil)
	h.adapter.updateErr = errors.New("unknown message")
	h.sess.Install([]reddit.Post{{ID: "a"}})
	h.press(transport.ControlPrevious)

	require.Len(t, h.adapter.ephemerals, 1)
	assert.Equal(t, msgInteractionError, h.adapter.ephemerals[0].text)
}

func TestDispatchLoopDrainsUpdates(t *testing.T) {
	h := newHarness(t, nil)
	updates := make(chan transport.Update, 3)
	for _, u := range []string{"u1", "u2", "u3"} {
		updates <- transport.Update{
			Kind:    transport.UpdateMessage,
			Message: &transport.Message{GuildID: "g1", AuthorID: u, Content: "!help"},
		}
	}
	close(updates)

	require.NoError(t, h.r.DispatchLoop(context.Background(), updates))
	h.adapter.mu.Lock()
	defer h.adapter.mu.Unlock()
	assert.Len(t, h.adapter.replies, 3)
}

func TestCooldownErrorSeconds(t *testing.T) {
	assert.Equal(t, 1, (&CooldownError{Remaining: 10 * time.Millisecond}).Seconds())
	assert.Equal(t, 30, (&CooldownError{Remaining: 29500 * time.Millisecond}).Seconds())
	assert.ErrorIs(t, &CooldownError{Remaining: time.Second}, ErrCooldownActive)
}

func TestParseCommand(t *testing.T) {
	cmd, args, ok := parseCommand("!", "!SetChannel   <#1>  extra")
	assert.True(t, ok)
	assert.Equal(t, "setchannel", cmd)
	assert.Equal(t, []string{"<#1>", "extra"}, args)

	_, _, ok = parseCommand("!", "  !help")
	assert.False(t, ok)
	_, _, ok = parseCommand("!", strings.Repeat(" ", 3))
	assert.False(t, ok)
}

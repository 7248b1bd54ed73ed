package router

import (
	"context"
	"fmt"
	"time"

	"redditcord/internal/eventbus"
	"redditcord/internal/reddit"
	"redditcord/internal/render"
	"redditcord/internal/storage"
	logx "redditcord/pkg/logx"
)

func (r *Router) commandTable() map[string]command {
	reqTimeout := func(o Options) time.Duration { return o.Timeout }
	cmds := []command{
		{name: "setsubreddit", admin: true, timeout: reqTimeout, handle: r.cmdSetSubreddit},
		{name: "setchannel", admin: true, timeout: reqTimeout, handle: r.cmdSetChannel},
		{name: "help", handle: r.cmdHelp},
		{name: "fetch", timeout: func(o Options) time.Duration { return o.FetchTimeout }, handle: r.cmdFetch},
		{name: "comments", timeout: reqTimeout, handle: r.cmdComments},
	}
	out := make(map[string]command, len(cmds))
	for _, c := range cmds {
		out[c.name] = c
	}
	return out
}

func (r *Router) cmdSetSubreddit(ctx context.Context, req *Request) (*Response, error) {
	name, ok := reddit.NormalizeSubreddit(req.Arg(0))
	if !ok {
		return nil, ErrInvalidSubreddit
	}
	guildID := req.GuildID()
	prev, _ := r.d.Settings.Explicit(guildID)
	r.d.Settings.SetSubreddit(guildID, name)
	r.configChanged(ctx, req, "subreddit", name, prev.Subreddit)
	return &Response{Text: fmt.Sprintf("Subreddit set to r/%s.", name)}, nil
}

func (r *Router) cmdSetChannel(ctx context.Context, req *Request) (*Response, error) {
	ref := req.Arg(0)
	if ref == "" {
		return nil, ErrInvalidChannel
	}
	guildID := req.GuildID()
	channelID, ok := r.d.Adapter.ResolveChannel(ctx, guildID, ref)
	if !ok || channelID == "" {
		return nil, ErrInvalidChannel
	}
	prev, _ := r.d.Settings.Explicit(guildID)
	r.d.Settings.SetChannel(guildID, channelID)
	r.configChanged(ctx, req, "channel", channelID, prev.ChannelID)
	return &Response{Text: fmt.Sprintf("Channel set to <#%s>.", channelID)}, nil
}

// configChanged audits and announces an accepted settings change. Audit
// failures are logged; the change itself stands.
func (r *Router) configChanged(ctx context.Context, req *Request, field, value, previous string) {
	guildID := req.GuildID()
	r.d.Bus.Publish(eventbus.Event{
		Type: eventbus.TypeConfigChanged,
		Data: map[string]string{"guild_id": guildID, "field": field, "value": value, "user_id": req.UserID()},
	})
	if r.d.Audit == nil {
		return
	}
	err := r.d.Audit.AppendAudit(ctx, storage.AuditEntry{
		At:        time.Now(),
		RequestID: req.ReqID,
		GuildID:   guildID,
		ChannelID: req.Message.ChannelID,
		UserID:    req.UserID(),
		Command:   req.Command,
		Value:     value,
		Previous:  previous,
	})
	if err != nil {
		req.Logger.Warn("audit append failed", logx.Err(err))
	}
}

func (r *Router) cmdHelp(_ context.Context, _ *Request) (*Response, error) {
	return &Response{Text: helpText(r.options().Prefix)}, nil
}

func (r *Router) cmdFetch(ctx context.Context, req *Request) (*Response, error) {
	res, err := r.d.Pipeline.Run(ctx, req.GuildID())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFetchFailed, err)
	}
	req.Logger.Debug("manual fetch done", logx.Int("delivered", res.Delivered))
	return &Response{Text: "New posts fetched and displayed."}, nil
}

func (r *Router) cmdComments(ctx context.Context, req *Request) (*Response, error) {
	id, ok := reddit.NormalizePostID(req.Arg(0))
	if !ok {
		return nil, ErrInvalidPostID
	}
	post, comments, err := r.d.Comments.Submission(ctx, id, r.options().CommentsLimit, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errCommentsFailed, err)
	}
	if post.ID == "" {
		post.ID = id
	}
	card := render.CommentsCard(post, comments)
	return &Response{Card: &card}, nil
}

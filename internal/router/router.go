// Package router turns inbound chat updates into handler calls. Text
// commands go through admin and cooldown gates; button presses drive the
// post session.
package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"redditcord/internal/cooldown"
	"redditcord/internal/eventbus"
	"redditcord/internal/guild"
	"redditcord/internal/pipeline"
	"redditcord/internal/reddit"
	"redditcord/internal/session"
	"redditcord/internal/storage"
	"redditcord/internal/transport"
	logx "redditcord/pkg/logx"
)

// Runner runs one fetch-and-deliver cycle. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, guildID string) (pipeline.Result, error)
}

// PostRenderer builds the card of a post. *render.Renderer implements it.
type PostRenderer interface {
	PostCard(ctx context.Context, p reddit.Post) transport.Card
}

// CommentSource looks comments up by post id. *reddit.Client implements it.
type CommentSource interface {
	Submission(ctx context.Context, postID string, limit, depth int) (reddit.Post, []reddit.Comment, error)
	TopComments(ctx context.Context, postID string, limit int) ([]reddit.Comment, error)
}

// Auditor records accepted configuration changes. storage.Store implements it.
type Auditor interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

type Deps struct {
	Adapter  transport.Adapter
	Pipeline Runner
	Session  *session.Session
	Settings *guild.Settings
	Cooldown *cooldown.Registry
	Renderer PostRenderer
	Comments CommentSource
	Audit    Auditor // optional
	Bus      eventbus.Bus
	Log      logx.Logger
}

type Options struct {
	Prefix        string
	Workers       int
	QueueSize     int
	Timeout       time.Duration // per request; 0 disables
	FetchTimeout  time.Duration // manual fetch; 0 disables
	CommentsLimit int
}

type command struct {
	name    string
	admin   bool
	timeout func(Options) time.Duration
	handle  HandlerFunc
}

type Router struct {
	d Deps

	mu   sync.RWMutex
	opts Options

	commands     map[string]command
	interactions map[string]HandlerFunc

	jobs      chan func()
	closeOnce sync.Once
}

func New(d Deps, opts Options) *Router {
	if d.Bus == nil {
		d.Bus = eventbus.Nop()
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	opts = normalizeOptions(opts)
	r := &Router{d: d, opts: opts, jobs: make(chan func(), opts.QueueSize)}
	r.commands = r.commandTable()
	r.interactions = r.interactionTable()
	return r
}

func normalizeOptions(o Options) Options {
	if o.Prefix == "" {
		o.Prefix = "!"
	}
	if o.Workers <= 0 {
		o.Workers = max(2, runtime.NumCPU())
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.CommentsLimit <= 0 {
		o.CommentsLimit = 5
	}
	return o
}

// SetOptions applies reloaded options. Workers and QueueSize only take
// effect on the next start.
func (r *Router) SetOptions(o Options) {
	o = normalizeOptions(o)
	r.mu.Lock()
	r.opts = o
	r.mu.Unlock()
}

func (r *Router) options() Options {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opts
}

// DispatchLoop consumes updates until ctx is done or updates is closed.
// Handlers run on a bounded worker pool; when the queue is full the invoker
// gets a busy reply. It must be called at most once.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	workers := r.options().Workers
	log := r.d.Log
	log.Info("dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(r.jobs)))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic in worker", logx.Int("worker", idx), logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
				}
			}()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-r.jobs:
					if !ok {
						return
					}
					if job != nil {
						job()
					}
				}
			}
		}()
	}
	defer func() {
		r.closeOnce.Do(func() { close(r.jobs) })
		wg.Wait()
		log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				log.Info("updates channel closed")
				return nil
			}
			job, reject := r.route(ctx, up)
			if job == nil {
				continue
			}
			select {
			case r.jobs <- job:
			default:
				reject()
			}
		}
	}
}

// Handle routes and runs one update on the calling goroutine.
func (r *Router) Handle(ctx context.Context, up transport.Update) {
	if job, _ := r.route(ctx, up); job != nil {
		job()
	}
}

// route returns the job for up and a fallback to run when it cannot be
// queued. A nil job means the update is ignored.
func (r *Router) route(ctx context.Context, up transport.Update) (job func(), reject func()) {
	switch up.Kind {
	case transport.UpdateMessage:
		return r.routeMessage(ctx, up.Message)
	case transport.UpdateInteraction:
		return r.routeInteraction(ctx, up.Interaction)
	}
	return nil, nil
}

func (r *Router) routeMessage(ctx context.Context, msg *transport.Message) (func(), func()) {
	if msg == nil || msg.AuthorBot {
		return nil, nil
	}
	opts := r.options()
	word, args, ok := parseCommand(opts.Prefix, msg.Content)
	if !ok {
		return nil, nil
	}
	cmd, ok := r.commands[word]
	if !ok {
		r.d.Log.Debug("unknown command ignored", logx.String("cmd", word), logx.String("user_id", msg.AuthorID))
		return nil, nil
	}

	rid := uuid.NewString()
	req := &Request{
		Kind:    transport.UpdateMessage,
		Message: msg,
		Command: cmd.name,
		Args:    args,
		ReqID:   rid,
		Logger: r.d.Log.With(
			logx.String("rid", rid),
			logx.String("guild_id", msg.GuildID),
			logx.String("channel_id", msg.ChannelID),
			logx.String("user_id", msg.AuthorID),
			logx.String("cmd", cmd.name),
		),
	}

	mws := []Middleware{MWPanicRecover(), MWRequestLog()}
	if cmd.admin {
		mws = append(mws, MWAdminOnly())
	}
	mws = append(mws, MWCooldown(r.d.Cooldown))
	var timeout time.Duration
	if cmd.timeout != nil {
		timeout = cmd.timeout(opts)
	}
	mws = append(mws, MWTimeout(timeout))
	final := Chain(cmd.handle, mws...)

	job := func() {
		resp, err := final(ctx, req)
		r.replyMessage(ctx, req, resp, err)
	}
	reject := func() {
		req.Logger.Warn("job queue full")
		r.replyMessage(ctx, req, nil, errBusy)
	}
	return job, reject
}

func (r *Router) replyMessage(ctx context.Context, req *Request, resp *Response, err error) {
	text := ""
	var card *transport.Card
	switch {
	case err != nil:
		text = commandReply(err)
	case resp != nil:
		text, card = resp.Text, resp.Card
	}
	if text == "" && card == nil {
		return
	}
	if err := r.d.Adapter.Reply(ctx, req.Message.Ref(), text, card); err != nil {
		req.Logger.Warn("reply failed", logx.Err(err))
	}
}

func (r *Router) routeInteraction(ctx context.Context, it *transport.Interaction) (func(), func()) {
	if it == nil {
		return nil, nil
	}
	h, ok := r.interactions[it.CustomID]
	if !ok {
		r.d.Log.Debug("unknown interaction ignored", logx.String("custom_id", it.CustomID))
		return nil, nil
	}

	rid := uuid.NewString()
	req := &Request{
		Kind:        transport.UpdateInteraction,
		Interaction: it,
		Command:     it.CustomID,
		ReqID:       rid,
		Logger: r.d.Log.With(
			logx.String("rid", rid),
			logx.String("guild_id", it.GuildID),
			logx.String("channel_id", it.ChannelID),
			logx.String("user_id", it.UserID),
			logx.String("cmd", "button:"+it.CustomID),
		),
	}
	final := Chain(h, MWPanicRecover(), MWRequestLog(), MWTimeout(r.options().Timeout))

	job := func() {
		resp, err := final(ctx, req)
		r.replyInteraction(ctx, req, resp, err)
	}
	reject := func() {
		req.Logger.Warn("job queue full")
		r.replyInteraction(ctx, req, nil, errBusy)
	}
	return job, reject
}

func (r *Router) replyInteraction(ctx context.Context, req *Request, resp *Response, err error) {
	it := req.Interaction
	if err == nil && resp != nil && resp.Replace && resp.Card != nil {
		err = r.d.Adapter.UpdateCard(ctx, it, *resp.Card, resp.Controls)
		if err == nil {
			return
		}
		req.Logger.Error("card update failed", logx.Err(err))
	}
	if err != nil {
		if rerr := r.d.Adapter.RespondEphemeral(ctx, it, interactionReply(err), nil); rerr != nil {
			req.Logger.Warn("ephemeral reply failed", logx.Err(rerr))
		}
		return
	}
	if resp == nil {
		return
	}
	if err := r.d.Adapter.RespondEphemeral(ctx, it, resp.Text, resp.Card); err != nil {
		req.Logger.Warn("ephemeral reply failed", logx.Err(err))
	}
}

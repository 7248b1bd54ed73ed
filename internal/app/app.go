// Package app wires the bot together and owns its start/stop lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"redditcord/internal/config"
	"redditcord/internal/cooldown"
	"redditcord/internal/eventbus"
	"redditcord/internal/feed"
	"redditcord/internal/guild"
	"redditcord/internal/pipeline"
	"redditcord/internal/reddit"
	"redditcord/internal/render"
	"redditcord/internal/router"
	"redditcord/internal/runtime/supervisor"
	"redditcord/internal/session"
	"redditcord/internal/storage"
	"redditcord/internal/task/scheduler"
	"redditcord/internal/transport"
	"redditcord/internal/transport/discord"
	logx "redditcord/pkg/logx"
)

// FeedJob is the scheduler job name of the periodic fetch.
const FeedJob = "feed.fetch"

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter *discord.Adapter
	tokens  *reddit.TokenGate
	client  *reddit.Client

	settings *guild.Settings
	fetcher  *feed.Fetcher
	session  *session.Session
	cooldown *cooldown.Registry
	pipe     *pipeline.Pipeline
	router   *router.Router
	sched    *scheduler.Service

	updates chan transport.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateRuntime(context.Background(), cfg); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "discord"))
	ad, err := discord.New(discord.Config{Token: cfg.Discord.Token}, bootLog)
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(mapLoggingConfig(cfg), ad)
	logs.SetChannelTarget(strings.TrimSpace(cfg.Discord.LogChannelID))

	bus := eventbus.New()

	stCfg, stEnabled, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	var store storage.Store
	if stEnabled {
		store, err = storage.Open(stCfg, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}

	httpTimeout, err := redditTimeout(cfg)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: httpTimeout}
	tokens, err := reddit.NewTokenGate(mapCredentials(cfg), httpClient, log.With(logx.String("comp", "reddit.auth")))
	if err != nil {
		return nil, err
	}
	tokens.Seed(cfg.Reddit.AccessToken)
	client := reddit.NewClient(mapClientConfig(cfg), tokens, httpClient, log.With(logx.String("comp", "reddit")))

	settings := guild.NewSettings(mapDefaults(cfg))
	fetcher := feed.NewFetcher(tokens, client, settings, feed.NewDedup(), bus, log.With(logx.String("comp", "feed")))
	fetcher.SetLimit(cfg.Feed.FetchLimit)

	sess := session.New()
	renderer := render.New(client, cfg.Feed.TopCommentLimit, log.With(logx.String("comp", "render")))
	pipe := pipeline.New(pipeline.Deps{
		Fetcher:  fetcher,
		Session:  sess,
		Channels: settings,
		Renderer: renderer,
		Sender:   ad,
		Bus:      bus,
		Log:      log.With(logx.String("comp", "pipeline")),
	})

	window, err := cooldownWindow(cfg)
	if err != nil {
		return nil, err
	}
	cd := cooldown.New(window)

	opts, err := mapRouterOptions(cfg)
	if err != nil {
		return nil, err
	}
	deps := router.Deps{
		Adapter:  ad,
		Pipeline: pipe,
		Session:  sess,
		Settings: settings,
		Cooldown: cd,
		Renderer: renderer,
		Comments: client,
		Bus:      bus,
		Log:      log.With(logx.String("comp", "router")),
	}
	if store != nil {
		deps.Audit = store
	}
	rt := router.New(deps, opts)

	sched := scheduler.New(log.With(logx.String("comp", "scheduler")), time.Local)

	return &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logs,
		bus:      bus,
		store:    store,
		adapter:  ad,
		tokens:   tokens,
		client:   client,
		settings: settings,
		fetcher:  fetcher,
		session:  sess,
		cooldown: cd,
		pipe:     pipe,
		router:   rt,
		sched:    sched,
		updates:  make(chan transport.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validateRuntime)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return fmt.Errorf("start discord: %w", err)
	}

	cfg := a.cfgm.Get()
	timeout, err := runTimeout(cfg)
	if err != nil {
		return err
	}
	if err := a.sched.Add(FeedJob, cfg.Feed.Schedule, timeout, a.scheduledFetch); err != nil {
		return err
	}
	a.sched.Start(a.sup.Context())

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				fields := []logx.Field{logx.String("type", e.Type), logx.Time("time", e.Time)}
				for k, v := range e.Data {
					fields = append(fields, logx.String(k, v))
				}
				a.log.Debug("event", fields...)
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				if restart := restartOnlyChanges(lastApplied, newCfg); len(restart) > 0 {
					a.log.Warn("config changes require a restart to take effect", logx.String("changed", strings.Join(restart, ",")))
				}
				a.applyConfig(newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.GoRestart("config.watch", a.cfgm.Watch, supervisor.WithRestartBackoff(time.Second, time.Minute))

	notifySystemd(a.log, sdReady)
	a.log.Info("started", append(a.feedJobFields(),
		logx.String("default_subreddit", a.settings.Defaults().Subreddit),
	)...)
	return nil
}

// feedJobFields describes the feed job for logs: schedule, next tick and
// run counters.
func (a *App) feedJobFields() []logx.Field {
	for _, j := range a.sched.Snapshot() {
		if j.Name != FeedJob {
			continue
		}
		fields := []logx.Field{
			logx.String("schedule", j.Spec),
			logx.Uint64("runs", j.Runs),
			logx.Uint64("fails", j.Fails),
			logx.Uint64("skips", j.Skips),
		}
		if !j.Next.IsZero() {
			fields = append(fields, logx.Time("next", j.Next))
		}
		if j.LastErr != "" {
			fields = append(fields, logx.String("last_err", j.LastErr))
		}
		return fields
	}
	return nil
}

// applyConfig pushes a validated config to the live components.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.SetChannelTarget(strings.TrimSpace(cfg.Discord.LogChannelID))
	a.logs.Apply(mapLoggingConfig(cfg))

	if err := a.sched.Reschedule(FeedJob, cfg.Feed.Schedule); err != nil {
		a.log.Warn("feed schedule not applied; keeping previous", logx.Err(err))
	}
	a.settings.SetDefaults(mapDefaults(cfg))
	a.fetcher.SetLimit(cfg.Feed.FetchLimit)

	if window, err := cooldownWindow(cfg); err == nil {
		a.cooldown.SetWindow(window)
	}
	if opts, err := mapRouterOptions(cfg); err == nil {
		a.router.SetOptions(opts)
	}
	a.log.Debug("config applied", a.feedJobFields()...)
}

// scheduledFetch runs one cycle for the pinned guild, or the first guild the
// session knows. Failures are returned to the scheduler, which logs them.
func (a *App) scheduledFetch(ctx context.Context) error {
	guildID := strings.TrimSpace(a.cfgm.Get().Discord.GuildID)
	if guildID == "" {
		guildID = a.adapter.DefaultGuild()
	}
	if guildID == "" {
		a.log.Warn("scheduled fetch skipped: no guild available")
		return nil
	}
	res, err := a.pipe.Run(ctx, guildID)
	if err != nil {
		return err
	}
	a.log.Info("scheduled fetch done",
		logx.String("guild", guildID),
		logx.Int("fetched", res.Fetched),
		logx.Int("delivered", res.Delivered),
		logx.Duration("took", res.Took),
	)
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	notifySystemd(a.log, sdStopping)

	// Cancel first so background loops start unwinding immediately.
	a.sup.Cancel()

	// Each step is bounded so one component cannot stall the whole stop.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", limit))

		stepCtx := ctx
		if limit > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				limit = min(limit, max(time.Until(dl), 0))
			}
			if limit > 0 {
				var cancel context.CancelFunc
				stepCtx, cancel = context.WithTimeout(ctx, limit)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	step("scheduler", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Stop(c) })

	counters := a.sup.Counters()
	a.log.Info("stopped", append(a.feedJobFields(),
		logx.Int64("goroutines_active", counters.Active),
		logx.Uint64("goroutine_restarts", counters.Restarts),
	)...)
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

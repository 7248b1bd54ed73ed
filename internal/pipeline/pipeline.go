// Package pipeline runs one fetch cycle: fetch new posts, install them in the
// session, render and deliver them with navigation controls.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"redditcord/internal/eventbus"
	"redditcord/internal/reddit"
	"redditcord/internal/session"
	"redditcord/internal/transport"
	logx "redditcord/pkg/logx"
)

var ErrNoChannel = errors.New("pipeline: no delivery channel configured")

type Fetcher interface {
	FetchLatest(ctx context.Context, guildID string) ([]reddit.Post, error)
}

type Renderer interface {
	PostCard(ctx context.Context, p reddit.Post) transport.Card
}

type Sender interface {
	SendCard(ctx context.Context, channelID string, card transport.Card, withControls bool) (transport.MessageRef, error)
}

type ChannelResolver interface {
	ChannelID(guildID string) string
}

type Deps struct {
	Fetcher  Fetcher
	Session  *session.Session
	Channels ChannelResolver
	Renderer Renderer
	Sender   Sender
	Bus      eventbus.Bus
	Log      logx.Logger
}

// Result summarizes one cycle.
type Result struct {
	Fetched   int
	Delivered int
	Failed    int
	Took      time.Duration
}

// Pipeline serializes cycles: a run waits for the previous one to finish and
// then installs its own batch.
type Pipeline struct {
	d    Deps
	slot chan struct{}
}

func New(d Deps) *Pipeline {
	if d.Bus == nil {
		d.Bus = eventbus.Nop()
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	return &Pipeline{d: d, slot: make(chan struct{}, 1)}
}

// Run performs one cycle for guildID. Fetch errors abort the cycle. Delivery
// errors are collected per post and joined.
func (p *Pipeline) Run(ctx context.Context, guildID string) (Result, error) {
	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-p.slot }()

	start := time.Now()
	log := p.d.Log.With(logx.String("guild_id", guildID))

	posts, err := p.d.Fetcher.FetchLatest(ctx, guildID)
	if err != nil {
		p.failed(guildID, err)
		return Result{Took: time.Since(start)}, err
	}
	res := Result{Fetched: len(posts)}
	if len(posts) == 0 {
		res.Took = time.Since(start)
		log.Debug("no new posts")
		return res, nil
	}

	p.d.Session.Install(posts)

	channelID := p.d.Channels.ChannelID(guildID)
	if channelID == "" {
		res.Failed = len(posts)
		res.Took = time.Since(start)
		p.failed(guildID, ErrNoChannel)
		return res, ErrNoChannel
	}

	var errs []error
	for _, post := range posts {
		card := p.d.Renderer.PostCard(ctx, post)
		ref, err := p.d.Sender.SendCard(ctx, channelID, card, true)
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("deliver %s: %w", post.ID, err))
			log.Error("post delivery failed", logx.String("post_id", post.ID), logx.String("channel_id", channelID), logx.Err(err))
			continue
		}
		res.Delivered++
		p.d.Session.RecordDelivery(ref.MessageID, post.ID)
		p.d.Bus.Publish(eventbus.Event{
			Type: eventbus.TypePostDelivered,
			Data: map[string]string{
				"guild_id":   guildID,
				"channel_id": channelID,
				"message_id": ref.MessageID,
				"post_id":    post.ID,
				"url":        post.URL,
			},
		})
	}
	res.Took = time.Since(start)

	err = errors.Join(errs...)
	if err != nil {
		p.failed(guildID, err)
	}
	log.Info("fetch cycle done",
		logx.Int("fetched", res.Fetched),
		logx.Int("delivered", res.Delivered),
		logx.Int("failed", res.Failed),
		logx.Duration("took", res.Took),
	)
	return res, err
}

func (p *Pipeline) failed(guildID string, err error) {
	p.d.Bus.Publish(eventbus.Event{
		Type: eventbus.TypeCycleFailed,
		Data: map[string]string{"guild_id": guildID, "error": err.Error()},
	})
}

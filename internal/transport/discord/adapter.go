// Package discord implements transport.Adapter on a discordgo gateway session.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"redditcord/internal/transport"
	logx "redditcord/pkg/logx"
)

type Config struct {
	Token string
}

type Adapter struct {
	cfg Config
	log logx.Logger
	s   *discordgo.Session

	runMu     sync.Mutex
	running   bool
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
	removers  []func()

	// droppedUpdates counts updates dropped because the consumer was slower
	// than the gateway. Logged periodically.
	droppedUpdates atomic.Uint64
}

var _ transport.Adapter = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s, err := discordgo.New("Bot " + strings.TrimPrefix(token, "Bot "))
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent
	return &Adapter{cfg: cfg, log: log, s: s}, nil
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}

	forward := func(up transport.Update) {
		select {
		case out <- up:
		default:
			a.droppedUpdates.Add(1)
		}
	}

	a.removers = append(a.removers,
		a.s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			a.log.Info("gateway ready", logx.String("user", r.User.Username), logx.Int("guilds", len(r.Guilds)))
		}),
		a.s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
			if m.Author == nil || m.GuildID == "" {
				return
			}
			msg := toMessage(m)
			if !msg.AuthorBot {
				msg.IsAdmin = a.memberIsAdmin(msg.AuthorID, msg.ChannelID)
			}
			forward(transport.Update{Kind: transport.UpdateMessage, Message: msg})
		}),
		a.s.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
			if it, ok := toInteraction(i); ok {
				forward(transport.Update{Kind: transport.UpdateInteraction, Interaction: it})
			}
		}),
	)

	if err := a.s.Open(); err != nil {
		for _, rm := range a.removers {
			rm()
		}
		a.removers = nil
		return fmt.Errorf("discord open: %w", err)
	}

	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.running = true
	a.runWG.Add(1)
	go func() {
		defer a.runWG.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-rctx.Done():
				a.flushDropped(cap(out))
				return
			case <-ticker.C:
				a.flushDropped(cap(out))
			}
		}
	}()
	return nil
}

func (a *Adapter) flushDropped(chanCap int) {
	if n := a.droppedUpdates.Swap(0); n > 0 {
		a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", chanCap))
	}
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	if !a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = false
	cancel := a.runCancel
	removers := a.removers
	a.removers = nil
	a.runMu.Unlock()

	for _, rm := range removers {
		rm()
	}
	cancel()

	done := make(chan struct{})
	go func() {
		a.runWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return a.s.Close()
}

// memberIsAdmin resolves the member's effective permissions in the channel,
// from the state cache first and the REST API second.
func (a *Adapter) memberIsAdmin(userID, channelID string) bool {
	perms, err := a.s.State.UserChannelPermissions(userID, channelID)
	if err != nil {
		perms, err = a.s.UserChannelPermissions(userID, channelID)
	}
	if err != nil {
		a.log.Debug("permission lookup failed", logx.String("user_id", userID), logx.String("channel_id", channelID), logx.Err(err))
		return false
	}
	return isAdmin(perms)
}

func (a *Adapter) SendCard(ctx context.Context, channelID string, card transport.Card, withControls bool) (transport.MessageRef, error) {
	m, err := a.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{toEmbed(card)},
		Components: components(withControls),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return transport.MessageRef{}, err
	}
	return transport.MessageRef{GuildID: m.GuildID, ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

func (a *Adapter) Reply(ctx context.Context, to transport.MessageRef, text string, card *transport.Card) error {
	_, err := a.s.ChannelMessageSendComplex(to.ChannelID, &discordgo.MessageSend{
		Content: text,
		Embeds:  toEmbeds(card),
		Reference: &discordgo.MessageReference{
			MessageID: to.MessageID,
			ChannelID: to.ChannelID,
			GuildID:   to.GuildID,
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{RepliedUser: true},
	}, discordgo.WithContext(ctx))
	return err
}

func rawInteraction(it *transport.Interaction) (*discordgo.Interaction, error) {
	if it == nil {
		return nil, errors.New("nil interaction")
	}
	raw, ok := it.Raw.(*discordgo.Interaction)
	if !ok || raw == nil {
		return nil, fmt.Errorf("interaction %s has no discord payload", it.ID)
	}
	return raw, nil
}

func (a *Adapter) UpdateCard(ctx context.Context, it *transport.Interaction, card transport.Card, withControls bool) error {
	raw, err := rawInteraction(it)
	if err != nil {
		return err
	}
	embeds := []*discordgo.MessageEmbed{toEmbed(card)}
	comps := components(withControls)
	return a.s.InteractionRespond(raw, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{Embeds: embeds, Components: comps},
	}, discordgo.WithContext(ctx))
}

func (a *Adapter) RespondEphemeral(ctx context.Context, it *transport.Interaction, text string, card *transport.Card) error {
	raw, err := rawInteraction(it)
	if err != nil {
		return err
	}
	return a.s.InteractionRespond(raw, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Embeds:  toEmbeds(card),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
}

// ResolveChannel accepts "<#id>" or a bare id and checks the channel is a
// text channel of guildID.
func (a *Adapter) ResolveChannel(ctx context.Context, guildID, ref string) (string, bool) {
	id, ok := parseChannelRef(ref)
	if !ok {
		return "", false
	}
	ch, err := a.s.State.Channel(id)
	if err != nil {
		ch, err = a.s.Channel(id, discordgo.WithContext(ctx))
	}
	if err != nil || ch == nil {
		return "", false
	}
	if ch.GuildID != guildID || !isTextChannel(ch) {
		return "", false
	}
	return ch.ID, true
}

func (a *Adapter) DefaultGuild() string {
	a.s.State.RLock()
	defer a.s.State.RUnlock()
	if len(a.s.State.Guilds) == 0 {
		return ""
	}
	return a.s.State.Guilds[0].ID
}

// SendLog posts plain text to a log channel (logx.Sender).
func (a *Adapter) SendLog(ctx context.Context, channelID, text string) error {
	_, err := a.s.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return err
}

package transport

import "context"

type UpdateKind string

const (
	UpdateMessage     UpdateKind = "message"
	UpdateInteraction UpdateKind = "interaction"
)

type Update struct {
	Kind        UpdateKind
	Message     *Message
	Interaction *Interaction
}

// Message is an inbound guild text message.
type Message struct {
	ID        string
	GuildID   string
	ChannelID string
	AuthorID  string
	AuthorBot bool
	// IsAdmin is computed by the adapter from the member's effective
	// permissions in the channel.
	IsAdmin bool
	Content string
}

// Ref returns the reference used to reply to m.
func (m *Message) Ref() MessageRef {
	return MessageRef{GuildID: m.GuildID, ChannelID: m.ChannelID, MessageID: m.ID}
}

// Interaction is a button press on a delivered card.
type Interaction struct {
	ID        string
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	CustomID  string
	// Raw carries the adapter-specific interaction (Discord: *discordgo.Interaction).
	Raw any
}

type MessageRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

// Adapter is the chat platform boundary.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	// SendCard posts a card to a channel. withControls attaches the navigation row.
	SendCard(ctx context.Context, channelID string, card Card, withControls bool) (MessageRef, error)
	// Reply answers a message with text and/or a card.
	Reply(ctx context.Context, to MessageRef, text string, card *Card) error
	// UpdateCard replaces the card the interaction was triggered from.
	UpdateCard(ctx context.Context, it *Interaction, card Card, withControls bool) error
	// RespondEphemeral answers an interaction visibly only to the invoking user.
	RespondEphemeral(ctx context.Context, it *Interaction, text string, card *Card) error

	// ResolveChannel resolves a channel id or mention to a channel of guildID.
	ResolveChannel(ctx context.Context, guildID, ref string) (channelID string, ok bool)
	// DefaultGuild returns the first guild the session knows ("" if none).
	DefaultGuild() string
}

package discord

import (
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"

	"redditcord/internal/transport"
)

func toEmbed(c transport.Card) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       c.Title,
		Description: c.Description,
		URL:         c.URL,
		Color:       c.Color,
	}
	if c.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: c.Footer}
	}
	if c.ImageURL != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: c.ImageURL}
	}
	e.Fields = lo.Map(c.Fields, func(f transport.CardField, _ int) *discordgo.MessageEmbedField {
		value := f.Value
		if strings.TrimSpace(value) == "" {
			// empty field values are rejected by the API
			value = "\u200b"
		}
		return &discordgo.MessageEmbedField{Name: f.Name, Value: value, Inline: f.Inline}
	})
	return e
}

func toEmbeds(c *transport.Card) []*discordgo.MessageEmbed {
	if c == nil {
		return nil
	}
	return []*discordgo.MessageEmbed{toEmbed(*c)}
}

// controlsRow is the Previous / Next / Comments button row.
func controlsRow() []discordgo.MessageComponent {
	buttons := lo.Map(transport.Controls(), func(c transport.Control, _ int) discordgo.MessageComponent {
		return discordgo.Button{Label: c.Label, Style: discordgo.PrimaryButton, CustomID: c.ID}
	})
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func components(withControls bool) []discordgo.MessageComponent {
	if withControls {
		return controlsRow()
	}
	return []discordgo.MessageComponent{}
}

var reChannelMention = regexp.MustCompile(`^<#(\d{15,21})>$`)
var reSnowflake = regexp.MustCompile(`^\d{15,21}$`)

// parseChannelRef extracts a channel id from "<#id>" or a bare id.
func parseChannelRef(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if m := reChannelMention.FindStringSubmatch(ref); m != nil {
		return m[1], true
	}
	if reSnowflake.MatchString(ref) {
		return ref, true
	}
	return "", false
}

func isAdmin(perms int64) bool {
	return perms&discordgo.PermissionAdministrator == discordgo.PermissionAdministrator
}

func isTextChannel(ch *discordgo.Channel) bool {
	switch ch.Type {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return true
	}
	return false
}

func toMessage(m *discordgo.MessageCreate) *transport.Message {
	msg := &transport.Message{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorBot = m.Author.Bot
	}
	return msg
}

func toInteraction(i *discordgo.InteractionCreate) (*transport.Interaction, bool) {
	if i.Interaction == nil || i.Type != discordgo.InteractionMessageComponent {
		return nil, false
	}
	it := &transport.Interaction{
		ID:        i.ID,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		CustomID:  i.MessageComponentData().CustomID,
		Raw:       i.Interaction,
	}
	if i.Message != nil {
		it.MessageID = i.Message.ID
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		it.UserID = i.Member.User.ID
	case i.User != nil:
		it.UserID = i.User.ID
	}
	return it, true
}

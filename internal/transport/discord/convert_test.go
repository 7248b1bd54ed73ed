package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redditcord/internal/transport"
)

func TestToEmbed(t *testing.T) {
	e := toEmbed(transport.Card{
		Title:       "Hello",
		Description: "body",
		URL:         "https://reddit.com/r/golang/comments/p1/",
		Color:       0xFF4500,
		Footer:      "Posted in r/golang",
		ImageURL:    "https://i.redd.it/a.png",
		Fields: []transport.CardField{
			{Name: "Top Comment", Value: "nice"},
			{Name: "Upvotes", Value: "3", Inline: true},
			{Name: "Empty", Value: " "},
		},
	})
	assert.Equal(t, "Hello", e.Title)
	assert.Equal(t, 0xFF4500, e.Color)
	require.NotNil(t, e.Footer)
	assert.Equal(t, "Posted in r/golang", e.Footer.Text)
	require.NotNil(t, e.Image)
	assert.Equal(t, "https://i.redd.it/a.png", e.Image.URL)
	require.Len(t, e.Fields, 3)
	assert.True(t, e.Fields[1].Inline)
	assert.Equal(t, "\u200b", e.Fields[2].Value)
}

func TestToEmbedOmitsEmptyParts(t *testing.T) {
	e := toEmbed(transport.Card{Title: "x"})
	assert.Nil(t, e.Footer)
	assert.Nil(t, e.Image)
	assert.Empty(t, e.Fields)
	assert.Nil(t, toEmbeds(nil))
}

func TestControlsRow(t *testing.T) {
	rows := controlsRow()
	require.Len(t, rows, 1)
	row, ok := rows[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 3)

	var ids, labels []string
	for _, c := range row.Components {
		b := c.(discordgo.Button)
		assert.Equal(t, discordgo.PrimaryButton, b.Style)
		ids = append(ids, b.CustomID)
		labels = append(labels, b.Label)
	}
	assert.Equal(t, []string{"previous_post", "next_post", "show_comments"}, ids)
	assert.Equal(t, []string{"Previous", "Next", "Comments"}, labels)

	assert.Empty(t, components(false))
}

func TestParseChannelRef(t *testing.T) {
	id, ok := parseChannelRef("<#123456789012345678>")
	assert.True(t, ok)
	assert.Equal(t, "123456789012345678", id)

	id, ok = parseChannelRef(" 123456789012345678 ")
	assert.True(t, ok)
	assert.Equal(t, "123456789012345678", id)

	for _, bad := range []string{"", "general", "<@123456789012345678>", "<#12>", "#123456789012345678"} {
		_, ok := parseChannelRef(bad)
		assert.False(t, ok, bad)
	}
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, isAdmin(discordgo.PermissionAdministrator|discordgo.PermissionSendMessages))
	assert.False(t, isAdmin(discordgo.PermissionManageChannels))
}

func TestToInteraction(t *testing.T) {
	raw := &discordgo.Interaction{
		ID:        "i1",
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   "g1",
		ChannelID: "c1",
		Message:   &discordgo.Message{ID: "m1"},
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1"}},
		Data:      discordgo.MessageComponentInteractionData{CustomID: "next_post"},
	}
	it, ok := toInteraction(&discordgo.InteractionCreate{Interaction: raw})
	require.True(t, ok)
	assert.Equal(t, "next_post", it.CustomID)
	assert.Equal(t, "u1", it.UserID)
	assert.Equal(t, "m1", it.MessageID)
	assert.Same(t, raw, it.Raw)

	_, ok = toInteraction(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{Type: discordgo.InteractionApplicationCommand}})
	assert.False(t, ok)
}

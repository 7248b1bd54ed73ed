// Package render turns posts and comments into transport cards.
package render

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"redditcord/internal/reddit"
	"redditcord/internal/transport"
	logx "redditcord/pkg/logx"
)

// Accent is the card color.
const Accent = 0xFF4500

// Platform limits.
const (
	maxTitle       = 256
	maxDescription = 4096
	maxFieldValue  = 1024
)

const (
	NoTopComment     = "No comments yet."
	TopCommentFailed = "Error fetching top comment."
	NoComments       = "No comments available."
	UnknownUser      = "Unknown User"
)

// CommentSource fetches top-level comments. *reddit.Client implements it.
type CommentSource interface {
	TopComments(ctx context.Context, postID string, limit int) ([]reddit.Comment, error)
}

type Renderer struct {
	comments CommentSource
	topLimit int
	log      logx.Logger
}

func New(comments CommentSource, topLimit int, log logx.Logger) *Renderer {
	if topLimit <= 0 {
		topLimit = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Renderer{comments: comments, topLimit: topLimit, log: log}
}

// PostCard renders p with a preview of its top comment. A failed comment
// lookup degrades to a placeholder and never fails the card.
func (r *Renderer) PostCard(ctx context.Context, p reddit.Post) transport.Card {
	if p.ID == "" {
		r.log.Error("render post without id", logx.String("url", p.URL))
		return ErrorCard()
	}

	description := p.Body
	if strings.TrimSpace(description) == "" {
		description = "[Link to post](" + p.URL + ")"
	}

	c := transport.Card{
		Title:       clip(p.Title, maxTitle),
		Description: clip(description, maxDescription),
		URL:         p.PermalinkURL(),
		Color:       Accent,
		ImageURL:    p.PreviewImageURL,
		Fields: []transport.CardField{
			{Name: "Top Comment", Value: clip(r.topComment(ctx, p.ID), maxFieldValue)},
			{Name: "Upvotes", Value: strconv.Itoa(p.Ups), Inline: true},
			{Name: "Downvotes", Value: strconv.Itoa(p.Downs), Inline: true},
		},
	}
	if p.Subreddit != "" {
		c.Footer = "Posted in r/" + p.Subreddit
	}
	return c
}

func (r *Renderer) topComment(ctx context.Context, postID string) string {
	if r.comments == nil {
		return NoTopComment
	}
	comments, err := r.comments.TopComments(ctx, postID, r.topLimit)
	if err != nil {
		r.log.Warn("top comment fetch failed", logx.String("post_id", postID), logx.Err(err))
		return TopCommentFailed
	}
	if len(comments) == 0 || strings.TrimSpace(comments[0].Body) == "" {
		return NoTopComment
	}
	return comments[0].Body
}

// CommentsCard lists comments as numbered lines.
func CommentsCard(p reddit.Post, comments []reddit.Comment) transport.Card {
	lines := lo.Map(comments, func(c reddit.Comment, i int) string {
		author := c.Author
		if author == "" || author == "[deleted]" {
			author = UnknownUser
		}
		return fmt.Sprintf("**%d.** %s: %s", i+1, author, c.Body)
	})
	description := strings.Join(lines, "\n")
	if description == "" {
		description = NoComments
	}
	return transport.Card{
		Title:       clip(`Top Comments for "`+p.Title+`"`, maxTitle),
		Description: clip(description, maxDescription),
		URL:         p.PermalinkURL(),
		Color:       Accent,
	}
}

// ErrorCard replaces a post card that could not be built.
func ErrorCard() transport.Card {
	return transport.Card{
		Title:       "Error creating post embed.",
		Description: "Failed to fetch or display post content.",
	}
}

// EmptyCard is shown when navigation happens before any post was loaded.
func EmptyCard() transport.Card {
	return transport.Card{
		Title:       "No posts loaded.",
		Description: "Nothing has been fetched yet. Try again after the next fetch.",
		Color:       Accent,
	}
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

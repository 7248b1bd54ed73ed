package router

import (
	"context"
	"errors"
	"fmt"

	"redditcord/internal/render"
	"redditcord/internal/session"
	"redditcord/internal/transport"
	logx "redditcord/pkg/logx"
)

func (r *Router) interactionTable() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		transport.ControlPrevious: r.navigate(session.Previous),
		transport.ControlNext:     r.navigate(session.Next),
		transport.ControlComments: r.showComments,
	}
}

// navigate moves the shared cursor and re-renders the card in place.
func (r *Router) navigate(dir session.Direction) HandlerFunc {
	return func(ctx context.Context, req *Request) (*Response, error) {
		post, err := r.d.Session.Advance(dir)
		if errors.Is(err, session.ErrEmptySession) {
			card := render.EmptyCard()
			return &Response{Card: &card, Replace: true, Controls: true}, nil
		}
		if err != nil {
			return nil, err
		}
		fields := []logx.Field{logx.String("dir", dir.String()), logx.Int("cursor", r.d.Session.Cursor()), logx.String("post", post.ID)}
		if from, ok := r.d.Session.PostForMessage(req.Interaction.MessageID); ok {
			fields = append(fields, logx.String("from_post", from))
		}
		req.Logger.Debug("card navigated", fields...)
		card := r.d.Renderer.PostCard(ctx, post)
		return &Response{Card: &card, Replace: true, Controls: true}, nil
	}
}

// showComments answers with the top comments of the post under the cursor.
// The displayed card is left alone.
func (r *Router) showComments(ctx context.Context, req *Request) (*Response, error) {
	post, err := r.d.Session.Current()
	if errors.Is(err, session.ErrEmptySession) {
		card := render.EmptyCard()
		return &Response{Card: &card}, nil
	}
	if err != nil {
		return nil, err
	}
	// Comments follow the session cursor, which a newer batch may have moved
	// away from the post shown on the clicked message.
	if shown, ok := r.d.Session.PostForMessage(req.Interaction.MessageID); ok && shown != post.ID {
		req.Logger.Debug("clicked card is behind the session", logx.String("shown", shown), logx.String("current", post.ID))
	}
	comments, err := r.d.Comments.TopComments(ctx, post.ID, r.options().CommentsLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errCommentsFailed, err)
	}
	card := render.CommentsCard(post, comments)
	return &Response{Card: &card}, nil
}

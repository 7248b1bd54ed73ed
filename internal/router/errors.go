package router

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Rejections. These end a request with a user-facing reply and are not
// logged as errors.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrCooldownActive   = errors.New("cooldown active")
	ErrInvalidChannel   = errors.New("invalid channel")
	ErrInvalidSubreddit = errors.New("invalid subreddit")
	ErrInvalidPostID    = errors.New("invalid post id")
)

var (
	errFetchFailed    = errors.New("fetch failed")
	errCommentsFailed = errors.New("comments lookup failed")
	errBusy           = errors.New("dispatcher busy")
)

// CooldownError carries the wait left before the user may issue another
// command. It matches ErrCooldownActive.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: %s remaining", e.Remaining)
}

func (e *CooldownError) Is(target error) bool { return target == ErrCooldownActive }

// Seconds rounds the remaining wait up to whole seconds (at least 1).
func (e *CooldownError) Seconds() int {
	s := int(math.Ceil(e.Remaining.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

func isRejection(err error) bool {
	return errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrCooldownActive) ||
		errors.Is(err, ErrInvalidChannel) ||
		errors.Is(err, ErrInvalidSubreddit) ||
		errors.Is(err, ErrInvalidPostID)
}

const (
	msgPermissionDenied = "You do not have permission to use this command."
	msgInvalidSubreddit = "Please provide a valid subreddit name."
	msgInvalidChannel   = "Please provide a valid channel ID or mention."
	msgInvalidPostID    = "Please provide a valid post ID."
	msgFetchFailed      = "Failed to fetch new posts."
	msgCommentsFailed   = "Failed to fetch comments for the post."
	msgBusy             = "Busy, try again in a moment."
	msgCommandFailed    = "An error occurred while handling the command."
	msgInteractionError = "An error occurred while handling the interaction."
)

// commandReply maps a command error to the text sent back to the invoker.
func commandReply(err error) string {
	var ce *CooldownError
	switch {
	case errors.As(err, &ce):
		return fmt.Sprintf("Please wait %d more second(s) before using that command again.", ce.Seconds())
	case errors.Is(err, ErrPermissionDenied):
		return msgPermissionDenied
	case errors.Is(err, ErrInvalidSubreddit):
		return msgInvalidSubreddit
	case errors.Is(err, ErrInvalidChannel):
		return msgInvalidChannel
	case errors.Is(err, ErrInvalidPostID):
		return msgInvalidPostID
	case errors.Is(err, errFetchFailed):
		return msgFetchFailed
	case errors.Is(err, errCommentsFailed):
		return msgCommentsFailed
	case errors.Is(err, errBusy):
		return msgBusy
	default:
		return msgCommandFailed
	}
}

func interactionReply(err error) string {
	if errors.Is(err, errCommentsFailed) {
		return msgCommentsFailed
	}
	return msgInteractionError
}

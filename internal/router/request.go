package router

import (
	"strings"

	"redditcord/internal/transport"
	logx "redditcord/pkg/logx"
)

// Request is one routed update.
type Request struct {
	Kind        transport.UpdateKind
	Message     *transport.Message
	Interaction *transport.Interaction

	Command string // lowercased command word or control id
	Args    []string
	ReqID   string
	Logger  logx.Logger
}

func (r *Request) GuildID() string {
	if r.Message != nil {
		return r.Message.GuildID
	}
	if r.Interaction != nil {
		return r.Interaction.GuildID
	}
	return ""
}

func (r *Request) UserID() string {
	if r.Message != nil {
		return r.Message.AuthorID
	}
	if r.Interaction != nil {
		return r.Interaction.UserID
	}
	return ""
}

func (r *Request) Arg(i int) string {
	if i < 0 || i >= len(r.Args) {
		return ""
	}
	return r.Args[i]
}

// Response is what a handler wants sent back.
type Response struct {
	Text string
	Card *transport.Card
	// Replace swaps the card an interaction was triggered from instead of
	// answering with an ephemeral reply.
	Replace bool
	// Controls attaches the navigation row to Card.
	Controls bool
}

// parseCommand splits a prefixed message into a lowercased command word and
// positional arguments. ok is false for text that is not a command.
func parseCommand(prefix, content string) (cmd string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(content[len(prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

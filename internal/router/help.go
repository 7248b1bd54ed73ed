package router

import (
	"fmt"
	"strings"
)

func helpText(prefix string) string {
	var b strings.Builder
	b.WriteString("**Bot Commands:**\n")
	lines := []struct{ usage, desc string }{
		{"setsubreddit <subreddit>", "Sets the subreddit to monitor. (Admins only)"},
		{"setchannel <channel>", "Sets the channel where updates will be posted. (Admins only)"},
		{"fetch", "Fetches the latest posts from the set subreddit."},
		{"comments <postId>", "Fetches top comments from a specific post."},
		{"help", "Shows this message."},
	}
	for _, l := range lines {
		fmt.Fprintf(&b, "- `%s%s` - %s\n", prefix, l.usage, l.desc)
	}
	return strings.TrimRight(b.String(), "\n")
}

package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	// discordMessageLimit is the longest message content Discord accepts.
	discordMessageLimit = 2000
	maxFieldValue       = 300
	channelQueueSize    = 256
	channelSendTimeout  = 10 * time.Second
)

// keys rendered in the header line or not at all
var headerKeys = map[string]bool{"time": true, "level": true, "message": true, "comp": true}

func (s *Service) channelWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.chQueue:
			s.mu.Lock()
			target := s.channelID
			s.mu.Unlock()
			if s.sender == nil || target == "" {
				continue
			}
			sctx, cancel := context.WithTimeout(ctx, channelSendTimeout)
			if err := s.sender.SendLog(sctx, target, msg); err != nil {
				s.dropped.Add(1)
			}
			cancel()
		}
	}
}

// channelWriter is the zerolog sink for the Discord log channel. It never
// blocks the caller; entries over the rate limit or a full queue are counted
// and reported on the next message that goes out.
type channelWriter struct{ svc *Service }

func (w *channelWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *channelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	s := w.svc
	s.mu.Lock()
	target := s.channelID
	lim := s.limiter
	floor := s.minLevel
	s.mu.Unlock()

	if target == "" || s.sender == nil || lim == nil || level < floor {
		return len(p), nil
	}
	if !lim.Allow() {
		s.dropped.Add(1)
		return len(p), nil
	}
	msg := formatChannelEntry(p, s.dropped.Swap(0))
	select {
	case s.chQueue <- msg:
	default:
		s.dropped.Add(1)
	}
	return len(p), nil
}

// formatChannelEntry renders one JSON log line as Discord markdown:
//
//	**ERROR** `feed` feed cycle failed
//	```
//	err=...
//	subreddit=golang
//	```
func formatChannelEntry(p []byte, dropped int64) string {
	raw := strings.TrimSpace(string(p))
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return clipRunes(raw, discordMessageLimit)
	}

	var b strings.Builder
	if lvl, _ := m["level"].(string); lvl != "" {
		b.WriteString("**" + strings.ToUpper(lvl) + "** ")
	}
	if comp, _ := m["comp"].(string); comp != "" {
		b.WriteString("`" + comp + "` ")
	}
	msg, _ := m["message"].(string)
	b.WriteString(escapeMarkdown(msg))

	keys := make([]string, 0, len(m))
	for k := range m {
		if !headerKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var tail string
	if dropped > 0 {
		tail = fmt.Sprintf("\n_%d earlier entries suppressed_", dropped)
	}
	if len(keys) > 0 {
		var fb strings.Builder
		for _, k := range keys {
			v := strings.ReplaceAll(fmt.Sprint(m[k]), "```", "'''")
			fb.WriteString(k + "=" + clipRunes(v, maxFieldValue) + "\n")
		}
		room := discordMessageLimit - runeLen(b.String()) - runeLen(tail) - len("\n```\n```")
		if room > 0 {
			b.WriteString("\n```\n" + clipRunes(fb.String(), room) + "```")
		}
	}
	return clipRunes(b.String()+tail, discordMessageLimit)
}

var markdownEscaper = strings.NewReplacer("*", `\*`, "_", `\_`, "`", "\\`", "~", `\~`, "|", `\|`)

func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// clipRunes shortens s to at most n runes, marking the cut with an ellipsis.
func clipRunes(s string, n int) string {
	if n <= 0 || runeLen(s) <= n {
		return s
	}
	r := []rune(s)
	if n < 2 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

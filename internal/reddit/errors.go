package reddit

import (
	"fmt"
	"regexp"
	"strings"
)

// AuthError reports a failed credential refresh. Payload holds the remote
// error body (truncated) when there was one.
type AuthError struct {
	Status  int
	Payload string
	Err     error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString("reddit auth failed")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Payload != "" {
		b.WriteString(": ")
		b.WriteString(e.Payload)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError reports a failed listing or comment retrieval.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("reddit %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("reddit %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

var reSubreddit = regexp.MustCompile(`^[A-Za-z0-9_]{2,21}$`)

// NormalizeSubreddit strips an optional "r/" prefix and reports whether the
// remainder is a syntactically valid subreddit name.
func NormalizeSubreddit(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "/")
	if len(s) > 2 && strings.EqualFold(s[:2], "r/") {
		s = s[2:]
	}
	s = strings.TrimSuffix(s, "/")
	return s, reSubreddit.MatchString(s)
}

var rePostID = regexp.MustCompile(`^[a-z0-9]{1,12}$`)

// NormalizePostID accepts a bare id or a "t3_" fullname.
func NormalizePostID(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "t3_")
	return s, rePostID.MatchString(s)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"

	logx "redditcord/pkg/logx"
)

// Tokens supplies bearer tokens to the client. *TokenGate implements it.
type Tokens interface {
	Current() string
	Refresh(ctx context.Context) (string, error)
}

type ClientConfig struct {
	BaseURL   string
	UserAgent string
	// RetryMax bounds retries of a GET on 429/5xx/transport errors.
	RetryMax  int
	RetryBase time.Duration
}

// Client is a thin Reddit OAuth API client.
type Client struct {
	cfg    ClientConfig
	tokens Tokens
	http   *http.Client
	log    logx.Logger
}

func NewClient(cfg ClientConfig, tokens Tokens, httpClient *http.Client, log logx.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, tokens: tokens, http: httpClient, log: log}
}

// Newest returns up to limit of the newest posts of subreddit, newest first.
func (c *Client) Newest(ctx context.Context, subreddit string, limit int) ([]Post, error) {
	q := url.Values{"limit": {strconv.Itoa(max(1, limit))}, "raw_json": {"1"}}
	var l listing
	if err := c.get(ctx, "listing", "/r/"+url.PathEscape(subreddit)+"/new", q, &l); err != nil {
		return nil, err
	}
	return postsOf(l), nil
}

// Submission returns the post and up to limit top-level comments.
func (c *Client) Submission(ctx context.Context, postID string, limit, depth int) (Post, []Comment, error) {
	q := url.Values{
		"limit":    {strconv.Itoa(max(1, limit))},
		"depth":    {strconv.Itoa(max(1, depth))},
		"raw_json": {"1"},
	}
	var ls []listing
	if err := c.get(ctx, "submission", "/comments/"+url.PathEscape(postID), q, &ls); err != nil {
		return Post{}, nil, err
	}
	var post Post
	if len(ls) > 0 {
		if ps := postsOf(ls[0]); len(ps) > 0 {
			post = ps[0]
		}
	}
	var comments []Comment
	if len(ls) > 1 {
		comments = commentsOf(ls[1])
	}
	if limit > 0 && len(comments) > limit {
		comments = comments[:limit]
	}
	return post, comments, nil
}

// TopComments returns up to limit top-level comments of postID.
func (c *Client) TopComments(ctx context.Context, postID string, limit int) ([]Comment, error) {
	_, comments, err := c.Submission(ctx, postID, limit, 1)
	return comments, err
}

func postsOf(l listing) []Post {
	links := lo.Filter(l.Data.Children, func(t thing, _ int) bool { return t.Kind == kindLink })
	return lo.FilterMap(links, func(t thing, _ int) (Post, bool) {
		var d linkData
		if err := json.Unmarshal(t.Data, &d); err != nil {
			return Post{}, false
		}
		return d.post(), true
	})
}

func commentsOf(l listing) []Comment {
	// "more" placeholders and non-comment things are skipped.
	return lo.FilterMap(l.Data.Children, func(t thing, _ int) (Comment, bool) {
		if t.Kind != kindComment {
			return Comment{}, false
		}
		var d commentData
		if err := json.Unmarshal(t.Data, &d); err != nil {
			return Comment{}, false
		}
		return Comment(d), true
	})
}

// get performs an authorized GET with bounded retries. A 401 forces one
// token refresh; an auth failure during that refresh is permanent.
func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any) error {
	token := c.tokens.Current()
	if token == "" {
		t, err := c.tokens.Refresh(ctx)
		if err != nil {
			return err
		}
		token = t
	}

	refreshed := false
	attempt, retries := 0, 0
	// retryable records a 429/5xx/transport failure; past RetryMax it is final.
	retryable := func(fe *FetchError) error {
		retries++
		if retries > c.cfg.RetryMax {
			return backoff.Permanent(fe)
		}
		return fe
	}
	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+q.Encode(), nil)
		if err != nil {
			return backoff.Permanent(&FetchError{Op: op, Err: err})
		}
		req.Header.Set("Authorization", "bearer "+token)
		req.Header.Set("User-Agent", c.cfg.UserAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(&FetchError{Op: op, Err: err})
			}
			return retryable(&FetchError{Op: op, Err: err})
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusUnauthorized && !refreshed:
			refreshed = true
			t, err := c.tokens.Refresh(ctx)
			if err != nil {
				return backoff.Permanent(err)
			}
			token = t
			return &FetchError{Op: op, Status: resp.StatusCode}
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			c.log.Debug("reddit request retryable", logx.String("op", op), logx.Int("status", resp.StatusCode), logx.Int("attempt", attempt))
			return retryable(&FetchError{Op: op, Status: resp.StatusCode})
		default:
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			return backoff.Permanent(&FetchError{Op: op, Status: resp.StatusCode})
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(&FetchError{Op: op, Err: fmt.Errorf("decode: %w", err)})
		}
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.RetryBase
	eb.MaxInterval = 10 * c.cfg.RetryBase
	eb.MaxElapsedTime = 0
	// RetryMax bounds 429/5xx retries in the operation; the forced refresh
	// after a 401 gets its own attempt on top.
	var b backoff.BackOff = backoff.WithMaxRetries(eb, uint64(c.cfg.RetryMax)+1)
	b = backoff.WithContext(b, ctx)

	err := backoff.Retry(operation, b)
	if err != nil {
		var fe *FetchError
		var ae *AuthError
		if !errors.As(err, &fe) && !errors.As(err, &ae) {
			err = &FetchError{Op: op, Err: err}
		}
	}
	return err
}

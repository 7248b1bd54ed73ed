package reddit

import (
	"encoding/json"
	"time"
)

// Post is a submission as delivered to chat. Immutable once fetched.
type Post struct {
	ID              string
	Title           string
	URL             string
	Body            string
	Permalink       string
	Subreddit       string
	Author          string
	Ups             int
	Downs           int
	PreviewImageURL string
	CreatedAt       time.Time
}

// PermalinkURL returns the absolute link to the post's comment page.
func (p Post) PermalinkURL() string {
	if p.Permalink == "" {
		return ""
	}
	return WebBaseURL + p.Permalink
}

// Comment is a top-level comment on a post.
type Comment struct {
	ID     string
	Author string
	Body   string
	Score  int
}

// WebBaseURL prefixes permalinks.
const WebBaseURL = "https://reddit.com"

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []thing `json:"children"`
		After    string  `json:"after"`
	} `json:"data"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

const (
	kindComment = "t1"
	kindLink    = "t3"
)

type linkData struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	URL                 string  `json:"url"`
	Selftext            string  `json:"selftext"`
	Permalink           string  `json:"permalink"`
	Subreddit           string  `json:"subreddit"`
	Author              string  `json:"author"`
	Ups                 int     `json:"ups"`
	Downs               int     `json:"downs"`
	URLOverriddenByDest string  `json:"url_overridden_by_dest"`
	CreatedUTC          float64 `json:"created_utc"`
}

func (d linkData) post() Post {
	return Post{
		ID:              d.ID,
		Title:           d.Title,
		URL:             d.URL,
		Body:            d.Selftext,
		Permalink:       d.Permalink,
		Subreddit:       d.Subreddit,
		Author:          d.Author,
		Ups:             d.Ups,
		Downs:           d.Downs,
		PreviewImageURL: d.URLOverriddenByDest,
		CreatedAt:       time.Unix(int64(d.CreatedUTC), 0).UTC(),
	}
}

type commentData struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Body   string `json:"body"`
	Score  int    `json:"score"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
	Error       string `json:"error"`
}

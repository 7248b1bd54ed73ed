// Package session holds the posts currently navigable through the card
// controls. There is one session per process, shared by every guild.
package session

import (
	"errors"
	"sync"

	"redditcord/internal/reddit"
)

var ErrEmptySession = errors.New("session: no posts loaded")

type Direction int

const (
	Previous Direction = iota
	Next
)

func (d Direction) String() string {
	if d == Previous {
		return "previous"
	}
	return "next"
}

// Session is an ordered list of posts with a cursor. The cursor is always a
// valid index while the list is non-empty; navigation wraps around.
type Session struct {
	mu        sync.RWMutex
	items     []reddit.Post
	cursor    int
	delivered map[string]string // message id -> post id
}

func New() *Session {
	return &Session{delivered: map[string]string{}}
}

// Install replaces the posts and moves the cursor back to the first one.
func (s *Session) Install(posts []reddit.Post) {
	items := make([]reddit.Post, len(posts))
	copy(items, posts)

	s.mu.Lock()
	s.items = items
	s.cursor = 0
	s.mu.Unlock()
}

// Current returns the post under the cursor.
func (s *Session) Current() (reddit.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentLocked()
}

func (s *Session) currentLocked() (reddit.Post, error) {
	if len(s.items) == 0 {
		return reddit.Post{}, ErrEmptySession
	}
	return s.items[s.cursor], nil
}

// Advance moves the cursor one step in dir and returns the post there.
// With a single post (or none) it is a no-op equivalent to Current.
func (s *Session) Advance(dir Direction) (reddit.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.items)
	if n > 1 {
		switch dir {
		case Previous:
			s.cursor = (s.cursor - 1 + n) % n
		default:
			s.cursor = (s.cursor + 1) % n
		}
	}
	return s.currentLocked()
}

func (s *Session) Cursor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// RecordDelivery remembers which post a delivered message shows.
func (s *Session) RecordDelivery(messageID, postID string) {
	if messageID == "" {
		return
	}
	s.mu.Lock()
	s.delivered[messageID] = postID
	s.mu.Unlock()
}

// PostForMessage returns the post id recorded for messageID.
func (s *Session) PostForMessage(messageID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.delivered[messageID]
	return id, ok
}

package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redditcord/internal/reddit"
)

func posts(n int) []reddit.Post {
	out := make([]reddit.Post, n)
	for i := range out {
		out[i] = reddit.Post{ID: fmt.Sprintf("p%d", i), URL: fmt.Sprintf("u%d", i)}
	}
	return out
}

func TestEmptySession(t *testing.T) {
	s := New()
	_, err := s.Current()
	require.ErrorIs(t, err, ErrEmptySession)
	_, err = s.Advance(Next)
	require.ErrorIs(t, err, ErrEmptySession)
	assert.Equal(t, 0, s.Cursor())
}

func TestInstallResetsCursor(t *testing.T) {
	s := New()
	s.Install(posts(3))
	_, _ = s.Advance(Next)
	require.Equal(t, 1, s.Cursor())

	s.Install(posts(2))
	assert.Equal(t, 0, s.Cursor())
	assert.Equal(t, 2, s.Len())
	p, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, "p0", p.ID)
}

func TestInstallCopiesInput(t *testing.T) {
	in := posts(2)
	s := New()
	s.Install(in)
	in[0].ID = "mutated"
	p, _ := s.Current()
	assert.Equal(t, "p0", p.ID)
}

func TestAdvanceWraps(t *testing.T) {
	s := New()
	s.Install(posts(4))

	p, err := s.Advance(Previous)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Cursor())
	assert.Equal(t, "p3", p.ID)

	p, err = s.Advance(Next)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Cursor())
	assert.Equal(t, "p0", p.ID)
}

func TestAdvanceFullCircle(t *testing.T) {
	for n := 1; n <= 6; n++ {
		for start := 0; start < n; start++ {
			s := New()
			s.Install(posts(n))
			for i := 0; i < start; i++ {
				_, _ = s.Advance(Next)
			}
			require.Equal(t, start, s.Cursor())

			for i := 0; i < n; i++ {
				_, _ = s.Advance(Next)
			}
			assert.Equal(t, start, s.Cursor(), "next n=%d start=%d", n, start)

			for i := 0; i < n; i++ {
				_, _ = s.Advance(Previous)
			}
			assert.Equal(t, start, s.Cursor(), "previous n=%d start=%d", n, start)
		}
	}
}

func TestAdvanceSinglePostIsNoop(t *testing.T) {
	s := New()
	s.Install(posts(1))
	for _, dir := range []Direction{Previous, Next} {
		p, err := s.Advance(dir)
		require.NoError(t, err)
		assert.Equal(t, "p0", p.ID)
		assert.Equal(t, 0, s.Cursor())
	}
}

func TestRecordDelivery(t *testing.T) {
	s := New()
	s.RecordDelivery("m1", "p1")
	s.RecordDelivery("", "p2")

	id, ok := s.PostForMessage("m1")
	assert.True(t, ok)
	assert.Equal(t, "p1", id)
	_, ok = s.PostForMessage("")
	assert.False(t, ok)
}

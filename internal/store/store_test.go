package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	s.Set([]byte("foo"), []byte("bar"), nil)

	v, ok := s.Get([]byte("foo"))
	require.True(t, ok)
	assert.Equal(t, []byte("bar"), v)
}

func TestGetMissingKey(t *testing.T) {
	s := New()
	_, ok := s.Get([]byte("nope"))
	assert.False(t, ok)
}

func TestExpiredKeyIsLazilyRemoved(t *testing.T) {
	s := New()
	ttl := 10 * time.Millisecond
	s.Set([]byte("foo"), []byte("bar"), &ttl)

	time.Sleep(30 * time.Millisecond)

	_, ok := s.Get([]byte("foo"))
	assert.False(t, ok)
	assert.Equal(t, 0, s.Size(), "expired key must be removed as a side effect of Get")
}

func TestLastWriteWins(t *testing.T) {
	s := New()
	s.Set([]byte("foo"), []byte("first"), nil)
	s.Set([]byte("foo"), []byte("second"), nil)

	v, ok := s.Get([]byte("foo"))
	require.True(t, ok)
	assert.Equal(t, []byte("second"), v)
}

func TestSweepRemovesExpiredEntriesNotYetRead(t *testing.T) {
	s := New()
	ttl := 10 * time.Millisecond
	s.Set([]byte("a"), []byte("1"), &ttl)
	s.Set([]byte("b"), []byte("2"), nil)

	time.Sleep(30 * time.Millisecond)

	removed := s.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Size())

	_, ok := s.Get([]byte("b"))
	assert.True(t, ok)
}

func TestSweepNeverResurrectsExpiredEntry(t *testing.T) {
	s := New()
	ttl := 1 * time.Millisecond
	s.Set([]byte("a"), []byte("1"), &ttl)
	time.Sleep(10 * time.Millisecond)

	s.Sweep()
	_, ok := s.Get([]byte("a"))
	assert.False(t, ok)
}

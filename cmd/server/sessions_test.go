package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_EvictsIdleSessions(t *testing.T) {
	s := newTestServer(t)
	clock := testNow
	s.sessions.now = func() time.Time { return clock }
	ctx := context.Background()

	first, err := s.sessions.Create(ctx)
	require.NoError(t, err)

	clock = clock.Add(31 * time.Minute)
	second, err := s.sessions.Create(ctx)
	require.NoError(t, err)

	s.sessions.mu.Lock()
	_, firstLive := s.sessions.sessions[first.id]
	_, secondLive := s.sessions.sessions[second.id]
	live := len(s.sessions.sessions)
	s.sessions.mu.Unlock()
	assert.False(t, firstLive, "idle session evicted")
	assert.True(t, secondLive)
	assert.Equal(t, 1, live)

	restored, err := s.sessions.Get(ctx, first.id)
	require.NoError(t, err, "evicted sessions reload from their snapshot")
	assert.NotSame(t, first, restored)
	assert.Equal(t, first.id, restored.id)
}

func TestSessionManager_SkipsBusySessions(t *testing.T) {
	s := newTestServer(t)
	clock := testNow
	s.sessions.now = func() time.Time { return clock }
	ctx := context.Background()

	busy, err := s.sessions.Create(ctx)
	require.NoError(t, err)
	busy.mu.Lock()
	defer busy.mu.Unlock()

	clock = clock.Add(time.Hour)
	_, err = s.sessions.Create(ctx)
	require.NoError(t, err)

	s.sessions.mu.Lock()
	_, live := s.sessions.sessions[busy.id]
	s.sessions.mu.Unlock()
	assert.True(t, live, "a session held by a request is not evicted")
}

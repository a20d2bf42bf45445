package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistryReplacesExistingChannel(t *testing.T) {
	b := newFakeBackend()
	r := NewRegistry(b, NopAlerter{}, zap.NewNop())
	defer r.CloseAll()

	first, err := r.Open(context.Background(), memberProfile())
	require.NoError(t, err)
	require.Equal(t, StateConnected, first.State())

	// A second Open for the same user supersedes the first session; the
	// subscription is exclusive per user.
	second, err := r.Open(context.Background(), memberProfile())
	require.NoError(t, err)

	assert.Equal(t, StateDisconnected, first.State())
	assert.Equal(t, StateConnected, second.State())
	assert.Equal(t, 2, b.subscribes)

	got, ok := r.Get("u1")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestRegistryTracksUsersIndependently(t *testing.T) {
	b := newFakeBackend()
	r := NewRegistry(b, NopAlerter{}, zap.NewNop())

	member, err := r.Open(context.Background(), memberProfile())
	require.NoError(t, err)
	exec, err := r.Open(context.Background(), executiveProfile())
	require.NoError(t, err)

	assert.Equal(t, StateConnected, member.State())
	assert.Equal(t, StateConnected, exec.State())

	require.NoError(t, r.Close("u1"))
	assert.Equal(t, StateDisconnected, member.State())
	assert.Equal(t, StateConnected, exec.State())

	_, ok := r.Get("u1")
	assert.False(t, ok)

	r.CloseAll()
	assert.Equal(t, StateDisconnected, exec.State())
}

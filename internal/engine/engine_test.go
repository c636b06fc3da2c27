package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmorel/readout/internal/queue"
)

func TestLoadRejectsCanceledContext(t *testing.T) {
	e := New(t.TempDir())
	t.Cleanup(func() { e.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Load(ctx, queue.Resource{Path: "/tmp/audio/a.mp3"})
	require.ErrorIs(t, err, context.Canceled)

	// A canceled load must not have touched the transport at all.
	assert.Equal(t, Stopped, e.State())
	select {
	case ev := <-e.Events():
		t.Fatalf("unexpected event %s from canceled load", ev.Type)
	default:
	}
}

func TestMockLoadRejectsCanceledContext(t *testing.T) {
	m := NewMock()
	t.Cleanup(func() { m.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Load(ctx, queue.Resource{Path: "/tmp/audio/a.mp3"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.LoadCalls())
	assert.Equal(t, Stopped, m.State())
}

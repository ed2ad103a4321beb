package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	type payload struct {
		Name  string
		Level int
	}
	require.NoError(t, m.SetJSON(ctx, "k", payload{Name: "Sargento", Level: 3}, time.Minute))

	var got payload
	ok, err := m.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, payload{Name: "Sargento", Level: 3}, got)

	require.NoError(t, m.Delete(ctx, "k"))
	ok, err = m.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	clock := time.Now()
	m.now = func() time.Time { return clock }

	require.NoError(t, m.SetJSON(ctx, "k", 1, time.Second))
	clock = clock.Add(2 * time.Second)

	var v int
	ok, err := m.GetJSON(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryIncrWindow(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	clock := time.Now()
	m.now = func() time.Time { return clock }

	for i := int64(1); i <= 3; i++ {
		n, err := m.Incr(ctx, "ip", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	clock = clock.Add(time.Minute)
	n, err := m.Incr(ctx, "ip", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNoopNeverHits(t *testing.T) {
	ctx := context.Background()
	var c Cache = Noop{}
	require.NoError(t, c.SetJSON(ctx, "k", 1, 0))
	var v int
	ok, err := c.GetJSON(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
	n, err := c.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)
}

package settings

import (
	"context"
	"testing"
	"time"

	"github.com/rotaclub/rota/internal/cache"
	"github.com/rotaclub/rota/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntUsesSeededValue(t *testing.T) {
	svc := NewService(memory.New(), cache.NewMemory(), time.Minute)

	v, err := svc.Points(context.Background(), PointsPerSale)
	require.NoError(t, err)
	assert.Equal(t, int64(100), v)
}

func TestSetInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), cache.NewMemory(), time.Hour)

	v, err := svc.Points(ctx, PointsAdSold)
	require.NoError(t, err)
	assert.Equal(t, int64(50), v)

	require.NoError(t, svc.Set(ctx, PointsAdSold, " 75 "))

	v, err = svc.Points(ctx, PointsAdSold)
	require.NoError(t, err)
	assert.Equal(t, int64(75), v)
}

func TestSetRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil, time.Minute)

	assert.ErrorIs(t, svc.Set(ctx, "nope", "1"), ErrUnknownKey)
	assert.ErrorIs(t, svc.Set(ctx, PointsPerSale, "abc"), ErrInvalidValue)
	assert.ErrorIs(t, svc.Set(ctx, PointsPerSale, "-3"), ErrInvalidValue)
}

func TestReadIntFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	v, err := ReadInt(ctx, st, "missing", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	require.NoError(t, st.PutSetting(ctx, "garbled", "x1"))
	v, err = ReadInt(ctx, st, "garbled", 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), v)
}

func TestAllListsKnownKeys(t *testing.T) {
	svc := NewService(memory.New(), nil, time.Minute)
	all, err := svc.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, len(Defaults))
	assert.Equal(t, int64(20), all[PointsPostValidated])
}

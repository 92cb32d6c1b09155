package redisrepository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewHeartbeatStore(&redis.Options{Addr: mr.Addr()}, "hb:")
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	got, err := store.GetHeartbeat(ctx, "pi")
	require.NoError(t, err)
	require.Nil(t, got)

	first := time.Unix(1_700_000_000, 0).UTC()
	_, err = store.UpsertHeartbeat(ctx, "pi", first)
	require.NoError(t, err)
	created := mr.HGet("hb:pi", fieldCreatedAt)
	require.NotEmpty(t, created)

	second := first.Add(10 * time.Second)
	got, err = store.UpsertHeartbeat(ctx, "pi", second)
	require.NoError(t, err)
	require.Equal(t, "pi", got.Label)
	require.True(t, got.Timestamp.Equal(second))
	require.Equal(t, created, mr.HGet("hb:pi", fieldCreatedAt), "created_at must survive updates")
}

func TestHeartbeatStore_CorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.HSet("hb:pi", fieldTimestamp, "yesterday")
	store := NewHeartbeatStore(&redis.Options{Addr: mr.Addr()}, "hb:")
	t.Cleanup(func() { _ = store.Close() })

	_, err := store.GetHeartbeat(context.Background(), "pi")
	require.Error(t, err)
}

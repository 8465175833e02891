package preferences

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/carebook/internal/booking"
)

var (
	_ booking.DurationPreferences = (*RedisStore)(nil)
	_ booking.DurationPreferences = (*MemoryStore)(nil)
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, nil), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, ok, err := store.PreferredDuration(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetPreferredDuration(ctx, "user-1", 45))
	minutes, ok, err := store.PreferredDuration(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 45, minutes)

	raw, err := mr.Get("carebook:pref:duration:user-1")
	require.NoError(t, err)
	assert.Equal(t, "45", raw)
	assert.Zero(t, mr.TTL("carebook:pref:duration:user-1"))
}

func TestRedisStoreIgnoresCorruptValue(t *testing.T) {
	store, mr := newRedisStore(t)
	require.NoError(t, mr.Set("carebook:pref:duration:user-1", "forty"))

	_, ok, err := store.PreferredDuration(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreSurfacesConnectionErrors(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, _, err := store.PreferredDuration(context.Background(), "user-1")
	assert.Error(t, err)
}

func TestDurationBounds(t *testing.T) {
	stores := map[string]Store{"memory": NewMemoryStore()}
	rs, _ := newRedisStore(t)
	stores["redis"] = rs

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.ErrorIs(t, s.SetPreferredDuration(ctx, "u", 0), ErrInvalidDuration)
			assert.ErrorIs(t, s.SetPreferredDuration(ctx, "u", MaxDurationMinutes+1), ErrInvalidDuration)
			require.NoError(t, s.SetPreferredDuration(ctx, "u", MaxDurationMinutes))
			m, ok, err := s.PreferredDuration(ctx, "u")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, MaxDurationMinutes, m)
		})
	}
}

package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"paylor/config"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewClient_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.RedisConfig{Host: mr.Host(), Port: mustPort(t, mr)}

	client, err := NewClient(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1}

	_, err := NewClient(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "pinging redis")
}

func TestHealthCheck(t *testing.T) {
	mr, client := newTestClient(t)
	h := NewHealthCheck(client)

	assert.Equal(t, "redis", h.Name())
	assert.NoError(t, h.Ping(context.Background()))
	assert.True(t, mr.Exists(healthKey))

	mr.Close()
	assert.Error(t, h.Ping(context.Background()))
}

func TestCallbackGuard_RememberThenSeen(t *testing.T) {
	mr, client := newTestClient(t)
	guard := NewCallbackGuard(client)
	ctx := context.Background()

	seen, err := guard.Seen(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, guard.Remember(ctx, "ws_CO_1", time.Hour))
	require.NoError(t, guard.Remember(ctx, "ws_CO_1", time.Hour), "second remember is a no-op")

	seen, err = guard.Seen(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.True(t, mr.Exists("paylor:stkcb:ws_CO_1"))

	seen, err = guard.Seen(ctx, "ws_CO_2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestCallbackGuard_Expires(t *testing.T) {
	mr, client := newTestClient(t)
	guard := NewCallbackGuard(client)
	ctx := context.Background()

	require.NoError(t, guard.Remember(ctx, "ws_CO_9", time.Second))
	mr.FastForward(2 * time.Second)

	seen, err := guard.Seen(ctx, "ws_CO_9")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestCallbackGuard_RedisDown(t *testing.T) {
	mr, client := newTestClient(t)
	guard := NewCallbackGuard(client)
	mr.Close()

	_, err := guard.Seen(context.Background(), "ws_CO_1")
	assert.Error(t, err)
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}

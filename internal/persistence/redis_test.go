package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brymix/dashboard-bff/internal/config"
)

func TestRedisKeysAndPing(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "bff:"}, zap.NewNop())
	t.Cleanup(r.Close)

	require.NoError(t, r.Ping(context.Background()))
	require.Equal(t, "bff:ratelimit:auth", r.Key("ratelimit", "auth"))

	bare := &Redis{}
	require.Equal(t, "ratelimit:auth", bare.Key("ratelimit", "auth"))

	mr.Close()
	require.Error(t, r.Ping(context.Background()))

	var missing *Redis
	require.Error(t, missing.Ping(context.Background()))
}

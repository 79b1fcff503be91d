package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tiergate-bot/pkg/config"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewRecordsCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := New(ctx, config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	before := counterValue(t, commandsTotal.WithLabelValues("get"))
	missesBefore := counterValue(t, commandErrorsTotal.WithLabelValues("get"))

	_, err = c.Get(ctx, "absent").Result()
	require.Error(t, err)

	assert.Equal(t, before+1, counterValue(t, commandsTotal.WithLabelValues("get")))
	assert.Equal(t, missesBefore, counterValue(t, commandErrorsTotal.WithLabelValues("get")))
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := New(ctx, config.RedisConfig{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestQueueOpt(t *testing.T) {
	opt := QueueOpt(config.RedisConfig{Addr: "redis:6379", Password: "pw", DB: 2, PoolSize: 8})

	assert.Equal(t, "redis:6379", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
	assert.Equal(t, 8, opt.PoolSize)
}

package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDeps struct {
	results map[string]string
	ok      bool
}

func (s stubDeps) Check(context.Context) (map[string]string, bool) {
	return s.results, s.ok
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShutdownRunsAllHooks(t *testing.T) {
	s := NewShutdown(discardLogger())

	var ran atomic.Int32
	s.Register("first", func(context.Context) error {
		ran.Add(1)
		return nil
	})
	s.Register("failing", func(context.Context) error {
		ran.Add(1)
		return errors.New("close failed")
	})
	s.Register("last", func(context.Context) error {
		ran.Add(1)
		return nil
	})
	s.Register("nil", nil)

	err := s.Execute(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing: close failed")
	assert.Equal(t, int32(3), ran.Load())
}

func TestShutdownWithoutHooks(t *testing.T) {
	require.NoError(t, NewShutdown(nil).Execute(context.Background()))
}

func TestProbes(t *testing.T) {
	ctx := context.Background()

	ready := NewProbes(discardLogger(), stubDeps{results: map[string]string{"redis": "OK"}, ok: true})
	require.NoError(t, ready.Liveness(ctx))
	require.NoError(t, ready.Readiness(ctx))

	notReady := NewProbes(discardLogger(), stubDeps{
		results: map[string]string{"redis": "OK", "postgres": "dial tcp: refused", "bin_api": "circuit breaker is open"},
	})
	err := notReady.Readiness(ctx)
	require.ErrorIs(t, err, ErrNotReady)
	assert.Contains(t, err.Error(), "bin_api, postgres")

	components, err := NewProbes(nil, nil).Report(ctx)
	require.NoError(t, err)
	assert.Empty(t, components)
}

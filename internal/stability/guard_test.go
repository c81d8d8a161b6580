package stability

import (
	"context"
	"errors"
	"runtime/debug"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	logger, hook := test.NewNullLogger()
	g := NewGuard(logger)
	ctx := context.Background()

	t.Run("result", func(t *testing.T) {
		v, err := Run(ctx, g, "ok", time.Second, func(context.Context) (int, error) {
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("error passes through", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Run(ctx, g, "fail", time.Second, func(context.Context) (int, error) {
			return 0, boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("panic recovered", func(t *testing.T) {
		_, err := Run(ctx, g, "explode", time.Second, func(context.Context) (string, error) {
			panic("malformed stream")
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPanic)
		assert.Contains(t, err.Error(), "malformed stream")

		records := g.Panics()
		require.Len(t, records, 1)
		assert.Equal(t, "explode", records[0].Operation)
		assert.NotEmpty(t, records[0].StackTrace)
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
		assert.Equal(t, "explode", hook.LastEntry().Data["operation"])
	})

	t.Run("timeout", func(t *testing.T) {
		err := Do(ctx, g, "slow", 10*time.Millisecond, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("parent cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := Do(cctx, g, "cancelled", 0, func(ctx context.Context) error {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPanicRecordsBounded(t *testing.T) {
	logger, _ := test.NewNullLogger()
	g := NewGuard(logger)
	g.maxPanics = 3
	for i := 0; i < 5; i++ {
		_ = Do(context.Background(), g, "p", time.Second, func(context.Context) error {
			panic(i)
		})
	}
	assert.Equal(t, 3, g.PanicCount())
	assert.Equal(t, "4", g.Panics()[2].Message)
}

func TestSetMemoryLimit(t *testing.T) {
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })

	logger, hook := test.NewNullLogger()
	g := NewGuard(logger)

	g.SetMemoryLimit(0)
	assert.Equal(t, prev, debug.SetMemoryLimit(-1))
	assert.Nil(t, hook.LastEntry())

	g.SetMemoryLimit(4096)
	assert.Equal(t, int64(4096)*1024*1024, debug.SetMemoryLimit(-1))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, 4096, hook.LastEntry().Data["limit_mb"])
}

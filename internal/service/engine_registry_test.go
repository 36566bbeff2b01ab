package service

import (
	"context"
	"sync"
	"testing"

	"posterminal/internal/seed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineRegistry_OneEnginePerOperator(t *testing.T) {
	env := newTestEnv(t, seed.Options{})
	ctx := context.Background()
	reg := NewEngineRegistry(env.deps(), env.binding)
	assert.Same(t, env.binding, reg.Binding())

	op := env.operator(t)
	var first *Engine
	require.NoError(t, reg.With(ctx, op, func(e *Engine) error {
		first = e
		_, err := e.OpenCash(ctx, dec("10"), nil)
		return err
	}))

	require.NoError(t, reg.With(ctx, env.operator(t), func(e *Engine) error {
		assert.Same(t, first, e)
		assert.NotNil(t, e.Session())
		return nil
	}))

	require.NoError(t, reg.With(ctx, env.supervisor(t), func(e *Engine) error {
		assert.NotSame(t, first, e)
		assert.Nil(t, e.Session())
		return nil
	}))
}

func TestEngineRegistry_SerializesCalls(t *testing.T) {
	env := newTestEnv(t, seed.Options{})
	ctx := context.Background()
	reg := NewEngineRegistry(env.deps(), env.binding)
	op := env.operator(t)
	require.NoError(t, reg.With(ctx, op, func(e *Engine) error {
		_, err := e.OpenCash(ctx, dec("0"), nil)
		return err
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reg.With(ctx, op, func(e *Engine) error {
				_, err := e.Scan(ctx, "7891000300307", nil)
				return err
			})
		}()
	}
	wg.Wait()

	require.NoError(t, reg.With(ctx, op, func(e *Engine) error {
		st := e.State()
		assert.Len(t, st.Lines, 8)
		assertDecimal(t, "39.92", st.Net)
		return nil
	}))
}

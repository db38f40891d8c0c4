package binmod_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binmod/binmod-go"
)

func buildAsyncModule(t *testing.T, mutate func(*binmod.ModuleBuilder)) *binmod.AsyncModule {
	t.Helper()
	b := binmod.NewModuleBuilder().
		WithName("async-test-module").
		WithBinary(compileGuest(t))
	if mutate != nil {
		mutate(b)
	}
	m, err := b.BuildAsync()
	require.NoError(t, err)
	return m
}

func TestAsyncModuleInstantiateAndCall(t *testing.T) {
	ctx := context.Background()
	m := buildAsyncModule(t, nil)

	_, err := m.Instantiate(ctx)
	require.NoError(t, err)
	assert.True(t, m.IsInstantiated())

	out, err := binmod.TypedCallAsync[int](ctx, m, "add")
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}

func TestAsyncModuleInstantiateTwiceFails(t *testing.T) {
	ctx := context.Background()
	m := buildAsyncModule(t, nil)

	_, err := m.Instantiate(ctx)
	require.NoError(t, err)

	_, err = m.Instantiate(ctx)
	require.ErrorIs(t, err, binmod.ErrAlreadyInstantiated)
}

func TestAsyncModuleRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := buildAsyncModule(t, nil)
	_, err := m.Instantiate(ctx)
	require.Error(t, err)
}

func TestAsyncModuleClone(t *testing.T) {
	ctx := context.Background()
	m := buildAsyncModule(t, nil)
	_, err := m.Instantiate(ctx)
	require.NoError(t, err)

	clone := m.Clone()
	assert.False(t, clone.IsInstantiated())

	_, err = clone.Instantiate(ctx)
	require.NoError(t, err)
}

package binmod_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binmod/binmod-go"
)

func buildPool(t *testing.T, count int) *binmod.ModulePool {
	t.Helper()
	builder := binmod.NewModuleBuilder().
		WithName("pooled-module").
		WithBinary(compileGuest(t))
	pool, err := binmod.NewModulePoolBuilder().
		WithBuilder(builder).
		WithCount(count).
		Build()
	require.NoError(t, err)
	return pool
}

func TestPoolLeaseAndRelease(t *testing.T) {
	pool := buildPool(t, 4)
	defer pool.Close()

	assert.Equal(t, 4, pool.Size())
	assert.Equal(t, 4, pool.Len())

	for i := 0; i < 100; i++ {
		lease := pool.Lease()
		out, err := binmod.TypedCall[int](lease.Module(), "add")
		require.NoError(t, err)
		assert.Equal(t, 7, out)
		lease.Release()
	}

	assert.Equal(t, 4, pool.Len())
}

func TestPoolTryLeaseExhaustion(t *testing.T) {
	pool := buildPool(t, 1)
	defer pool.Close()

	lease, ok := pool.TryLease()
	require.True(t, ok)

	_, ok = pool.TryLease()
	assert.False(t, ok)

	lease.Release()

	lease2, ok := pool.TryLease()
	require.True(t, ok)
	lease2.Release()
}

func TestPoolScoped(t *testing.T) {
	pool := buildPool(t, 2)
	defer pool.Close()

	out := binmod.Scoped(pool, func(m *binmod.Module) int {
		v, err := binmod.TypedCall[int](m, "add")
		require.NoError(t, err)
		return v
	})
	assert.Equal(t, 7, out)
	assert.Equal(t, 2, pool.Len())
}

// TestPoolConservation exercises the pool's size invariant under
// concurrent lease/release: idle + leased always equals the pool size.
func TestPoolConservation(t *testing.T) {
	const size = 8
	pool := buildPool(t, size)
	defer pool.Close()

	var wg sync.WaitGroup
	for i := 0; i < size*5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease := pool.Lease()
			defer lease.Release()
			_, err := binmod.TypedCall[int](lease.Module(), "add")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, size, pool.Len())
}

func TestPoolStats(t *testing.T) {
	pool := buildPool(t, 3)
	defer pool.Close()

	lease := pool.Lease()
	stats := pool.Stats()
	assert.Equal(t, 3, stats.Capacity)
	assert.Equal(t, 2, stats.Available)
	assert.Equal(t, 1, stats.Outstanding)

	lease.Release()
	stats = pool.Stats()
	assert.Equal(t, 3, stats.Available)
	assert.Equal(t, 0, stats.Outstanding)
}

func TestModulePoolBuilderRequiresCount(t *testing.T) {
	_, err := binmod.NewModulePoolBuilder().
		WithBuilder(binmod.NewModuleBuilder().WithName("x").WithBinary([]byte{0})).
		Build()
	require.Error(t, err)
}

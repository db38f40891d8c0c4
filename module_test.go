package binmod_test

import (
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binmod/binmod-go"
)

func compileGuest(t *testing.T) []byte {
	t.Helper()
	wasm, err := wasmtime.Wat2Wasm(guestWat)
	require.NoError(t, err)
	return wasm
}

func buildModule(t *testing.T, mutate func(*binmod.ModuleBuilder)) *binmod.Module {
	t.Helper()
	b := binmod.NewModuleBuilder().
		WithName("test-module").
		WithBinary(compileGuest(t))
	if mutate != nil {
		mutate(b)
	}
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func TestModuleInstantiateAndCall(t *testing.T) {
	m := buildModule(t, nil)

	_, err := m.Instantiate()
	require.NoError(t, err)
	assert.True(t, m.IsInstantiated())

	var out int
	result, err := m.Call("add", binmod.NewFnInput())
	require.NoError(t, err)
	require.Nil(t, result.Into(&out))
	assert.Equal(t, 7, out)
}

func TestModuleTypedCall(t *testing.T) {
	m := buildModule(t, nil)
	_, err := m.Instantiate()
	require.NoError(t, err)

	out, err := binmod.TypedCall[int](m, "add")
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}

func TestModuleInstantiateTwiceFails(t *testing.T) {
	m := buildModule(t, nil)
	_, err := m.Instantiate()
	require.NoError(t, err)

	_, err = m.Instantiate()
	require.ErrorIs(t, err, binmod.ErrAlreadyInstantiated)
}

func TestModuleCallBeforeInstantiateFails(t *testing.T) {
	m := buildModule(t, nil)
	_, err := m.Call("add", binmod.NewFnInput())
	require.ErrorIs(t, err, binmod.ErrNotInstantiated)
}

func TestModuleCallUnknownFunction(t *testing.T) {
	m := buildModule(t, nil)
	_, err := m.Instantiate()
	require.NoError(t, err)

	_, err = m.Call("does_not_exist", binmod.NewFnInput())
	require.Error(t, err)
	var me *binmod.ModuleError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, binmod.KindFunctionNotFound, me.Kind)
}

func TestModuleCallTrapSurfacesAsTrapKind(t *testing.T) {
	m := buildModule(t, nil)
	_, err := m.Instantiate()
	require.NoError(t, err)

	_, err = m.Call("explode", binmod.NewFnInput())
	require.Error(t, err)
	var me *binmod.ModuleError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, binmod.KindTrap, me.Kind)
}

func TestModuleHostFnRoundTrip(t *testing.T) {
	greet := binmod.HostFn1(func(name string) (string, error) {
		return "hello " + name, nil
	})

	m := buildModule(t, func(b *binmod.ModuleBuilder) {
		b.WithHostFn("greet", greet)
	})
	_, err := m.Instantiate()
	require.NoError(t, err)

	out, err := binmod.TypedCall[string](m, "call_greet")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestModuleMemoryTrampolineRoundTrip(t *testing.T) {
	m := buildModule(t, nil)
	_, err := m.Instantiate()
	require.NoError(t, err)

	var out int
	result, err := m.Call("round_trip", binmod.NewFnInput())
	require.NoError(t, err)
	require.Nil(t, result.Into(&out))
	assert.Equal(t, 7, out)
}

func TestModuleFuelExhaustionTrapsAndGetFuelReflectsBudget(t *testing.T) {
	m := buildModule(t, func(b *binmod.ModuleBuilder) {
		b.WithConfig(binmod.DefaultModuleConfig().WithConsumeFuel(true))
	})
	_, err := m.Instantiate()
	require.NoError(t, err)

	require.NoError(t, m.SetFuel(100))

	fuel, err := m.GetFuel()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), fuel)

	_, err = m.Call("burn_fuel", binmod.NewFnInput())
	require.Error(t, err)
	var me *binmod.ModuleError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, binmod.KindTrap, me.Kind)
}

func TestModuleIDIsSetAndUniquePerClone(t *testing.T) {
	m := buildModule(t, nil)
	assert.NotEmpty(t, m.ID())

	clone := m.Clone()
	assert.NotEmpty(t, clone.ID())
	assert.NotEqual(t, m.ID(), clone.ID())
}

func TestModuleCloneStartsUninstantiated(t *testing.T) {
	m := buildModule(t, nil)
	_, err := m.Instantiate()
	require.NoError(t, err)

	clone := m.Clone()
	assert.False(t, clone.IsInstantiated())

	_, err = clone.Instantiate()
	require.NoError(t, err)
	assert.True(t, clone.IsInstantiated())
}

func TestModuleBuilderRequiresNameAndBinary(t *testing.T) {
	_, err := binmod.NewModuleBuilder().Build()
	require.Error(t, err)

	_, err = binmod.NewModuleBuilder().WithName("x").Build()
	require.Error(t, err)
}

func TestModuleBuilderDefaultsNamespace(t *testing.T) {
	m := buildModule(t, nil)
	assert.Equal(t, "env", m.Namespace())
}

func TestModuleExportsListsCallableFunctions(t *testing.T) {
	m := buildModule(t, nil)
	_, err := m.Instantiate()
	require.NoError(t, err)

	exports := m.Exports()
	assert.Contains(t, exports, "add")
	assert.Contains(t, exports, "initialize")
	assert.NotContains(t, exports, "guest_alloc")
}

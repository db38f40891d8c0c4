package binmod_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/binmod/binmod-go"
)

func TestDefaultModuleConfig(t *testing.T) {
	c := binmod.DefaultModuleConfig()
	assert.Equal(t, binmod.CompilerWinch, c.Compiler)
	assert.True(t, c.Threads)
	assert.True(t, c.SIMD)
	assert.False(t, c.ConsumeFuel)
}

func TestModuleConfigBuildersChain(t *testing.T) {
	c := binmod.DefaultModuleConfig().
		WithCompiler(binmod.CompilerCranelift).
		WithConsumeFuel(true).
		WithEpochInterruption(true)

	assert.Equal(t, binmod.CompilerCranelift, c.Compiler)
	assert.True(t, c.ConsumeFuel)
	assert.True(t, c.EpochInterruption)
}

func TestDefaultModuleLimitsIsUnlimited(t *testing.T) {
	l := binmod.DefaultModuleLimits()
	assert.Equal(t, int64(-1), l.MemorySize)
}

func TestModuleLimitsWithMemorySize(t *testing.T) {
	l := binmod.DefaultModuleLimits().WithMemorySize(1 << 20)
	assert.Equal(t, int64(1<<20), l.MemorySize)
}

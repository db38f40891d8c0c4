package binmod

import (
	"github.com/bytecodealliance/wasmtime-go/v25"
)

// ModuleCompiler selects the wasmtime compilation strategy.
type ModuleCompiler string

const (
	CompilerAuto      ModuleCompiler = "auto"
	CompilerCranelift ModuleCompiler = "cranelift"
	CompilerWinch     ModuleCompiler = "winch"
)

// ModuleConfig carries the engine feature flags that apply to every
// instance built from a Module: compiler choice, preemption toggles, and
// the wasm proposal surface to expose to guests.
type ModuleConfig struct {
	Compiler                 ModuleCompiler
	EpochInterruption        bool
	ConsumeFuel              bool
	Cache                    bool
	Threads                  bool
	TailCall                 bool
	SIMD                     bool
	RelaxedSIMD              bool
	RelaxedSIMDDeterministic bool
	Memory64                 bool
}

// DefaultModuleConfig returns the feature defaults: Winch compiler, threads
// and SIMD on, everything else off, matching existing guest expectations.
func DefaultModuleConfig() ModuleConfig {
	return ModuleConfig{
		Compiler: CompilerWinch,
		Threads:  true,
		SIMD:     true,
	}
}

func (c ModuleConfig) WithCompiler(v ModuleCompiler) ModuleConfig { c.Compiler = v; return c }
func (c ModuleConfig) WithEpochInterruption(v bool) ModuleConfig  { c.EpochInterruption = v; return c }
func (c ModuleConfig) WithConsumeFuel(v bool) ModuleConfig        { c.ConsumeFuel = v; return c }
func (c ModuleConfig) WithCache(v bool) ModuleConfig              { c.Cache = v; return c }
func (c ModuleConfig) WithThreads(v bool) ModuleConfig            { c.Threads = v; return c }
func (c ModuleConfig) WithTailCall(v bool) ModuleConfig           { c.TailCall = v; return c }
func (c ModuleConfig) WithSIMD(v bool) ModuleConfig               { c.SIMD = v; return c }
func (c ModuleConfig) WithRelaxedSIMD(v bool) ModuleConfig        { c.RelaxedSIMD = v; return c }
func (c ModuleConfig) WithRelaxedSIMDDeterministic(v bool) ModuleConfig {
	c.RelaxedSIMDDeterministic = v
	return c
}
func (c ModuleConfig) WithMemory64(v bool) ModuleConfig { c.Memory64 = v; return c }

// toWasmtimeConfig builds the wasmtime.Config the engine is constructed
// from. forceAsync/forceFuel are applied by AsyncModule, which requires
// cooperative execution regardless of what the caller configured.
func (c ModuleConfig) toWasmtimeConfig(forceAsync, forceFuel bool) *wasmtime.Config {
	cfg := wasmtime.NewConfig()

	switch c.Compiler {
	case CompilerCranelift:
		cfg.SetCraneliftOptLevel(wasmtime.OptLevelSpeed)
		cfg.SetStrategy(wasmtime.StrategyCranelift)
	case CompilerWinch:
		cfg.SetStrategy(wasmtime.StrategyWinch)
	default:
		cfg.SetStrategy(wasmtime.StrategyAuto)
	}

	if c.Cache {
		cfg.CacheConfigLoadDefault()
	}

	cfg.SetEpochInterruption(c.EpochInterruption)
	cfg.SetConsumeFuel(c.ConsumeFuel || forceFuel)
	cfg.SetWasmThreads(c.Threads)
	cfg.SetWasmTailCall(c.TailCall)
	cfg.SetWasmSIMD(c.SIMD)
	cfg.SetWasmRelaxedSIMD(c.RelaxedSIMD)
	cfg.SetWasmRelaxedSIMDDeterministic(c.RelaxedSIMDDeterministic)
	cfg.SetWasmMemory64(c.Memory64)
	cfg.SetWasmMultiValue(true)
	cfg.SetParallelCompilation(true)

	if forceAsync {
		cfg.SetAsyncSupport(true)
	}

	return cfg
}

// ModuleLimits bounds the resources a single instance's store may consume.
// MemorySize is the max linear-memory byte count; negative means unlimited.
type ModuleLimits struct {
	MemorySize int64
}

// DefaultModuleLimits returns unlimited memory.
func DefaultModuleLimits() ModuleLimits {
	return ModuleLimits{MemorySize: -1}
}

func (l ModuleLimits) WithMemorySize(n int64) ModuleLimits { l.MemorySize = n; return l }

// applyTo installs the limits on store via Store.Limiter, which takes the
// five resource ceilings directly rather than a limiter callback object.
// Negative values (including MemorySize's "unlimited" convention) pass
// through as -1, wasmtime's own sentinel for "no limit".
func (l ModuleLimits) applyTo(store *wasmtime.Store) {
	memorySize := l.MemorySize
	if memorySize < 0 {
		memorySize = -1
	}
	store.Limiter(memorySize, -1, -1, -1, -1)
}

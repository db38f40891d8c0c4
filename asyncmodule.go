package binmod

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/bytecodealliance/wasmtime-go/v25"
)

// AsyncModule is the cooperative-execution counterpart to Module. Go has no
// async/await and the wasmtime-go binding exposes no async call surface
// matching the upstream engine's, so "async" here means: async support
// plus fuel consumption are forced on, execution runs on its own
// goroutine, and every blocking entry point takes a context.Context that
// aborts the wait (not the in-flight call itself — wasmtime gives no
// mid-call cancellation hook either way) if the caller gives up first.
type AsyncModule struct {
	name      string
	namespace string
	binary    []byte
	env       ModuleEnv
	config    ModuleConfig
	limits    ModuleLimits
	hostFns   map[string]*HostFn

	// fuelYieldInterval is carried from the builder (default 10000) but is
	// currently inert: wasmtime-go's Store has no fuel-async-yield-interval
	// setter to hand it to, so cooperative yielding instead comes entirely
	// from running each call on its own goroutine and racing it against
	// ctx.Done() in blockOn. Kept on the struct so a future binding upgrade
	// that does expose the setter has somewhere to plug it in.
	fuelYieldInterval uint64

	mu          sync.Mutex
	engine      *wasmtime.Engine
	linker      *wasmtime.Linker
	compiled    *wasmtime.Module
	instancePre *wasmtime.InstancePre
	store       *wasmtime.Store
	instance    *wasmtime.Instance
	memory      *memoryOps
}

func (m *AsyncModule) Name() string          { return m.name }
func (m *AsyncModule) Namespace() string     { return m.namespace }
func (m *AsyncModule) Binary() []byte        { return m.binary }
func (m *AsyncModule) Environment() ModuleEnv { return m.env }

// IsInstantiated reports whether the module has reached S3/S4.
func (m *AsyncModule) IsInstantiated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instance != nil
}

// Exports lists the callable export names discovered on the compiled
// instance; see Module.Exports for the shape filter applied.
func (m *AsyncModule) Exports() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.compiled == nil {
		return nil
	}
	return callableExports(m.compiled)
}

// Instantiate links and instantiates the module and seeds its store with
// maximum fuel. The fuel-yield interval is not applied (see the
// fuelYieldInterval field comment).
func (m *AsyncModule) Instantiate(ctx context.Context) (*AsyncModule, error) {
	return m, blockOn(ctx, func(ctx context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.instance != nil {
			return ErrAlreadyInstantiated
		}

		entry := moduleLogFields(m.name, m.namespace)

		if m.engine == nil {
			engine := wasmtime.NewEngineWithConfig(m.config.toWasmtimeConfig(true, true))
			linker := wasmtime.NewLinker(engine)

			if err := defineAsyncMemoryTrampolines(linker); err != nil {
				return wrapErr(KindInstantiation, "failed to define binmod memory trampolines", err)
			}
			if err := defineHostFns(linker, m.namespace, m.hostFns); err != nil {
				return wrapErr(KindInstantiation, "failed to define host functions", err)
			}

			m.engine = engine
			m.linker = linker
		}

		if m.instancePre == nil {
			if err := m.linker.DefineWasi(); err != nil {
				return wrapErr(KindInstantiation, "failed to link wasi", err)
			}
			wasmMod, err := wasmtime.NewModule(m.engine, m.binary)
			if err != nil {
				return wrapErr(KindInstantiation, "failed to compile module", err)
			}
			instancePre, err := m.linker.InstantiatePre(wasmMod)
			if err != nil {
				return wrapErr(KindInstantiation, "failed to create instance pre", err)
			}
			m.compiled = wasmMod
			m.instancePre = instancePre
		}

		store := wasmtime.NewStore(m.engine)
		// toWasiConfig does not carry network policy: ModuleNetwork is enforced
		// only via ModuleEnv.NetworkAllowed, not at the WASI layer.
		store.SetWasi(m.env.toWasiConfig())
		m.limits.applyTo(store)
		if err := store.SetFuel(math.MaxUint64); err != nil {
			return wrapErr(KindFuelNotEnabled, "failed to seed fuel", err)
		}

		instance, err := m.instancePre.Instantiate(store)
		if err != nil {
			return wrapErr(KindInstantiation, "failed to instantiate module", err)
		}
		m.store = store
		m.instance = instance

		memory, mErr := newMemoryOpsFromInstance(instance, store)
		if mErr != nil {
			return mErr
		}
		m.memory = memory

		if initFn := instance.GetFunc(store, "_initialize"); initFn != nil {
			if _, err := initFn.Call(store); err != nil {
				return wrapErr(KindInstantiation, "failed to call _initialize", err)
			}
		}

		if _, err := m.call(ctx, "initialize", NewFnInput()); err != nil {
			var me *ModuleError
			if errors.As(err, &me) && me.Kind == KindFunctionNotFound {
				// No initializer exported: not an error.
			} else {
				return err
			}
		}

		entry.Debug("async module instantiated")
		return nil
	})
}

// Call invokes the named guest-exported function cooperatively: the actual
// wasmtime call runs on its own goroutine so ctx cancellation can return
// control to the caller even though the underlying call cannot be aborted
// mid-flight.
func (m *AsyncModule) Call(ctx context.Context, name string, input *FnInput) (*FnResult, error) {
	var result *FnResult
	err := blockOn(ctx, func(ctx context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		r, err := m.call(ctx, name, input)
		result = r
		return err
	})
	return result, err
}

func (m *AsyncModule) call(ctx context.Context, name string, input *FnInput) (*FnResult, error) {
	if m.instance == nil || m.store == nil || m.memory == nil {
		return nil, ErrNotInstantiated
	}

	fn := m.instance.GetFunc(m.store, name)
	if fn == nil {
		return nil, newErr(KindFunctionNotFound, fmt.Sprintf("failed to get function %q", name))
	}

	payload, fe := input.ToBytes()
	if fe != nil {
		return nil, wrapErr(KindSerialize, "failed to serialize input", fe)
	}
	inPtr, inLen, mErr := m.memory.write(m.store, payload)
	if mErr != nil {
		return nil, mErr
	}

	if err := m.store.SetFuel(math.MaxUint64); err != nil {
		return nil, wrapErr(KindFuelNotEnabled, "fuel not enabled", err)
	}

	ret, err := fn.Call(m.store, int32(inPtr), int32(inLen))
	if err != nil {
		return nil, wrapErr(KindTrap, fmt.Sprintf("call to %q trapped", name), err)
	}
	packed, ok := ret.(int64)
	if !ok {
		return nil, newErr(KindRuntime, fmt.Sprintf("call to %q returned unexpected type", name))
	}

	resultPtr, resultLen := unpackPtr(uint64(packed))
	raw, mErr := m.memory.read(m.store, resultPtr, resultLen)
	if mErr != nil {
		return nil, mErr
	}

	fnResult, fe := FnResultFromBytes(raw)
	if fe != nil {
		return nil, wrapErr(KindDeserialize, "failed to parse result", fe)
	}
	return fnResult, nil
}

// TypedCallAsync calls name with args marshalled via FnInput and decodes the
// result into R.
func TypedCallAsync[R any](ctx context.Context, m *AsyncModule, name string, args ...any) (R, error) {
	var zero R
	in, fe := NewFnInput().WithArgs(args...)
	if fe != nil {
		return zero, fe
	}
	result, err := m.Call(ctx, name, in)
	if err != nil {
		return zero, err
	}
	var out R
	if fe := result.Into(&out); fe != nil {
		return zero, fe
	}
	return out, nil
}

// Clone duplicates the module's configuration and shared linked handles.
// The clone starts at S2 and must be instantiated independently.
func (m *AsyncModule) Clone() *AsyncModule {
	m.mu.Lock()
	defer m.mu.Unlock()

	hostFns := make(map[string]*HostFn, len(m.hostFns))
	for k, v := range m.hostFns {
		hostFns[k] = v
	}

	return &AsyncModule{
		name:              m.name,
		namespace:         m.namespace,
		binary:            m.binary,
		env:               m.env,
		config:            m.config,
		limits:            m.limits,
		hostFns:           hostFns,
		fuelYieldInterval: m.fuelYieldInterval,
		engine:            m.engine,
		linker:            m.linker,
		compiled:          m.compiled,
		instancePre:       m.instancePre,
	}
}

func defineAsyncMemoryTrampolines(linker *wasmtime.Linker) error {
	return defineMemoryTrampolines(linker)
}

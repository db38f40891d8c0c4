package binmod

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/google/uuid"
)

const hostNamespace = "binmod"

// Module is a Binmod instance template plus whatever runtime state it has
// accumulated. A freshly-built Module is in state S0 (Declared); each of
// engine/linker construction, pre-instantiation, and instantiation moves it
// forward: Declared -> engine-linked -> pre-instantiated -> instantiated ->
// called.
type Module struct {
	id        string
	name      string
	namespace string
	binary    []byte
	env       ModuleEnv
	config    ModuleConfig
	limits    ModuleLimits
	hostFns   map[string]*HostFn

	mu          sync.Mutex
	engine      *wasmtime.Engine
	linker      *wasmtime.Linker
	compiled    *wasmtime.Module
	instancePre *wasmtime.InstancePre
	store       *wasmtime.Store
	instance    *wasmtime.Instance
	memory      *memoryOps
}

// ID returns the module's unique identity, assigned at build time and
// regenerated on Clone so clones are independently traceable through logs.
func (m *Module) ID() string { return m.id }

// Name returns the module's configured name.
func (m *Module) Name() string { return m.name }

// Namespace returns the link namespace host functions are registered
// under.
func (m *Module) Namespace() string { return m.namespace }

// Binary returns the module's raw WebAssembly bytes.
func (m *Module) Binary() []byte { return m.binary }

// Environment returns the sandbox environment this module was built with.
func (m *Module) Environment() ModuleEnv { return m.env }

// IsInstantiated reports whether the module has reached S3/S4.
func (m *Module) IsInstantiated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instance != nil
}

// SetFuel sets the remaining fuel on the module's store. Requires the
// module to be instantiated with ConsumeFuel enabled.
func (m *Module) SetFuel(fuel uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNotInstantiated
	}
	if err := m.store.SetFuel(fuel); err != nil {
		return wrapErr(KindFuelNotEnabled, "fuel not enabled", err)
	}
	return nil
}

// GetFuel returns the remaining fuel on the module's store.
func (m *Module) GetFuel() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return 0, ErrNotInstantiated
	}
	fuel, err := m.store.GetFuel()
	if err != nil {
		return 0, wrapErr(KindFuelNotEnabled, "fuel not enabled", err)
	}
	return fuel, nil
}

// SetEpochDeadline sets the epoch at which the store's execution traps.
// Effective only when epoch interruption was enabled in ModuleConfig.
func (m *Module) SetEpochDeadline(deadline uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNotInstantiated
	}
	m.store.SetEpochDeadline(deadline)
	return nil
}

// IncrementEpoch bumps the module's engine epoch counter, pushing every
// store sharing that engine one tick closer to its deadline.
func (m *Module) IncrementEpoch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine == nil {
		return ErrNotInstantiated
	}
	m.engine.IncrementEpoch()
	return nil
}

// Exports lists the callable export names discovered on the compiled
// instance: functions shaped (i32,i32)->i64, the only shape the marshalling
// ABI can invoke. Useful for host-side introspection and logging without
// risking a FunctionNotFound call.
func (m *Module) Exports() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.compiled == nil {
		return nil
	}
	return callableExports(m.compiled)
}

// Instantiate builds the engine, linker, and pre-instance (if not already
// built) and materializes a fresh store and instance, running _initialize
// and initialize if the guest exports them. It fails with
// ErrAlreadyInstantiated if called twice.
func (m *Module) Instantiate() (*Module, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.instance != nil {
		return nil, ErrAlreadyInstantiated
	}

	entry := moduleLogFields(m.name, m.namespace).WithField("id", m.id)

	if m.engine == nil {
		engine := wasmtime.NewEngineWithConfig(m.config.toWasmtimeConfig(false, false))
		linker := wasmtime.NewLinker(engine)

		if err := defineMemoryTrampolines(linker); err != nil {
			return nil, wrapErr(KindInstantiation, "failed to define binmod memory trampolines", err)
		}
		if err := defineHostFns(linker, m.namespace, m.hostFns); err != nil {
			return nil, wrapErr(KindInstantiation, "failed to define host functions", err)
		}

		m.engine = engine
		m.linker = linker
	}

	if m.instancePre == nil {
		if err := m.linker.DefineWasi(); err != nil {
			return nil, wrapErr(KindInstantiation, "failed to link wasi", err)
		}

		wasmMod, err := wasmtime.NewModule(m.engine, m.binary)
		if err != nil {
			return nil, wrapErr(KindInstantiation, "failed to compile module", err)
		}
		instancePre, err := m.linker.InstantiatePre(wasmMod)
		if err != nil {
			return nil, wrapErr(KindInstantiation, "failed to create instance pre", err)
		}
		m.compiled = wasmMod
		m.instancePre = instancePre
	}

	store := wasmtime.NewStore(m.engine)
	// toWasiConfig does not carry network policy: ModuleNetwork is enforced
	// only via ModuleEnv.NetworkAllowed, not at the WASI layer.
	store.SetWasi(m.env.toWasiConfig())
	m.limits.applyTo(store)
	if m.config.ConsumeFuel {
		// A new store holds no fuel; seed it so the initializers can run.
		// SetFuel replaces this budget afterwards.
		if err := store.SetFuel(math.MaxUint64); err != nil {
			return nil, wrapErr(KindFuelNotEnabled, "failed to seed fuel", err)
		}
	}

	instance, err := m.instancePre.Instantiate(store)
	if err != nil {
		return nil, wrapErr(KindInstantiation, "failed to instantiate module", err)
	}
	m.store = store
	m.instance = instance

	memory, mErr := newMemoryOpsFromInstance(instance, store)
	if mErr != nil {
		return nil, mErr
	}
	m.memory = memory

	if initFn := instance.GetFunc(store, "_initialize"); initFn != nil {
		if _, err := initFn.Call(store); err != nil {
			return nil, wrapErr(KindInstantiation, "failed to call _initialize", err)
		}
	}

	if _, err := m.call("initialize", NewFnInput()); err != nil {
		var me *ModuleError
		if errors.As(err, &me) && me.Kind == KindFunctionNotFound {
			// No initializer exported: not an error.
		} else {
			return nil, err
		}
	}

	entry.Debug("module instantiated")
	return m, nil
}

// Call invokes the named guest-exported function with input and returns its
// raw FnResult.
func (m *Module) Call(name string, input *FnInput) (*FnResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.call(name, input)
}

func (m *Module) call(name string, input *FnInput) (*FnResult, error) {
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

	result, fe := FnResultFromBytes(raw)
	if fe != nil {
		return nil, wrapErr(KindDeserialize, "failed to parse result", fe)
	}
	return result, nil
}

// TypedCall calls name with args marshalled via FnInput and decodes the
// result into R.
func TypedCall[R any](m *Module, name string, args ...any) (R, error) {
	var zero R
	in, fe := NewFnInput().WithArgs(args...)
	if fe != nil {
		return zero, fe
	}
	result, err := m.Call(name, in)
	if err != nil {
		return zero, err
	}
	var out R
	if fe := result.Into(&out); fe != nil {
		return zero, fe
	}
	return out, nil
}

// Clone duplicates the module's configuration and, when already linked,
// its shared engine/linker/instance_pre handles. The clone's store and
// instance are left unset so it begins at S2 and must be instantiated
// independently.
func (m *Module) Clone() *Module {
	m.mu.Lock()
	defer m.mu.Unlock()

	hostFns := make(map[string]*HostFn, len(m.hostFns))
	for k, v := range m.hostFns {
		hostFns[k] = v
	}

	return &Module{
		id:          uuid.NewString(),
		name:        m.name,
		namespace:   m.namespace,
		binary:      m.binary,
		env:         m.env,
		config:      m.config,
		limits:      m.limits,
		hostFns:     hostFns,
		engine:      m.engine,
		linker:      m.linker,
		compiled:    m.compiled,
		instancePre: m.instancePre,
	}
}

// callableExports filters a compiled module's export list down to the
// shape the marshalling ABI can invoke: (i32,i32) -> i64.
func callableExports(mod *wasmtime.Module) []string {
	var names []string
	for _, export := range mod.Exports() {
		fnType := export.Type().FuncType()
		if fnType == nil {
			continue
		}
		params := fnType.Params()
		results := fnType.Results()
		if len(params) != 2 || len(results) != 1 {
			continue
		}
		if params[0].Kind() != wasmtime.KindI32 || params[1].Kind() != wasmtime.KindI32 {
			continue
		}
		if results[0].Kind() != wasmtime.KindI64 {
			continue
		}
		names = append(names, export.Name())
	}
	return names
}

func defineMemoryTrampolines(linker *wasmtime.Linker) error {
	hostAlloc := func(caller *wasmtime.Caller, size int32) int32 {
		fn := caller.GetExport("guest_alloc")
		if fn == nil || fn.Func() == nil {
			return 0
		}
		ret, err := fn.Func().Call(caller, size)
		if err != nil {
			return 0
		}
		ptr, _ := ret.(int32)
		return ptr
	}
	hostDealloc := func(caller *wasmtime.Caller, ptr, size int32) {
		fn := caller.GetExport("guest_dealloc")
		if fn == nil || fn.Func() == nil {
			return
		}
		_, _ = fn.Func().Call(caller, ptr, size)
	}

	if err := linker.DefineFunc(hostNamespace, "host_alloc", hostAlloc); err != nil {
		return err
	}
	return linker.DefineFunc(hostNamespace, "host_dealloc", hostDealloc)
}

func defineHostFns(linker *wasmtime.Linker, namespace string, hostFns map[string]*HostFn) error {
	for name, hostFn := range hostFns {
		hostFn := hostFn
		wrapped := func(caller *wasmtime.Caller, packed int64) int64 {
			memory, mErr := newMemoryOpsFromCaller(caller)
			if mErr != nil {
				return encodeHostFnResult(caller, memory, ErrorResult(fnErrorf("MemoryError", "%v", mErr)))
			}

			inPtr, inLen := unpackPtr(uint64(packed))
			raw, mErr := memory.read(caller, inPtr, inLen)
			if mErr != nil {
				return encodeHostFnResult(caller, memory, ErrorResult(fnErrorf("MemoryError", "%v", mErr)))
			}

			input, fe := FnInputFromBytes(raw)
			if fe != nil {
				return encodeHostFnResult(caller, memory, ErrorResult(fe))
			}

			result := hostFn.call(input)
			return encodeHostFnResult(caller, memory, result)
		}
		if err := linker.DefineFunc(namespace, name, wrapped); err != nil {
			return err
		}
	}
	return nil
}

func encodeHostFnResult(store wasmtime.Storelike, memory *memoryOps, result *FnResult) int64 {
	bytes, fe := result.ToBytes()
	if fe != nil || memory == nil {
		return 0
	}
	ptr, length, mErr := memory.write(store, bytes)
	if mErr != nil {
		return 0
	}
	return int64(packPtr(ptr, length))
}


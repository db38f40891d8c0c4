package binmod

import "github.com/google/uuid"

// ModuleBuilder assembles a Module or AsyncModule from a WebAssembly binary,
// its name/namespace, sandbox environment, engine configuration, resource
// limits, and host function registrations. Build/BuildAsync validate the
// required fields and apply defaults, matching the upstream builder's rules.
type ModuleBuilder struct {
	name      string
	namespace string
	binary    []byte

	config      ModuleConfig
	limits      ModuleLimits
	environment ModuleEnv
	hostFns     map[string]*HostFn

	fuelYieldInterval *uint64
}

// NewModuleBuilder returns a builder with every field defaulted.
func NewModuleBuilder() *ModuleBuilder {
	return &ModuleBuilder{
		config:      DefaultModuleConfig(),
		limits:      DefaultModuleLimits(),
		environment: DefaultModuleEnv(),
		hostFns:     make(map[string]*HostFn),
	}
}

// WithBinary sets the raw WebAssembly bytes to compile.
func (b *ModuleBuilder) WithBinary(binary []byte) *ModuleBuilder {
	b.binary = binary
	return b
}

// WithName sets the module's name, used for logging and clone identity.
func (b *ModuleBuilder) WithName(name string) *ModuleBuilder {
	b.name = name
	return b
}

// WithNamespace sets the link namespace host functions are registered
// under. Defaults to "env" if never set.
func (b *ModuleBuilder) WithNamespace(namespace string) *ModuleBuilder {
	b.namespace = namespace
	return b
}

// WithEnvironment replaces the sandbox environment.
func (b *ModuleBuilder) WithEnvironment(env ModuleEnv) *ModuleBuilder {
	b.environment = env
	return b
}

// WithConfig replaces the engine feature configuration.
func (b *ModuleBuilder) WithConfig(config ModuleConfig) *ModuleBuilder {
	b.config = config
	return b
}

// WithLimits replaces the resource limits.
func (b *ModuleBuilder) WithLimits(limits ModuleLimits) *ModuleBuilder {
	b.limits = limits
	return b
}

// WithHostFn registers a host function under name.
func (b *ModuleBuilder) WithHostFn(name string, fn *HostFn) *ModuleBuilder {
	b.hostFns[name] = fn
	return b
}

// WithFuelYieldInterval records how much fuel an AsyncModule should consume
// between cooperative yield points. Ignored by Build; only BuildAsync
// stores it, and even there it is currently inert (see the fuelYieldInterval
// field comment on AsyncModule) for lack of a wasmtime-go setter to apply it
// to.
func (b *ModuleBuilder) WithFuelYieldInterval(interval uint64) *ModuleBuilder {
	b.fuelYieldInterval = &interval
	return b
}

func (b *ModuleBuilder) validate() error {
	if len(b.binary) == 0 {
		return newErr(KindInvalidModuleConfig, "module binary is required")
	}
	if b.name == "" {
		return newErr(KindInvalidModuleConfig, "module name is required")
	}
	return nil
}

func (b *ModuleBuilder) namespaceOrDefault() string {
	if b.namespace == "" {
		return "env"
	}
	return b.namespace
}

func (b *ModuleBuilder) cloneHostFns() map[string]*HostFn {
	hostFns := make(map[string]*HostFn, len(b.hostFns))
	for k, v := range b.hostFns {
		hostFns[k] = v
	}
	return hostFns
}

// Build returns a Module in state S0 (Declared); call Instantiate to link
// and run it.
func (b *ModuleBuilder) Build() (*Module, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	return &Module{
		id:        uuid.NewString(),
		name:      b.name,
		namespace: b.namespaceOrDefault(),
		binary:    b.binary,
		env:       b.environment,
		config:    b.config,
		limits:    b.limits,
		hostFns:   b.cloneHostFns(),
	}, nil
}

// BuildAsync returns an AsyncModule in state S0. The returned module forces
// async support and fuel consumption on regardless of the builder's
// ModuleConfig, since cooperative execution requires both.
func (b *ModuleBuilder) BuildAsync() (*AsyncModule, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	interval := uint64(10000)
	if b.fuelYieldInterval != nil {
		interval = *b.fuelYieldInterval
	}
	return &AsyncModule{
		name:              b.name,
		namespace:         b.namespaceOrDefault(),
		binary:            b.binary,
		env:               b.environment,
		config:            b.config,
		limits:            b.limits,
		hostFns:           b.cloneHostFns(),
		fuelYieldInterval: interval,
	}, nil
}

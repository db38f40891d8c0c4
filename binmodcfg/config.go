// Package binmodcfg loads the declarative form of a module's sandbox
// policy and engine configuration: a ModuleEnv + ModuleConfig + ModuleLimits
// triple, checked into source control alongside the host application rather
// than assembled entirely in code via binmod.ModuleBuilder.
package binmodcfg

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/binmod/binmod-go"
)

// Document is the YAML/JSON shape a host process writes to describe a
// module's sandbox and engine policy.
type Document struct {
	Environment EnvironmentDocument `yaml:"environment"`
	Config      ConfigDocument      `yaml:"config"`
	Limits      LimitsDocument      `yaml:"limits"`
}

// EnvironmentDocument is the declarative form of binmod.ModuleEnv.
type EnvironmentDocument struct {
	Args        []string          `yaml:"args"`
	Env         map[string]string `yaml:"env"`
	Mounts      map[string]string `yaml:"mounts"` // guestPath -> hostPath
	AllowTCP    bool              `yaml:"allow_tcp"`
	AllowUDP    bool              `yaml:"allow_udp"`
	AllowDNS    bool              `yaml:"allow_dns"`
	InheritArgs bool              `yaml:"inherit_args"`
	InheritEnv  bool              `yaml:"inherit_env"`
}

// ConfigDocument is the declarative form of binmod.ModuleConfig.
type ConfigDocument struct {
	Compiler                 string `yaml:"compiler"`
	EpochInterruption        bool   `yaml:"epoch_interruption"`
	ConsumeFuel              bool   `yaml:"consume_fuel"`
	Cache                    bool   `yaml:"cache"`
	Threads                  bool   `yaml:"threads"`
	TailCall                 bool   `yaml:"tail_call"`
	SIMD                     bool   `yaml:"simd"`
	RelaxedSIMD              bool   `yaml:"relaxed_simd"`
	RelaxedSIMDDeterministic bool   `yaml:"relaxed_simd_deterministic"`
	Memory64                 bool   `yaml:"memory64"`
}

// LimitsDocument is the declarative form of binmod.ModuleLimits.
// MemorySize < 0 (the default) means unlimited.
type LimitsDocument struct {
	MemorySize int64 `yaml:"memory_size"`
}

// Load reads and parses a Document from a YAML or JSON file at path (YAML
// is a superset of JSON, so both parse through the same decoder).
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a Document from raw YAML/JSON bytes.
func Parse(data []byte) (*Document, error) {
	doc := &Document{
		Limits: LimitsDocument{MemorySize: -1},
	}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ToModuleEnv builds a binmod.ModuleEnv from the document, applying
// InheritArgs/InheritEnv first: the document's args are appended after any
// inherited ones, and its env vars replace inherited ones of the same name.
func (d *Document) ToModuleEnv() binmod.ModuleEnv {
	src := d.Environment
	env := binmod.DefaultModuleEnv()
	if src.InheritArgs {
		env = env.InheritArgs()
	}
	if src.InheritEnv {
		env = env.InheritEnv()
	}
	if len(src.Args) > 0 {
		env = env.WithArgs(src.Args...)
	}
	if len(src.Env) > 0 {
		env = env.WithEnvVars(src.Env)
	}
	if len(src.Mounts) > 0 {
		env = env.WithMountPaths(src.Mounts)
	}
	return env.
		AllowTCP(src.AllowTCP).
		AllowUDP(src.AllowUDP).
		AllowDNS(src.AllowDNS)
}

// ToModuleConfig builds a binmod.ModuleConfig from the document.
func (d *Document) ToModuleConfig() binmod.ModuleConfig {
	src := d.Config
	c := binmod.DefaultModuleConfig()
	if src.Compiler != "" {
		c = c.WithCompiler(binmod.ModuleCompiler(src.Compiler))
	}
	return c.
		WithEpochInterruption(src.EpochInterruption).
		WithConsumeFuel(src.ConsumeFuel).
		WithCache(src.Cache).
		WithThreads(src.Threads).
		WithTailCall(src.TailCall).
		WithSIMD(src.SIMD).
		WithRelaxedSIMD(src.RelaxedSIMD).
		WithRelaxedSIMDDeterministic(src.RelaxedSIMDDeterministic).
		WithMemory64(src.Memory64)
}

// ToModuleLimits builds a binmod.ModuleLimits from the document.
func (d *Document) ToModuleLimits() binmod.ModuleLimits {
	return binmod.DefaultModuleLimits().WithMemorySize(d.Limits.MemorySize)
}

package binmodcfg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binmod/binmod-go"
	"github.com/binmod/binmod-go/binmodcfg"
)

const sampleYAML = `
environment:
  args: ["--verbose"]
  env:
    LOG_LEVEL: debug
  mounts:
    /data: /host/data
  allow_tcp: true
config:
  compiler: cranelift
  consume_fuel: true
limits:
  memory_size: 1048576
`

func TestParseBuildsModuleEnv(t *testing.T) {
	doc, err := binmodcfg.Parse([]byte(sampleYAML))
	require.NoError(t, err)

	env := doc.ToModuleEnv()
	assert.Equal(t, []string{"--verbose"}, env.Args)
	assert.Equal(t, "debug", env.Env["LOG_LEVEL"])
	assert.Equal(t, "/host/data", env.Mounts["/data"])
	assert.False(t, env.NetworkAllowed("1.2.3.4:80", binmod.TcpConnect))
}

func TestParseBuildsModuleConfig(t *testing.T) {
	doc, err := binmodcfg.Parse([]byte(sampleYAML))
	require.NoError(t, err)

	cfg := doc.ToModuleConfig()
	assert.Equal(t, binmod.CompilerCranelift, cfg.Compiler)
	assert.True(t, cfg.ConsumeFuel)
}

func TestParseBuildsModuleLimits(t *testing.T) {
	doc, err := binmodcfg.Parse([]byte(sampleYAML))
	require.NoError(t, err)

	limits := doc.ToModuleLimits()
	assert.Equal(t, int64(1048576), limits.MemorySize)
}

func TestParseDefaultsToUnlimitedMemory(t *testing.T) {
	doc, err := binmodcfg.Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int64(-1), doc.ToModuleLimits().MemorySize)
}

package binmod

import (
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/stretchr/testify/assert"
)

func TestPackUnpackPtrRoundTrip(t *testing.T) {
	ptr, length := unpackPtr(packPtr(8, 27))
	assert.Equal(t, uint32(8), ptr)
	assert.Equal(t, uint32(27), length)
}

func TestPackPtrMatchesManualEncoding(t *testing.T) {
	assert.Equal(t, uint64(34359738395), packPtr(8, 27))
	assert.Equal(t, uint64(171798691857), packPtr(40, 17))
}

func TestModuleLimitsApplyToUnlimited(t *testing.T) {
	store := wasmtime.NewStore(wasmtime.NewEngine())
	assert.NotPanics(t, func() {
		DefaultModuleLimits().applyTo(store)
	})
}

func TestModuleLimitsApplyToBounded(t *testing.T) {
	store := wasmtime.NewStore(wasmtime.NewEngine())
	assert.NotPanics(t, func() {
		ModuleLimits{MemorySize: 1024}.applyTo(store)
	})
}

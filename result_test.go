package binmod_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binmod/binmod-go"
)

func TestFnResultDataWireShape(t *testing.T) {
	res, fe := binmod.DataResult(7)
	require.Nil(t, fe)

	raw, fe := res.ToBytes()
	require.Nil(t, fe)
	assert.JSONEq(t, `{"object":"data","value":7}`, string(raw))

	var out int
	require.Nil(t, res.Into(&out))
	assert.Equal(t, 7, out)
}

func TestFnResultNoneWireShape(t *testing.T) {
	res := binmod.NoneResult()
	raw, fe := res.ToBytes()
	require.Nil(t, fe)
	assert.JSONEq(t, `{"object":"data"}`, string(raw))
}

func TestFnResultErrorWireShape(t *testing.T) {
	res := binmod.ErrorResult(binmod.NewFnError("ValueError", "bad input"))
	raw, fe := res.ToBytes()
	require.Nil(t, fe)
	assert.JSONEq(t, `{"object":"error","type":"ValueError","message":"bad input"}`, string(raw))

	assert.True(t, res.IsError())
	var out int
	fe = res.Into(&out)
	require.NotNil(t, fe)
	assert.Equal(t, "ValueError", fe.Type)
}

func TestFnResultFromBytesRejectsUnknownDiscriminator(t *testing.T) {
	_, fe := binmod.FnResultFromBytes([]byte(`{"object":"nonsense"}`))
	require.NotNil(t, fe)
}

func TestFnResultFromBytesRoundTrip(t *testing.T) {
	original, fe := binmod.DataResult([]string{"a", "b"})
	require.Nil(t, fe)

	raw, fe := original.ToBytes()
	require.Nil(t, fe)

	parsed, fe := binmod.FnResultFromBytes(raw)
	require.Nil(t, fe)

	var out []string
	require.Nil(t, parsed.Into(&out))
	assert.Equal(t, []string{"a", "b"}, out)
}

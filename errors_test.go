package binmod_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/binmod/binmod-go"
)

func TestModuleErrorIsComparesKindOnly(t *testing.T) {
	a := binmod.ErrNotInstantiated
	b := &binmod.ModuleError{Kind: binmod.KindNotInstantiated, Message: "different wording entirely"}
	assert.True(t, errors.Is(b, a))

	c := &binmod.ModuleError{Kind: binmod.KindAlreadyInstantiated}
	assert.False(t, errors.Is(c, a))
}

func TestModuleErrorUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	wrapped := &binmod.ModuleError{Kind: binmod.KindIO, Cause: cause}
	assert.ErrorIs(t, wrapped, cause)
}

func TestFnErrorMessage(t *testing.T) {
	fe := binmod.NewFnError("ValueError", "out of range")
	assert.Equal(t, "ValueError: out of range", fe.Error())
}

func TestErrorKindStringNamesMatchWireTaxonomy(t *testing.T) {
	cases := map[binmod.ErrorKind]string{
		binmod.KindSerialize:       "SerializationError",
		binmod.KindMissingArg:      "MissingArg",
		binmod.KindFunctionNotFound: "FunctionNotFound",
		binmod.KindTrap:            "Trap",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

package binmod

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind categorizes a ModuleError so callers can branch on errors.Is
// without parsing message text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindSerialize
	KindDeserialize
	KindMissingArg
	KindMissingKwarg
	KindMemory
	KindFunctionNotFound
	KindInvalidFunctionSignature
	KindNotInstantiated
	KindAlreadyInstantiated
	KindFuelNotEnabled
	KindInstantiation
	KindInvalidModuleConfig
	KindTrap
	KindRuntime
	KindModuleNotFound
	KindIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindSerialize:
		return "SerializationError"
	case KindDeserialize:
		return "DeserializationError"
	case KindMissingArg:
		return "MissingArg"
	case KindMissingKwarg:
		return "MissingKwarg"
	case KindMemory:
		return "MemoryError"
	case KindFunctionNotFound:
		return "FunctionNotFound"
	case KindInvalidFunctionSignature:
		return "InvalidFunctionSignature"
	case KindNotInstantiated:
		return "NotInstantiated"
	case KindAlreadyInstantiated:
		return "AlreadyInstantiated"
	case KindFuelNotEnabled:
		return "FuelNotEnabled"
	case KindInstantiation:
		return "InstantiationError"
	case KindInvalidModuleConfig:
		return "InvalidModuleConfig"
	case KindTrap:
		return "Trap"
	case KindRuntime:
		return "RuntimeError"
	case KindModuleNotFound:
		return "ModuleNotFound"
	case KindIO:
		return "IoError"
	default:
		return "Unknown"
	}
}

// ModuleError is the single error type returned across the package's public
// API. Kind is meant for errors.Is-style comparisons; Cause, when present,
// is preserved via Unwrap so callers can still inspect the original failure
// (a wasmtime trap, a json error, an os error, ...).
type ModuleError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ModuleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

func (e *ModuleError) Unwrap() error {
	return e.Cause
}

func newErr(kind ErrorKind, message string) *ModuleError {
	return &ModuleError{Kind: kind, Message: message}
}

func wrapErr(kind ErrorKind, message string, cause error) *ModuleError {
	return &ModuleError{Kind: kind, Message: message, Cause: errors.WithStack(cause)}
}

// Sentinel errors for errors.Is comparisons against state that carries no
// extra context.
var (
	ErrNotInstantiated      = newErr(KindNotInstantiated, "module not instantiated")
	ErrAlreadyInstantiated  = newErr(KindAlreadyInstantiated, "module already instantiated")
	ErrFuelNotEnabled       = newErr(KindFuelNotEnabled, "fuel not enabled")
	ErrInvalidFunctionSig   = newErr(KindInvalidFunctionSignature, "invalid function signature")
)

// Is implements errors.Is by comparing kinds only, so a wrapped or
// differently-worded ModuleError of the same kind still matches a sentinel.
func (e *ModuleError) Is(target error) bool {
	t, ok := target.(*ModuleError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// FnError is the structured error payload carried inside an error FnResult
// and returned by the codec for malformed wire data. It is the flattened
// "type"/"message" shape that crosses the guest boundary, independent of
// ModuleError (which never crosses that boundary).
type FnError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewFnError(errType, message string) *FnError {
	return &FnError{Type: errType, Message: message}
}

func (e *FnError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func fnErrorf(errType, format string, args ...any) *FnError {
	return NewFnError(errType, fmt.Sprintf(format, args...))
}

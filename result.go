package binmod

import (
	"encoding/json"
	"fmt"
)

// FnResult is the wire form of one call's outcome: exactly one of a data
// case (possibly with no value, meaning "unit") or an error case. The wire
// discriminator is the "object" field ("data" or "error"); in the error
// case FnError's own fields are flattened alongside it rather than nested
// under a sub-object.
type FnResult struct {
	isError bool
	value   json.RawMessage // nil means "no value" in the data case
	err     FnError
}

// DataResult builds a successful FnResult by serializing value. A nil value
// produces the "no return" form (None in the wire model).
func DataResult(value any) (*FnResult, *FnError) {
	if value == nil {
		return &FnResult{}, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fnErrorf("SerializationError", "%v", err)
	}
	return &FnResult{value: raw}, nil
}

// ErrorResult builds an FnResult carrying a structured error.
func ErrorResult(e *FnError) *FnResult {
	return &FnResult{isError: true, err: *e}
}

// NoneResult builds an FnResult representing "no return value".
func NoneResult() *FnResult {
	return &FnResult{}
}

func (r *FnResult) IsError() bool { return r.isError }
func (r *FnResult) IsData() bool  { return !r.isError }

// Into deserializes the data case's value into out, or returns the error
// case's FnError if this result is an error.
func (r *FnResult) Into(out any) *FnError {
	if r.isError {
		e := r.err
		return &e
	}
	if r.value == nil {
		return nil
	}
	if err := json.Unmarshal(r.value, out); err != nil {
		return fnErrorf("DeserializationError", "%v", err)
	}
	return nil
}

type wireResult struct {
	Object  string           `json:"object"`
	Value   *json.RawMessage `json:"value,omitempty"`
	Type    string           `json:"type,omitempty"`
	Message string           `json:"message,omitempty"`
}

func (r FnResult) MarshalJSON() ([]byte, error) {
	if r.isError {
		return json.Marshal(wireResult{Object: "error", Type: r.err.Type, Message: r.err.Message})
	}
	w := wireResult{Object: "data"}
	if r.value != nil {
		v := r.value
		w.Value = &v
	}
	return json.Marshal(w)
}

func (r *FnResult) UnmarshalJSON(b []byte) error {
	var w wireResult
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Object {
	case "data":
		r.isError = false
		if w.Value != nil {
			r.value = *w.Value
		} else {
			r.value = nil
		}
	case "error":
		r.isError = true
		r.err = FnError{Type: w.Type, Message: w.Message}
	default:
		return fmt.Errorf("unrecognized FnResult discriminator %q", w.Object)
	}
	return nil
}

// ToBytes serializes the result to its canonical JSON wire form.
func (r *FnResult) ToBytes() ([]byte, *FnError) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fnErrorf("SerializationError", "%v", err)
	}
	return b, nil
}

// FnResultFromBytes parses the canonical JSON wire form into an FnResult.
func FnResultFromBytes(b []byte) (*FnResult, *FnError) {
	var r FnResult
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fnErrorf("DeserializationError", "%v", err)
	}
	return &r, nil
}

// intoFnResult converts the (value, error) pair returned by a native host
// function into the wire FnResult shape: a non-nil error always wins,
// serialization failure on a success value degrades to an error result
// rather than panicking.
func intoFnResult(value any, err error) *FnResult {
	if err != nil {
		return ErrorResult(fnErrorf(fmt.Sprintf("%T", err), "%v", err))
	}
	res, fe := DataResult(value)
	if fe != nil {
		return ErrorResult(fe)
	}
	return res
}

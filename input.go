package binmod

import "encoding/json"

// FnInput is the wire form of one call's arguments: an optional ordered
// sequence of positional values and an optional keyword map. Both fields
// are omitted from the JSON form when absent, never emitted as null.
type FnInput struct {
	Args   []json.RawMessage          `json:"args,omitempty"`
	Kwargs map[string]json.RawMessage `json:"kwargs,omitempty"`
}

// NewFnInput returns an empty FnInput with no positional or keyword
// arguments set.
func NewFnInput() *FnInput {
	return &FnInput{}
}

// WithArg appends a single positional argument, serializing it to its wire
// form immediately.
func (in *FnInput) WithArg(arg any) (*FnInput, error) {
	raw, err := json.Marshal(arg)
	if err != nil {
		return in, fnErrorf("SerializationError", "%v", err)
	}
	in.Args = append(in.Args, raw)
	return in, nil
}

// WithArgs appends each of args as a positional argument, in order.
func (in *FnInput) WithArgs(args ...any) (*FnInput, error) {
	for _, a := range args {
		if _, err := in.WithArg(a); err != nil {
			return in, err
		}
	}
	return in, nil
}

// WithKwarg sets a single keyword argument, serializing it to its wire form
// immediately.
func (in *FnInput) WithKwarg(key string, value any) (*FnInput, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return in, fnErrorf("SerializationError", "%v", err)
	}
	if in.Kwargs == nil {
		in.Kwargs = make(map[string]json.RawMessage)
	}
	in.Kwargs[key] = raw
	return in, nil
}

// WithKwargs merges kwargs into the keyword argument map.
func (in *FnInput) WithKwargs(kwargs map[string]any) (*FnInput, error) {
	for k, v := range kwargs {
		if _, err := in.WithKwarg(k, v); err != nil {
			return in, err
		}
	}
	return in, nil
}

// GetArg deserializes the positional argument at index into out. A missing
// index (absent Args, or index out of range) is reported as MissingArg, not
// a parse error.
func (in *FnInput) GetArg(index int, out any) *FnError {
	if in.Args == nil || index >= len(in.Args) {
		return fnErrorf("MissingArg", "Missing arg in position %d", index)
	}
	if err := json.Unmarshal(in.Args[index], out); err != nil {
		return fnErrorf("DeserializationError", "Failed to parse argument %d: %v", index, err)
	}
	return nil
}

// GetKwarg deserializes the keyword argument named name into out. A missing
// name is reported as MissingKwarg.
func (in *FnInput) GetKwarg(name string, out any) *FnError {
	if in.Kwargs == nil {
		return fnErrorf("MissingKwarg", "Missing kwarg: %s", name)
	}
	raw, ok := in.Kwargs[name]
	if !ok {
		return fnErrorf("MissingKwarg", "Missing kwarg: %s", name)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fnErrorf("DeserializationError", "Failed to parse kwarg '%s': %v", name, err)
	}
	return nil
}

// ToBytes serializes the input to its canonical JSON wire form.
func (in *FnInput) ToBytes() ([]byte, *FnError) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fnErrorf("SerializationError", "%v", err)
	}
	return b, nil
}

// FnInputFromBytes parses the canonical JSON wire form into an FnInput.
func FnInputFromBytes(b []byte) (*FnInput, *FnError) {
	var in FnInput
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, fnErrorf("DeserializationError", "%v", err)
	}
	return &in, nil
}

// IntoArgs decodes the entire positional argument sequence en bloc into T
// (typically a slice or a fixed-size array), rather than
// fetching positions one at a time via GetArg. Absent Args decodes as an
// empty JSON array.
func IntoArgs[T any](in *FnInput) (T, *FnError) {
	var out T
	args := in.Args
	if args == nil {
		args = []json.RawMessage{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return out, fnErrorf("DeserializationError", "%v", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fnErrorf("DeserializationError", "%v", err)
	}
	return out, nil
}

// IntoStruct decodes the entire keyword argument map en bloc into T
// (typically a struct with json tags matching the kwarg names), rather
// than fetching keys one at a time via GetKwarg. Absent Kwargs decodes as
// an empty JSON object.
func IntoStruct[T any](in *FnInput) (T, *FnError) {
	var out T
	kwargs := in.Kwargs
	if kwargs == nil {
		kwargs = map[string]json.RawMessage{}
	}
	raw, err := json.Marshal(kwargs)
	if err != nil {
		return out, fnErrorf("DeserializationError", "%v", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fnErrorf("DeserializationError", "%v", err)
	}
	return out, nil
}

// argAt is a small helper used by the HostFnN constructors to extract and
// decode the Nth positional argument in one step.
func argAt[T any](in *FnInput, index int) (T, *FnError) {
	var out T
	if fe := in.GetArg(index, &out); fe != nil {
		return out, fe
	}
	return out, nil
}

package binmod

// HostFn is a named, type-erased callable exposed to the guest in the
// module's link namespace. Once built it is immutable and safe to share
// across instances cloned from the same template.
type HostFn struct {
	dispatch func(*FnInput) *FnResult
}

// call runs the wrapped native function against input, translating any
// Go-level panic-worthy mismatch (missing arg, native error) into an
// FnResult::Error rather than propagating as a host-runtime fault.
func (h *HostFn) call(input *FnInput) *FnResult {
	return h.dispatch(input)
}

// HostFn0 wraps a zero-argument native function.
func HostFn0[R any](fn func() (R, error)) *HostFn {
	return &HostFn{dispatch: func(_ *FnInput) *FnResult {
		v, err := fn()
		return intoFnResult(v, err)
	}}
}

// HostFn1 wraps a one-argument native function.
func HostFn1[A1 any, R any](fn func(A1) (R, error)) *HostFn {
	return &HostFn{dispatch: func(in *FnInput) *FnResult {
		a1, fe := argAt[A1](in, 0)
		if fe != nil {
			return ErrorResult(fe)
		}
		v, err := fn(a1)
		return intoFnResult(v, err)
	}}
}

// HostFn2 wraps a two-argument native function.
func HostFn2[A1, A2 any, R any](fn func(A1, A2) (R, error)) *HostFn {
	return &HostFn{dispatch: func(in *FnInput) *FnResult {
		a1, fe := argAt[A1](in, 0)
		if fe != nil {
			return ErrorResult(fe)
		}
		a2, fe := argAt[A2](in, 1)
		if fe != nil {
			return ErrorResult(fe)
		}
		v, err := fn(a1, a2)
		return intoFnResult(v, err)
	}}
}

// HostFn3 wraps a three-argument native function.
func HostFn3[A1, A2, A3 any, R any](fn func(A1, A2, A3) (R, error)) *HostFn {
	return &HostFn{dispatch: func(in *FnInput) *FnResult {
		a1, fe := argAt[A1](in, 0)
		if fe != nil {
			return ErrorResult(fe)
		}
		a2, fe := argAt[A2](in, 1)
		if fe != nil {
			return ErrorResult(fe)
		}
		a3, fe := argAt[A3](in, 2)
		if fe != nil {
			return ErrorResult(fe)
		}
		v, err := fn(a1, a2, a3)
		return intoFnResult(v, err)
	}}
}

// HostFn4 wraps a four-argument native function.
func HostFn4[A1, A2, A3, A4 any, R any](fn func(A1, A2, A3, A4) (R, error)) *HostFn {
	return &HostFn{dispatch: func(in *FnInput) *FnResult {
		a1, fe := argAt[A1](in, 0)
		if fe != nil {
			return ErrorResult(fe)
		}
		a2, fe := argAt[A2](in, 1)
		if fe != nil {
			return ErrorResult(fe)
		}
		a3, fe := argAt[A3](in, 2)
		if fe != nil {
			return ErrorResult(fe)
		}
		a4, fe := argAt[A4](in, 3)
		if fe != nil {
			return ErrorResult(fe)
		}
		v, err := fn(a1, a2, a3, a4)
		return intoFnResult(v, err)
	}}
}

// HostFn5 wraps a five-argument native function.
func HostFn5[A1, A2, A3, A4, A5 any, R any](fn func(A1, A2, A3, A4, A5) (R, error)) *HostFn {
	return &HostFn{dispatch: func(in *FnInput) *FnResult {
		a1, fe := argAt[A1](in, 0)
		if fe != nil {
			return ErrorResult(fe)
		}
		a2, fe := argAt[A2](in, 1)
		if fe != nil {
			return ErrorResult(fe)
		}
		a3, fe := argAt[A3](in, 2)
		if fe != nil {
			return ErrorResult(fe)
		}
		a4, fe := argAt[A4](in, 3)
		if fe != nil {
			return ErrorResult(fe)
		}
		a5, fe := argAt[A5](in, 4)
		if fe != nil {
			return ErrorResult(fe)
		}
		v, err := fn(a1, a2, a3, a4, a5)
		return intoFnResult(v, err)
	}}
}

// HostFn6 wraps a six-argument native function.
func HostFn6[A1, A2, A3, A4, A5, A6 any, R any](fn func(A1, A2, A3, A4, A5, A6) (R, error)) *HostFn {
	return &HostFn{dispatch: func(in *FnInput) *FnResult {
		a1, fe := argAt[A1](in, 0)
		if fe != nil {
			return ErrorResult(fe)
		}
		a2, fe := argAt[A2](in, 1)
		if fe != nil {
			return ErrorResult(fe)
		}
		a3, fe := argAt[A3](in, 2)
		if fe != nil {
			return ErrorResult(fe)
		}
		a4, fe := argAt[A4](in, 3)
		if fe != nil {
			return ErrorResult(fe)
		}
		a5, fe := argAt[A5](in, 4)
		if fe != nil {
			return ErrorResult(fe)
		}
		a6, fe := argAt[A6](in, 5)
		if fe != nil {
			return ErrorResult(fe)
		}
		v, err := fn(a1, a2, a3, a4, a5, a6)
		return intoFnResult(v, err)
	}}
}

// HostFn7 wraps a seven-argument native function.
func HostFn7[A1, A2, A3, A4, A5, A6, A7 any, R any](fn func(A1, A2, A3, A4, A5, A6, A7) (R, error)) *HostFn {
	return &HostFn{dispatch: func(in *FnInput) *FnResult {
		a1, fe := argAt[A1](in, 0)
		if fe != nil {
			return ErrorResult(fe)
		}
		a2, fe := argAt[A2](in, 1)
		if fe != nil {
			return ErrorResult(fe)
		}
		a3, fe := argAt[A3](in, 2)
		if fe != nil {
			return ErrorResult(fe)
		}
		a4, fe := argAt[A4](in, 3)
		if fe != nil {
			return ErrorResult(fe)
		}
		a5, fe := argAt[A5](in, 4)
		if fe != nil {
			return ErrorResult(fe)
		}
		a6, fe := argAt[A6](in, 5)
		if fe != nil {
			return ErrorResult(fe)
		}
		a7, fe := argAt[A7](in, 6)
		if fe != nil {
			return ErrorResult(fe)
		}
		v, err := fn(a1, a2, a3, a4, a5, a6, a7)
		return intoFnResult(v, err)
	}}
}

// HostFn8 wraps an eight-argument native function, the maximum arity the
// adapter supports.
func HostFn8[A1, A2, A3, A4, A5, A6, A7, A8 any, R any](fn func(A1, A2, A3, A4, A5, A6, A7, A8) (R, error)) *HostFn {
	return &HostFn{dispatch: func(in *FnInput) *FnResult {
		a1, fe := argAt[A1](in, 0)
		if fe != nil {
			return ErrorResult(fe)
		}
		a2, fe := argAt[A2](in, 1)
		if fe != nil {
			return ErrorResult(fe)
		}
		a3, fe := argAt[A3](in, 2)
		if fe != nil {
			return ErrorResult(fe)
		}
		a4, fe := argAt[A4](in, 3)
		if fe != nil {
			return ErrorResult(fe)
		}
		a5, fe := argAt[A5](in, 4)
		if fe != nil {
			return ErrorResult(fe)
		}
		a6, fe := argAt[A6](in, 5)
		if fe != nil {
			return ErrorResult(fe)
		}
		a7, fe := argAt[A7](in, 6)
		if fe != nil {
			return ErrorResult(fe)
		}
		a8, fe := argAt[A8](in, 7)
		if fe != nil {
			return ErrorResult(fe)
		}
		v, err := fn(a1, a2, a3, a4, a5, a6, a7, a8)
		return intoFnResult(v, err)
	}}
}

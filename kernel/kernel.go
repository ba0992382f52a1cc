// Package kernel holds the compiled, monomorphic operations a block runs.
//
// A kernel is bound once to the cells of its inputs and output. Solve reads
// the current input values and writes the output cell in place; it never
// allocates a new output cell and cannot fail. Everything that can fail is
// checked by the dispatcher before a kernel is built.
package kernel

import "github.com/chazu/mech/value"

// Kernel is one compiled operation.
type Kernel interface {
	// Solve recomputes the output from the current inputs.
	Solve()
	// Out returns the output value. Its cell is stable across Solve calls.
	Out() value.Value
	String() string
}

// Source yields the current value of an aggregate input. Live sources
// follow a MutableReference on every call.
type Source func() value.Value

// Const returns a source that always yields v.
func Const(v value.Value) Source {
	return func() value.Value { return v }
}

// Live returns a source that dereferences r on every call.
func Live(r value.MutableReference) Source {
	return func() value.Value { return value.Deref(r) }
}

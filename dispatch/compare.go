package dispatch

import (
	"github.com/chazu/mech/kernel"
	"github.com/chazu/mech/value"
)

type ordered interface {
	value.Real | ~string
}

type comparison int

const (
	opGT comparison = iota
	opLT
	opGTE
	opLTE
	opEQ
	opNEQ
)

func orderFn[T ordered](op comparison) func(a, b T) bool {
	switch op {
	case opGT:
		return func(a, b T) bool { return a > b }
	case opLT:
		return func(a, b T) bool { return a < b }
	case opGTE:
		return func(a, b T) bool { return a >= b }
	case opLTE:
		return func(a, b T) bool { return a <= b }
	case opNEQ:
		return func(a, b T) bool { return a != b }
	}
	return func(a, b T) bool { return a == b }
}

func eqFn[T value.Elem](op comparison) func(a, b T) bool {
	if op == opNEQ {
		return func(a, b T) bool { return a != b }
	}
	return func(a, b T) bool { return a == b }
}

// compileOrder builds an ordering comparison over integers, floats and
// strings.
func compileOrder(op comparison) CompileFunc {
	return func(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
		l, r := args[0], args[1]
		return try(
			func() (kernel.Kernel, error) { return binary(d, name, l, r, orderFn[int8](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, orderFn[int16](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, orderFn[int32](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, orderFn[int64](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, orderFn[uint8](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, orderFn[uint16](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, orderFn[uint32](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, orderFn[uint64](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, orderFn[value.F32](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, orderFn[value.F64](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, orderFn[string](op)) },
		)
	}
}

// compileEquality builds equal or not-equal over every element kind.
func compileEquality(op comparison) CompileFunc {
	order := compileOrder(op)
	return func(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
		l, r := args[0], args[1]
		return try(
			func() (kernel.Kernel, error) { return order(d, name, args) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, eqFn[bool](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, eqFn[value.C64](op)) },
		)
	}
}

type logic int

const (
	opAnd logic = iota
	opOr
	opXor
)

func compileLogic(op logic) CompileFunc {
	var f func(a, b bool) bool
	switch op {
	case opAnd:
		f = func(a, b bool) bool { return a && b }
	case opOr:
		f = func(a, b bool) bool { return a || b }
	default:
		f = func(a, b bool) bool { return a != b }
	}
	return func(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
		return binary(d, name, args[0], args[1], f)
	}
}

func compileNot(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
	return unary(d, name, args[0], func(a bool) bool { return !a })
}

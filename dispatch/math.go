package dispatch

import (
	"math"

	"github.com/chazu/mech/kernel"
	"github.com/chazu/mech/value"
)

type arith int

const (
	opAdd arith = iota
	opSub
	opMul
	opDiv
)

// arithFn instantiates op for T. Integer division by zero yields zero.
func arithFn[T value.Number](op arith) func(a, b T) T {
	switch op {
	case opSub:
		return func(a, b T) T { return a - b }
	case opMul:
		return func(a, b T) T { return a * b }
	case opDiv:
		if value.TagOf[T]().IsInteger() {
			return func(a, b T) T {
				if b == 0 {
					return 0
				}
				return a / b
			}
		}
		return func(a, b T) T { return a / b }
	}
	return func(a, b T) T { return a + b }
}

func compileArith(op arith) CompileFunc {
	return func(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
		l, r := args[0], args[1]
		return try(
			func() (kernel.Kernel, error) { return binary(d, name, l, r, arithFn[int8](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, arithFn[int16](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, arithFn[int32](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, arithFn[int64](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, arithFn[uint8](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, arithFn[uint16](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, arithFn[uint32](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, arithFn[uint64](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, arithFn[value.F32](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, arithFn[value.F64](op)) },
			func() (kernel.Kernel, error) { return binary(d, name, l, r, arithFn[value.C64](op)) },
		)
	}
}

func intMod[T value.Integer](a, b T) T {
	if b == 0 {
		return 0
	}
	return a % b
}

func floatMod[T value.F32 | value.F64](a, b T) T {
	return T(math.Mod(float64(a), float64(b)))
}

func compileMod(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
	l, r := args[0], args[1]
	return try(
		func() (kernel.Kernel, error) { return binary(d, name, l, r, intMod[int8]) },
		func() (kernel.Kernel, error) { return binary(d, name, l, r, intMod[int16]) },
		func() (kernel.Kernel, error) { return binary(d, name, l, r, intMod[int32]) },
		func() (kernel.Kernel, error) { return binary(d, name, l, r, intMod[int64]) },
		func() (kernel.Kernel, error) { return binary(d, name, l, r, intMod[uint8]) },
		func() (kernel.Kernel, error) { return binary(d, name, l, r, intMod[uint16]) },
		func() (kernel.Kernel, error) { return binary(d, name, l, r, intMod[uint32]) },
		func() (kernel.Kernel, error) { return binary(d, name, l, r, intMod[uint64]) },
		func() (kernel.Kernel, error) { return binary(d, name, l, r, floatMod[value.F32]) },
		func() (kernel.Kernel, error) { return binary(d, name, l, r, floatMod[value.F64]) },
	)
}

func neg[T value.Signed | value.Floating | ~complex128](a T) T { return -a }

func compileNegate(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
	a := args[0]
	return try(
		func() (kernel.Kernel, error) { return unary(d, name, a, neg[int8]) },
		func() (kernel.Kernel, error) { return unary(d, name, a, neg[int16]) },
		func() (kernel.Kernel, error) { return unary(d, name, a, neg[int32]) },
		func() (kernel.Kernel, error) { return unary(d, name, a, neg[int64]) },
		func() (kernel.Kernel, error) { return unary(d, name, a, neg[value.F32]) },
		func() (kernel.Kernel, error) { return unary(d, name, a, neg[value.F64]) },
		func() (kernel.Kernel, error) { return unary(d, name, a, neg[value.C64]) },
	)
}

func abs[T value.Signed | value.Floating](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

func compileAbs(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
	a := args[0]
	return try(
		func() (kernel.Kernel, error) { return unary(d, name, a, abs[int8]) },
		func() (kernel.Kernel, error) { return unary(d, name, a, abs[int16]) },
		func() (kernel.Kernel, error) { return unary(d, name, a, abs[int32]) },
		func() (kernel.Kernel, error) { return unary(d, name, a, abs[int64]) },
		func() (kernel.Kernel, error) { return unary(d, name, a, abs[value.F32]) },
		func() (kernel.Kernel, error) { return unary(d, name, a, abs[value.F64]) },
	)
}

func floatFn[T value.F32 | value.F64](f func(float64) float64) func(T) T {
	return func(a T) T { return T(f(float64(a))) }
}

// compileFloat builds a float-only unary operator from a math function.
func compileFloat(f func(float64) float64) CompileFunc {
	return func(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
		a := args[0]
		return try(
			func() (kernel.Kernel, error) { return unary(d, name, a, floatFn[value.F32](f)) },
			func() (kernel.Kernel, error) { return unary(d, name, a, floatFn[value.F64](f)) },
		)
	}
}

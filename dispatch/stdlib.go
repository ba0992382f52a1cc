package dispatch

import "math"

func registerStdlib(d *Dispatcher) {
	for _, op := range []Operator{
		{Name: "math/add", Arity: 2, Compile: compileArith(opAdd)},
		{Name: "math/subtract", Arity: 2, Compile: compileArith(opSub)},
		{Name: "math/multiply", Arity: 2, Compile: compileArith(opMul)},
		{Name: "math/divide", Arity: 2, Compile: compileArith(opDiv)},
		{Name: "math/modulus", Arity: 2, Compile: compileMod},
		{Name: "math/negate", Arity: 1, Compile: compileNegate},
		{Name: "math/abs", Arity: 1, Compile: compileAbs},
		{Name: "math/sin", Arity: 1, Compile: compileFloat(math.Sin)},
		{Name: "math/cos", Arity: 1, Compile: compileFloat(math.Cos)},
		{Name: "math/tan", Arity: 1, Compile: compileFloat(math.Tan)},
		{Name: "math/sqrt", Arity: 1, Compile: compileFloat(math.Sqrt)},

		{Name: "compare/greater-than", Arity: 2, Compile: compileOrder(opGT)},
		{Name: "compare/less-than", Arity: 2, Compile: compileOrder(opLT)},
		{Name: "compare/greater-than-equal", Arity: 2, Compile: compileOrder(opGTE)},
		{Name: "compare/less-than-equal", Arity: 2, Compile: compileOrder(opLTE)},
		{Name: "compare/equal", Arity: 2, Compile: compileEquality(opEQ)},
		{Name: "compare/not-equal", Arity: 2, Compile: compileEquality(opNEQ)},

		{Name: "logic/and", Arity: 2, Compile: compileLogic(opAnd)},
		{Name: "logic/or", Arity: 2, Compile: compileLogic(opOr)},
		{Name: "logic/xor", Arity: 2, Compile: compileLogic(opXor)},
		{Name: "logic/not", Arity: 1, Compile: compileNot},

		{Name: "matrix/multiply", Arity: 2, Compile: compileMatMul},
		{Name: "matrix/transpose", Arity: 1, Compile: compileTranspose},
		{Name: "stats/sum", Arity: 1, Compile: compileSum},
		{Name: "convert", Arity: 2, Compile: compileConvert},

		{Name: "table/horzcat", Arity: Variadic, Compile: compileConcat(true)},
		{Name: "table/vertcat", Arity: Variadic, Compile: compileConcat(false)},
		{Name: "table/set", Arity: 1, Compile: compileSet},
		{Name: "table/column", Arity: 2, Compile: compileColumn},
		{Name: "table/size", Arity: 1, Compile: compileSize},

		{Name: "set/union", Arity: 2, Compile: compileUnion},
		{Name: "set/contains", Arity: 2, Compile: compileContains},
		{Name: "record/field", Arity: 2, Compile: compileField},
	} {
		d.Register(op)
	}
}

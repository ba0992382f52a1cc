package dispatch

import (
	"testing"

	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/value"
)

func compile(t *testing.T, d *Dispatcher, name string, args ...value.Value) value.Value {
	t.Helper()
	k, err := d.Compile(name, args)
	if err != nil {
		t.Fatalf("Compile(%s): %v", name, err)
	}
	return k.Out()
}

func TestAddScalars(t *testing.T) {
	d := New(FeatureAll)
	out := compile(t, d, "math/add", value.Float(2), value.Float(3))
	if !value.Equal(out, value.Float(5)) {
		t.Errorf("2 + 3 = %v, want 5", out)
	}
}

func TestScalarBroadcast(t *testing.T) {
	d := New(FeatureAll)
	vec := value.NewMat[value.F32](2, 1, 1, 2)
	out := compile(t, d, "math/add", vec, value.Float32(10))
	m, ok := out.(value.Mat[value.F32])
	if !ok {
		t.Fatalf("out = %T, want Mat[F32]", out)
	}
	if m.Shape() != value.ShapeV2 {
		t.Errorf("shape = %v, want V2", m.Shape())
	}
	if got := m.String(); got != "[11; 12]" {
		t.Errorf("out = %s, want [11; 12]", got)
	}
}

func TestKernelTracksInputs(t *testing.T) {
	d := New(FeatureAll)
	a, b := value.Int(4), value.Int(6)
	k, err := d.Compile("math/multiply", []value.Value{a, b})
	if err != nil {
		t.Fatal(err)
	}
	a.Ref.Set(5)
	k.Solve()
	if !value.Equal(k.Out(), value.Int(30)) {
		t.Errorf("out = %v, want 30", k.Out())
	}
}

func TestUnhandledKinds(t *testing.T) {
	d := New(FeatureAll)
	_, err := d.Dispatch("math/add", []value.Value{value.String("a"), value.Float(1)})
	var me *mecherr.Error
	if !mecherr.Is(err, mecherr.UnhandledFunctionArgumentKind) {
		t.Fatalf("err = %v, want UnhandledFunctionArgumentKind", err)
	}
	me = err.(*mecherr.Error)
	if len(me.ArgKinds) != 2 || me.ArgKinds[0] != "string" || me.ArgKinds[1] != "f64" {
		t.Errorf("ArgKinds = %v, want [string f64]", me.ArgKinds)
	}
}

func TestDispatchErrors(t *testing.T) {
	d := New(FeatureAll)
	tests := []struct {
		name string
		op   string
		args []value.Value
		code mecherr.Code
	}{
		{"missing function", "math/frobnicate", []value.Value{value.Float(1)}, mecherr.MissingFunction},
		{"too many args", "math/add", []value.Value{value.Float(1), value.Float(2), value.Float(3)}, mecherr.IncorrectNumberOfArguments},
		{"no args to variadic", "table/horzcat", nil, mecherr.IncorrectNumberOfArguments},
		{"mixed element kinds", "math/add", []value.Value{value.Float(1), value.Int(1)}, mecherr.UnhandledFunctionArgumentKind},
		{"mixed shapes", "math/add", []value.Value{value.NewMat[value.F64](2, 2), value.NewMat[value.F64](3, 3)}, mecherr.UnhandledFunctionArgumentKind},
		{"dynamic length mismatch", "math/add", []value.Value{value.NewMat[value.F64](5, 1), value.NewMat[value.F64](6, 1)}, mecherr.DimensionMismatch},
		{"matmul mismatch", "matrix/multiply", []value.Value{value.NewMat[value.F64](2, 3), value.NewMat[value.F64](2, 3)}, mecherr.DimensionMismatch},
		{"logic on numbers", "logic/and", []value.Value{value.Float(1), value.Float(0)}, mecherr.UnhandledFunctionArgumentKind},
		{"convert string", "convert", []value.Value{value.String("1"), value.KindValue{K: value.ScalarKind(value.TagF64)}}, mecherr.UnableToConvertValueKind},
		{"horzcat row mismatch", "table/horzcat", []value.Value{value.NewMat[int64](2, 1), value.NewMat[int64](3, 1)}, mecherr.DimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Dispatch(tt.op, tt.args)
			if !mecherr.Is(err, tt.code) {
				t.Errorf("err = %v, want %v", err, tt.code)
			}
		})
	}
}

func TestConvertTruncates(t *testing.T) {
	d := New(FeatureAll)
	tests := []struct {
		src    value.Value
		target value.Tag
		want   value.Value
	}{
		{value.NewScalar(int16(300)), value.TagI8, value.NewScalar(int8(44))},
		{value.Float(-2.9), value.TagI32, value.NewScalar(int32(-2))},
		{value.NewScalar(uint8(255)), value.TagF32, value.Float32(255)},
		{value.Int(-1), value.TagU8, value.NewScalar(uint8(255))},
	}
	for _, tt := range tests {
		out := compile(t, d, "convert", tt.src, value.KindValue{K: value.ScalarKind(tt.target)})
		if !value.Equal(out, tt.want) {
			t.Errorf("convert(%v -> %v) = %v, want %v", tt.src, tt.target, out, tt.want)
		}
	}
}

func TestConvertMatrix(t *testing.T) {
	d := New(FeatureAll)
	src := value.NewMat[value.F64](2, 1, 1.5, 2.5)
	out := compile(t, d, "convert", src, value.KindValue{K: value.MatrixKind(value.TagI64, 2, 1)})
	if got := out.String(); got != "[1; 2]" {
		t.Errorf("out = %s, want [1; 2]", got)
	}
	if _, err := d.Dispatch("convert", []value.Value{src, value.KindValue{K: value.MatrixKind(value.TagI64, 3, 1)}}); !mecherr.Is(err, mecherr.DimensionMismatch) {
		t.Errorf("err = %v, want DimensionMismatch", err)
	}
}

func TestReferencesAreUnwrapped(t *testing.T) {
	d := New(FeatureAll)
	inner := value.Float(2)
	ref := value.NewReference(value.NewReference(inner))
	out := compile(t, d, "math/add", ref, value.Float(3))
	if !value.Equal(out, value.Float(5)) {
		t.Errorf("ref + 3 = %v, want 5", out)
	}

	both := compile(t, d, "math/subtract", value.NewReference(value.Float(10)), value.NewReference(value.Float(4)))
	if !value.Equal(both, value.Float(6)) {
		t.Errorf("ref - ref = %v, want 6", both)
	}

	_, err := d.Dispatch("math/add", []value.Value{value.NewReference(value.String("x")), value.Float(1)})
	if !mecherr.Is(err, mecherr.UnhandledFunctionArgumentKind) {
		t.Errorf("err = %v, want UnhandledFunctionArgumentKind", err)
	}
}

func TestFeaturesGateKinds(t *testing.T) {
	d := New(FeatureFloat | FeatureMatrixDynamic)
	if _, err := d.Dispatch("math/add", []value.Value{value.Int(1), value.Int(2)}); !mecherr.Is(err, mecherr.UnhandledFunctionArgumentKind) {
		t.Errorf("integer add with integers disabled: err = %v", err)
	}
	if _, err := d.Dispatch("math/add", []value.Value{value.NewMat[value.F64](2, 2), value.NewMat[value.F64](2, 2)}); !mecherr.Is(err, mecherr.UnhandledFunctionArgumentKind) {
		t.Errorf("fixed matrix add with fixed shapes disabled: err = %v", err)
	}
	dyn := value.NewMatShape[value.F64](value.ShapeMD, 2, 2)
	if _, err := d.Dispatch("math/add", []value.Value{dyn, dyn}); err != nil {
		t.Errorf("dynamic matrix add: %v", err)
	}

	toI64 := value.KindValue{K: value.ScalarKind(value.TagI64)}
	toF64 := value.KindValue{K: value.ScalarKind(value.TagF64)}
	if _, err := d.Dispatch("convert", []value.Value{value.Int(2), toF64}); !mecherr.Is(err, mecherr.UnhandledFunctionArgumentKind) {
		t.Errorf("convert from disabled integers: err = %v", err)
	}
	if _, err := d.Dispatch("convert", []value.Value{value.Float(2.5), toI64}); !mecherr.Is(err, mecherr.UnhandledFunctionArgumentKind) {
		t.Errorf("convert to disabled integers: err = %v", err)
	}
	ints := New(FeatureInteger)
	if _, err := ints.Dispatch("convert", []value.Value{value.Float(2.5), toI64}); !mecherr.Is(err, mecherr.UnhandledFunctionArgumentKind) {
		t.Errorf("convert from disabled floats: err = %v", err)
	}
	if _, err := ints.Dispatch("convert", []value.Value{value.Int(3), value.KindValue{K: value.ScalarKind(value.TagI32)}}); err != nil {
		t.Errorf("integer convert with integers enabled: %v", err)
	}
	if _, err := ints.Dispatch("convert", []value.Value{value.String("1"), toI64}); !mecherr.Is(err, mecherr.UnableToConvertValueKind) {
		t.Errorf("convert string: err = %v", err)
	}
}

func TestParseFeatures(t *testing.T) {
	f, err := ParseFeatures([]string{"float", " Integer "})
	if err != nil {
		t.Fatal(err)
	}
	if !f.Has(FeatureFloat|FeatureInteger) || f.Has(FeatureComplex) {
		t.Errorf("features = %v", f)
	}
	if all, _ := ParseFeatures(nil); all != FeatureAll {
		t.Errorf("empty list = %v, want all", all)
	}
	if _, err := ParseFeatures([]string{"quaternion"}); err == nil {
		t.Error("unknown feature accepted")
	}
}

func TestOperatorFamilies(t *testing.T) {
	d := New(FeatureAll)
	tests := []struct {
		op   string
		args []value.Value
		want value.Value
	}{
		{"math/divide", []value.Value{value.Int(7), value.Int(2)}, value.Int(3)},
		{"math/divide", []value.Value{value.Int(7), value.Int(0)}, value.Int(0)},
		{"math/modulus", []value.Value{value.Int(7), value.Int(3)}, value.Int(1)},
		{"math/modulus", []value.Value{value.Float(7.5), value.Float(2)}, value.Float(1.5)},
		{"math/negate", []value.Value{value.Float(2)}, value.Float(-2)},
		{"math/abs", []value.Value{value.Int(-9)}, value.Int(9)},
		{"math/abs", []value.Value{value.Float32(-1.5)}, value.Float32(1.5)},
		{"math/sqrt", []value.Value{value.Float(16)}, value.Float(4)},
		{"compare/greater-than", []value.Value{value.Float(2), value.Float(1)}, value.Bool(true)},
		{"compare/less-than-equal", []value.Value{value.String("b"), value.String("a")}, value.Bool(false)},
		{"compare/equal", []value.Value{value.Bool(true), value.Bool(true)}, value.Bool(true)},
		{"compare/not-equal", []value.Value{value.Int(1), value.Int(1)}, value.Bool(false)},
		{"logic/xor", []value.Value{value.Bool(true), value.Bool(false)}, value.Bool(true)},
		{"logic/not", []value.Value{value.Bool(true)}, value.Bool(false)},
		{"stats/sum", []value.Value{value.NewMat[int64](3, 1, 1, 2, 3)}, value.Int(6)},
		{"table/horzcat", []value.Value{value.Float(1)}, value.Float(1)},
		{"table/horzcat", []value.Value{value.Float(1), value.Float(2), value.Float(3)}, value.NewMat[value.F64](1, 3, 1, 2, 3)},
		{"table/vertcat", []value.Value{value.Int(1), value.Int(2)}, value.NewMat[int64](2, 1, 1, 2)},
		{"matrix/transpose", []value.Value{value.NewMat[int64](2, 1, 1, 2)}, value.NewMat[int64](1, 2, 1, 2)},
		{"matrix/multiply", []value.Value{value.NewMat[int64](1, 2, 1, 2), value.NewMat[int64](2, 1, 3, 4)}, value.NewMat[int64](1, 1, 11)},
	}
	for _, tt := range tests {
		out := compile(t, d, tt.op, tt.args...)
		if !value.Equal(out, tt.want) {
			t.Errorf("%s%v = %v, want %v", tt.op, tt.args, out, tt.want)
		}
	}
}

func TestTableOperators(t *testing.T) {
	d := New(FeatureAll)
	dict := value.NewDictionary()
	x := dict.Intern("x")
	tbl := value.NewTable(1, 3, 1)
	tbl.SetColumnAlias(0, x, "x")
	for i := 0; i < 3; i++ {
		tbl.Set(i, 0, value.Float(float64(i+1)))
	}

	col := compile(t, d, "table/column", tbl, value.Uint(x))
	if got := col.String(); got != "[1; 2; 3]" {
		t.Errorf("column = %s, want [1; 2; 3]", got)
	}
	size := compile(t, d, "table/size", tbl)
	if got := size.String(); got != "[3 1]" {
		t.Errorf("size = %s, want [3 1]", got)
	}
	if _, err := d.Dispatch("table/column", []value.Value{tbl, value.Uint(x + 1)}); !mecherr.Is(err, mecherr.UndefinedVariable) {
		t.Errorf("unknown column err = %v, want UndefinedVariable", err)
	}
}

func TestSetOperatorsAcceptReferences(t *testing.T) {
	d := New(FeatureAll)
	a, _ := value.NewSet(value.Kind{}, value.Float(1))
	b, _ := value.NewSet(value.Kind{}, value.Float(2))
	ref := value.NewReference(a)

	k, err := d.Compile("set/union", []value.Value{ref, b})
	if err != nil {
		t.Fatal(err)
	}
	if got := value.Deref(k.Out()).String(); got != "{1, 2}" {
		t.Errorf("union = %s", got)
	}

	hit := compile(t, d, "set/contains", b, value.Float(2))
	if !value.Equal(hit, value.Bool(true)) {
		t.Errorf("contains = %v, want true", hit)
	}

	s, _ := value.NewSet(value.Kind{}, value.String("a"))
	if _, err := d.Dispatch("set/union", []value.Value{a, s}); !mecherr.Is(err, mecherr.KindMismatch) {
		t.Errorf("mixed union err = %v, want KindMismatch", err)
	}
}

func TestRecordField(t *testing.T) {
	d := New(FeatureAll)
	rec, _ := value.NewRecord(value.RecordField{ID: 1, Name: "x", Value: value.Float(3)})
	out := compile(t, d, "record/field", rec, value.Uint(1))
	if !value.Equal(out, value.Float(3)) {
		t.Errorf("field = %v, want 3", out)
	}
	if _, err := d.Dispatch("record/field", []value.Value{rec, value.Uint(2)}); !mecherr.Is(err, mecherr.UndefinedVariable) {
		t.Errorf("missing field err = %v", err)
	}
}

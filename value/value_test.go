package value

import (
	"math"
	"testing"

	"github.com/chazu/mech/mecherr"
)

func TestRefBorrowRules(t *testing.T) {
	r := NewRef(F64(1))
	p := r.Borrow()
	q := r.Borrow()
	if *p != 1 || *q != 1 {
		t.Fatalf("borrowed = %v, %v, want 1", *p, *q)
	}
	r.Release()
	r.Release()

	m := r.BorrowMut()
	*m = 2
	r.Release()
	if got := r.Get(); got != 2 {
		t.Errorf("Get() = %v, want 2", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("conflicting borrow did not panic")
		}
	}()
	r.Borrow()
	r.BorrowMut()
}

func TestScalarKindAndSize(t *testing.T) {
	tests := []struct {
		v    Value
		tag  Tag
		size int
	}{
		{Bool(true), TagBool, 1},
		{NewScalar(int8(3)), TagI8, 1},
		{NewScalar(uint16(3)), TagU16, 2},
		{Float32(1.5), TagF32, 4},
		{Float(1.5), TagF64, 8},
		{NewScalar(C64(complex(1, 2))), TagC64, 16},
		{String("hello"), TagString, 5},
	}
	for _, tt := range tests {
		if got := tt.v.Kind().Tag; got != tt.tag {
			t.Errorf("%v.Kind().Tag = %v, want %v", tt.v, got, tt.tag)
		}
		if got := tt.v.Size(); got != tt.size {
			t.Errorf("%v.Size() = %d, want %d", tt.v, got, tt.size)
		}
	}
}

func TestFloatEqualityByBits(t *testing.T) {
	nan := F64(math.NaN())
	if !Equal(NewScalar(nan), NewScalar(nan)) {
		t.Error("NaN scalars with the same bits should be equal")
	}
	if Equal(Float(0), Float(math.Copysign(0, -1))) {
		t.Error("+0 and -0 should differ by bits")
	}
	if Equal(Float(1), Float32(1)) {
		t.Error("values of different kinds should differ")
	}
}

func TestAssignInPlace(t *testing.T) {
	dst := Float(1)
	seen := dst.Ref

	changed, err := Assign(dst, Float(2))
	if err != nil || !changed {
		t.Fatalf("Assign = %v, %v, want true, nil", changed, err)
	}
	if seen.Get() != 2 {
		t.Errorf("bound cell = %v, want 2", seen.Get())
	}

	changed, _ = Assign(dst, Float(2))
	if changed {
		t.Error("assigning an equal value should not report a change")
	}

	if _, err := Assign(dst, Int(2)); err != ErrNotAssignable {
		t.Errorf("Assign across kinds err = %v, want ErrNotAssignable", err)
	}

	m := NewMat[F64](2, 1, 1, 2)
	if _, err := Assign(m, NewMat[F64](3, 1, 1, 2, 3)); err != ErrNotAssignable {
		t.Errorf("Assign across shapes err = %v, want ErrNotAssignable", err)
	}
	changed, err = Assign(m, NewMat[F64](2, 1, 5, 6))
	if err != nil || !changed || m.Data()[1] != 6 {
		t.Errorf("matrix assign = %v, %v, data %v", changed, err, m.Data())
	}
}

func TestDerefIsTransparent(t *testing.T) {
	inner := Float(4)
	ref := NewReference(NewReference(inner))
	if got := Deref(ref); !Equal(got, inner) {
		t.Errorf("Deref = %v, want %v", got, inner)
	}
	if !Equal(ref, inner) {
		t.Error("a reference should compare equal to its target")
	}
	if ref.Kind().Tag != TagReference || ref.Kind().Elem.Tag != TagReference {
		t.Errorf("ref kind = %v", ref.Kind())
	}
}

func TestShapeFor(t *testing.T) {
	tests := []struct {
		rows, cols int
		want       Shape
	}{
		{1, 1, ShapeM1},
		{2, 2, ShapeM2},
		{4, 4, ShapeM4},
		{2, 3, ShapeM2x3},
		{3, 2, ShapeM3x2},
		{2, 1, ShapeV2},
		{4, 1, ShapeV4},
		{1, 3, ShapeR3},
		{7, 1, ShapeVD},
		{1, 9, ShapeRD},
		{5, 5, ShapeMD},
	}
	for _, tt := range tests {
		if got := ShapeFor(tt.rows, tt.cols); got != tt.want {
			t.Errorf("ShapeFor(%d, %d) = %v, want %v", tt.rows, tt.cols, got, tt.want)
		}
	}
}

func TestMatrixColumnMajor(t *testing.T) {
	m := MatFromRows([][]F64{{1, 2, 3}, {4, 5, 6}})
	if m.Shape() != ShapeM2x3 {
		t.Errorf("shape = %v, want M2x3", m.Shape())
	}
	want := []F64{1, 4, 2, 5, 3, 6}
	for i, v := range m.Data() {
		if v != want[i] {
			t.Fatalf("data = %v, want %v", m.Data(), want)
		}
	}
	if got := m.String(); got != "[1 2 3; 4 5 6]" {
		t.Errorf("String() = %q", got)
	}
	if k := m.Kind(); k.Rows != 2 || k.Cols != 3 || k.ElemTag() != TagF64 {
		t.Errorf("Kind() = %v", k)
	}
}

func TestTableSetAndResize(t *testing.T) {
	tbl := NewTable(1, 2, 2)
	if _, err := tbl.Set(0, 0, Float(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Set(1, 0, String("x")); !mecherr.Is(err, mecherr.KindMismatch) {
		t.Errorf("mixed column err = %v, want KindMismatch", err)
	}
	if _, err := tbl.Set(5, 0, Float(1)); !mecherr.Is(err, mecherr.IndexOutOfBounds) {
		t.Errorf("out of bounds err = %v, want IndexOutOfBounds", err)
	}
	if tbl.Rows() != 2 || tbl.Cols() != 2 {
		t.Errorf("failed writes changed shape to %dx%d", tbl.Rows(), tbl.Cols())
	}

	cell, _ := tbl.Get(0, 0)
	bound := cell.(Scalar[F64]).Ref
	changed, err := tbl.Set(0, 0, Float(9))
	if err != nil || !changed {
		t.Fatalf("Set = %v, %v", changed, err)
	}
	if bound.Get() != 9 {
		t.Errorf("bound cell = %v, want 9 (Set must update in place)", bound.Get())
	}

	tbl.Resize(3, 1)
	if tbl.Rows() != 3 || tbl.Cols() != 1 {
		t.Errorf("Resize gave %dx%d", tbl.Rows(), tbl.Cols())
	}
	if v, _ := tbl.Get(2, 0); !IsEmpty(v) {
		t.Errorf("new cell = %v, want empty", v)
	}
}

func TestTableWriteReportsReplacement(t *testing.T) {
	tbl := NewTable(1, 1, 1)
	if _, replaced, err := tbl.Write(0, 0, NewMat[F64](2, 1, 1, 2)); err != nil || !replaced {
		t.Fatalf("first write = %v, %v; want an empty cell replaced", replaced, err)
	}
	cell, _ := tbl.Get(0, 0)
	bound := cell.(Mat[F64]).Ref

	changed, replaced, err := tbl.Write(0, 0, NewMat[F64](2, 1, 3, 4))
	if err != nil || !changed || replaced {
		t.Errorf("same-shape write = %v, %v, %v; want changed in place", changed, replaced, err)
	}
	if got := bound.Ptr().Data(); got[0] != 3 || got[1] != 4 {
		t.Errorf("bound cell = %v, want [3 4]", got)
	}

	changed, replaced, err = tbl.Write(0, 0, NewMat[F64](3, 1, 10, 20, 30))
	if err != nil || !changed || !replaced {
		t.Errorf("resized write = %v, %v, %v; want a replaced cell", changed, replaced, err)
	}
	if cell, _ := tbl.Get(0, 0); cell.(Mat[F64]).Ref == bound {
		t.Error("resized write reused the bound cell")
	}
}

func TestTableAppendRecord(t *testing.T) {
	d := NewDictionary()
	x, y := d.Intern("x"), d.Intern("y")
	rec, err := NewRecord(
		RecordField{ID: x, Name: "x", Value: Float(1)},
		RecordField{ID: y, Name: "y", Value: Bool(true)},
	)
	if err != nil {
		t.Fatal(err)
	}
	tbl := NewTable(2, 0, 0)
	if err := tbl.AppendRecord(rec); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendRecord(rec); err != nil {
		t.Fatal(err)
	}
	if tbl.Rows() != 2 || tbl.Cols() != 2 {
		t.Fatalf("table is %dx%d, want 2x2", tbl.Rows(), tbl.Cols())
	}
	if ix, ok := tbl.ColumnIndex(y); !ok || ix != 1 {
		t.Errorf("ColumnIndex(y) = %d, %v", ix, ok)
	}

	other, _ := NewRecord(RecordField{ID: x, Name: "x", Value: Float(3)})
	if err := tbl.AppendRecord(other); !mecherr.Is(err, mecherr.KindMismatch) {
		t.Errorf("missing field err = %v, want KindMismatch", err)
	}
	if tbl.Rows() != 2 {
		t.Errorf("rejected record changed rows to %d", tbl.Rows())
	}
}

func TestTableSnapshot(t *testing.T) {
	tbl := NewTable(3, 1, 1)
	tbl.Name = "pos"
	if err := tbl.SetColumnAlias(0, 7, "x"); err != nil {
		t.Fatal(err)
	}
	tbl.Put(0, 0, Float(1))

	snap := tbl.Snapshot()
	tbl.Set(0, 0, Float(2))
	if v, _ := snap.Get(0, 0); !Equal(v, Float(1)) {
		t.Errorf("snapshot cell = %v, want 1", v)
	}
	if ix, ok := snap.ColumnIndex(7); !ok || ix != 0 {
		t.Errorf("snapshot ColumnIndex(7) = %d, %v", ix, ok)
	}
	if snap.String() == tbl.String() {
		t.Error("snapshot followed the source table")
	}
}

func TestRecordDuplicateField(t *testing.T) {
	_, err := NewRecord(RecordField{ID: 1, Value: Float(1)}, RecordField{ID: 1, Value: Float(2)})
	if !mecherr.Is(err, mecherr.DuplicateAlias) {
		t.Errorf("err = %v, want DuplicateAlias", err)
	}
}

func TestSetDedupAndUnion(t *testing.T) {
	a, err := NewSet(Kind{}, Float(1), Float(2), Float(1))
	if err != nil {
		t.Fatal(err)
	}
	if a.Len() != 2 {
		t.Errorf("Len() = %d, want 2", a.Len())
	}
	b, _ := NewSet(Kind{}, Float(3), Float(2))
	u, err := a.Union(b)
	if err != nil {
		t.Fatal(err)
	}
	if got := u.String(); got != "{1, 2, 3}" {
		t.Errorf("union = %s, want {1, 2, 3}", got)
	}
	if !u.Contains(Float(3)) || u.Contains(Float(4)) {
		t.Error("Contains gave wrong answer")
	}
	if _, err := NewSet(Kind{}, Float(1), String("a")); !mecherr.Is(err, mecherr.KindMismatch) {
		t.Errorf("mixed set err = %v, want KindMismatch", err)
	}
}

func TestMapReplaceKeepsOrder(t *testing.T) {
	m, err := NewMap(Kind{}, Kind{},
		[]Value{String("a"), String("b"), String("a")},
		[]Value{Float(1), Float(2), Float(3)})
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
	if v, ok := m.Get(String("a")); !ok || !Equal(v, Float(3)) {
		t.Errorf("Get(a) = %v, %v, want 3", v, ok)
	}
}

func TestEnumVariants(t *testing.T) {
	def := EnumDef{ID: 10, Name: "color", Variants: []uint64{1, 2}}
	if _, err := NewEnum(def, 2, nil); err != nil {
		t.Errorf("known variant: %v", err)
	}
	if _, err := NewEnum(def, 3, nil); !mecherr.Is(err, mecherr.UnknownEnumVariant) {
		t.Errorf("err = %v, want UnknownEnumVariant", err)
	}
}

func TestDictionary(t *testing.T) {
	d := NewDictionary()
	id := d.Intern("temperature")
	if id != Hash("temperature") {
		t.Errorf("Intern id %x != Hash %x", id, Hash("temperature"))
	}
	if again := d.Intern("temperature"); again != id {
		t.Errorf("second Intern = %x, want %x", again, id)
	}
	if name, ok := d.Name(id); !ok || name != "temperature" {
		t.Errorf("Name = %q, %v", name, ok)
	}
	if _, ok := d.Lookup("missing"); ok {
		t.Error("Lookup of unknown name succeeded")
	}
	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}
}

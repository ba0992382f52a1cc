package value

import (
	"testing"

	"github.com/chazu/mech/mecherr"
)

func scalarAnnot(name string) KindAnnotation {
	return KindAnnotation{Node: AnnotScalar, Name: name}
}

func TestKindRoundTrip(t *testing.T) {
	d := NewDictionary()
	tests := []struct {
		name  string
		annot KindAnnotation
	}{
		{"scalar", scalarAnnot("f64")},
		{"string", scalarAnnot("string")},
		{"fixed matrix", KindAnnotation{Node: AnnotBracket, Dims: []int{3, 3}, Elems: []KindAnnotation{scalarAnnot("f32")}}},
		{"row vector", KindAnnotation{Node: AnnotBracket, Dims: []int{4}, Elems: []KindAnnotation{scalarAnnot("u8")}}},
		{"dynamic", KindAnnotation{Node: AnnotBracket, Elems: []KindAnnotation{scalarAnnot("i64")}}},
		{"tuple", KindAnnotation{Node: AnnotTuple, Elems: []KindAnnotation{scalarAnnot("bool"), scalarAnnot("c64")}}},
		{"set", KindAnnotation{Node: AnnotSet, Elems: []KindAnnotation{scalarAnnot("string")}}},
		{"map", KindAnnotation{Node: AnnotMap, Elems: []KindAnnotation{scalarAnnot("string"), scalarAnnot("f64")}}},
		{"record", KindAnnotation{Node: AnnotRecord, Fields: []AnnotatedField{
			{Name: "x", Kind: scalarAnnot("f64")},
			{Name: "ok", Kind: scalarAnnot("bool")},
		}}},
		{"table", KindAnnotation{Node: AnnotTable, Dims: []int{2}, Fields: []AnnotatedField{
			{Name: "x", Kind: scalarAnnot("f32")},
			{Name: "name", Kind: scalarAnnot("string")},
		}}},
		{"enum", KindAnnotation{Node: AnnotEnum, Name: "color"}},
		{"reference", KindAnnotation{Node: AnnotReference, Elems: []KindAnnotation{scalarAnnot("i32")}}},
		{"empty", KindAnnotation{Node: AnnotEmpty}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := tt.annot.ToKind(d)
			if err != nil {
				t.Fatalf("ToKind: %v", err)
			}
			v, err := FromKind(k)
			if err != nil {
				t.Fatalf("FromKind(%v): %v", k, err)
			}
			if got := v.Kind(); !got.Equal(k) {
				t.Errorf("round trip kind = %v, want %v", got, k)
			}
		})
	}
}

func TestToKindUnknownScalar(t *testing.T) {
	_, err := scalarAnnot("f128").ToKind(NewDictionary())
	if !mecherr.Is(err, mecherr.UndefinedVariable) {
		t.Errorf("err = %v, want UndefinedVariable", err)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{ScalarKind(TagF64), "f64"},
		{MatrixKind(TagF32, 2, 1), "[f32 2x1]"},
		{MatrixKind(TagU8, 0, 0), "[u8]"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

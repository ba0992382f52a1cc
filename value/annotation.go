package value

import (
	"fmt"

	"github.com/chazu/mech/mecherr"
)

// AnnotationNode is the syntactic form of a kind annotation.
type AnnotationNode uint8

const (
	AnnotEmpty AnnotationNode = iota
	AnnotScalar
	AnnotBracket
	AnnotTuple
	AnnotSet
	AnnotMap
	AnnotRecord
	AnnotTable
	AnnotEnum
	AnnotKind
	AnnotReference
)

// AnnotatedField is a named slot in a record or table annotation.
type AnnotatedField struct {
	Name string
	Kind KindAnnotation
}

// KindAnnotation is the kind tree a front end attaches to declarations,
// before names are interned. ToKind resolves it against a Dictionary.
type KindAnnotation struct {
	Node AnnotationNode
	// Name is the scalar kind name or the enum name.
	Name string
	// Dims are bracket dimensions, or the row count of a table.
	Dims   []int
	Elems  []KindAnnotation
	Fields []AnnotatedField
}

// ToKind resolves the annotation. Field and enum names are interned.
func (a KindAnnotation) ToKind(d *Dictionary) (Kind, error) {
	switch a.Node {
	case AnnotEmpty:
		return Kind{Tag: TagEmpty}, nil
	case AnnotScalar:
		t, ok := TagByName(a.Name)
		if !ok {
			return Kind{}, &mecherr.Error{Code: mecherr.UndefinedVariable, Op: a.Name}
		}
		return ScalarKind(t), nil
	case AnnotBracket:
		if len(a.Elems) != 1 || a.Elems[0].Node != AnnotScalar {
			return Kind{}, mecherr.Errorf("bracket annotation needs one scalar element")
		}
		elem, err := a.Elems[0].ToKind(d)
		if err != nil {
			return Kind{}, err
		}
		rows, cols := 0, 0
		switch len(a.Dims) {
		case 0:
		case 1:
			rows, cols = 1, a.Dims[0]
		case 2:
			rows, cols = a.Dims[0], a.Dims[1]
		default:
			return Kind{}, mecherr.Errorf("bracket annotation has %d dimensions", len(a.Dims))
		}
		return MatrixKind(elem.Tag, rows, cols), nil
	case AnnotTuple:
		elems := make([]Kind, len(a.Elems))
		for i, e := range a.Elems {
			k, err := e.ToKind(d)
			if err != nil {
				return Kind{}, err
			}
			elems[i] = k
		}
		return Kind{Tag: TagTuple, Elems: elems}, nil
	case AnnotSet, AnnotReference:
		if len(a.Elems) != 1 {
			return Kind{}, mecherr.Errorf("%s annotation needs one element", a.tag())
		}
		e, err := a.Elems[0].ToKind(d)
		if err != nil {
			return Kind{}, err
		}
		return Kind{Tag: a.tag(), Elem: &e}, nil
	case AnnotMap:
		if len(a.Elems) != 2 {
			return Kind{}, mecherr.Errorf("map annotation needs key and value")
		}
		k, err := a.Elems[0].ToKind(d)
		if err != nil {
			return Kind{}, err
		}
		v, err := a.Elems[1].ToKind(d)
		if err != nil {
			return Kind{}, err
		}
		return Kind{Tag: TagMap, Elem: &k, Val: &v}, nil
	case AnnotRecord, AnnotTable:
		fields := make([]Field, len(a.Fields))
		for i, f := range a.Fields {
			k, err := f.Kind.ToKind(d)
			if err != nil {
				return Kind{}, fmt.Errorf("field %s: %w", f.Name, err)
			}
			fields[i] = Field{ID: d.Intern(f.Name), Name: f.Name, Kind: k}
		}
		k := Kind{Tag: a.tag(), Fields: fields}
		if a.Node == AnnotTable && len(a.Dims) > 0 {
			k.Rows = a.Dims[0]
		}
		return k, nil
	case AnnotEnum:
		return Kind{Tag: TagEnum, ID: d.Intern(a.Name)}, nil
	case AnnotKind:
		return Kind{Tag: TagKind}, nil
	}
	return Kind{}, mecherr.Errorf("unknown annotation node %d", a.Node)
}

func (a KindAnnotation) tag() Tag {
	switch a.Node {
	case AnnotSet:
		return TagSet
	case AnnotReference:
		return TagReference
	case AnnotRecord:
		return TagRecord
	case AnnotTable:
		return TagTable
	}
	return TagAny
}

// FromKind builds a default value of kind k: zero scalars, zero-filled
// matrices, empty collections, and tables with typed, aliased columns.
func FromKind(k Kind) (Value, error) {
	switch {
	case k.Tag == TagEmpty:
		return Empty, nil
	case k.Tag.IsScalar():
		return zeroScalar(k.Tag), nil
	}
	switch k.Tag {
	case TagMatrix:
		if k.Elem == nil {
			return nil, mecherr.Errorf("matrix kind without element")
		}
		return zeroMatrix(k.Elem.Tag, k.Rows, k.Cols)
	case TagTuple:
		elems := make([]Value, len(k.Elems))
		for i, e := range k.Elems {
			v, err := FromKind(e)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return NewTuple(elems...), nil
	case TagRecord:
		fields := make([]RecordField, len(k.Fields))
		for i, f := range k.Fields {
			v, err := FromKind(f.Kind)
			if err != nil {
				return nil, err
			}
			fields[i] = RecordField{ID: f.ID, Name: f.Name, Value: v}
		}
		return NewRecord(fields...)
	case TagTable:
		t := NewTable(0, k.Rows, len(k.Fields))
		for i, f := range k.Fields {
			if f.ID != 0 {
				if err := t.SetColumnAlias(i, f.ID, f.Name); err != nil {
					return nil, err
				}
			}
			t.columns[i].Name = f.Name
			t.columns[i].Kind = f.Kind
		}
		return t, nil
	case TagSet:
		if k.Elem == nil {
			return nil, mecherr.Errorf("set kind without element")
		}
		return NewSet(*k.Elem)
	case TagMap:
		if k.Elem == nil || k.Val == nil {
			return nil, mecherr.Errorf("map kind without key or value")
		}
		return NewMap(*k.Elem, *k.Val, nil, nil)
	case TagEnum:
		return &Enum{ID: k.ID}, nil
	case TagKind:
		return KindValue{}, nil
	case TagReference:
		if k.Elem == nil {
			return NewReference(Empty), nil
		}
		inner, err := FromKind(*k.Elem)
		if err != nil {
			return nil, err
		}
		return NewReference(inner), nil
	}
	return nil, mecherr.Conversion(k.String(), "value")
}

func zeroScalar(t Tag) Value {
	switch t {
	case TagBool:
		return NewScalar(false)
	case TagI8:
		return NewScalar(int8(0))
	case TagI16:
		return NewScalar(int16(0))
	case TagI32:
		return NewScalar(int32(0))
	case TagI64:
		return NewScalar(int64(0))
	case TagU8:
		return NewScalar(uint8(0))
	case TagU16:
		return NewScalar(uint16(0))
	case TagU32:
		return NewScalar(uint32(0))
	case TagU64:
		return NewScalar(uint64(0))
	case TagF32:
		return NewScalar(F32(0))
	case TagF64:
		return NewScalar(F64(0))
	case TagC64:
		return NewScalar(C64(0))
	case TagString:
		return NewScalar("")
	}
	return Empty
}

func zeroMatrix(t Tag, rows, cols int) (Value, error) {
	switch t {
	case TagBool:
		return NewMat[bool](rows, cols), nil
	case TagI8:
		return NewMat[int8](rows, cols), nil
	case TagI16:
		return NewMat[int16](rows, cols), nil
	case TagI32:
		return NewMat[int32](rows, cols), nil
	case TagI64:
		return NewMat[int64](rows, cols), nil
	case TagU8:
		return NewMat[uint8](rows, cols), nil
	case TagU16:
		return NewMat[uint16](rows, cols), nil
	case TagU32:
		return NewMat[uint32](rows, cols), nil
	case TagU64:
		return NewMat[uint64](rows, cols), nil
	case TagF32:
		return NewMat[F32](rows, cols), nil
	case TagF64:
		return NewMat[F64](rows, cols), nil
	case TagC64:
		return NewMat[C64](rows, cols), nil
	case TagString:
		return NewMat[string](rows, cols), nil
	}
	return nil, mecherr.Conversion(t.String(), "matrix")
}

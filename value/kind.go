package value

import (
	"fmt"
	"strings"
)

// Tag is the discriminant of a Kind.
type Tag uint8

const (
	TagEmpty Tag = iota
	TagBool
	TagI8
	TagI16
	TagI32
	TagI64
	TagU8
	TagU16
	TagU32
	TagU64
	TagF32
	TagF64
	TagC64
	TagString
	TagMatrix
	TagTable
	TagRecord
	TagTuple
	TagSet
	TagMap
	TagEnum
	TagKind
	TagReference
	TagAny
)

var tagNames = [...]string{
	TagEmpty:     "_",
	TagBool:      "bool",
	TagI8:        "i8",
	TagI16:       "i16",
	TagI32:       "i32",
	TagI64:       "i64",
	TagU8:        "u8",
	TagU16:       "u16",
	TagU32:       "u32",
	TagU64:       "u64",
	TagF32:       "f32",
	TagF64:       "f64",
	TagC64:       "c64",
	TagString:    "string",
	TagMatrix:    "matrix",
	TagTable:     "table",
	TagRecord:    "record",
	TagTuple:     "tuple",
	TagSet:       "set",
	TagMap:       "map",
	TagEnum:      "enum",
	TagKind:      "kind",
	TagReference: "ref",
	TagAny:       "any",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", t)
}

// TagByName resolves a scalar kind name such as "f64".
func TagByName(name string) (Tag, bool) {
	for t := TagBool; t <= TagString; t++ {
		if tagNames[t] == name {
			return t, true
		}
	}
	return TagEmpty, false
}

// IsScalar reports whether t is a single-cell scalar kind.
func (t Tag) IsScalar() bool { return t >= TagBool && t <= TagString }

// IsInteger reports whether t is a fixed-width integer kind.
func (t Tag) IsInteger() bool { return t >= TagI8 && t <= TagU64 }

// IsFloat reports whether t is f32 or f64.
func (t Tag) IsFloat() bool { return t == TagF32 || t == TagF64 }

// IsReal reports whether t is an ordered numeric kind.
func (t Tag) IsReal() bool { return t.IsInteger() || t.IsFloat() }

// Field describes one named slot of a record or table kind.
type Field struct {
	ID   uint64
	Name string
	Kind Kind
}

// Kind is the runtime type of a Value.
type Kind struct {
	Tag Tag

	// Elem is the element kind of a matrix, set or reference, and the key
	// kind of a map.
	Elem *Kind
	// Val is the value kind of a map.
	Val *Kind

	// Rows and Cols give matrix dimensions. Zero means dynamic. Tables
	// use Rows for their row count.
	Rows, Cols int

	Fields []Field
	Elems  []Kind

	// ID names an enum.
	ID uint64
}

// ScalarKind returns the kind of a scalar tag.
func ScalarKind(t Tag) Kind { return Kind{Tag: t} }

// MatrixKind returns the kind of a rows x cols matrix of elem.
func MatrixKind(elem Tag, rows, cols int) Kind {
	e := ScalarKind(elem)
	return Kind{Tag: TagMatrix, Elem: &e, Rows: rows, Cols: cols}
}

// ElemTag returns the element tag of a matrix kind, or the tag itself for
// scalars.
func (k Kind) ElemTag() Tag {
	if k.Tag == TagMatrix && k.Elem != nil {
		return k.Elem.Tag
	}
	return k.Tag
}

// Equal reports structural equality.
func (k Kind) Equal(o Kind) bool {
	if k.Tag != o.Tag || k.Rows != o.Rows || k.Cols != o.Cols || k.ID != o.ID {
		return false
	}
	if !equalKindPtr(k.Elem, o.Elem) || !equalKindPtr(k.Val, o.Val) {
		return false
	}
	if len(k.Fields) != len(o.Fields) || len(k.Elems) != len(o.Elems) {
		return false
	}
	for i := range k.Fields {
		a, b := k.Fields[i], o.Fields[i]
		if a.ID != b.ID || a.Name != b.Name || !a.Kind.Equal(b.Kind) {
			return false
		}
	}
	for i := range k.Elems {
		if !k.Elems[i].Equal(o.Elems[i]) {
			return false
		}
	}
	return true
}

func equalKindPtr(a, b *Kind) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// ByteSize is the storage size of a value of this kind, or 0 when it is
// not statically known.
func (k Kind) ByteSize() int {
	switch k.Tag {
	case TagMatrix:
		if k.Elem == nil {
			return 0
		}
		return k.Rows * k.Cols * k.Elem.ByteSize()
	case TagTuple:
		n := 0
		for _, e := range k.Elems {
			n += e.ByteSize()
		}
		return n
	case TagRecord:
		n := 0
		for _, f := range k.Fields {
			n += f.Kind.ByteSize()
		}
		return n
	}
	return scalarSize(k.Tag)
}

func (k Kind) String() string {
	switch k.Tag {
	case TagMatrix:
		elem := "_"
		if k.Elem != nil {
			elem = k.Elem.String()
		}
		if k.Rows == 0 && k.Cols == 0 {
			return "[" + elem + "]"
		}
		return fmt.Sprintf("[%s %dx%d]", elem, k.Rows, k.Cols)
	case TagRecord:
		return "{" + fieldList(k.Fields) + "}"
	case TagTable:
		return fmt.Sprintf("|%s|%d", fieldList(k.Fields), k.Rows)
	case TagTuple:
		parts := make([]string, len(k.Elems))
		for i, e := range k.Elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ",") + ")"
	case TagSet:
		return "set{" + optKind(k.Elem) + "}"
	case TagMap:
		return "map{" + optKind(k.Elem) + ":" + optKind(k.Val) + "}"
	case TagEnum:
		return fmt.Sprintf("enum:%#x", k.ID)
	case TagReference:
		return "&" + optKind(k.Elem)
	}
	return k.Tag.String()
}

func optKind(k *Kind) string {
	if k == nil {
		return "_"
	}
	return k.String()
}

func fieldList(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("%d", i+1)
		}
		parts[i] = fmt.Sprintf("%s<%s>", name, f.Kind)
	}
	return strings.Join(parts, " ")
}

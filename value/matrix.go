package value

import (
	"fmt"
	"strings"
)

// Shape is the storage class of a matrix. Fixed shapes have compile-time
// dimensions; the D shapes are sized at runtime.
type Shape uint8

const (
	ShapeM1 Shape = iota
	ShapeM2
	ShapeM3
	ShapeM4
	ShapeM2x3
	ShapeM3x2
	ShapeV2
	ShapeV3
	ShapeV4
	ShapeR2
	ShapeR3
	ShapeR4
	ShapeVD
	ShapeRD
	ShapeMD
)

var shapeNames = [...]string{
	ShapeM1: "M1", ShapeM2: "M2", ShapeM3: "M3", ShapeM4: "M4",
	ShapeM2x3: "M2x3", ShapeM3x2: "M3x2",
	ShapeV2: "V2", ShapeV3: "V3", ShapeV4: "V4",
	ShapeR2: "R2", ShapeR3: "R3", ShapeR4: "R4",
	ShapeVD: "VD", ShapeRD: "RD", ShapeMD: "MD",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("shape(%d)", s)
}

// Fixed reports whether s has compile-time dimensions.
func (s Shape) Fixed() bool { return s < ShapeVD }

// ShapeFor picks the storage class for rows x cols, preferring a fixed
// shape when one exists.
func ShapeFor(rows, cols int) Shape {
	switch {
	case rows == 1 && cols == 1:
		return ShapeM1
	case rows == 2 && cols == 2:
		return ShapeM2
	case rows == 3 && cols == 3:
		return ShapeM3
	case rows == 4 && cols == 4:
		return ShapeM4
	case rows == 2 && cols == 3:
		return ShapeM2x3
	case rows == 3 && cols == 2:
		return ShapeM3x2
	case cols == 1 && rows >= 2 && rows <= 4:
		return ShapeV2 + Shape(rows-2)
	case rows == 1 && cols >= 2 && cols <= 4:
		return ShapeR2 + Shape(cols-2)
	case cols == 1:
		return ShapeVD
	case rows == 1:
		return ShapeRD
	}
	return ShapeMD
}

// DynamicShapeFor picks the runtime-sized class for rows x cols.
func DynamicShapeFor(rows, cols int) Shape {
	switch {
	case cols == 1:
		return ShapeVD
	case rows == 1:
		return ShapeRD
	}
	return ShapeMD
}

// Matrix is a dense column-major array of elements.
type Matrix[T Elem] struct {
	shape      Shape
	rows, cols int
	data       []T
}

// NewMatrix builds a rows x cols matrix from column-major data. Missing
// trailing elements are zero.
func NewMatrix[T Elem](rows, cols int, data []T) Matrix[T] {
	return NewMatrixShape(ShapeFor(rows, cols), rows, cols, data)
}

// NewMatrixShape is NewMatrix with an explicit storage class.
func NewMatrixShape[T Elem](shape Shape, rows, cols int, data []T) Matrix[T] {
	buf := make([]T, rows*cols)
	copy(buf, data)
	return Matrix[T]{shape: shape, rows: rows, cols: cols, data: buf}
}

func (m *Matrix[T]) Shape() Shape { return m.shape }
func (m *Matrix[T]) Rows() int    { return m.rows }
func (m *Matrix[T]) Cols() int    { return m.cols }
func (m *Matrix[T]) Len() int     { return len(m.data) }

// Data exposes the column-major backing slice.
func (m *Matrix[T]) Data() []T { return m.data }

// At returns the element at zero-based (r, c).
func (m *Matrix[T]) At(r, c int) T { return m.data[c*m.rows+r] }

// SetAt writes the element at zero-based (r, c).
func (m *Matrix[T]) SetAt(r, c int, v T) { m.data[c*m.rows+r] = v }

// Resize reallocates a dynamic matrix to rows x cols, keeping its shape
// class. Existing elements are not preserved.
func (m *Matrix[T]) Resize(rows, cols int) {
	if m.rows == rows && m.cols == cols {
		return
	}
	m.rows, m.cols = rows, cols
	m.data = make([]T, rows*cols)
}

// Mat is a matrix value behind a shared cell.
type Mat[T Elem] struct {
	Ref *Ref[Matrix[T]]
}

// NewMat allocates a matrix value from column-major data.
func NewMat[T Elem](rows, cols int, data ...T) Mat[T] {
	return Mat[T]{Ref: NewRef(NewMatrix(rows, cols, data))}
}

// NewMatShape allocates a zeroed matrix value with an explicit shape.
func NewMatShape[T Elem](shape Shape, rows, cols int) Mat[T] {
	return Mat[T]{Ref: NewRef(NewMatrixShape[T](shape, rows, cols, nil))}
}

// MatFromRows builds a matrix value from row-major nested slices.
func MatFromRows[T Elem](rows [][]T) Mat[T] {
	r := len(rows)
	c := 0
	if r > 0 {
		c = len(rows[0])
	}
	m := NewMatrix[T](r, c, nil)
	for i, row := range rows {
		for j, v := range row {
			m.SetAt(i, j, v)
		}
	}
	return Mat[T]{Ref: NewRef(m)}
}

func (m Mat[T]) Shape() Shape { return m.Ref.Ptr().shape }
func (m Mat[T]) Rows() int    { return m.Ref.Ptr().rows }
func (m Mat[T]) Cols() int    { return m.Ref.Ptr().cols }
func (m Mat[T]) Data() []T    { return m.Ref.Ptr().data }

func (m Mat[T]) Kind() Kind {
	p := m.Ref.Ptr()
	return MatrixKind(TagOf[T](), p.rows, p.cols)
}

func (m Mat[T]) Size() int {
	p := m.Ref.Ptr()
	if ss, ok := any(p.data).([]string); ok {
		n := 0
		for _, s := range ss {
			n += len(s)
		}
		return n
	}
	return len(p.data) * scalarSize(TagOf[T]())
}

func (m Mat[T]) String() string {
	p := m.Ref.Ptr()
	var b strings.Builder
	b.WriteByte('[')
	for r := 0; r < p.rows; r++ {
		if r > 0 {
			b.WriteString("; ")
		}
		for c := 0; c < p.cols; c++ {
			if c > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(formatElem(any(p.At(r, c))))
		}
	}
	b.WriteByte(']')
	return b.String()
}

func (m Mat[T]) appendKey(b []byte) []byte {
	p := m.Ref.Ptr()
	b = fmt.Appendf(b, "m%d:%dx%d[", TagOf[T](), p.rows, p.cols)
	for _, v := range p.data {
		b = keyElem(b, any(v))
		b = append(b, ',')
	}
	return append(b, ']')
}

func (m Mat[T]) assign(src Value) (bool, bool) {
	o, ok := src.(Mat[T])
	if !ok {
		return false, false
	}
	if o.Ref == m.Ref {
		return false, true
	}
	dst, s := m.Ref.Ptr(), o.Ref.Ptr()
	if dst.rows != s.rows || dst.cols != s.cols {
		return false, false
	}
	changed := false
	for i, v := range s.data {
		if dst.data[i] != v {
			dst.data[i] = v
			changed = true
		}
	}
	return changed, true
}

func (m Mat[T]) clone() Value {
	p := m.Ref.Ptr()
	return Mat[T]{Ref: NewRef(NewMatrixShape(p.shape, p.rows, p.cols, p.data))}
}

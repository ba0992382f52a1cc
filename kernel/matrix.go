package kernel

import "github.com/chazu/mech/value"

// MatMul computes the matrix product L x R.
type MatMul[T value.Number] struct {
	Name string
	L, R *value.Ref[value.Matrix[T]]
	Res  *value.Ref[value.Matrix[T]]
}

func (k *MatMul[T]) Solve() {
	l := k.L.Borrow()
	defer k.L.Release()
	r := k.R.Borrow()
	defer k.R.Release()
	o := k.Res.BorrowMut()
	defer k.Res.Release()
	n := l.Cols()
	for i := 0; i < o.Rows(); i++ {
		for j := 0; j < o.Cols(); j++ {
			var acc T
			for p := 0; p < n; p++ {
				acc += l.At(i, p) * r.At(p, j)
			}
			o.SetAt(i, j, acc)
		}
	}
}

func (k *MatMul[T]) Out() value.Value { return value.Mat[T]{Ref: k.Res} }
func (k *MatMul[T]) String() string   { return k.Name + "[mm]" }

// Transpose swaps rows and columns.
type Transpose[T value.Elem] struct {
	Name string
	Arg  *value.Ref[value.Matrix[T]]
	Res  *value.Ref[value.Matrix[T]]
}

func (k *Transpose[T]) Solve() {
	a := k.Arg.Borrow()
	defer k.Arg.Release()
	o := k.Res.BorrowMut()
	defer k.Res.Release()
	for i := 0; i < a.Rows(); i++ {
		for j := 0; j < a.Cols(); j++ {
			o.SetAt(j, i, a.At(i, j))
		}
	}
}

func (k *Transpose[T]) Out() value.Value { return value.Mat[T]{Ref: k.Res} }
func (k *Transpose[T]) String() string   { return k.Name + "[m]" }

// Sum reduces a matrix to the sum of its elements.
type Sum[T value.Number] struct {
	Name string
	Arg  *value.Ref[value.Matrix[T]]
	Res  *value.Ref[T]
}

func (k *Sum[T]) Solve() {
	a := k.Arg.Borrow()
	var acc T
	for _, v := range a.Data() {
		acc += v
	}
	k.Arg.Release()
	k.Res.Set(acc)
}

func (k *Sum[T]) Out() value.Value { return value.Scalar[T]{Ref: k.Res} }
func (k *Sum[T]) String() string   { return k.Name + "[m]" }

// Part is one operand of a concatenation: a scalar or a matrix.
type Part[T value.Elem] struct {
	Scalar *value.Ref[T]
	Mat    *value.Ref[value.Matrix[T]]
}

func (p Part[T]) dims() (int, int) {
	if p.Mat != nil {
		m := p.Mat.Ptr()
		return m.Rows(), m.Cols()
	}
	return 1, 1
}

func (p Part[T]) at(r, c int) T {
	if p.Mat != nil {
		return p.Mat.Ptr().At(r, c)
	}
	return p.Scalar.Get()
}

// Concat joins parts side by side (Horizontal) or stacked.
type Concat[T value.Elem] struct {
	Name       string
	Horizontal bool
	Parts      []Part[T]
	Res        *value.Ref[value.Matrix[T]]
}

func (k *Concat[T]) Solve() {
	o := k.Res.BorrowMut()
	defer k.Res.Release()
	off := 0
	for _, p := range k.Parts {
		rows, cols := p.dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				if k.Horizontal {
					o.SetAt(i, off+j, p.at(i, j))
				} else {
					o.SetAt(off+i, j, p.at(i, j))
				}
			}
		}
		if k.Horizontal {
			off += cols
		} else {
			off += rows
		}
	}
}

func (k *Concat[T]) Out() value.Value { return value.Mat[T]{Ref: k.Res} }

func (k *Concat[T]) String() string {
	if k.Horizontal {
		return k.Name + "[horz]"
	}
	return k.Name + "[vert]"
}

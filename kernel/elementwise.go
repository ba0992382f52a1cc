package kernel

import "github.com/chazu/mech/value"

// ---------------------------------------------------------------------------
// Unary
// ---------------------------------------------------------------------------

// Unary applies F to a scalar.
type Unary[A, R value.Elem] struct {
	Name string
	Arg  *value.Ref[A]
	Res  *value.Ref[R]
	F    func(A) R
}

func (k *Unary[A, R]) Solve()           { k.Res.Set(k.F(k.Arg.Get())) }
func (k *Unary[A, R]) Out() value.Value { return value.Scalar[R]{Ref: k.Res} }
func (k *Unary[A, R]) String() string   { return k.Name + "[s]" }

// UnaryMat applies F to every element of a matrix.
type UnaryMat[A, R value.Elem] struct {
	Name string
	Arg  *value.Ref[value.Matrix[A]]
	Res  *value.Ref[value.Matrix[R]]
	F    func(A) R
}

func (k *UnaryMat[A, R]) Solve() {
	a := k.Arg.Borrow()
	defer k.Arg.Release()
	r := k.Res.BorrowMut()
	defer k.Res.Release()
	fit(r, a.Rows(), a.Cols())
	out := r.Data()
	for i, v := range a.Data() {
		out[i] = k.F(v)
	}
}

func (k *UnaryMat[A, R]) Out() value.Value { return value.Mat[R]{Ref: k.Res} }
func (k *UnaryMat[A, R]) String() string   { return k.Name + "[m]" }

// ---------------------------------------------------------------------------
// Binary
// ---------------------------------------------------------------------------

// Binary applies F to two scalars.
type Binary[A, R value.Elem] struct {
	Name string
	L, R *value.Ref[A]
	Res  *value.Ref[R]
	F    func(A, A) R
}

func (k *Binary[A, R]) Solve()           { k.Res.Set(k.F(k.L.Get(), k.R.Get())) }
func (k *Binary[A, R]) Out() value.Value { return value.Scalar[R]{Ref: k.Res} }
func (k *Binary[A, R]) String() string   { return k.Name + "[ss]" }

// BinaryMM applies F elementwise to two matrices of equal dimensions.
type BinaryMM[A, R value.Elem] struct {
	Name string
	L, R *value.Ref[value.Matrix[A]]
	Res  *value.Ref[value.Matrix[R]]
	F    func(A, A) R
}

func (k *BinaryMM[A, R]) Solve() {
	l := k.L.Borrow()
	defer k.L.Release()
	r := k.R.Borrow()
	defer k.R.Release()
	o := k.Res.BorrowMut()
	defer k.Res.Release()
	fit(o, l.Rows(), l.Cols())
	out, ld, rd := o.Data(), l.Data(), r.Data()
	if len(rd) < len(ld) {
		ld = ld[:len(rd)]
	}
	for i, v := range ld {
		out[i] = k.F(v, rd[i])
	}
}

func (k *BinaryMM[A, R]) Out() value.Value { return value.Mat[R]{Ref: k.Res} }
func (k *BinaryMM[A, R]) String() string   { return k.Name + "[mm]" }

// BinarySM broadcasts a scalar left operand over a matrix.
type BinarySM[A, R value.Elem] struct {
	Name string
	L    *value.Ref[A]
	R    *value.Ref[value.Matrix[A]]
	Res  *value.Ref[value.Matrix[R]]
	F    func(A, A) R
}

func (k *BinarySM[A, R]) Solve() {
	s := k.L.Get()
	r := k.R.Borrow()
	defer k.R.Release()
	o := k.Res.BorrowMut()
	defer k.Res.Release()
	fit(o, r.Rows(), r.Cols())
	out := o.Data()
	for i, v := range r.Data() {
		out[i] = k.F(s, v)
	}
}

func (k *BinarySM[A, R]) Out() value.Value { return value.Mat[R]{Ref: k.Res} }
func (k *BinarySM[A, R]) String() string   { return k.Name + "[sm]" }

// BinaryMS broadcasts a scalar right operand over a matrix.
type BinaryMS[A, R value.Elem] struct {
	Name string
	L    *value.Ref[value.Matrix[A]]
	R    *value.Ref[A]
	Res  *value.Ref[value.Matrix[R]]
	F    func(A, A) R
}

func (k *BinaryMS[A, R]) Solve() {
	s := k.R.Get()
	l := k.L.Borrow()
	defer k.L.Release()
	o := k.Res.BorrowMut()
	defer k.Res.Release()
	fit(o, l.Rows(), l.Cols())
	out := o.Data()
	for i, v := range l.Data() {
		out[i] = k.F(v, s)
	}
}

func (k *BinaryMS[A, R]) Out() value.Value { return value.Mat[R]{Ref: k.Res} }
func (k *BinaryMS[A, R]) String() string   { return k.Name + "[ms]" }

// ---------------------------------------------------------------------------
// Copy
// ---------------------------------------------------------------------------

// Copy writes its input scalar into a separate output cell.
type Copy[T value.Elem] struct {
	Name string
	Arg  *value.Ref[T]
	Res  *value.Ref[T]
}

func (k *Copy[T]) Solve()           { k.Res.Set(k.Arg.Get()) }
func (k *Copy[T]) Out() value.Value { return value.Scalar[T]{Ref: k.Res} }
func (k *Copy[T]) String() string   { return k.Name + "[copy s]" }

// CopyMat writes its input matrix into a separate output matrix of the
// same dimensions.
type CopyMat[T value.Elem] struct {
	Name string
	Arg  *value.Ref[value.Matrix[T]]
	Res  *value.Ref[value.Matrix[T]]
}

func (k *CopyMat[T]) Solve() {
	a := k.Arg.Borrow()
	defer k.Arg.Release()
	o := k.Res.BorrowMut()
	defer k.Res.Release()
	fit(o, a.Rows(), a.Cols())
	copy(o.Data(), a.Data())
}

func (k *CopyMat[T]) Out() value.Value { return value.Mat[T]{Ref: k.Res} }
func (k *CopyMat[T]) String() string   { return k.Name + "[copy m]" }

// fit resizes a matrix output to follow an operand that changed size
// since the kernel was bound.
func fit[T value.Elem](m *value.Matrix[T], rows, cols int) {
	if m.Rows() != rows || m.Cols() != cols {
		m.Resize(rows, cols)
	}
}

package dispatch

import (
	"github.com/chazu/mech/kernel"
	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/value"
)

// binary matches two operands of element kind A in any scalar/matrix
// combination and builds the elementwise kernel for f.
func binary[A, R value.Elem](d *Dispatcher, name string, lhs, rhs value.Value, f func(A, A) R) (kernel.Kernel, error) {
	if !d.elemOK(value.TagOf[A]()) {
		return nil, nil
	}
	switch l := lhs.(type) {
	case value.Scalar[A]:
		switch r := rhs.(type) {
		case value.Scalar[A]:
			var z R
			return &kernel.Binary[A, R]{Name: name, L: l.Ref, R: r.Ref, Res: value.NewRef(z), F: f}, nil
		case value.Mat[A]:
			if !d.shapeOK(r.Shape()) {
				return nil, nil
			}
			res := value.NewMatShape[R](r.Shape(), r.Rows(), r.Cols())
			return &kernel.BinarySM[A, R]{Name: name, L: l.Ref, R: r.Ref, Res: res.Ref, F: f}, nil
		}
	case value.Mat[A]:
		if !d.shapeOK(l.Shape()) {
			return nil, nil
		}
		switch r := rhs.(type) {
		case value.Scalar[A]:
			res := value.NewMatShape[R](l.Shape(), l.Rows(), l.Cols())
			return &kernel.BinaryMS[A, R]{Name: name, L: l.Ref, R: r.Ref, Res: res.Ref, F: f}, nil
		case value.Mat[A]:
			if l.Shape() != r.Shape() {
				return nil, nil
			}
			if l.Rows() != r.Rows() || l.Cols() != r.Cols() {
				return nil, mecherr.Dimensions(name, [2]int{l.Rows(), l.Cols()}, [2]int{r.Rows(), r.Cols()})
			}
			res := value.NewMatShape[R](l.Shape(), l.Rows(), l.Cols())
			return &kernel.BinaryMM[A, R]{Name: name, L: l.Ref, R: r.Ref, Res: res.Ref, F: f}, nil
		}
	}
	return nil, nil
}

// unary matches one operand of element kind A, scalar or matrix.
func unary[A, R value.Elem](d *Dispatcher, name string, arg value.Value, f func(A) R) (kernel.Kernel, error) {
	if !d.elemOK(value.TagOf[A]()) {
		return nil, nil
	}
	switch a := arg.(type) {
	case value.Scalar[A]:
		var z R
		return &kernel.Unary[A, R]{Name: name, Arg: a.Ref, Res: value.NewRef(z), F: f}, nil
	case value.Mat[A]:
		if !d.shapeOK(a.Shape()) {
			return nil, nil
		}
		res := value.NewMatShape[R](a.Shape(), a.Rows(), a.Cols())
		return &kernel.UnaryMat[A, R]{Name: name, Arg: a.Ref, Res: res.Ref, F: f}, nil
	}
	return nil, nil
}

// copyOf builds a copy kernel for a scalar or matrix of element kind T.
func copyOf[T value.Elem](d *Dispatcher, name string, arg value.Value) (kernel.Kernel, error) {
	if !d.elemOK(value.TagOf[T]()) {
		return nil, nil
	}
	switch a := arg.(type) {
	case value.Scalar[T]:
		var z T
		return &kernel.Copy[T]{Name: name, Arg: a.Ref, Res: value.NewRef(z)}, nil
	case value.Mat[T]:
		if !d.shapeOK(a.Shape()) {
			return nil, nil
		}
		res := value.NewMatShape[T](a.Shape(), a.Rows(), a.Cols())
		return &kernel.CopyMat[T]{Name: name, Arg: a.Ref, Res: res.Ref}, nil
	}
	return nil, nil
}

// copyAny builds a copy kernel for a scalar or matrix of any element kind.
func copyAny(d *Dispatcher, name string, arg value.Value) (kernel.Kernel, error) {
	return try(
		func() (kernel.Kernel, error) { return copyOf[bool](d, name, arg) },
		func() (kernel.Kernel, error) { return copyOf[int8](d, name, arg) },
		func() (kernel.Kernel, error) { return copyOf[int16](d, name, arg) },
		func() (kernel.Kernel, error) { return copyOf[int32](d, name, arg) },
		func() (kernel.Kernel, error) { return copyOf[int64](d, name, arg) },
		func() (kernel.Kernel, error) { return copyOf[uint8](d, name, arg) },
		func() (kernel.Kernel, error) { return copyOf[uint16](d, name, arg) },
		func() (kernel.Kernel, error) { return copyOf[uint32](d, name, arg) },
		func() (kernel.Kernel, error) { return copyOf[uint64](d, name, arg) },
		func() (kernel.Kernel, error) { return copyOf[value.F32](d, name, arg) },
		func() (kernel.Kernel, error) { return copyOf[value.F64](d, name, arg) },
		func() (kernel.Kernel, error) { return copyOf[value.C64](d, name, arg) },
		func() (kernel.Kernel, error) { return copyOf[string](d, name, arg) },
	)
}

package dispatch

import (
	"github.com/chazu/mech/kernel"
	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/value"
)

func matmul[T value.Number](d *Dispatcher, name string, lhs, rhs value.Value) (kernel.Kernel, error) {
	l, ok := lhs.(value.Mat[T])
	if !ok {
		return nil, nil
	}
	r, ok := rhs.(value.Mat[T])
	if !ok || !d.elemOK(value.TagOf[T]()) || !d.shapeOK(l.Shape()) || !d.shapeOK(r.Shape()) {
		return nil, nil
	}
	if l.Cols() != r.Rows() {
		return nil, mecherr.Dimensions(name, [2]int{l.Rows(), l.Cols()}, [2]int{r.Rows(), r.Cols()})
	}
	shape, ok := d.outShape(l.Rows(), r.Cols(), !l.Shape().Fixed() || !r.Shape().Fixed())
	if !ok {
		return nil, nil
	}
	res := value.NewMatShape[T](shape, l.Rows(), r.Cols())
	return &kernel.MatMul[T]{Name: name, L: l.Ref, R: r.Ref, Res: res.Ref}, nil
}

func compileMatMul(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
	l, r := args[0], args[1]
	return try(
		func() (kernel.Kernel, error) { return matmul[int8](d, name, l, r) },
		func() (kernel.Kernel, error) { return matmul[int16](d, name, l, r) },
		func() (kernel.Kernel, error) { return matmul[int32](d, name, l, r) },
		func() (kernel.Kernel, error) { return matmul[int64](d, name, l, r) },
		func() (kernel.Kernel, error) { return matmul[uint8](d, name, l, r) },
		func() (kernel.Kernel, error) { return matmul[uint16](d, name, l, r) },
		func() (kernel.Kernel, error) { return matmul[uint32](d, name, l, r) },
		func() (kernel.Kernel, error) { return matmul[uint64](d, name, l, r) },
		func() (kernel.Kernel, error) { return matmul[value.F32](d, name, l, r) },
		func() (kernel.Kernel, error) { return matmul[value.F64](d, name, l, r) },
		func() (kernel.Kernel, error) { return matmul[value.C64](d, name, l, r) },
	)
}

func transpose[T value.Elem](d *Dispatcher, name string, arg value.Value) (kernel.Kernel, error) {
	a, ok := arg.(value.Mat[T])
	if !ok || !d.elemOK(value.TagOf[T]()) || !d.shapeOK(a.Shape()) {
		return nil, nil
	}
	shape, ok := d.outShape(a.Cols(), a.Rows(), !a.Shape().Fixed())
	if !ok {
		return nil, nil
	}
	res := value.NewMatShape[T](shape, a.Cols(), a.Rows())
	return &kernel.Transpose[T]{Name: name, Arg: a.Ref, Res: res.Ref}, nil
}

func compileTranspose(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
	a := args[0]
	return try(
		func() (kernel.Kernel, error) { return transpose[bool](d, name, a) },
		func() (kernel.Kernel, error) { return transpose[int8](d, name, a) },
		func() (kernel.Kernel, error) { return transpose[int16](d, name, a) },
		func() (kernel.Kernel, error) { return transpose[int32](d, name, a) },
		func() (kernel.Kernel, error) { return transpose[int64](d, name, a) },
		func() (kernel.Kernel, error) { return transpose[uint8](d, name, a) },
		func() (kernel.Kernel, error) { return transpose[uint16](d, name, a) },
		func() (kernel.Kernel, error) { return transpose[uint32](d, name, a) },
		func() (kernel.Kernel, error) { return transpose[uint64](d, name, a) },
		func() (kernel.Kernel, error) { return transpose[value.F32](d, name, a) },
		func() (kernel.Kernel, error) { return transpose[value.F64](d, name, a) },
		func() (kernel.Kernel, error) { return transpose[value.C64](d, name, a) },
		func() (kernel.Kernel, error) { return transpose[string](d, name, a) },
	)
}

func sum[T value.Number](d *Dispatcher, name string, arg value.Value) (kernel.Kernel, error) {
	if !d.elemOK(value.TagOf[T]()) {
		return nil, nil
	}
	switch a := arg.(type) {
	case value.Scalar[T]:
		return copyOf[T](d, name, a)
	case value.Mat[T]:
		if !d.shapeOK(a.Shape()) {
			return nil, nil
		}
		var z T
		return &kernel.Sum[T]{Name: name, Arg: a.Ref, Res: value.NewRef(z)}, nil
	}
	return nil, nil
}

func compileSum(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
	a := args[0]
	return try(
		func() (kernel.Kernel, error) { return sum[int8](d, name, a) },
		func() (kernel.Kernel, error) { return sum[int16](d, name, a) },
		func() (kernel.Kernel, error) { return sum[int32](d, name, a) },
		func() (kernel.Kernel, error) { return sum[int64](d, name, a) },
		func() (kernel.Kernel, error) { return sum[uint8](d, name, a) },
		func() (kernel.Kernel, error) { return sum[uint16](d, name, a) },
		func() (kernel.Kernel, error) { return sum[uint32](d, name, a) },
		func() (kernel.Kernel, error) { return sum[uint64](d, name, a) },
		func() (kernel.Kernel, error) { return sum[value.F32](d, name, a) },
		func() (kernel.Kernel, error) { return sum[value.F64](d, name, a) },
		func() (kernel.Kernel, error) { return sum[value.C64](d, name, a) },
	)
}

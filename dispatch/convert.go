package dispatch

import (
	"github.com/chazu/mech/kernel"
	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/value"
)

// cast is a native numeric conversion: integers truncate or wrap, floats
// truncate toward zero when narrowed to integers.
func cast[S, D value.Real](a S) D { return D(a) }

// convertTo builds the S -> D conversion kernel for a scalar or matrix
// source. A matrix target kind with dimensions must match the source's.
func convertTo[S, D value.Real](d *Dispatcher, name string, src value.Value, target value.Kind) (kernel.Kernel, error) {
	if !d.elemOK(value.TagOf[D]()) {
		return nil, nil
	}
	switch s := src.(type) {
	case value.Scalar[S]:
		if target.Tag == value.TagMatrix {
			return nil, mecherr.Conversion(s.Kind().String(), target.String())
		}
		return &kernel.Unary[S, D]{Name: name, Arg: s.Ref, Res: value.NewRef(D(0)), F: cast[S, D]}, nil
	case value.Mat[S]:
		if !d.shapeOK(s.Shape()) {
			return nil, nil
		}
		shape, rows, cols := s.Shape(), s.Rows(), s.Cols()
		if target.Tag == value.TagMatrix && target.Rows != 0 {
			if target.Rows != rows || target.Cols != cols {
				return nil, mecherr.Dimensions(name, [2]int{rows, cols}, [2]int{target.Rows, target.Cols})
			}
		}
		res := value.NewMatShape[D](shape, rows, cols)
		return &kernel.UnaryMat[S, D]{Name: name, Arg: s.Ref, Res: res.Ref, F: cast[S, D]}, nil
	}
	return nil, nil
}

// convertFrom picks the destination instantiation from the target tag.
func convertFrom[S value.Real](d *Dispatcher, name string, src value.Value, target value.Kind) (kernel.Kernel, error) {
	switch src.(type) {
	case value.Scalar[S], value.Mat[S]:
	default:
		return nil, nil
	}
	if !d.elemOK(value.TagOf[S]()) {
		return nil, nil
	}
	switch target.ElemTag() {
	case value.TagI8:
		return convertTo[S, int8](d, name, src, target)
	case value.TagI16:
		return convertTo[S, int16](d, name, src, target)
	case value.TagI32:
		return convertTo[S, int32](d, name, src, target)
	case value.TagI64:
		return convertTo[S, int64](d, name, src, target)
	case value.TagU8:
		return convertTo[S, uint8](d, name, src, target)
	case value.TagU16:
		return convertTo[S, uint16](d, name, src, target)
	case value.TagU32:
		return convertTo[S, uint32](d, name, src, target)
	case value.TagU64:
		return convertTo[S, uint64](d, name, src, target)
	case value.TagF32:
		return convertTo[S, value.F32](d, name, src, target)
	case value.TagF64:
		return convertTo[S, value.F64](d, name, src, target)
	}
	return nil, mecherr.Conversion(src.Kind().String(), target.String())
}

// compileConvert takes a source value and a KindValue target.
func compileConvert(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
	src := args[0]
	target, ok := args[1].(value.KindValue)
	if !ok {
		return nil, nil
	}
	if _, ref := src.(value.MutableReference); ref {
		return nil, nil
	}
	k, err := try(
		func() (kernel.Kernel, error) { return convertFrom[int8](d, name, src, target.K) },
		func() (kernel.Kernel, error) { return convertFrom[int16](d, name, src, target.K) },
		func() (kernel.Kernel, error) { return convertFrom[int32](d, name, src, target.K) },
		func() (kernel.Kernel, error) { return convertFrom[int64](d, name, src, target.K) },
		func() (kernel.Kernel, error) { return convertFrom[uint8](d, name, src, target.K) },
		func() (kernel.Kernel, error) { return convertFrom[uint16](d, name, src, target.K) },
		func() (kernel.Kernel, error) { return convertFrom[uint32](d, name, src, target.K) },
		func() (kernel.Kernel, error) { return convertFrom[uint64](d, name, src, target.K) },
		func() (kernel.Kernel, error) { return convertFrom[value.F32](d, name, src, target.K) },
		func() (kernel.Kernel, error) { return convertFrom[value.F64](d, name, src, target.K) },
	)
	if k == nil && err == nil {
		if d.gated(src, target.K) {
			return nil, nil
		}
		return nil, mecherr.Conversion(src.Kind().String(), target.K.String())
	}
	return k, err
}

// gated reports whether converting src to target is ruled out by a
// disabled feature rather than by the pair itself.
func (d *Dispatcher) gated(src value.Value, target value.Kind) bool {
	if !d.elemOK(src.Kind().ElemTag()) {
		return true
	}
	if to := target.ElemTag(); to.IsReal() && !d.elemOK(to) {
		return true
	}
	if m, ok := src.(interface{ Shape() value.Shape }); ok && !d.shapeOK(m.Shape()) {
		return true
	}
	return false
}

package dispatch

import (
	"github.com/chazu/mech/kernel"
	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/value"
)

// concat joins scalars and matrices of element kind T. Horizontal
// concatenation needs equal row counts; vertical needs equal column counts.
func concat[T value.Elem](d *Dispatcher, name string, args []value.Value, horizontal bool) (kernel.Kernel, error) {
	if !d.elemOK(value.TagOf[T]()) {
		return nil, nil
	}
	parts := make([]kernel.Part[T], len(args))
	rows, cols := 0, 0
	dynamic := false
	for i, a := range args {
		var r, c int
		switch v := a.(type) {
		case value.Scalar[T]:
			parts[i] = kernel.Part[T]{Scalar: v.Ref}
			r, c = 1, 1
		case value.Mat[T]:
			if !d.shapeOK(v.Shape()) {
				return nil, nil
			}
			parts[i] = kernel.Part[T]{Mat: v.Ref}
			r, c = v.Rows(), v.Cols()
			dynamic = dynamic || !v.Shape().Fixed()
		default:
			return nil, nil
		}
		switch {
		case i == 0:
			rows, cols = r, c
		case horizontal:
			if r != rows {
				return nil, mecherr.Dimensions(name, [2]int{rows, cols}, [2]int{r, c})
			}
			cols += c
		default:
			if c != cols {
				return nil, mecherr.Dimensions(name, [2]int{rows, cols}, [2]int{r, c})
			}
			rows += r
		}
	}
	shape, ok := d.outShape(rows, cols, dynamic)
	if !ok {
		return nil, nil
	}
	res := value.NewMatShape[T](shape, rows, cols)
	return &kernel.Concat[T]{Name: name, Horizontal: horizontal, Parts: parts, Res: res.Ref}, nil
}

// compileConcat handles table/horzcat and table/vertcat. A single argument
// is copied unchanged.
func compileConcat(horizontal bool) CompileFunc {
	return func(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
		if len(args) == 1 {
			return copyAny(d, name, args[0])
		}
		return try(
			func() (kernel.Kernel, error) { return concat[bool](d, name, args, horizontal) },
			func() (kernel.Kernel, error) { return concat[int8](d, name, args, horizontal) },
			func() (kernel.Kernel, error) { return concat[int16](d, name, args, horizontal) },
			func() (kernel.Kernel, error) { return concat[int32](d, name, args, horizontal) },
			func() (kernel.Kernel, error) { return concat[int64](d, name, args, horizontal) },
			func() (kernel.Kernel, error) { return concat[uint8](d, name, args, horizontal) },
			func() (kernel.Kernel, error) { return concat[uint16](d, name, args, horizontal) },
			func() (kernel.Kernel, error) { return concat[uint32](d, name, args, horizontal) },
			func() (kernel.Kernel, error) { return concat[uint64](d, name, args, horizontal) },
			func() (kernel.Kernel, error) { return concat[value.F32](d, name, args, horizontal) },
			func() (kernel.Kernel, error) { return concat[value.F64](d, name, args, horizontal) },
			func() (kernel.Kernel, error) { return concat[value.C64](d, name, args, horizontal) },
			func() (kernel.Kernel, error) { return concat[string](d, name, args, horizontal) },
		)
	}
}

func compileSet(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
	return copyAny(d, name, args[0])
}

func column[T value.Elem](d *Dispatcher, name string, t *value.Table, ix int) (kernel.Kernel, error) {
	if !d.elemOK(value.TagOf[T]()) || !d.features.Has(FeatureMatrixDynamic) {
		return nil, nil
	}
	res := value.NewMatShape[T](value.ShapeVD, t.Rows(), 1)
	return &kernel.Column[T]{Name: name, Table: t, Col: ix, Res: res.Ref}, nil
}

// compileColumn gathers a table column. The column is named by a u64
// alias or a zero-based i64 index.
func compileColumn(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
	t, ok := value.Deref(args[0]).(*value.Table)
	if !ok {
		return nil, nil
	}
	var ix int
	switch c := args[1].(type) {
	case value.Scalar[uint64]:
		i, ok := t.ColumnIndex(c.Get())
		if !ok {
			return nil, &mecherr.Error{Code: mecherr.UndefinedVariable, Op: name, IDs: []uint64{c.Get()}}
		}
		ix = i
	case value.Scalar[int64]:
		ix = int(c.Get())
	default:
		return nil, nil
	}
	col, err := t.Column(ix)
	if err != nil {
		return nil, err
	}
	switch col.Kind.Tag {
	case value.TagBool:
		return column[bool](d, name, t, ix)
	case value.TagI8:
		return column[int8](d, name, t, ix)
	case value.TagI16:
		return column[int16](d, name, t, ix)
	case value.TagI32:
		return column[int32](d, name, t, ix)
	case value.TagI64:
		return column[int64](d, name, t, ix)
	case value.TagU8:
		return column[uint8](d, name, t, ix)
	case value.TagU16:
		return column[uint16](d, name, t, ix)
	case value.TagU32:
		return column[uint32](d, name, t, ix)
	case value.TagU64:
		return column[uint64](d, name, t, ix)
	case value.TagF32:
		return column[value.F32](d, name, t, ix)
	case value.TagF64:
		return column[value.F64](d, name, t, ix)
	case value.TagC64:
		return column[value.C64](d, name, t, ix)
	case value.TagString:
		return column[string](d, name, t, ix)
	}
	return nil, nil
}

func compileSize(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
	t, ok := value.Deref(args[0]).(*value.Table)
	if !ok || !d.elemOK(value.TagU64) {
		return nil, nil
	}
	shape, ok := d.outShape(1, 2, false)
	if !ok {
		return nil, nil
	}
	res := value.NewMatShape[uint64](shape, 1, 2)
	return &kernel.TableSize{Name: name, Table: t, Res: res.Ref}, nil
}

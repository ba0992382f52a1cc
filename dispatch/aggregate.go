package dispatch

import (
	"github.com/chazu/mech/kernel"
	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/value"
)

// source accepts a value of type T directly, or a reference whose target
// is a T. References are followed on every solve.
func source[T value.Value](v value.Value) (kernel.Source, T, bool) {
	switch x := v.(type) {
	case T:
		return kernel.Const(x), x, true
	case value.MutableReference:
		if inner, ok := value.Deref(x).(T); ok {
			return kernel.Live(x), inner, true
		}
	}
	var z T
	return nil, z, false
}

func compileUnion(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
	l, ls, ok := source[*value.Set](args[0])
	if !ok {
		return nil, nil
	}
	r, rs, ok := source[*value.Set](args[1])
	if !ok {
		return nil, nil
	}
	if ls.Len() > 0 && rs.Len() > 0 && !ls.ElemKind().Equal(rs.ElemKind()) {
		return nil, mecherr.Mismatch(name, ls.Kind().String(), rs.Kind().String())
	}
	return &kernel.SetUnion{Name: name, L: l, R: r, Res: value.NewReference(ls)}, nil
}

func compileContains(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
	s, _, ok := source[*value.Set](args[0])
	if !ok {
		return nil, nil
	}
	elem := kernel.Const(args[1])
	if r, isRef := args[1].(value.MutableReference); isRef {
		elem = kernel.Live(r)
	}
	return &kernel.SetContains{Name: name, Set: s, Elem: elem, Res: value.NewRef(false)}, nil
}

// compileField projects a record field named by a u64 id.
func compileField(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error) {
	src, rec, ok := source[*value.Record](args[0])
	if !ok {
		return nil, nil
	}
	id, ok := value.Deref(args[1]).(value.Scalar[uint64])
	if !ok {
		return nil, nil
	}
	v, ok := rec.Get(id.Get())
	if !ok {
		return nil, &mecherr.Error{Code: mecherr.UndefinedVariable, Op: name, IDs: []uint64{id.Get()}}
	}
	return &kernel.RecordField{Name: name, Record: src, Field: id.Get(), Res: value.NewReference(v)}, nil
}

package kernel

import (
	"github.com/chazu/mech/value"
)

// SetUnion publishes the union of two sets through a reference cell.
type SetUnion struct {
	Name string
	L, R Source
	Res  value.MutableReference
}

func (k *SetUnion) Solve() {
	l, lok := k.L().(*value.Set)
	r, rok := k.R().(*value.Set)
	if !lok || !rok {
		return
	}
	u, err := l.Union(r)
	if err != nil {
		return
	}
	k.Res.Ref.Set(u)
}

func (k *SetUnion) Out() value.Value { return k.Res }
func (k *SetUnion) String() string   { return k.Name + "[set set]" }

// SetContains tests membership of an element.
type SetContains struct {
	Name string
	Set  Source
	Elem Source
	Res  *value.Ref[bool]
}

func (k *SetContains) Solve() {
	s, ok := k.Set().(*value.Set)
	k.Res.Set(ok && s.Contains(k.Elem()))
}

func (k *SetContains) Out() value.Value { return value.Scalar[bool]{Ref: k.Res} }
func (k *SetContains) String() string   { return k.Name + "[set elem]" }

// RecordField publishes one field of a record through a reference cell.
type RecordField struct {
	Name   string
	Record Source
	Field  uint64
	Res    value.MutableReference
}

func (k *RecordField) Solve() {
	r, ok := k.Record().(*value.Record)
	if !ok {
		return
	}
	if v, ok := r.Get(k.Field); ok {
		k.Res.Ref.Set(v)
	}
}

func (k *RecordField) Out() value.Value { return k.Res }
func (k *RecordField) String() string   { return k.Name + "[record]" }

package kernel

import (
	"fmt"

	"github.com/chazu/mech/value"
)

// Column gathers one table column into a column vector. The vector is
// resized when the table's row count changes.
type Column[T value.Elem] struct {
	Name  string
	Table *value.Table
	Col   int
	Res   *value.Ref[value.Matrix[T]]
}

func (k *Column[T]) Solve() {
	o := k.Res.BorrowMut()
	defer k.Res.Release()
	c, err := k.Table.Column(k.Col)
	if err != nil {
		o.Resize(0, 1)
		return
	}
	cells := c.Cells()
	o.Resize(len(cells), 1)
	for i, cell := range cells {
		var v T
		if s, ok := value.Deref(cell).(value.Scalar[T]); ok {
			v = s.Get()
		}
		o.SetAt(i, 0, v)
	}
}

func (k *Column[T]) Out() value.Value { return value.Mat[T]{Ref: k.Res} }
func (k *Column[T]) String() string   { return fmt.Sprintf("%s[col %d]", k.Name, k.Col) }

// TableSize reports [rows cols] of a table.
type TableSize struct {
	Name  string
	Table *value.Table
	Res   *value.Ref[value.Matrix[uint64]]
}

func (k *TableSize) Solve() {
	o := k.Res.BorrowMut()
	defer k.Res.Release()
	o.SetAt(0, 0, uint64(k.Table.Rows()))
	o.SetAt(0, 1, uint64(k.Table.Cols()))
}

func (k *TableSize) Out() value.Value { return value.Mat[uint64]{Ref: k.Res} }
func (k *TableSize) String() string   { return k.Name + "[t]" }

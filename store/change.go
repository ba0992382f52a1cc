package store

import (
	"fmt"

	"github.com/chazu/mech/value"
)

// Change is one entry of a transaction.
type Change interface {
	change()
	fmt.Stringer
}

// NewTableChange creates or resizes a global table.
type NewTableChange struct {
	Table uint64
	Name  string
	Rows  int
	Cols  int
}

// ColumnAliasChange names a column of a global table.
type ColumnAliasChange struct {
	Table  uint64
	Column int
	Alias  uint64
	Name   string
}

// Cell is one write of a SetChange.
type Cell struct {
	Row   Index
	Col   Index
	Value value.Value
}

// SetChange writes cells of a global table.
type SetChange struct {
	Table uint64
	Cells []Cell
}

// RemoveTableChange drops a global table.
type RemoveTableChange struct {
	Table uint64
}

func (NewTableChange) change()    {}
func (ColumnAliasChange) change() {}
func (SetChange) change()         {}
func (RemoveTableChange) change() {}

func (c NewTableChange) String() string {
	return fmt.Sprintf("new-table %#x %dx%d", c.Table, c.Rows, c.Cols)
}

func (c ColumnAliasChange) String() string {
	return fmt.Sprintf("column-alias %#x[%d] = %#x", c.Table, c.Column, c.Alias)
}

func (c SetChange) String() string {
	return fmt.Sprintf("set %#x (%d cells)", c.Table, len(c.Cells))
}

func (c RemoveTableChange) String() string {
	return fmt.Sprintf("remove-table %#x", c.Table)
}

// Transaction is an ordered batch of changes applied atomically with
// respect to block execution.
type Transaction []Change

// Set is a convenience for a single-cell SetChange.
func Set(table uint64, row, col Index, v value.Value) SetChange {
	return SetChange{Table: table, Cells: []Cell{{Row: row, Col: col, Value: v}}}
}

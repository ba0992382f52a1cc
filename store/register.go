package store

import "fmt"

// TableID names a table. Local tables belong to one block; global tables
// live in the Database.
type TableID struct {
	ID     uint64
	Global bool
}

func Local(id uint64) TableID  { return TableID{ID: id} }
func Global(id uint64) TableID { return TableID{ID: id, Global: true} }

func (t TableID) String() string {
	if t.Global {
		return fmt.Sprintf("#%#x", t.ID)
	}
	return fmt.Sprintf("%#x", t.ID)
}

// IndexKind selects how an Index addresses a row or column.
type IndexKind uint8

const (
	IndexAll IndexKind = iota
	IndexNone
	IndexAt
	IndexAlias
	IndexTable
)

// Index addresses rows or columns of a table.
type Index struct {
	Kind IndexKind
	// N is a zero-based position for IndexAt.
	N int
	// Alias is a column alias for IndexAlias.
	Alias uint64
	// Table holds a logical index table for IndexTable.
	Table TableID
}

var (
	All  = Index{Kind: IndexAll}
	None = Index{Kind: IndexNone}
)

// At returns the zero-based positional index n.
func At(n int) Index { return Index{Kind: IndexAt, N: n} }

// Alias returns a column alias index.
func Alias(id uint64) Index { return Index{Kind: IndexAlias, Alias: id} }

// ByTable returns an index that selects through a logical table.
func ByTable(t TableID) Index { return Index{Kind: IndexTable, Table: t} }

func (i Index) String() string {
	switch i.Kind {
	case IndexAll:
		return ":"
	case IndexNone:
		return "_"
	case IndexAt:
		return fmt.Sprintf("%d", i.N+1)
	case IndexAlias:
		return fmt.Sprintf(".%#x", i.Alias)
	case IndexTable:
		return "{" + i.Table.String() + "}"
	}
	return "?"
}

// Register addresses a table, or a row/column slice of it.
type Register struct {
	Table TableID
	Row   Index
	Col   Index
}

// Whole returns the register covering all of table t.
func Whole(t TableID) Register { return Register{Table: t, Row: All, Col: All} }

func (r Register) String() string {
	return fmt.Sprintf("%s{%s,%s}", r.Table, r.Row, r.Col)
}

// Covers reports whether a change to o is visible through r.
func (r Register) Covers(o Register) bool {
	if r.Table != o.Table {
		return false
	}
	return covers(r.Row, o.Row) && covers(r.Col, o.Col)
}

func covers(a, b Index) bool {
	if a.Kind == IndexAll || b.Kind == IndexAll {
		return true
	}
	return a == b
}

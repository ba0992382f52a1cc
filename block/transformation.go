package block

import (
	"fmt"
	"strings"

	"github.com/chazu/mech/store"
	"github.com/chazu/mech/value"
)

// Transformation is one compiled instruction of a block.
type Transformation interface {
	fmt.Stringer
	transformation()
}

// Pair is one (row, column) selection step.
type Pair struct {
	Row, Col store.Index
}

func (p Pair) String() string { return "{" + p.Row.String() + "," + p.Col.String() + "}" }

// NewTable allocates a table.
type NewTable struct {
	Table      store.TableID
	Rows, Cols int
}

// TableAlias publishes a local table as a global table.
type TableAlias struct {
	Table store.TableID
	Alias uint64
}

// TableReference stores another table as the single cell of Table.
type TableReference struct {
	Table     store.TableID
	Reference store.TableID
}

// ColumnAlias names a column, growing the table if needed.
type ColumnAlias struct {
	Table  store.TableID
	Column int
	Alias  uint64
}

// Constant stores a literal as the single cell of Table.
type Constant struct {
	Table store.TableID
	Value value.Value
}

// Select copies or aliases a slice of Table into the local table Out.
// Multiple pairs descend into nested tables.
type Select struct {
	Table   store.TableID
	Indices []Pair
	Out     store.TableID
}

// Whenever gates the rest of the block on a register having changed.
type Whenever struct {
	Table   store.TableID
	Indices []Pair
}

// Argument is one input of a Function.
type Argument struct {
	Name  uint64
	Table store.TableID
	Row   store.Index
	Col   store.Index
}

// Function applies a library operator and writes its result to Out.
type Function struct {
	Name      string
	Arguments []Argument
	Out       store.Register
}

func (NewTable) transformation()       {}
func (TableAlias) transformation()     {}
func (TableReference) transformation() {}
func (ColumnAlias) transformation()    {}
func (Constant) transformation()       {}
func (Select) transformation()         {}
func (Whenever) transformation()       {}
func (Function) transformation()       {}

func (t NewTable) String() string {
	return fmt.Sprintf("NewTable(%s %dx%d)", t.Table, t.Rows, t.Cols)
}

func (t TableAlias) String() string {
	return fmt.Sprintf("TableAlias(%s -> #%#x)", t.Table, t.Alias)
}

func (t TableReference) String() string {
	return fmt.Sprintf("TableReference(%s -> %s)", t.Table, t.Reference)
}

func (t ColumnAlias) String() string {
	return fmt.Sprintf("ColumnAlias(%s[%d] = %#x)", t.Table, t.Column, t.Alias)
}

func (t Constant) String() string {
	return fmt.Sprintf("Constant(%s = %s)", t.Table, t.Value)
}

func (t Select) String() string {
	return fmt.Sprintf("Select(%s%s -> %s)", t.Table, pairs(t.Indices), t.Out)
}

func (t Whenever) String() string {
	return fmt.Sprintf("Whenever(%s%s)", t.Table, pairs(t.Indices))
}

func (t Function) String() string {
	args := make([]string, len(t.Arguments))
	for i, a := range t.Arguments {
		args[i] = fmt.Sprintf("%s{%s,%s}", a.Table, a.Row, a.Col)
	}
	return fmt.Sprintf("Function(%s(%s) -> %s)", t.Name, strings.Join(args, ", "), t.Out)
}

func pairs(ps []Pair) string {
	var b strings.Builder
	for _, p := range ps {
		b.WriteString(p.String())
	}
	return b.String()
}

// Whole reports whether a selection addresses an entire table.
func Whole(row, col store.Index) bool {
	return row.Kind == store.IndexAll && col.Kind == store.IndexAll
}

package value

import (
	"bytes"
	"fmt"
	"maps"
	"strings"
	"text/tabwriter"

	"github.com/chazu/mech/mecherr"
)

// Column is one column of a table. A column's kind is fixed by the first
// non-empty value written to it; Empty cells are allowed in any column.
type Column struct {
	Alias uint64
	Name  string
	Kind  Kind
	cells []Value
}

// Cells returns the column's cells, top to bottom.
func (c *Column) Cells() []Value { return c.cells }

// Table is a two-dimensional grid of cells with optional column aliases.
// Tables are containers: they are mutated in place and shared by pointer.
type Table struct {
	ID   uint64
	Name string

	rows    int
	columns []*Column
	aliases map[uint64]int
}

// NewTable allocates a rows x cols table of Empty cells.
func NewTable(id uint64, rows, cols int) *Table {
	t := &Table{ID: id, aliases: make(map[uint64]int)}
	t.Resize(rows, cols)
	return t
}

func (t *Table) Rows() int { return t.rows }
func (t *Table) Cols() int { return len(t.columns) }

// Resize grows or shrinks the table. New cells are Empty.
func (t *Table) Resize(rows, cols int) {
	for len(t.columns) < cols {
		t.columns = append(t.columns, &Column{Kind: Kind{Tag: TagEmpty}})
	}
	for i := cols; i < len(t.columns); i++ {
		if c := t.columns[i]; c.Alias != 0 {
			delete(t.aliases, c.Alias)
		}
	}
	t.columns = t.columns[:cols]
	for _, c := range t.columns {
		for len(c.cells) < rows {
			c.cells = append(c.cells, Empty)
		}
		c.cells = c.cells[:rows]
	}
	t.rows = rows
}

// Snapshot returns a copy of t whose cells can be read while t keeps
// changing.
func (t *Table) Snapshot() *Table {
	s := &Table{ID: t.ID, Name: t.Name, rows: t.rows, aliases: maps.Clone(t.aliases)}
	for _, c := range t.columns {
		cells := make([]Value, len(c.cells))
		for i, v := range c.cells {
			cells[i] = Clone(v)
		}
		s.columns = append(s.columns, &Column{Alias: c.Alias, Name: c.Name, Kind: c.Kind, cells: cells})
	}
	return s
}

// Column returns the column at zero-based index ix.
func (t *Table) Column(ix int) (*Column, error) {
	if ix < 0 || ix >= len(t.columns) {
		return nil, mecherr.OutOfBounds(t.label(), ix, len(t.columns))
	}
	return t.columns[ix], nil
}

// ColumnIndex resolves a column alias to its index.
func (t *Table) ColumnIndex(alias uint64) (int, bool) {
	ix, ok := t.aliases[alias]
	return ix, ok
}

// SetColumnAlias names the column at ix. Reusing an alias already bound to
// another column is an error.
func (t *Table) SetColumnAlias(ix int, alias uint64, name string) error {
	c, err := t.Column(ix)
	if err != nil {
		return err
	}
	if prev, ok := t.aliases[alias]; ok && prev != ix {
		return mecherr.Duplicate(alias)
	}
	if c.Alias != 0 {
		delete(t.aliases, c.Alias)
	}
	c.Alias = alias
	c.Name = name
	t.aliases[alias] = ix
	return nil
}

// Get returns the cell at zero-based (row, col).
func (t *Table) Get(row, col int) (Value, error) {
	if err := t.check(row, col); err != nil {
		return nil, err
	}
	return t.columns[col].cells[row], nil
}

// Put stores v at (row, col), replacing whatever cell was there.
func (t *Table) Put(row, col int, v Value) error {
	if err := t.check(row, col); err != nil {
		return err
	}
	if v == nil {
		v = Empty
	}
	c := t.columns[col]
	if err := c.admit(t.label(), v); err != nil {
		return err
	}
	c.cells[row] = v
	return nil
}

// Set writes v at (row, col). When the existing cell holds a value of the
// same kind it is updated in place so bound kernels see the change. It
// reports whether the stored value changed.
func (t *Table) Set(row, col int, v Value) (bool, error) {
	changed, _, err := t.Write(row, col, v)
	return changed, err
}

// Write is Set that also reports whether the cell was replaced rather than
// updated in place. Kernels bound to a replaced cell no longer see the
// table's contents and must be bound again.
func (t *Table) Write(row, col int, v Value) (changed, replaced bool, err error) {
	if err := t.check(row, col); err != nil {
		return false, false, err
	}
	c := t.columns[col]
	if err := c.admit(t.label(), v); err != nil {
		return false, false, err
	}
	old := c.cells[row]
	changed, err = Assign(old, v)
	if err == nil {
		return changed, false, nil
	}
	c.cells[row] = v
	return !Equal(old, v), true, nil
}

func (c *Column) admit(label string, v Value) error {
	if IsEmpty(v) {
		return nil
	}
	k := v.Kind()
	if c.Kind.Tag == TagEmpty {
		c.Kind = k
		return nil
	}
	if c.Kind.Tag != k.Tag || c.Kind.ElemTag() != k.ElemTag() {
		return mecherr.Mismatch(label, c.Kind.String(), k.String())
	}
	return nil
}

func (t *Table) check(row, col int) error {
	if row < 0 || row >= t.rows {
		return mecherr.OutOfBounds(t.label(), row, t.rows)
	}
	if col < 0 || col >= len(t.columns) {
		return mecherr.OutOfBounds(t.label(), col, len(t.columns))
	}
	return nil
}

func (t *Table) label() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("%#x", t.ID)
}

// AppendRecord adds one row taken from rec's fields, matched to columns by
// alias. An empty table adopts the record's fields as its columns.
func (t *Table) AppendRecord(rec *Record) error {
	if len(t.columns) == 0 && t.rows == 0 {
		t.Resize(0, rec.Len())
		for i, f := range rec.fields {
			if err := t.SetColumnAlias(i, f.ID, f.Name); err != nil {
				return err
			}
		}
	}
	row := make([]Value, len(t.columns))
	for i, c := range t.columns {
		v, ok := rec.Get(c.Alias)
		if !ok {
			return mecherr.Mismatch(t.label(), t.Kind().String(), rec.Kind().String())
		}
		if !IsEmpty(v) && c.Kind.Tag != TagEmpty && c.Kind.Tag != v.Kind().Tag {
			return mecherr.Mismatch(t.label(), c.Kind.String(), v.Kind().String())
		}
		row[i] = v
	}
	t.Resize(t.rows+1, len(t.columns))
	for i, v := range row {
		if err := t.Put(t.rows-1, i, v); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) Kind() Kind {
	fields := make([]Field, len(t.columns))
	for i, c := range t.columns {
		fields[i] = Field{ID: c.Alias, Name: c.Name, Kind: c.Kind}
	}
	return Kind{Tag: TagTable, Rows: t.rows, Fields: fields}
}

func (t *Table) Size() int {
	n := 0
	for _, c := range t.columns {
		for _, v := range c.cells {
			n += v.Size()
		}
	}
	return n
}

// String renders the table as aligned text.
func (t *Table) String() string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 2, 1, ' ', 0)
	title := t.label()
	fmt.Fprintf(w, "%s %dx%d\n", title, t.rows, len(t.columns))
	if t.hasAliases() {
		names := make([]string, len(t.columns))
		for i, c := range t.columns {
			names[i] = c.Name
			if names[i] == "" {
				names[i] = fmt.Sprintf("%d", i+1)
			}
		}
		fmt.Fprintln(w, strings.Join(names, "\t"))
	}
	for r := 0; r < t.rows; r++ {
		cells := make([]string, len(t.columns))
		for i, c := range t.columns {
			cells[i] = c.cells[r].String()
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}

func (t *Table) hasAliases() bool {
	return len(t.aliases) > 0
}

func (t *Table) appendKey(b []byte) []byte {
	b = fmt.Appendf(b, "t%d:%dx%d[", t.ID, t.rows, len(t.columns))
	for _, c := range t.columns {
		b = fmt.Appendf(b, "%d=", c.Alias)
		for _, v := range c.cells {
			b = v.appendKey(b)
			b = append(b, ',')
		}
		b = append(b, ';')
	}
	return append(b, ']')
}

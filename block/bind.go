package block

import (
	"github.com/chazu/mech/dispatch"
	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/store"
	"github.com/chazu/mech/value"
)

type binder struct {
	b         *Block
	db        *store.Database
	d         *dispatch.Dispatcher
	published []uint64
}

func (bn *binder) bind(tr Transformation) error {
	b := bn.b
	switch tr := tr.(type) {
	case NewTable:
		if !tr.Table.Global {
			b.tables[tr.Table.ID] = value.NewTable(tr.Table.ID, tr.Rows, tr.Cols)
			return nil
		}
		if t, ok := bn.db.Table(tr.Table.ID); ok {
			bn.ensure(tr.Table, t, tr.Rows, tr.Cols)
			return nil
		}
		return bn.publish(tr.Table.ID, value.NewTable(tr.Table.ID, tr.Rows, tr.Cols))

	case Constant:
		t, err := bn.dest(tr.Table)
		if err != nil {
			return err
		}
		bn.ensure(tr.Table, t, 1, 1)
		return bn.put(tr.Table, t, value.Clone(tr.Value))

	case ColumnAlias:
		t, err := bn.table(tr.Table)
		if err != nil {
			return err
		}
		bn.ensure(tr.Table, t, t.Rows(), tr.Column+1)
		name, _ := bn.db.Dictionary().Name(tr.Alias)
		return t.SetColumnAlias(tr.Column, tr.Alias, name)

	case TableAlias:
		t, err := bn.table(tr.Table)
		if err != nil {
			return err
		}
		return bn.publish(tr.Alias, t)

	case TableReference:
		src, err := bn.table(tr.Reference)
		if err != nil {
			return err
		}
		dst, err := bn.dest(tr.Table)
		if err != nil {
			return err
		}
		bn.ensure(tr.Table, dst, 1, 1)
		return bn.put(tr.Table, dst, src)

	case Select:
		src, err := bn.table(tr.Table)
		if err != nil {
			return err
		}
		first := Pair{Row: store.All, Col: store.All}
		if len(tr.Indices) > 0 {
			first = tr.Indices[0]
		}
		bn.read(tr.Table, first.Row, first.Col)
		if len(tr.Indices) <= 1 && Whole(first.Row, first.Col) {
			b.tables[tr.Out.ID] = src
			return nil
		}
		v, err := bn.selectValue(src, tr.Indices)
		if err != nil {
			return err
		}
		out := value.NewTable(tr.Out.ID, 1, 1)
		b.tables[tr.Out.ID] = out
		return out.Put(0, 0, v)

	case Whenever:
		if _, err := bn.table(tr.Table); err != nil {
			return err
		}
		reg := store.Whole(tr.Table)
		if len(tr.Indices) > 0 {
			reg.Row, reg.Col = tr.Indices[0].Row, tr.Indices[0].Col
		}
		bn.read(reg.Table, reg.Row, reg.Col)
		b.steps = append(b.steps, step{gate: true, watch: reg})
		return nil

	case Function:
		args := make([]value.Value, len(tr.Arguments))
		for i, a := range tr.Arguments {
			t, err := bn.table(a.Table)
			if err != nil {
				return err
			}
			bn.read(a.Table, a.Row, a.Col)
			v, err := bn.slice(t, a.Row, a.Col, true)
			if err != nil {
				return err
			}
			args[i] = v
		}
		k, err := bn.d.Compile(tr.Name, args)
		if err != nil {
			return err
		}
		dest, row, col, err := bn.output(tr.Out)
		if err != nil {
			return err
		}
		_, replaced, err := dest.Write(row, col, k.Out())
		if err != nil {
			return err
		}
		st := step{kernel: k, dest: dest, row: row, col: col}
		if tr.Out.Table.Global {
			st.global = tr.Out.Table.ID
			bn.write(store.Whole(tr.Out.Table))
			if replaced {
				bn.db.Restructure(st.global)
			}
		}
		b.steps = append(b.steps, st)
		return nil
	}
	return mecherr.Errorf("unknown transformation %T", tr)
}

// table resolves an existing table.
func (bn *binder) table(id store.TableID) (*value.Table, error) {
	if id.Global {
		t, ok := bn.db.Table(id.ID)
		if !ok {
			return nil, mecherr.NoTable(id.ID)
		}
		return t, nil
	}
	t, ok := bn.b.tables[id.ID]
	if !ok {
		return nil, &mecherr.Error{Code: mecherr.UndefinedVariable, IDs: []uint64{id.ID}}
	}
	return t, nil
}

// dest resolves a table that may be created on first write.
func (bn *binder) dest(id store.TableID) (*value.Table, error) {
	if id.Global {
		if t, ok := bn.db.Table(id.ID); ok {
			return t, nil
		}
		t := value.NewTable(id.ID, 1, 1)
		return t, bn.publish(id.ID, t)
	}
	t, ok := bn.b.tables[id.ID]
	if !ok {
		t = value.NewTable(id.ID, 1, 1)
		bn.b.tables[id.ID] = t
	}
	return t, nil
}

func (bn *binder) publish(id uint64, t *value.Table) error {
	if err := bn.db.Publish(id, t, bn.b.ID); err != nil {
		return err
	}
	bn.published = append(bn.published, id)
	bn.b.published = append(bn.b.published, id)
	bn.write(store.Whole(store.Global(id)))
	return nil
}

// unpublish withdraws the tables published by this binding and by the
// block's previous one.
func (bn *binder) unpublish(prev []uint64) {
	for _, id := range append(prev, bn.published...) {
		bn.db.Unpublish(id, bn.b.ID)
	}
	bn.b.published = nil
}

func (bn *binder) read(t store.TableID, row, col store.Index) {
	if t.Global {
		bn.b.input = append(bn.b.input, store.Register{Table: t, Row: row, Col: col})
	}
}

func (bn *binder) write(r store.Register) {
	for _, o := range bn.b.output {
		if o == r {
			return
		}
	}
	bn.b.output = append(bn.b.output, r)
}

// output resolves the cell a function writes.
func (bn *binder) output(r store.Register) (*value.Table, int, int, error) {
	t, err := bn.dest(r.Table)
	if err != nil {
		return nil, 0, 0, err
	}
	if Whole(r.Row, r.Col) {
		bn.ensure(r.Table, t, 1, 1)
		return t, 0, 0, nil
	}
	if r.Row.Kind != store.IndexAt {
		return nil, 0, 0, mecherr.Errorf("unsupported output row index %s", r.Row)
	}
	col, err := column(t, r.Col)
	if err != nil {
		return nil, 0, 0, err
	}
	return t, r.Row.N, col, nil
}

func (bn *binder) selectValue(t *value.Table, pairs []Pair) (value.Value, error) {
	cur := t
	for i, p := range pairs {
		v, err := bn.slice(cur, p.Row, p.Col, false)
		if err != nil {
			return nil, err
		}
		if i == len(pairs)-1 {
			return v, nil
		}
		next, ok := value.Deref(v).(*value.Table)
		if !ok {
			return nil, mecherr.Mismatch("select", "table", v.Kind().String())
		}
		cur = next
	}
	return t, nil
}

// slice resolves a (row, col) selection of t to a value. Single cells are
// aliased; columns and rows are gathered by kernels that run before the
// consumer. A whole 1x1 table unwraps to its cell when unwrap is set.
func (bn *binder) slice(t *value.Table, row, col store.Index, unwrap bool) (value.Value, error) {
	if Whole(row, col) {
		if unwrap && t.Rows() == 1 && t.Cols() == 1 {
			return t.Get(0, 0)
		}
		return t, nil
	}
	switch {
	case row.Kind == store.IndexAt && col.Kind != store.IndexAll:
		c, err := column(t, col)
		if err != nil {
			return nil, err
		}
		return t.Get(row.N, c)

	case row.Kind == store.IndexAll:
		c, err := column(t, col)
		if err != nil {
			return nil, err
		}
		if t.Rows() == 1 {
			return t.Get(0, c)
		}
		k, err := bn.d.Compile("table/column", []value.Value{t, value.Int(int64(c))})
		if err != nil {
			return nil, err
		}
		bn.b.steps = append(bn.b.steps, step{kernel: k})
		return k.Out(), nil

	case row.Kind == store.IndexAt && col.Kind == store.IndexAll:
		if t.Cols() == 1 {
			return t.Get(row.N, 0)
		}
		cells := make([]value.Value, t.Cols())
		for c := range cells {
			v, err := t.Get(row.N, c)
			if err != nil {
				return nil, err
			}
			cells[c] = v
		}
		k, err := bn.d.Compile("table/horzcat", cells)
		if err != nil {
			return nil, err
		}
		bn.b.steps = append(bn.b.steps, step{kernel: k})
		return k.Out(), nil
	}
	return nil, mecherr.Errorf("unsupported selection {%s,%s}", row, col)
}

func column(t *value.Table, ix store.Index) (int, error) {
	switch ix.Kind {
	case store.IndexAt:
		if ix.N < 0 || ix.N >= t.Cols() {
			return 0, mecherr.OutOfBounds(t.Name, ix.N, t.Cols())
		}
		return ix.N, nil
	case store.IndexAlias:
		c, ok := t.ColumnIndex(ix.Alias)
		if !ok {
			return 0, &mecherr.Error{Code: mecherr.UndefinedVariable, Op: t.Name, IDs: []uint64{ix.Alias}}
		}
		return c, nil
	}
	return 0, mecherr.Errorf("unsupported column index %s", ix)
}

// ensure grows t to at least rows x cols. Growing a global table
// restructures it.
func (bn *binder) ensure(id store.TableID, t *value.Table, rows, cols int) {
	if t.Rows() >= rows && t.Cols() >= cols {
		return
	}
	t.Resize(max(t.Rows(), rows), max(t.Cols(), cols))
	if id.Global {
		bn.db.Restructure(id.ID)
	}
}

// put writes the first cell of t. Replacing a cell of a global table
// restructures it.
func (bn *binder) put(id store.TableID, t *value.Table, v value.Value) error {
	_, replaced, err := t.Write(0, 0, v)
	if err != nil {
		return err
	}
	if replaced && id.Global {
		bn.db.Restructure(id.ID)
	}
	return nil
}

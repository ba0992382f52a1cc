// Package store holds the global tables of a running program and applies
// transactions to them.
package store

import (
	"errors"
	"sort"

	"github.com/tliron/commonlog"

	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/value"
)

var log = commonlog.GetLogger("mech.store")

// UnknownTablePolicy decides what a write to a missing table does.
type UnknownTablePolicy int

const (
	// SkipUnknown drops the write.
	SkipUnknown UnknownTablePolicy = iota
	// FailUnknown reports MissingTable.
	FailUnknown
)

// Options configures a Database.
type Options struct {
	ArenaCapacity int
	UnknownTable  UnknownTablePolicy
}

type cellKey struct {
	table    uint64
	row, col int
}

// Database is the set of global tables plus the registers changed during
// the current round.
//
// A table is restructured when its shape changes, when one of its cells is
// replaced instead of updated in place, or when the table itself is
// replaced or removed. Kernels bound to a restructured table may hold
// stale cells, so readers have to be bound again.
type Database struct {
	dict   *value.Dictionary
	arena  *Arena
	opts   Options
	policy UnknownTablePolicy

	tables map[uint64]*value.Table
	owners map[uint64]uint64
	cells  map[cellKey]int

	changed map[Register]struct{}
	order   []Register

	reshaped map[uint64]struct{}
	reorder  []uint64
}

// NewDatabase returns an empty database.
func NewDatabase(dict *value.Dictionary, opts Options) *Database {
	if dict == nil {
		dict = value.NewDictionary()
	}
	if opts.ArenaCapacity <= 0 {
		opts.ArenaCapacity = 1024
	}
	return &Database{
		dict:     dict,
		arena:    NewArena(opts.ArenaCapacity),
		opts:     opts,
		policy:   opts.UnknownTable,
		tables:   make(map[uint64]*value.Table),
		owners:   make(map[uint64]uint64),
		cells:    make(map[cellKey]int),
		changed:  make(map[Register]struct{}),
		reshaped: make(map[uint64]struct{}),
	}
}

func (db *Database) Dictionary() *value.Dictionary { return db.dict }
func (db *Database) Arena() *Arena                 { return db.arena }
func (db *Database) Len() int                      { return len(db.tables) }
func (db *Database) Options() Options              { return db.opts }

// Table returns the global table with the given id.
func (db *Database) Table(id uint64) (*value.Table, bool) {
	t, ok := db.tables[id]
	return t, ok
}

// TableByName resolves a table through the dictionary.
func (db *Database) TableByName(name string) (*value.Table, bool) {
	id, ok := db.dict.Lookup(name)
	if !ok {
		return nil, false
	}
	return db.Table(id)
}

// Tables returns every global table ordered by id.
func (db *Database) Tables() []*value.Table {
	out := make([]*value.Table, 0, len(db.tables))
	for _, t := range db.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Publish makes t visible as global table id, owned by block owner.
// Redefining a table published by a different block is an error.
func (db *Database) Publish(id uint64, t *value.Table, owner uint64) error {
	if prev, exists := db.tables[id]; exists {
		if db.owners[id] != owner {
			name, _ := db.dict.Name(id)
			return mecherr.Redefined(name, id)
		}
		if prev != t {
			db.Restructure(id)
		}
	}
	t.ID = id
	db.tables[id] = t
	db.owners[id] = owner
	if name, ok := db.dict.Name(id); ok && t.Name == "" {
		t.Name = name
	}
	db.MarkChanged(Whole(Global(id)))
	return nil
}

// Unpublish removes table id if owner published it.
func (db *Database) Unpublish(id, owner uint64) {
	if t, ok := db.tables[id]; ok && db.owners[id] == owner {
		db.removeCells(t.ID)
		delete(db.tables, id)
		delete(db.owners, id)
		db.MarkChanged(Whole(Global(id)))
		db.Restructure(id)
	}
}

// Owner returns the block that published table id, or 0.
func (db *Database) Owner(id uint64) uint64 { return db.owners[id] }

// MarkChanged records r as changed this round.
func (db *Database) MarkChanged(r Register) {
	if _, ok := db.changed[r]; ok {
		return
	}
	db.changed[r] = struct{}{}
	db.order = append(db.order, r)
}

// Changed returns the registers changed this round in the order they were
// first marked.
func (db *Database) Changed() []Register {
	return append([]Register(nil), db.order...)
}

// Restructure records that table id was reshaped, replaced or removed
// this round.
func (db *Database) Restructure(id uint64) {
	if _, ok := db.reshaped[id]; ok {
		return
	}
	db.reshaped[id] = struct{}{}
	db.reorder = append(db.reorder, id)
	log.Debugf("table %#x restructured", id)
}

// Restructured returns the tables restructured this round in the order
// they were first recorded.
func (db *Database) Restructured() []uint64 {
	return append([]uint64(nil), db.reorder...)
}

// ClearChanged starts a new round.
func (db *Database) ClearChanged() {
	clear(db.changed)
	db.order = db.order[:0]
	clear(db.reshaped)
	db.reorder = db.reorder[:0]
}

// ProcessTransaction applies changes in order. A change that fails is
// reported and skipped; it never alters a table's shape. Every failure is
// returned joined.
func (db *Database) ProcessTransaction(txn Transaction) error {
	var errs []error
	for _, c := range txn {
		if err := db.apply(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (db *Database) apply(c Change) error {
	switch c := c.(type) {
	case NewTableChange:
		return db.newTable(c)
	case ColumnAliasChange:
		t, err := db.lookup(c.Table)
		if t == nil {
			return err
		}
		if c.Column < 0 {
			return mecherr.OutOfBounds(t.Name, c.Column, t.Cols())
		}
		if c.Column >= t.Cols() {
			t.Resize(t.Rows(), c.Column+1)
			db.MarkChanged(Whole(Global(c.Table)))
			db.Restructure(c.Table)
		}
		if err := t.SetColumnAlias(c.Column, c.Alias, c.Name); err != nil {
			return err
		}
		if c.Name != "" {
			db.dict.Intern(c.Name)
		}
		db.MarkChanged(Register{Table: Global(c.Table), Row: All, Col: Alias(c.Alias)})
		return nil
	case SetChange:
		return db.set(c)
	case RemoveTableChange:
		t, err := db.lookup(c.Table)
		if t == nil {
			return err
		}
		db.removeCells(t.ID)
		delete(db.tables, c.Table)
		delete(db.owners, c.Table)
		db.MarkChanged(Whole(Global(c.Table)))
		db.Restructure(c.Table)
		return nil
	}
	return mecherr.Errorf("unknown change %T", c)
}

func (db *Database) newTable(c NewTableChange) error {
	if c.Name != "" {
		db.dict.Intern(c.Name)
	}
	if t, ok := db.tables[c.Table]; ok {
		if t.Rows() != c.Rows || t.Cols() != c.Cols {
			t.Resize(c.Rows, c.Cols)
			db.MarkChanged(Whole(Global(c.Table)))
			db.Restructure(c.Table)
		}
		return nil
	}
	t := value.NewTable(c.Table, c.Rows, c.Cols)
	t.Name = c.Name
	db.tables[c.Table] = t
	db.owners[c.Table] = 0
	db.MarkChanged(Whole(Global(c.Table)))
	log.Debugf("new table %s", c)
	return nil
}

// lookup returns the table, or nil with the error the policy calls for.
func (db *Database) lookup(id uint64) (*value.Table, error) {
	if t, ok := db.tables[id]; ok {
		return t, nil
	}
	if db.policy == FailUnknown {
		return nil, mecherr.NoTable(id)
	}
	log.Debugf("skipping change to unknown table %#x", id)
	return nil, nil
}

func (db *Database) set(c SetChange) error {
	t, err := db.lookup(c.Table)
	if t == nil {
		return err
	}
	var errs []error
	for _, cell := range c.Cells {
		col, err := resolveCol(t, cell.Col)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows, err := resolveRows(t, cell.Row)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, row := range rows {
			changed, replaced, err := t.Write(row, col, cell.Value)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if replaced {
				db.Restructure(t.ID)
			}
			if !changed {
				continue
			}
			db.track(t, row, col)
			db.MarkChanged(Register{Table: Global(t.ID), Row: All, Col: At(col)})
			if column, _ := t.Column(col); column.Alias != 0 {
				db.MarkChanged(Register{Table: Global(t.ID), Row: All, Col: Alias(column.Alias)})
			}
			db.MarkChanged(Whole(Global(t.ID)))
		}
	}
	return errors.Join(errs...)
}

// track keeps the arena address of a stored shared value current.
func (db *Database) track(t *value.Table, row, col int) {
	key := cellKey{table: t.ID, row: row, col: col}
	if addr, ok := db.cells[key]; ok {
		db.arena.Dereference(addr)
		delete(db.cells, key)
	}
	v, err := t.Get(row, col)
	if err != nil || inline(v) {
		return
	}
	db.cells[key] = db.arena.Intern(v)
}

func (db *Database) removeCells(table uint64) {
	for key, addr := range db.cells {
		if key.table == table {
			db.arena.Dereference(addr)
			delete(db.cells, key)
		}
	}
}

// inline reports whether v is stored directly rather than interned.
func inline(v value.Value) bool {
	if value.IsEmpty(v) {
		return true
	}
	return v.Kind().Tag.IsScalar() && v.Kind().Tag != value.TagString
}

func resolveCol(t *value.Table, ix Index) (int, error) {
	switch ix.Kind {
	case IndexAt:
		if ix.N < 0 || ix.N >= t.Cols() {
			return 0, mecherr.OutOfBounds(t.Name, ix.N, t.Cols())
		}
		return ix.N, nil
	case IndexAlias:
		c, ok := t.ColumnIndex(ix.Alias)
		if !ok {
			return 0, &mecherr.Error{Code: mecherr.UndefinedVariable, Op: t.Name, IDs: []uint64{ix.Alias}}
		}
		return c, nil
	}
	return 0, mecherr.Errorf("unsupported column index %s", ix)
}

func resolveRows(t *value.Table, ix Index) ([]int, error) {
	switch ix.Kind {
	case IndexAt:
		if ix.N < 0 || ix.N >= t.Rows() {
			return nil, mecherr.OutOfBounds(t.Name, ix.N, t.Rows())
		}
		return []int{ix.N}, nil
	case IndexAll:
		rows := make([]int, t.Rows())
		for i := range rows {
			rows[i] = i
		}
		return rows, nil
	}
	return nil, mecherr.Errorf("unsupported row index %s", ix)
}

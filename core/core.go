// Package core loads blocks into a database and keeps their outputs
// current as transactions arrive.
//
// A round is one transaction or one code load. Within a round every ready
// block whose inputs changed is solved at most once, writers before their
// readers and otherwise in load order, and the registers it writes are
// marked changed so later blocks see them.
// A block that fails to load is isolated: its errors are kept on the
// block and the remaining blocks still run. A block waiting on a table
// that does not exist yet is parked and readied again once a round
// creates that table. A ready block reading a table that was reshaped,
// replaced or removed is readied again before anything is solved, so its
// kernels are bound to the table's current cells.
package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/mech/block"
	"github.com/chazu/mech/dispatch"
	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/planner"
	"github.com/chazu/mech/store"
	"github.com/chazu/mech/value"
)

var log = commonlog.GetLogger("mech.core")

// Options configures a Core.
type Options struct {
	Store    store.Options
	Features dispatch.Features
}

// Core owns a database, a dispatcher and the loaded blocks. It is not
// safe for concurrent use.
type Core struct {
	dict *value.Dictionary
	db   *store.Database
	d    *dispatch.Dispatcher

	blocks  map[uint64]*block.Block
	order   []*block.Block
	pending map[uint64][]*block.Block

	// sorted is order rearranged so producers precede their readers.
	sorted []*block.Block
	stale  bool

	rounds int
	// rebound counts the restructured tables already handled this round.
	rebound int
}

// New returns an empty core. A zero Features value enables every feature.
func New(dict *value.Dictionary, opts Options) *Core {
	if dict == nil {
		dict = value.NewDictionary()
	}
	if opts.Features == 0 {
		opts.Features = dispatch.FeatureAll
	}
	return &Core{
		dict:    dict,
		db:      store.NewDatabase(dict, opts.Store),
		d:       dispatch.New(opts.Features),
		blocks:  make(map[uint64]*block.Block),
		pending: make(map[uint64][]*block.Block),
	}
}

func (c *Core) Dictionary() *value.Dictionary    { return c.dict }
func (c *Core) Database() *store.Database        { return c.db }
func (c *Core) Dispatcher() *dispatch.Dispatcher { return c.d }
func (c *Core) Rounds() int                      { return c.rounds }
func (c *Core) Blocks() []*block.Block           { return slices.Clone(c.order) }

func (c *Core) Block(id uint64) (*block.Block, bool) {
	b, ok := c.blocks[id]
	return b, ok
}

// Pending returns the ids of the tables parked blocks are waiting for.
func (c *Core) Pending() []uint64 {
	ids := make([]uint64, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// LoadBlocks plans and readies blocks, then propagates whatever they
// wrote. A block already loaded under the same id is skipped. The
// returned error joins the errors of every block that failed; those
// blocks stay loaded so their errors can be reported.
func (c *Core) LoadBlocks(blocks ...*block.Block) error {
	c.beginRound()
	readied := make(map[*block.Block]bool)
	var errs []error
	for _, b := range blocks {
		if _, ok := c.blocks[b.ID]; ok {
			log.Debugf("block %#x already loaded", b.ID)
			continue
		}
		c.blocks[b.ID] = b
		c.order = append(c.order, b)
		errs = append(errs, planner.Schedule(b)...)
		if err := c.ready(b); err == nil {
			readied[b] = true
		} else if b.State == block.StateError {
			errs = append(errs, err)
		}
	}
	errs = append(errs, c.settle(readied)...)
	c.propagate(readied)
	if len(errs) > 0 {
		log.Warningf("loaded %d blocks with %d errors", len(blocks), len(errs))
	}
	return errors.Join(errs...)
}

// ready binds b and parks it if a table it reads is missing.
func (c *Core) ready(b *block.Block) error {
	err := b.Ready(c.db, c.d)
	c.stale = true
	switch b.State {
	case block.StateUnsatisfied:
		for _, id := range b.Missing {
			c.pending[id] = append(c.pending[id], b)
		}
		log.Debugf("block %s waiting on %v", b.Name, b.Missing)
	case block.StateError:
		log.Errorf("block %s: %v", b.Name, err)
	}
	return err
}

// resolvePending readies parked blocks whose missing tables now exist.
// Readying one block may publish the table another is waiting for, so
// this repeats until nothing changes.
func (c *Core) resolvePending(readied map[*block.Block]bool) {
	for progress := true; progress; {
		progress = false
		for _, id := range c.Pending() {
			if _, ok := c.db.Table(id); !ok {
				continue
			}
			waiting := c.pending[id]
			delete(c.pending, id)
			for _, b := range waiting {
				if b.State != block.StateUnsatisfied {
					continue
				}
				if err := c.ready(b); err == nil {
					readied[b] = true
				}
			}
			progress = true
		}
	}
}

// ---------------------------------------------------------------------------
// Rounds
// ---------------------------------------------------------------------------

// ProcessTransaction applies txn as one round and returns every register
// changed by it, including registers written by blocks that reacted.
func (c *Core) ProcessTransaction(txn store.Transaction) ([]store.Register, error) {
	c.beginRound()
	err := c.db.ProcessTransaction(txn)
	if err != nil {
		log.Warningf("transaction: %v", err)
	}
	readied := make(map[*block.Block]bool)
	if errs := c.settle(readied); len(errs) > 0 {
		err = errors.Join(append([]error{err}, errs...)...)
	}
	c.propagate(readied)
	return c.db.Changed(), err
}

// Step reruns every ready block whose inputs are among changed, as a
// round of its own.
func (c *Core) Step(changed ...store.Register) []store.Register {
	c.beginRound()
	for _, r := range changed {
		c.db.MarkChanged(r)
	}
	c.propagate(make(map[*block.Block]bool))
	return c.db.Changed()
}

func (c *Core) beginRound() {
	c.db.ClearChanged()
	c.rounds++
	c.rebound = 0
}

// settle readies parked blocks whose tables now exist and rebinds blocks
// whose tables were restructured. It returns the errors of blocks that
// failed to bind again.
func (c *Core) settle(readied map[*block.Block]bool) []error {
	c.resolvePending(readied)
	errs := c.rebind(readied)
	c.resolvePending(readied)
	return errs
}

// rebind readies again every ready block that reads a table restructured
// this round, writers before readers. Readying a block republishes its
// tables, which restructures them for the blocks downstream, so this
// repeats until no new table is restructured. A block is not rebound for
// a table it publishes itself.
func (c *Core) rebind(readied map[*block.Block]bool) []error {
	var errs []error
	for pass := 0; pass <= len(c.order); pass++ {
		all := c.db.Restructured()
		ids := all[c.rebound:]
		if len(ids) == 0 {
			return errs
		}
		c.rebound = len(all)
		if c.stale {
			c.schedule()
		}
		for _, b := range c.sorted {
			if b.State != block.StateReady || !readsAny(b, ids) {
				continue
			}
			log.Debugf("rebinding block %s", b.Name)
			if err := c.ready(b); err == nil {
				readied[b] = true
			} else if b.State == block.StateError {
				errs = append(errs, err)
			}
		}
	}
	log.Warningf("rebinding did not settle after %d passes", len(c.order)+1)
	return errs
}

func readsAny(b *block.Block, ids []uint64) bool {
	for _, in := range b.Input() {
		if in.Table.Global && slices.Contains(ids, in.Table.ID) && !slices.Contains(b.Published(), in.Table.ID) {
			return true
		}
	}
	return false
}

// propagate solves dirty blocks in dependency order until a pass solves
// nothing. Blocks in ran are treated as already solved this round.
func (c *Core) propagate(ran map[*block.Block]bool) {
	if c.stale {
		c.schedule()
	}
	changed := func(r store.Register) bool {
		for _, ch := range c.db.Changed() {
			if r.Covers(ch) {
				return true
			}
		}
		return false
	}
	for progress := true; progress; {
		progress = false
		for _, b := range c.sorted {
			if ran[b] || b.State != block.StateReady || !c.dirty(b) {
				continue
			}
			ran[b] = true
			progress = true
			if b.Solve(changed) {
				for _, r := range b.Output() {
					c.db.MarkChanged(r)
				}
			}
			if ids := b.Reshaped(); len(ids) > 0 {
				for _, id := range ids {
					c.db.Restructure(id)
				}
				c.rebind(ran)
			}
		}
	}
}

// schedule orders the ready blocks so that a block writing a table runs
// before the blocks reading it. Independent blocks keep load order;
// blocks on a cycle follow in load order.
func (c *Core) schedule() {
	var ready []*block.Block
	for _, b := range c.order {
		if b.State == block.StateReady {
			ready = append(ready, b)
		}
	}
	feeds := func(p, q *block.Block) bool {
		if p == q {
			return false
		}
		for _, o := range p.Output() {
			if q.Reads(o) {
				return true
			}
		}
		return false
	}
	indeg := make(map[*block.Block]int, len(ready))
	for _, q := range ready {
		for _, p := range ready {
			if feeds(p, q) {
				indeg[q]++
			}
		}
	}
	done := make(map[*block.Block]bool, len(ready))
	c.sorted = make([]*block.Block, 0, len(ready))
	for progress := true; progress; {
		progress = false
		for _, b := range ready {
			if done[b] || indeg[b] > 0 {
				continue
			}
			done[b] = true
			c.sorted = append(c.sorted, b)
			for _, q := range ready {
				if feeds(b, q) {
					indeg[q]--
				}
			}
			progress = true
			break
		}
	}
	for _, b := range ready {
		if !done[b] {
			c.sorted = append(c.sorted, b)
		}
	}
	c.stale = false
}

func (c *Core) dirty(b *block.Block) bool {
	for _, ch := range c.db.Changed() {
		if b.Reads(ch) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Table returns a global table by id.
func (c *Core) Table(id uint64) (*value.Table, bool) { return c.db.Table(id) }

// TableByName returns a global table by name.
func (c *Core) TableByName(name string) (*value.Table, bool) { return c.db.TableByName(name) }

// Value reads one cell of a global table.
func (c *Core) Value(id uint64, row, col int) (value.Value, error) {
	t, ok := c.db.Table(id)
	if !ok {
		return nil, mecherr.NoTable(id)
	}
	return t.Get(row, col)
}

// Errors returns the errors of every loaded block, in load order.
func (c *Core) Errors() []error {
	var errs []error
	for _, b := range c.order {
		errs = append(errs, b.Errors...)
		if b.State == block.StateUnsatisfied {
			err := mecherr.NoTable(b.Missing...)
			errs = append(errs, b.Attribute(err, -1))
		}
	}
	return errs
}

// Clear drops every block and table.
func (c *Core) Clear() {
	c.db = store.NewDatabase(c.dict, c.db.Options())
	c.blocks = make(map[uint64]*block.Block)
	c.order = nil
	c.sorted = nil
	c.stale = false
	c.rebound = 0
	c.pending = make(map[uint64][]*block.Block)
}

// String renders the tables and blocks of the core.
func (c *Core) String() string {
	var ready, waiting, failed int
	for _, b := range c.order {
		switch b.State {
		case block.StateReady:
			ready++
		case block.StateUnsatisfied:
			waiting++
		case block.StateError:
			failed++
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "core: %d tables, %d blocks (%d ready, %d unsatisfied, %d error), %d rounds\n",
		c.db.Len(), len(c.order), ready, waiting, failed, c.rounds)
	fmt.Fprintf(&sb, "arena: %d live / %d\n", c.db.Arena().Live(), c.db.Arena().Capacity())
	for _, t := range c.db.Tables() {
		sb.WriteString(t.String())
		sb.WriteByte('\n')
	}
	for _, b := range c.order {
		sb.WriteString(b.String())
		sb.WriteByte('\n')
	}
	if errs := c.Errors(); len(errs) > 0 {
		sb.WriteString(mecherr.Report(errs))
	}
	return strings.TrimRight(sb.String(), "\n")
}

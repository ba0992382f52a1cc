// Package block binds a planned list of transformations to tables and
// kernels, and runs the result when its inputs change.
package block

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/mech/dispatch"
	"github.com/chazu/mech/kernel"
	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/store"
	"github.com/chazu/mech/value"
)

var log = commonlog.GetLogger("mech.block")

// State is the lifecycle position of a block.
type State int

const (
	StateNew State = iota
	StateReady
	StateUnsatisfied
	StateError
	StateDisabled
)

var stateNames = [...]string{"new", "ready", "unsatisfied", "error", "disabled"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Statement is one source statement and the transformations it compiled to.
type Statement struct {
	Text            string
	Source          mecherr.Range
	Transformations []Transformation
}

// Step is one planned transformation with the index of the statement it
// came from.
type Step struct {
	Transformation
	Statement int
}

type step struct {
	kernel kernel.Kernel
	dest   *value.Table
	row    int
	col    int
	global uint64

	gate  bool
	watch store.Register
}

// Block is a unit of reactive computation.
type Block struct {
	ID         uint64
	Name       string
	Statements []Statement

	// Plan is the scheduled transformation order. A nil plan runs the
	// statements in source order.
	Plan []Step

	State   State
	Errors  []error
	Missing []uint64

	tables    map[uint64]*value.Table
	steps     []step
	input     []store.Register
	output    []store.Register
	published []uint64
	reshaped  []uint64
}

// New creates a block. Its id is derived from its name and statements.
func New(name string, stmts ...Statement) *Block {
	var b strings.Builder
	b.WriteString(name)
	for _, s := range stmts {
		b.WriteByte('\n')
		b.WriteString(s.Text)
	}
	return &Block{ID: value.Hash(b.String()), Name: name, Statements: stmts}
}

// SourcePlan lists every transformation in statement order.
func (b *Block) SourcePlan() []Step {
	var plan []Step
	for i, s := range b.Statements {
		for _, t := range s.Transformations {
			plan = append(plan, Step{Transformation: t, Statement: i})
		}
	}
	return plan
}

// Input returns the global registers the block reads.
func (b *Block) Input() []store.Register { return b.input }

// Output returns the global registers the block writes.
func (b *Block) Output() []store.Register { return b.output }

// Published returns the global tables the block defines.
func (b *Block) Published() []uint64 { return b.published }

// Tables returns the block's local tables.
func (b *Block) Tables() map[uint64]*value.Table { return b.tables }

// Reads reports whether a change to r is visible to the block.
func (b *Block) Reads(r store.Register) bool {
	for _, in := range b.input {
		if in.Covers(r) {
			return true
		}
	}
	return false
}

// Ready binds every planned transformation: tables are allocated, global
// inputs are resolved and kernels are compiled and solved once. A missing
// global table leaves the block unsatisfied with Missing set; any other
// failure leaves it in the error state. Either way the tables the block
// had published are withdrawn. Ready may be called again once the missing
// tables exist, or to bind a ready block to reshaped inputs.
func (b *Block) Ready(db *store.Database, d *dispatch.Dispatcher) error {
	prev := b.published
	b.reset()
	plan := b.Plan
	if plan == nil {
		plan = b.SourcePlan()
	}
	bn := &binder{b: b, db: db, d: d}
	for _, st := range plan {
		err := bn.bind(st.Transformation)
		if err == nil {
			continue
		}
		if mecherr.Is(err, mecherr.MissingTable) {
			b.State = StateUnsatisfied
			var me *mecherr.Error
			if errors.As(err, &me) {
				b.Missing = append(b.Missing, me.IDs...)
			}
			bn.unpublish(prev)
			return err
		}
		err = b.attribute(err, st.Statement)
		b.Errors = append(b.Errors, err)
		b.State = StateError
		bn.unpublish(prev)
		return err
	}
	b.State = StateReady
	log.Debugf("block %s ready: %d steps", b.label(), len(b.steps))
	return nil
}

func (b *Block) reset() {
	b.tables = make(map[uint64]*value.Table)
	b.steps = nil
	b.input = nil
	b.output = nil
	b.published = nil
	b.reshaped = nil
	b.Missing = nil
}

// Solve runs every step once and reports whether the run completed. A
// Whenever step stops the run unless its register is among the changed
// ones. Results are written into existing cells in place, so kernels
// bound to those cells see them.
func (b *Block) Solve(changed func(store.Register) bool) bool {
	if b.State != StateReady {
		return false
	}
	for _, s := range b.steps {
		if s.gate {
			if !changed(s.watch) {
				return false
			}
			continue
		}
		s.kernel.Solve()
		if s.dest == nil {
			continue
		}
		_, replaced, _ := s.dest.Write(s.row, s.col, s.kernel.Out())
		if replaced && s.global != 0 && !slices.Contains(b.reshaped, s.global) {
			b.reshaped = append(b.reshaped, s.global)
		}
	}
	return true
}

// Reshaped returns the global tables whose cells the last Solve replaced
// rather than updated in place, and forgets them.
func (b *Block) Reshaped() []uint64 {
	ids := b.reshaped
	b.reshaped = nil
	return ids
}

// Disable stops the block from running.
func (b *Block) Disable() { b.State = StateDisabled }

func (b *Block) attribute(err error, stmt int) error {
	var text string
	var src mecherr.Range
	if stmt >= 0 && stmt < len(b.Statements) {
		text = b.Statements[stmt].Text
		src = b.Statements[stmt].Source
	}
	return mecherr.Attribute(err, b.label(), b.ID, text, src)
}

// Attribute wraps err with the provenance of statement stmt.
func (b *Block) Attribute(err error, stmt int) error { return b.attribute(err, stmt) }

func (b *Block) label() string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("%#x", b.ID)
}

// String renders the block's state and plan.
func (b *Block) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "block %s (%s)\n", b.label(), b.State)
	plan := b.Plan
	if plan == nil {
		plan = b.SourcePlan()
	}
	for i, st := range plan {
		fmt.Fprintf(&sb, "  %2d. %s\n", i+1, st.Transformation)
	}
	for _, s := range b.steps {
		if s.kernel != nil {
			fmt.Fprintf(&sb, "  kernel %s\n", s.kernel)
		}
	}
	for _, err := range b.Errors {
		fmt.Fprintf(&sb, "  error: %v\n", err)
	}
	return strings.TrimRight(sb.String(), "\n")
}

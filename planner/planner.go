// Package planner orders the statements of a block so that every
// statement runs after the statements producing the tables it reads.
//
// Statements arrive in source order, which need not be dependency order.
// Plan computes what each statement produces and consumes and emits a
// stable linear extension of that partial order. Statements that can
// never be satisfied are reported and left out; the rest of the block is
// still planned. Optimize then fuses adjacent steps whose intermediate
// table is dead.
package planner

import (
	"slices"

	"github.com/tliron/commonlog"

	"github.com/chazu/mech/block"
	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/store"
)

var log = commonlog.GetLogger("mech.planner")

// StatementError is an error raised for one statement while planning.
type StatementError struct {
	Statement int
	Err       error
}

func (e *StatementError) Error() string { return e.Err.Error() }
func (e *StatementError) Unwrap() error { return e.Err }

type constraint struct {
	index    int
	produces []uint64
	consumes []uint64
	gate     bool
}

// Plan orders stmts and returns the flattened plan. Statements with
// nothing to consume come first in source order, preceded by any
// watch statements. Every other statement follows as soon as everything
// it consumes has been produced; statements satisfied by the same step
// keep their relative source order. A duplicated table alias or an
// unsatisfiable statement yields a *StatementError and the statement is
// left out of the plan.
func Plan(stmts []block.Statement) ([]block.Step, []error) {
	var errs []error

	all := make(map[uint64]bool)
	for _, s := range stmts {
		for _, id := range produced(s) {
			all[id] = true
		}
	}

	aliases := make(map[uint64]bool)
	var gates, front, rest, pending []constraint
	have := make(map[uint64]bool)

	schedule := func(c constraint) {
		for _, id := range c.produces {
			have[id] = true
		}
	}
	satisfied := func(c constraint) bool {
		for _, id := range c.consumes {
			if !have[id] && !slices.Contains(c.produces, id) {
				return false
			}
		}
		return true
	}
	sweep := func() {
		for progress := true; progress; {
			progress = false
			kept := pending[:0]
			for _, c := range pending {
				if satisfied(c) {
					schedule(c)
					rest = append(rest, c)
					progress = true
					continue
				}
				kept = append(kept, c)
			}
			pending = kept
		}
	}

	for i, s := range stmts {
		if dup, ok := duplicateAlias(s, aliases); ok {
			errs = append(errs, &StatementError{Statement: i, Err: mecherr.Duplicate(dup)})
			continue
		}
		c := constraint{index: i, produces: produced(s), consumes: consumed(s, all), gate: watches(s)}
		switch {
		case selfContained(c) && c.gate:
			schedule(c)
			gates = append(gates, c)
		case selfContained(c):
			schedule(c)
			front = append(front, c)
		case satisfied(c):
			schedule(c)
			rest = append(rest, c)
		default:
			pending = append(pending, c)
		}
		sweep()
	}
	sweep()

	for _, c := range pending {
		var missing []uint64
		for _, id := range c.consumes {
			if !have[id] && !slices.Contains(c.produces, id) && !slices.Contains(missing, id) {
				missing = append(missing, id)
			}
		}
		log.Debugf("statement %d unsatisfied: missing %v", c.index, missing)
		errs = append(errs, &StatementError{Statement: c.index, Err: mecherr.Unsatisfied(missing...)})
	}

	var plan []block.Step
	for _, group := range [][]constraint{gates, front, rest} {
		for _, c := range group {
			for _, t := range stmts[c.index].Transformations {
				plan = append(plan, block.Step{Transformation: t, Statement: c.index})
			}
		}
	}
	return plan, errs
}

// Schedule plans and optimizes b in place. Planning errors are attributed
// to their statements and added to b.Errors.
func Schedule(b *block.Block) []error {
	plan, errs := Plan(b.Statements)
	b.Plan = Optimize(plan)
	if b.Plan == nil {
		b.Plan = []block.Step{}
	}
	for i, err := range errs {
		stmt := -1
		if se, ok := err.(*StatementError); ok {
			stmt = se.Statement
			err = se.Err
		}
		errs[i] = b.Attribute(err, stmt)
	}
	b.Errors = append(b.Errors, errs...)
	return errs
}

func selfContained(c constraint) bool {
	for _, id := range c.consumes {
		if !slices.Contains(c.produces, id) {
			return false
		}
	}
	return true
}

func duplicateAlias(s block.Statement, seen map[uint64]bool) (uint64, bool) {
	var mine []uint64
	for _, t := range s.Transformations {
		if a, ok := t.(block.TableAlias); ok {
			if seen[a.Alias] || slices.Contains(mine, a.Alias) {
				return a.Alias, true
			}
			mine = append(mine, a.Alias)
		}
	}
	for _, id := range mine {
		seen[id] = true
	}
	return 0, false
}

func watches(s block.Statement) bool {
	for _, t := range s.Transformations {
		if _, ok := t.(block.Whenever); ok {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Produces / consumes
// ---------------------------------------------------------------------------

func produced(s block.Statement) []uint64 {
	var ids []uint64
	add := func(id uint64) {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	for _, t := range s.Transformations {
		switch t := t.(type) {
		case block.NewTable:
			add(t.Table.ID)
		case block.Constant:
			add(t.Table.ID)
		case block.TableReference:
			add(t.Table.ID)
		case block.TableAlias:
			add(t.Alias)
		case block.Select:
			add(t.Out.ID)
		case block.Function:
			add(t.Out.Table.ID)
		}
	}
	return ids
}

// consumed lists the tables s reads. A global table is only a
// dependency when some statement of the same block produces it; other
// globals are resolved against the database when the block is readied.
func consumed(s block.Statement, local map[uint64]bool) []uint64 {
	var ids []uint64
	table := func(t store.TableID) {
		if (!t.Global || local[t.ID]) && !slices.Contains(ids, t.ID) {
			ids = append(ids, t.ID)
		}
	}
	index := func(ix store.Index) {
		if ix.Kind == store.IndexTable {
			table(ix.Table)
		}
	}
	for _, t := range s.Transformations {
		switch t := t.(type) {
		case block.TableAlias:
			table(t.Table)
		case block.ColumnAlias:
			table(t.Table)
		case block.TableReference:
			table(t.Reference)
		case block.Select:
			table(t.Table)
			for _, p := range t.Indices {
				index(p.Row)
				index(p.Col)
			}
		case block.Whenever:
			table(t.Table)
			for _, p := range t.Indices {
				index(p.Row)
				index(p.Col)
			}
		case block.Function:
			for _, a := range t.Arguments {
				table(a.Table)
				index(a.Row)
				index(a.Col)
			}
			index(t.Out.Row)
			index(t.Out.Col)
		}
	}
	return ids
}

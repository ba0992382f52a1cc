package planner

import (
	"github.com/chazu/mech/block"
	"github.com/chazu/mech/store"
)

// Rule is one peephole rewrite over a plan.
type Rule interface {
	Name() string
	// Match returns the position at which the rule applies.
	Match(plan []block.Step) (int, bool)
	// Apply rewrites the plan at the position returned by Match.
	Apply(plan []block.Step, at int) []block.Step
}

// Optimizer applies its rules until none matches.
type Optimizer struct {
	rules []Rule
}

// NewOptimizer returns an optimizer with the default fusion rules.
func NewOptimizer() *Optimizer {
	o := &Optimizer{}
	o.AddRule(ConcatFusion{})
	o.AddRule(SetFusion{})
	return o
}

func (o *Optimizer) AddRule(r Rule) {
	o.rules = append(o.rules, r)
}

// Optimize rewrites a copy of plan to a fixpoint. Every rule removes a
// step, so the loop is bounded by the plan length. Running Optimize on
// its own output returns the same plan.
func (o *Optimizer) Optimize(plan []block.Step) []block.Step {
	out := append([]block.Step(nil), plan...)
	for changed := true; changed; {
		changed = false
		for _, r := range o.rules {
			if at, ok := r.Match(out); ok {
				log.Debugf("applying %s at step %d", r.Name(), at)
				out = r.Apply(out, at)
				changed = true
				break
			}
		}
	}
	return out
}

var defaultOptimizer = NewOptimizer()

// Optimize runs the default rules over plan.
func Optimize(plan []block.Step) []block.Step {
	return defaultOptimizer.Optimize(plan)
}

// ---------------------------------------------------------------------------
// Rules
// ---------------------------------------------------------------------------

// ConcatFusion folds a single-argument horzcat or vertcat into the
// function whose result it copies.
//
//	math/add(a, b) -> t
//	table/horzcat(t) -> #out
//
// becomes math/add(a, b) -> #out.
type ConcatFusion struct{}

func (ConcatFusion) Name() string { return "concat-fusion" }

func (ConcatFusion) Match(plan []block.Step) (int, bool) {
	return matchPair(plan, func(next block.Function) bool {
		return next.Name == "table/horzcat" || next.Name == "table/vertcat"
	})
}

func (ConcatFusion) Apply(plan []block.Step, at int) []block.Step {
	return fuse(plan, at)
}

// SetFusion folds a whole-table table/set into the function producing
// the value it copies.
//
//	math/add(#ball, v) -> t
//	table/set(t) -> #ball
//
// becomes math/add(#ball, v) -> #ball.
type SetFusion struct{}

func (SetFusion) Name() string { return "set-fusion" }

func (SetFusion) Match(plan []block.Step) (int, bool) {
	return matchPair(plan, func(next block.Function) bool {
		a := next.Arguments[0]
		return next.Name == "table/set" && block.Whole(a.Row, a.Col)
	})
}

func (SetFusion) Apply(plan []block.Step, at int) []block.Step {
	return fuse(plan, at)
}

// matchPair finds adjacent functions f, g where g takes exactly f's
// local result and nothing else in the plan touches that table.
func matchPair(plan []block.Step, accept func(block.Function) bool) (int, bool) {
	for i := 0; i+1 < len(plan); i++ {
		f, ok := plan[i].Transformation.(block.Function)
		if !ok {
			continue
		}
		g, ok := plan[i+1].Transformation.(block.Function)
		if !ok || len(g.Arguments) != 1 || !accept(g) {
			continue
		}
		a := g.Arguments[0]
		if f.Out.Table.Global || f.Out != (store.Register{Table: a.Table, Row: a.Row, Col: a.Col}) {
			continue
		}
		if references(plan, f.Out.Table) == 2 {
			return i, true
		}
	}
	return 0, false
}

func fuse(plan []block.Step, at int) []block.Step {
	f := plan[at].Transformation.(block.Function)
	g := plan[at+1].Transformation.(block.Function)
	f.Out = g.Out
	out := make([]block.Step, 0, len(plan)-1)
	out = append(out, plan[:at]...)
	out = append(out, block.Step{Transformation: f, Statement: plan[at].Statement})
	return append(out, plan[at+2:]...)
}

// references counts the transformations in plan mentioning id.
func references(plan []block.Step, id store.TableID) int {
	n := 0
	for _, st := range plan {
		if mentions(st.Transformation, id) {
			n++
		}
	}
	return n
}

func mentions(t block.Transformation, id store.TableID) bool {
	in := func(ix store.Index) bool { return ix.Kind == store.IndexTable && ix.Table == id }
	pairs := func(ps []block.Pair) bool {
		for _, p := range ps {
			if in(p.Row) || in(p.Col) {
				return true
			}
		}
		return false
	}
	switch t := t.(type) {
	case block.NewTable:
		return t.Table == id
	case block.Constant:
		return t.Table == id
	case block.TableAlias:
		return t.Table == id
	case block.ColumnAlias:
		return t.Table == id
	case block.TableReference:
		return t.Table == id || t.Reference == id
	case block.Select:
		return t.Table == id || t.Out == id || pairs(t.Indices)
	case block.Whenever:
		return t.Table == id || pairs(t.Indices)
	case block.Function:
		if t.Out.Table == id || in(t.Out.Row) || in(t.Out.Col) {
			return true
		}
		for _, a := range t.Arguments {
			if a.Table == id || in(a.Row) || in(a.Col) {
				return true
			}
		}
	}
	return false
}

package planner

import (
	"reflect"
	"testing"

	"github.com/chazu/mech/block"
	"github.com/chazu/mech/dispatch"
	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/store"
	"github.com/chazu/mech/value"
)

const (
	idX uint64 = 100 + iota
	idY
	idZ
)

func whole(t store.TableID) block.Argument {
	return block.Argument{Table: t, Row: store.All, Col: store.All}
}

// define builds "#alias = v".
func define(text string, local, alias uint64, v value.Value) block.Statement {
	return block.Statement{
		Text: text,
		Transformations: []block.Transformation{
			block.NewTable{Table: store.Local(local), Rows: 1, Cols: 1},
			block.Constant{Table: store.Local(local), Value: v},
			block.TableAlias{Table: store.Local(local), Alias: alias},
		},
	}
}

// apply builds "#out = op(#in, k)".
func apply(text, op string, in, out uint64, k float64, base uint64) block.Statement {
	return block.Statement{
		Text: text,
		Transformations: []block.Transformation{
			block.Constant{Table: store.Local(base), Value: value.Float(k)},
			block.Function{
				Name:      op,
				Arguments: []block.Argument{whole(store.Global(in)), whole(store.Local(base))},
				Out:       store.Whole(store.Local(base + 1)),
			},
			block.TableAlias{Table: store.Local(base + 1), Alias: out},
		},
	}
}

func order(plan []block.Step) []int {
	var out []int
	for _, st := range plan {
		if len(out) == 0 || out[len(out)-1] != st.Statement {
			out = append(out, st.Statement)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Plan
// ---------------------------------------------------------------------------

func TestPlanOrdersByDependency(t *testing.T) {
	stmts := []block.Statement{
		apply("#y = #x + 1", "math/add", idX, idY, 1, 10),
		define("#x = 5", 1, idX, value.Float(5)),
		apply("#z = #y * 2", "math/multiply", idY, idZ, 2, 20),
	}
	plan, errs := Plan(stmts)
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	if got, want := order(plan), []int{1, 0, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if len(plan) != 9 {
		t.Errorf("len(plan) = %d, want 9", len(plan))
	}
}

func TestPlanIsStable(t *testing.T) {
	stmts := []block.Statement{
		apply("#z = #y * 2", "math/multiply", idY, idZ, 2, 20),
		define("#a = 1", 1, 200, value.Float(1)),
		apply("#y = #x + 1", "math/add", idX, idY, 1, 10),
		define("#b = 2", 2, 201, value.Float(2)),
		define("#x = 5", 3, idX, value.Float(5)),
	}
	plan, errs := Plan(stmts)
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	// Constants first in source order, then y, then z.
	if got, want := order(plan), []int{1, 3, 4, 2, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestPlanIsLinearExtension(t *testing.T) {
	base := []block.Statement{
		define("#x = 5", 1, idX, value.Float(5)),
		apply("#y = #x + 1", "math/add", idX, idY, 1, 10),
		apply("#z = #y * 2", "math/multiply", idY, idZ, 2, 20),
	}
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, p := range perms {
		stmts := []block.Statement{base[p[0]], base[p[1]], base[p[2]]}
		plan, errs := Plan(stmts)
		if len(errs) != 0 {
			t.Fatalf("%v: errs = %v", p, errs)
		}
		var texts []string
		for _, ix := range order(plan) {
			texts = append(texts, stmts[ix].Text)
		}
		want := []string{"#x = 5", "#y = #x + 1", "#z = #y * 2"}
		if !reflect.DeepEqual(texts, want) {
			t.Errorf("%v: order = %v, want %v", p, texts, want)
		}
	}
}

func TestPlanReportsCycle(t *testing.T) {
	stmts := []block.Statement{
		apply("#y = #x + 1", "math/add", idX, idY, 1, 10),
		apply("#x = #y + 1", "math/add", idY, idX, 1, 20),
		define("#z = 1", 1, idZ, value.Float(1)),
	}
	plan, errs := Plan(stmts)
	if len(errs) != 2 {
		t.Fatalf("errs = %v, want 2", errs)
	}
	for _, err := range errs {
		if !mecherr.Is(err, mecherr.UnsatisfiedTransformation) {
			t.Errorf("err = %v, want UnsatisfiedTransformation", err)
		}
	}
	var me *mecherr.Error
	se := errs[0].(*StatementError)
	me = se.Err.(*mecherr.Error)
	if se.Statement != 0 || !reflect.DeepEqual(me.IDs, []uint64{idX}) {
		t.Errorf("first error = statement %d, ids %v", se.Statement, me.IDs)
	}
	if got := order(plan); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("order = %v, want [2]", got)
	}
}

func TestPlanDuplicateAlias(t *testing.T) {
	stmts := []block.Statement{
		define("#x = 1", 1, idX, value.Float(1)),
		define("#x = 2", 2, idX, value.Float(2)),
		define("#y = 3", 3, idY, value.Float(3)),
	}
	plan, errs := Plan(stmts)
	if len(errs) != 1 || !mecherr.Is(errs[0], mecherr.DuplicateAlias) {
		t.Fatalf("errs = %v, want one DuplicateAlias", errs)
	}
	if got := order(plan); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("order = %v, want [0 2]", got)
	}
}

func TestPlanWatchFirst(t *testing.T) {
	tick := uint64(300)
	stmts := []block.Statement{
		define("#a = 1", 1, 200, value.Float(1)),
		{Text: "~ #tick", Transformations: []block.Transformation{block.Whenever{Table: store.Global(tick)}}},
	}
	plan, _ := Plan(stmts)
	if got := order(plan); !reflect.DeepEqual(got, []int{1, 0}) {
		t.Errorf("order = %v, want [1 0]", got)
	}
}

func TestScheduleAttributes(t *testing.T) {
	b := block.New("cyc",
		apply("#y = #x + 1", "math/add", idX, idY, 1, 10),
		apply("#x = #y + 1", "math/add", idY, idX, 1, 20),
	)
	errs := Schedule(b)
	if len(errs) != 2 || len(b.Errors) != 2 {
		t.Fatalf("errs = %v", errs)
	}
	a, ok := errs[1].(*mecherr.Attributed)
	if !ok || a.Statement != "#x = #y + 1" {
		t.Errorf("attribution = %#v", errs[1])
	}
	if len(b.Plan) != 0 {
		t.Errorf("plan = %v, want empty", b.Plan)
	}
}

func TestScheduledBlockRuns(t *testing.T) {
	dict := value.NewDictionary()
	x, y, z := dict.Intern("x"), dict.Intern("y"), dict.Intern("z")
	db := store.NewDatabase(dict, store.Options{})
	b := block.New("main",
		apply("#y = #x + 1", "math/add", x, y, 1, 10),
		define("#x = 5", 1, x, value.Float(5)),
		apply("#z = #y * 2", "math/multiply", y, z, 2, 20),
	)
	if errs := Schedule(b); len(errs) != 0 {
		t.Fatal(errs)
	}
	if err := b.Ready(db, dispatch.New(dispatch.FeatureAll)); err != nil {
		t.Fatal(err)
	}
	zt, ok := db.TableByName("z")
	if !ok {
		t.Fatal("z missing")
	}
	if v, _ := zt.Get(0, 0); !value.Equal(v, value.Float(12)) {
		t.Errorf("z = %v, want 12", v)
	}
}

// ---------------------------------------------------------------------------
// Optimize
// ---------------------------------------------------------------------------

func steps(ts ...block.Transformation) []block.Step {
	out := make([]block.Step, len(ts))
	for i, t := range ts {
		out[i] = block.Step{Transformation: t}
	}
	return out
}

func TestConcatFusion(t *testing.T) {
	tmp, out := store.Local(1), store.Global(idY)
	plan := steps(
		block.Function{Name: "math/add", Arguments: []block.Argument{whole(store.Global(idX)), whole(store.Local(2))}, Out: store.Whole(tmp)},
		block.Function{Name: "table/horzcat", Arguments: []block.Argument{whole(tmp)}, Out: store.Whole(out)},
	)
	got := Optimize(plan)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1: %v", len(got), got)
	}
	f := got[0].Transformation.(block.Function)
	if f.Name != "math/add" || f.Out != store.Whole(out) {
		t.Errorf("fused = %v", f)
	}
	if len(plan) != 2 {
		t.Error("Optimize modified its input")
	}
}

func TestSetFusion(t *testing.T) {
	ball, tmp := store.Global(idX), store.Local(1)
	plan := steps(
		block.Constant{Table: store.Local(2), Value: value.Float(1)},
		block.Function{Name: "math/add", Arguments: []block.Argument{whole(ball), whole(store.Local(2))}, Out: store.Whole(tmp)},
		block.Function{Name: "table/set", Arguments: []block.Argument{whole(tmp)}, Out: store.Whole(ball)},
	)
	got := Optimize(plan)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(got), got)
	}
	if f := got[1].Transformation.(block.Function); f.Out != store.Whole(ball) {
		t.Errorf("fused out = %v, want %v", f.Out, store.Whole(ball))
	}
}

func TestFusionKeepsLiveIntermediate(t *testing.T) {
	tmp := store.Local(1)
	plan := steps(
		block.Function{Name: "math/add", Arguments: []block.Argument{whole(store.Global(idX)), whole(store.Local(2))}, Out: store.Whole(tmp)},
		block.Function{Name: "table/horzcat", Arguments: []block.Argument{whole(tmp)}, Out: store.Whole(store.Global(idY))},
		block.TableAlias{Table: tmp, Alias: idZ},
	)
	if got := Optimize(plan); len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
}

func TestOptimizeIdempotent(t *testing.T) {
	a, b := store.Local(1), store.Local(2)
	plan := steps(
		block.Function{Name: "math/negate", Arguments: []block.Argument{whole(store.Global(idX))}, Out: store.Whole(a)},
		block.Function{Name: "table/vertcat", Arguments: []block.Argument{whole(a)}, Out: store.Whole(b)},
		block.Function{Name: "table/set", Arguments: []block.Argument{whole(b)}, Out: store.Whole(store.Global(idY))},
		block.Function{Name: "math/add", Arguments: []block.Argument{whole(store.Global(idY)), whole(store.Global(idX))}, Out: store.Whole(store.Global(idZ))},
	)
	once := Optimize(plan)
	twice := Optimize(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Optimize not idempotent:\n%v\n%v", once, twice)
	}
	if len(once) != 2 {
		t.Errorf("len = %d, want 2", len(once))
	}
}

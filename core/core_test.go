package core

import (
	"testing"

	"github.com/chazu/mech/block"
	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/store"
	"github.com/chazu/mech/value"
)

func whole(t store.TableID) block.Argument {
	return block.Argument{Table: t, Row: store.All, Col: store.All}
}

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

func binary(text, op string, a, b store.TableID, out uint64, local uint64) block.Statement {
	return block.Statement{
		Text: text,
		Transformations: []block.Transformation{
			block.Function{Name: op, Arguments: []block.Argument{whole(a), whole(b)}, Out: store.Whole(store.Local(local))},
			block.TableAlias{Table: store.Local(local), Alias: out},
		},
	}
}

// withConst builds "#out = op(#in, k)".
func withConst(text, op string, in, out uint64, k float64, local uint64) block.Statement {
	st := binary(text, op, store.Global(in), store.Local(local), out, local+1)
	st.Transformations = append([]block.Transformation{
		block.Constant{Table: store.Local(local), Value: value.Float(k)},
	}, st.Transformations...)
	return st
}

func cell(t *testing.T, c *Core, name string) value.Value {
	t.Helper()
	tbl, ok := c.TableByName(name)
	if !ok {
		t.Fatalf("table %s missing", name)
	}
	v, err := tbl.Get(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func setX(id uint64, v float64) store.Transaction {
	return store.Transaction{store.Set(id, store.At(0), store.At(0), value.Float(v))}
}

func TestLoadAndReact(t *testing.T) {
	c := New(nil, Options{})
	d := c.Dictionary()
	x, y, z := d.Intern("x"), d.Intern("y"), d.Intern("z")

	err := c.LoadBlocks(block.New("main",
		withConst("#y = #x + 1", "math/add", x, y, 1, 10),
		define("#x = 5", 1, x, value.Float(5)),
		withConst("#z = #y * 2", "math/multiply", y, z, 2, 20),
	))
	if err != nil {
		t.Fatalf("LoadBlocks: %v", err)
	}
	if got := cell(t, c, "z"); !value.Equal(got, value.Float(12)) {
		t.Errorf("z = %v, want 12", got)
	}

	changed, err := c.ProcessTransaction(setX(x, 10))
	if err != nil {
		t.Fatal(err)
	}
	if got := cell(t, c, "y"); !value.Equal(got, value.Float(11)) {
		t.Errorf("y = %v, want 11", got)
	}
	if got := cell(t, c, "z"); !value.Equal(got, value.Float(22)) {
		t.Errorf("z = %v, want 22", got)
	}
	var sawZ bool
	for _, r := range changed {
		if r == store.Whole(store.Global(z)) {
			sawZ = true
		}
	}
	if !sawZ {
		t.Errorf("changed = %v, want z", changed)
	}
}

func TestBlocksRunWritersFirst(t *testing.T) {
	c := New(nil, Options{})
	d := c.Dictionary()
	x, y, z := d.Intern("x"), d.Intern("y"), d.Intern("z")

	// z reads x and y; y reads x. z is loaded first and parks until y
	// exists, so load order alone would run it before y.
	err := c.LoadBlocks(
		block.New("z", binary("#z = #x + #y", "math/add", store.Global(x), store.Global(y), z, 1)),
		block.New("x", define("#x = 1", 1, x, value.Float(1))),
		block.New("y", withConst("#y = #x * 10", "math/multiply", x, y, 10, 1)),
	)
	if err != nil {
		t.Fatal(err)
	}
	if got := cell(t, c, "z"); !value.Equal(got, value.Float(11)) {
		t.Errorf("z = %v, want 11", got)
	}
	if _, err := c.ProcessTransaction(setX(x, 2)); err != nil {
		t.Fatal(err)
	}
	if got := cell(t, c, "z"); !value.Equal(got, value.Float(22)) {
		t.Errorf("z = %v, want 22", got)
	}
}

func TestPendingBlockResolvedByLoad(t *testing.T) {
	c := New(nil, Options{})
	d := c.Dictionary()
	in, out := d.Intern("in"), d.Intern("out")

	waiting := block.New("waiting", withConst("#out = #in * 3", "math/multiply", in, out, 3, 1))
	if err := c.LoadBlocks(waiting); err != nil {
		t.Fatalf("unsatisfied block reported as error: %v", err)
	}
	if waiting.State != block.StateUnsatisfied {
		t.Fatalf("state = %v, want unsatisfied", waiting.State)
	}
	if p := c.Pending(); len(p) != 1 || p[0] != in {
		t.Fatalf("pending = %v, want [in]", p)
	}
	if errs := c.Errors(); len(errs) != 1 || !mecherr.Is(errs[0], mecherr.MissingTable) {
		t.Errorf("Errors = %v", errs)
	}

	if err := c.LoadBlocks(block.New("in", define("#in = 2", 1, in, value.Float(2)))); err != nil {
		t.Fatal(err)
	}
	if waiting.State != block.StateReady {
		t.Fatalf("state = %v, want ready", waiting.State)
	}
	if got := cell(t, c, "out"); !value.Equal(got, value.Float(6)) {
		t.Errorf("out = %v, want 6", got)
	}
	if len(c.Pending()) != 0 {
		t.Errorf("pending = %v", c.Pending())
	}
}

func TestPendingBlockResolvedByTransaction(t *testing.T) {
	c := New(nil, Options{})
	d := c.Dictionary()
	in, out := d.Intern("in"), d.Intern("out")
	c.LoadBlocks(block.New("waiting", withConst("#out = #in + 1", "math/add", in, out, 1, 1)))

	_, err := c.ProcessTransaction(store.Transaction{
		store.NewTableChange{Table: in, Name: "in", Rows: 1, Cols: 1},
		store.Set(in, store.At(0), store.At(0), value.Float(41)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := cell(t, c, "out"); !value.Equal(got, value.Float(42)) {
		t.Errorf("out = %v, want 42", got)
	}
}

func TestFailingBlockIsIsolated(t *testing.T) {
	c := New(nil, Options{})
	d := c.Dictionary()
	x, q := d.Intern("x"), d.Intern("q")

	bad := block.New("bad", block.Statement{
		Text: "#q = frob(#x)",
		Transformations: []block.Transformation{
			block.Function{Name: "math/frob", Arguments: []block.Argument{whole(store.Global(x))}, Out: store.Whole(store.Local(1))},
			block.TableAlias{Table: store.Local(1), Alias: q},
		},
	})
	good := block.New("good", define("#x = 1", 1, x, value.Float(1)))
	err := c.LoadBlocks(good, bad)
	if !mecherr.Is(err, mecherr.MissingFunction) {
		t.Fatalf("err = %v, want MissingFunction", err)
	}
	if good.State != block.StateReady || bad.State != block.StateError {
		t.Errorf("states = %v, %v", good.State, bad.State)
	}
	if got := cell(t, c, "x"); !value.Equal(got, value.Float(1)) {
		t.Errorf("x = %v, want 1", got)
	}
	if len(c.Errors()) != 1 {
		t.Errorf("Errors = %v", c.Errors())
	}
	if _, err := c.ProcessTransaction(setX(x, 3)); err != nil {
		t.Errorf("transaction after failed block: %v", err)
	}
}

func TestUnknownTableSkipped(t *testing.T) {
	c := New(nil, Options{})
	changed, err := c.ProcessTransaction(setX(0xdead, 1))
	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if len(changed) != 0 {
		t.Errorf("changed = %v, want none", changed)
	}

	strict := New(nil, Options{Store: store.Options{UnknownTable: store.FailUnknown}})
	if _, err := strict.ProcessTransaction(setX(0xdead, 1)); !mecherr.Is(err, mecherr.MissingTable) {
		t.Errorf("strict err = %v, want MissingTable", err)
	}
}

func TestWheneverRunsOncePerRound(t *testing.T) {
	c := New(nil, Options{})
	d := c.Dictionary()
	tick, count := d.Intern("tick"), d.Intern("count")
	c.ProcessTransaction(store.Transaction{
		store.NewTableChange{Table: tick, Name: "tick", Rows: 1, Cols: 1},
		store.Set(tick, store.At(0), store.At(0), value.Float(0)),
		store.NewTableChange{Table: count, Name: "count", Rows: 1, Cols: 1},
		store.Set(count, store.At(0), store.At(0), value.Float(0)),
	})
	err := c.LoadBlocks(block.New("counter",
		block.Statement{Text: "~ #tick", Transformations: []block.Transformation{block.Whenever{Table: store.Global(tick)}}},
		block.Statement{
			Text: "#count := #count + 1",
			Transformations: []block.Transformation{
				block.Constant{Table: store.Local(1), Value: value.Float(1)},
				block.Function{Name: "math/add", Arguments: []block.Argument{whole(store.Global(count)), whole(store.Local(1))}, Out: store.Whole(store.Local(2))},
				block.Function{Name: "table/set", Arguments: []block.Argument{whole(store.Local(2))}, Out: store.Whole(store.Global(count))},
			},
		},
	))
	if err != nil {
		t.Fatal(err)
	}
	base := cell(t, c, "count").(value.Scalar[value.F64]).Get()

	for i := 1; i <= 3; i++ {
		c.ProcessTransaction(setX(tick, float64(i)))
		if got := cell(t, c, "count").(value.Scalar[value.F64]).Get(); got != base+value.F64(i) {
			t.Errorf("tick %d: count = %v, want %v", i, got, base+value.F64(i))
		}
	}
	c.ProcessTransaction(setX(count, 100))
	if got := cell(t, c, "count").(value.Scalar[value.F64]).Get(); got != 100 {
		t.Errorf("count after direct set = %v, want 100", got)
	}
}

func TestReloadSameBlockIsNoop(t *testing.T) {
	c := New(nil, Options{})
	x := c.Dictionary().Intern("x")
	mk := func() *block.Block { return block.New("x", define("#x = 1", 1, x, value.Float(1))) }
	if err := c.LoadBlocks(mk()); err != nil {
		t.Fatal(err)
	}
	if err := c.LoadBlocks(mk()); err != nil {
		t.Errorf("reload: %v", err)
	}
	if n := len(c.Blocks()); n != 1 {
		t.Errorf("blocks = %d, want 1", n)
	}
}

func TestClear(t *testing.T) {
	c := New(nil, Options{})
	x := c.Dictionary().Intern("x")
	c.LoadBlocks(block.New("x", define("#x = 1", 1, x, value.Float(1))))
	c.Clear()
	if _, ok := c.Table(x); ok {
		t.Error("table survived Clear")
	}
	if len(c.Blocks()) != 0 {
		t.Error("blocks survived Clear")
	}
}

func TestColumnReaderFollowsTableGrowth(t *testing.T) {
	c := New(nil, Options{})
	d := c.Dictionary()
	tb, x, y := d.Intern("t"), d.Intern("x"), d.Intern("y")

	_, err := c.ProcessTransaction(store.Transaction{
		store.NewTableChange{Table: tb, Name: "t", Rows: 2, Cols: 1},
		store.ColumnAliasChange{Table: tb, Column: 0, Alias: x, Name: "x"},
		store.Set(tb, store.At(0), store.At(0), value.Float(1)),
		store.Set(tb, store.At(1), store.At(0), value.Float(2)),
	})
	if err != nil {
		t.Fatal(err)
	}
	err = c.LoadBlocks(block.New("y", block.Statement{
		Text: "#y = #t.x + 1",
		Transformations: []block.Transformation{
			block.Constant{Table: store.Local(10), Value: value.Float(1)},
			block.Function{
				Name: "math/add",
				Arguments: []block.Argument{
					{Table: store.Global(tb), Row: store.All, Col: store.Alias(x)},
					whole(store.Local(10)),
				},
				Out: store.Whole(store.Local(11)),
			},
			block.TableAlias{Table: store.Local(11), Alias: y},
		},
	}))
	if err != nil {
		t.Fatalf("LoadBlocks: %v", err)
	}
	if got := cell(t, c, "y").String(); got != "[2; 3]" {
		t.Fatalf("y = %s, want [2; 3]", got)
	}

	_, err = c.ProcessTransaction(store.Transaction{
		store.NewTableChange{Table: tb, Name: "t", Rows: 3, Cols: 1},
		store.Set(tb, store.At(2), store.At(0), value.Float(5)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := cell(t, c, "y").String(); got != "[2; 3; 6]" {
		t.Errorf("y after growth = %s, want [2; 3; 6]", got)
	}
}

func TestReplacedMatrixRebindsReaders(t *testing.T) {
	c := New(nil, Options{})
	d := c.Dictionary()
	m, y, z := d.Intern("m"), d.Intern("y"), d.Intern("z")

	_, err := c.ProcessTransaction(store.Transaction{
		store.NewTableChange{Table: m, Name: "m", Rows: 1, Cols: 1},
		store.Set(m, store.At(0), store.At(0), value.NewMat[value.F64](2, 1, 1, 2)),
	})
	if err != nil {
		t.Fatal(err)
	}
	err = c.LoadBlocks(
		block.New("y", withConst("#y = #m + 1", "math/add", m, y, 1, 10)),
		block.New("z", withConst("#z = #y * 2", "math/multiply", y, z, 2, 10)),
	)
	if err != nil {
		t.Fatalf("LoadBlocks: %v", err)
	}
	if got := cell(t, c, "y").String(); got != "[2; 3]" {
		t.Fatalf("y = %s, want [2; 3]", got)
	}

	_, err = c.ProcessTransaction(store.Transaction{
		store.Set(m, store.At(0), store.At(0), value.NewMat[value.F64](3, 1, 10, 20, 30)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := cell(t, c, "y").String(); got != "[11; 21; 31]" {
		t.Errorf("y = %s, want [11; 21; 31]", got)
	}
	if got := cell(t, c, "z").String(); got != "[22; 42; 62]" {
		t.Errorf("z = %s, want [22; 42; 62]", got)
	}

	// Same shape updates in place.
	_, err = c.ProcessTransaction(store.Transaction{
		store.Set(m, store.At(0), store.At(0), value.NewMat[value.F64](3, 1, 0, 1, 2)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := cell(t, c, "z").String(); got != "[2; 4; 6]" {
		t.Errorf("z = %s, want [2; 4; 6]", got)
	}
}

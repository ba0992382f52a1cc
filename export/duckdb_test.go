package export

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/chazu/mech/value"
)

func TestSQLValue(t *testing.T) {
	tests := []struct {
		in   value.Value
		want any
	}{
		{value.Float(1.5), 1.5},
		{value.Bool(true), true},
		{value.String("a"), "a"},
		{value.NewScalar(int32(7)), int32(7)},
		{value.NewReference(value.Float(2)), 2.0},
		{value.Empty, nil},
	}
	for _, tt := range tests {
		if got := sqlValue(tt.in); got != tt.want {
			t.Errorf("sqlValue(%v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestTableName(t *testing.T) {
	tbl := value.NewTable(0xab, 1, 1)
	if got := tableName(tbl); got != "table_ab" {
		t.Errorf("tableName = %q, want table_ab", got)
	}
	tbl.Name = "balls"
	if got := tableName(tbl); got != "balls" {
		t.Errorf("tableName = %q, want balls", got)
	}
	if got := quote(`a"b`); got != `"a""b"` {
		t.Errorf("quote = %s", got)
	}
}

func TestDuckDBExport(t *testing.T) {
	tbl := value.NewTable(1, 3, 2)
	tbl.Name = "balls"
	if err := tbl.SetColumnAlias(0, 10, "x"); err != nil {
		t.Fatal(err)
	}
	for r := 0; r < 3; r++ {
		tbl.Put(r, 0, value.Float(float64(r)))
		tbl.Put(r, 1, value.String("red"))
	}
	path := filepath.Join(t.TempDir(), "snap.duckdb")
	if err := DuckDB(path, []*value.Table{tbl}); err != nil {
		t.Fatalf("DuckDB: %v", err)
	}
	// Exporting again replaces the table.
	if err := DuckDB(path, []*value.Table{tbl}); err != nil {
		t.Fatalf("DuckDB again: %v", err)
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	var sum float64
	if err := db.QueryRow(`SELECT COUNT(*), SUM("x") FROM "balls"`).Scan(&n, &sum); err != nil {
		t.Fatal(err)
	}
	if n != 3 || sum != 3 {
		t.Errorf("count, sum = %d, %v; want 3, 3", n, sum)
	}
}

// Package export writes snapshots of global tables to DuckDB for offline
// analysis.
package export

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/tliron/commonlog"

	"github.com/chazu/mech/value"
)

var log = commonlog.GetLogger("mech.export")

// DuckDB writes a snapshot of tables into the DuckDB database at
// path. Each table replaces any table of the same name. Columns take the
// SQL type of their kind; cells of other kinds are stored as text.
func DuckDB(path string, tables []*value.Table) error {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	for _, t := range tables {
		if err := exportTable(db, t); err != nil {
			return fmt.Errorf("exporting %s: %w", tableName(t), err)
		}
	}
	log.Infof("exported %d tables to %s", len(tables), path)
	return nil
}

func exportTable(db *sql.DB, t *value.Table) error {
	name := quote(tableName(t))
	cols := make([]string, t.Cols())
	marks := make([]string, t.Cols())
	for c := range cols {
		col, err := t.Column(c)
		if err != nil {
			return err
		}
		cname := col.Name
		if cname == "" {
			cname = fmt.Sprintf("c%d", c+1)
		}
		cols[c] = quote(cname) + " " + sqlType(col.Kind.Tag)
		marks[c] = "?"
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DROP TABLE IF EXISTS " + name); err != nil {
		return err
	}
	if len(cols) == 0 {
		return tx.Commit()
	}
	if _, err := tx.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(cols, ", "))); err != nil {
		return err
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)", name, strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	row := make([]any, t.Cols())
	for r := 0; r < t.Rows(); r++ {
		for c := range row {
			v, err := t.Get(r, c)
			if err != nil {
				return err
			}
			row[c] = sqlValue(v)
		}
		if _, err := stmt.Exec(row...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func tableName(t *value.Table) string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("table_%x", t.ID)
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func sqlType(tag value.Tag) string {
	switch tag {
	case value.TagBool:
		return "BOOLEAN"
	case value.TagI8:
		return "TINYINT"
	case value.TagI16:
		return "SMALLINT"
	case value.TagI32:
		return "INTEGER"
	case value.TagI64:
		return "BIGINT"
	case value.TagU8:
		return "UTINYINT"
	case value.TagU16:
		return "USMALLINT"
	case value.TagU32:
		return "UINTEGER"
	case value.TagU64:
		return "UBIGINT"
	case value.TagF32:
		return "FLOAT"
	case value.TagF64:
		return "DOUBLE"
	}
	return "VARCHAR"
}

// sqlValue converts a cell to a driver value. Empty cells become NULL.
func sqlValue(v value.Value) any {
	v = value.Deref(v)
	if v == nil || value.IsEmpty(v) {
		return nil
	}
	switch v := v.(type) {
	case value.Scalar[bool]:
		return v.Get()
	case value.Scalar[int8]:
		return v.Get()
	case value.Scalar[int16]:
		return v.Get()
	case value.Scalar[int32]:
		return v.Get()
	case value.Scalar[int64]:
		return v.Get()
	case value.Scalar[uint8]:
		return v.Get()
	case value.Scalar[uint16]:
		return v.Get()
	case value.Scalar[uint32]:
		return v.Get()
	case value.Scalar[uint64]:
		return v.Get()
	case value.Scalar[value.F32]:
		return float32(v.Get())
	case value.Scalar[value.F64]:
		return float64(v.Get())
	case value.Scalar[string]:
		return v.Get()
	}
	return v.String()
}

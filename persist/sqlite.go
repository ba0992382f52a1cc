package persist

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chazu/mech/store"
)

// SQLiteLog stores transactions as rows of a SQLite database.
type SQLiteLog struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenSQLiteLog opens or creates the database at path.
func OpenSQLiteLog(path string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		changes INTEGER NOT NULL,
		record BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &SQLiteLog{db: db, path: path}, nil
}

// Append inserts txn as the next row.
func (l *SQLiteLog) Append(txn store.Transaction) error {
	rec, err := MarshalTransaction(txn)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.db.Exec(
		"INSERT INTO transactions (at, changes, record) VALUES (?, ?, ?)",
		time.Now().UnixNano(), len(txn), rec,
	)
	if err != nil {
		return fmt.Errorf("saving transaction: %w", err)
	}
	return nil
}

// Load returns every stored transaction in insertion order.
func (l *SQLiteLog) Load() ([]store.Transaction, error) {
	rows, err := l.db.Query("SELECT seq, record FROM transactions ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txns []store.Transaction
	for rows.Next() {
		var seq int64
		var rec []byte
		if err := rows.Scan(&seq, &rec); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txn, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", seq, err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// Len returns the number of stored transactions.
func (l *SQLiteLog) Len() (int, error) {
	var n int
	if err := l.db.QueryRow("SELECT COUNT(*) FROM transactions").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (l *SQLiteLog) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

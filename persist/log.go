package persist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"

	"github.com/chazu/mech/store"
)

var log = commonlog.GetLogger("mech.persist")

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("persist: log closed")

// Persister records applied transactions and returns them for replay.
type Persister interface {
	Append(txn store.Transaction) error
	Load() ([]store.Transaction, error)
	Close() error
}

// Open returns the persister for backend ("log" or "sqlite") at path.
func Open(backend, path string) (Persister, error) {
	switch backend {
	case "", "log":
		return OpenFileLog(path)
	case "sqlite":
		return OpenSQLiteLog(path)
	}
	return nil, fmt.Errorf("persist: unknown backend %q", backend)
}

// Replay feeds every stored transaction to apply in order and returns how
// many were applied. It stops at the first error.
func Replay(p Persister, apply func(store.Transaction) error) (int, error) {
	txns, err := p.Load()
	if err != nil {
		return 0, err
	}
	for i, txn := range txns {
		if err := apply(txn); err != nil {
			return i, fmt.Errorf("persist: replay transaction %d: %w", i, err)
		}
	}
	log.Infof("replayed %d transactions", len(txns))
	return len(txns), nil
}

// ---------------------------------------------------------------------------
// FileLog
// ---------------------------------------------------------------------------

// FileLog appends CBOR-encoded transactions to a file. Writes happen on
// a dedicated goroutine in the order Append was called.
type FileLog struct {
	path     string
	requests chan []byte
	done     chan struct{}

	mu     sync.Mutex
	closed bool

	errMu sync.Mutex
	err   error
}

// OpenFileLog opens path for appending, creating it if needed, and starts
// the writer goroutine.
func OpenFileLog(path string) (*FileLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	l := &FileLog{
		path:     path,
		requests: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
	go l.loop(f)
	return l, nil
}

func (l *FileLog) loop(f *os.File) {
	defer close(l.done)
	w := bufio.NewWriter(f)
	for rec := range l.requests {
		if _, err := w.Write(rec); err != nil {
			l.fail(err)
			continue
		}
		if err := w.Flush(); err != nil {
			l.fail(err)
		}
	}
	if err := f.Close(); err != nil {
		l.fail(err)
	}
}

func (l *FileLog) fail(err error) {
	log.Errorf("write %s: %v", l.path, err)
	l.errMu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.errMu.Unlock()
}

// Append encodes txn and queues it for writing.
func (l *FileLog) Append(txn store.Transaction) error {
	rec, err := MarshalTransaction(txn)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.requests <- rec
	return nil
}

// Load reads every complete transaction in the file. A truncated final
// record is dropped with a warning. A missing file holds no transactions.
func (l *FileLog) Load() ([]store.Transaction, error) {
	return LoadFile(l.path)
}

// Close flushes queued transactions, stops the writer and returns the
// first write error.
func (l *FileLog) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.requests)
	l.mu.Unlock()
	<-l.done
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

// LoadFile reads the transactions stored at path.
func LoadFile(path string) ([]store.Transaction, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer f.Close()

	var txns []store.Transaction
	dec := cbor.NewDecoder(bufio.NewReader(f))
	for {
		var raw cbor.RawMessage
		err := dec.Decode(&raw)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warningf("%s: stopping at record %d: %v", path, len(txns), err)
			break
		}
		txn, err := UnmarshalTransaction(raw)
		if err != nil {
			return txns, fmt.Errorf("%s: record %d: %w", path, len(txns), err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

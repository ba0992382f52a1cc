// Package program wraps a core with the state a front end talks to:
// listeners, machines, the change log and the run loop that serializes
// access to all of them.
package program

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/mech/block"
	"github.com/chazu/mech/core"
	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/persist"
	"github.com/chazu/mech/store"
	"github.com/chazu/mech/value"
)

var log = commonlog.GetLogger("mech.program")

// ErrNoCompiler is returned for source code when no Compiler is set.
var ErrNoCompiler = errors.New("program: no compiler for source code")

// Compiler turns program text into blocks.
type Compiler interface {
	Compile(source string, dict *value.Dictionary) ([]*block.Block, error)
}

// Machine is an external watcher. OnChange is called on the run loop
// goroutine after a transaction changes one of the machine's tables; the
// table must not be retained past the call.
type Machine interface {
	Name() string
	Tables() []uint64
	OnChange(t *value.Table) error
}

// Program is not safe for concurrent use. A RunLoop owns it once started.
type Program struct {
	ID   uuid.UUID
	Name string

	core      *core.Core
	compiler  Compiler
	persister persist.Persister
	listeners []store.Register
	machines  []Machine

	transactions int
}

// New returns a program around c.
func New(name string, c *core.Core) *Program {
	return &Program{
		ID:   uuid.New(),
		Name: name,
		core: c,
	}
}

func (p *Program) Core() *core.Core { return p.core }

// SetCompiler installs the compiler used for source code.
func (p *Program) SetCompiler(c Compiler) { p.compiler = c }

// SetPersister installs the change log. Every applied transaction is
// appended to it.
func (p *Program) SetPersister(pr persist.Persister) { p.persister = pr }

// AddMachine registers m.
func (p *Program) AddMachine(m Machine) {
	p.machines = append(p.machines, m)
	log.Infof("machine %s watching %d tables", m.Name(), len(m.Tables()))
}

// Listen subscribes to changes of regs. Registers already listened to are
// ignored.
func (p *Program) Listen(regs ...store.Register) {
	for _, r := range regs {
		if !slices.Contains(p.listeners, r) {
			p.listeners = append(p.listeners, r)
		}
	}
}

func (p *Program) Listeners() []store.Register { return slices.Clone(p.listeners) }

// Replay applies every transaction stored in the persister without
// appending it again.
func (p *Program) Replay() (int, error) {
	if p.persister == nil {
		return 0, nil
	}
	return persist.Replay(p.persister, func(txn store.Transaction) error {
		_, err := p.core.ProcessTransaction(txn)
		if err != nil {
			log.Warningf("replay: %v", err)
		}
		p.transactions++
		return nil
	})
}

// Step is the result of one applied transaction or code load.
type Step struct {
	Changed []store.Register
	Echo    []store.Transaction
	Errors  []error
	Elapsed time.Duration
}

// ProcessTransaction applies txn, logs it, triggers machines and collects
// the changes listeners asked for.
func (p *Program) ProcessTransaction(txn store.Transaction) Step {
	start := time.Now()
	changed, err := p.core.ProcessTransaction(txn)
	step := Step{Changed: changed, Errors: unjoin(err)}
	p.transactions++
	if p.persister != nil {
		if err := p.persister.Append(txn); err != nil {
			step.Errors = append(step.Errors, fmt.Errorf("persisting transaction: %w", err))
		}
	}
	p.react(&step)
	step.Elapsed = time.Since(start)
	return step
}

// LoadCode loads blocks, compiling source first when given.
func (p *Program) LoadCode(blocks []*block.Block, source string) Step {
	start := time.Now()
	if source != "" {
		if p.compiler == nil {
			return Step{Errors: []error{ErrNoCompiler}}
		}
		compiled, err := p.compiler.Compile(source, p.core.Dictionary())
		if err != nil {
			return Step{Errors: []error{err}}
		}
		blocks = append(blocks, compiled...)
	}
	err := p.core.LoadBlocks(blocks...)
	step := Step{Changed: p.core.Database().Changed(), Errors: unjoin(err)}
	p.react(&step)
	step.Elapsed = time.Since(start)
	return step
}

func (p *Program) react(step *Step) {
	for _, m := range p.machines {
		for _, id := range m.Tables() {
			if !touches(step.Changed, id) {
				continue
			}
			t, ok := p.core.Table(id)
			if !ok {
				continue
			}
			if err := m.OnChange(t); err != nil {
				log.Errorf("machine %s: %v", m.Name(), err)
				step.Errors = append(step.Errors, fmt.Errorf("machine %s: %w", m.Name(), err))
			}
		}
	}
	sent := make(map[uint64]bool)
	for _, l := range p.listeners {
		if sent[l.Table.ID] || !l.Table.Global {
			continue
		}
		for _, c := range step.Changed {
			if l.Covers(c) {
				if t, ok := p.core.Table(l.Table.ID); ok {
					step.Echo = append(step.Echo, TableChanges(t))
				}
				sent[l.Table.ID] = true
				break
			}
		}
	}
}

func touches(changed []store.Register, id uint64) bool {
	for _, c := range changed {
		if c.Table.Global && c.Table.ID == id {
			return true
		}
	}
	return false
}

// TableChanges renders t as a transaction that recreates it.
func TableChanges(t *value.Table) store.Transaction {
	txn := store.Transaction{store.NewTableChange{Table: t.ID, Name: t.Name, Rows: t.Rows(), Cols: t.Cols()}}
	set := store.SetChange{Table: t.ID}
	for c := 0; c < t.Cols(); c++ {
		col, _ := t.Column(c)
		if col.Alias != 0 {
			txn = append(txn, store.ColumnAliasChange{Table: t.ID, Column: c, Alias: col.Alias, Name: col.Name})
		}
		for r, v := range col.Cells() {
			if value.IsEmpty(v) {
				continue
			}
			set.Cells = append(set.Cells, store.Cell{Row: store.At(r), Col: store.At(c), Value: value.Clone(v)})
		}
	}
	if len(set.Cells) > 0 {
		txn = append(txn, set)
	}
	return txn
}

// Clear drops the core's blocks and tables. Listeners and machines stay.
func (p *Program) Clear() {
	p.core.Clear()
}

// Close closes the persister.
func (p *Program) Close() error {
	if p.persister == nil {
		return nil
	}
	return p.persister.Close()
}

func (p *Program) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "program %s (%s)\n", p.Name, p.ID)
	fmt.Fprintf(&sb, "  transactions: %d\n", p.transactions)
	fmt.Fprintf(&sb, "  blocks: %d, pending on %d tables\n", len(p.core.Blocks()), len(p.core.Pending()))
	fmt.Fprintf(&sb, "  dictionary: %d names\n", p.core.Dictionary().Len())
	if p.persister != nil {
		fmt.Fprintf(&sb, "  persister: %T\n", p.persister)
	}
	for _, l := range p.listeners {
		fmt.Fprintf(&sb, "  listening: %s\n", p.registerName(l))
	}
	for _, m := range p.machines {
		fmt.Fprintf(&sb, "  machine: %s\n", m.Name())
	}
	if errs := p.core.Errors(); len(errs) > 0 {
		sb.WriteString(mecherr.Report(errs))
	}
	return sb.String()
}

func (p *Program) registerName(r store.Register) string {
	if name, ok := p.core.Dictionary().Name(r.Table.ID); ok {
		return fmt.Sprintf("#%s{%s,%s}", name, r.Row, r.Col)
	}
	return r.String()
}

func unjoin(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

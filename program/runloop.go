package program

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/value"
)

// ErrStopped is returned by Call when the loop stopped before replying.
var ErrStopped = errors.New("program: run loop stopped")

// RunLoop serializes all access to a Program through a single goroutine.
// Senders may be on any goroutine; messages are handled in FIFO order and
// each one is fully applied before the next is read.
type RunLoop struct {
	program *Program
	inbox   *mailbox[RunLoopMessage]
	outbox  *mailbox[ClientMessage]
	done    chan struct{}

	paused bool
	held   []RunLoopMessage
}

// NewRunLoop returns a loop for p. Nothing runs until Run.
func NewRunLoop(p *Program) *RunLoop {
	return &RunLoop{
		program: p,
		inbox:   newMailbox[RunLoopMessage](),
		outbox:  newMailbox[ClientMessage](),
		done:    make(chan struct{}),
	}
}

// Run processes messages until Stop or ctx is cancelled, then closes the
// program's persister. Run must be called once.
func (r *RunLoop) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(r.done)
		return r.loop()
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			r.Stop()
		case <-r.done:
		}
		return nil
	})
	return g.Wait()
}

// Send queues msg. Replies go to Receive.
func (r *RunLoop) Send(msg RunLoopMessage) error {
	msg.reply = nil
	if !r.inbox.put(msg) {
		return ErrStopped
	}
	return nil
}

// Call queues msg and blocks until it has been handled, returning its
// replies up to and including Done (or Exit for Stop).
func (r *RunLoop) Call(msg RunLoopMessage) ([]ClientMessage, error) {
	msg.reply = newMailbox[ClientMessage]()
	if !r.inbox.put(msg) {
		return nil, ErrStopped
	}
	var replies []ClientMessage
	for {
		m, ok := msg.reply.get()
		if !ok {
			return replies, ErrStopped
		}
		replies = append(replies, m)
		if m.Kind == ClientDone || m.Kind == ClientExit {
			return replies, nil
		}
	}
}

// Receive returns the next message not addressed to a Call. It reports
// false once the loop has stopped and every message has been read.
func (r *RunLoop) Receive() (ClientMessage, bool) {
	return r.outbox.get()
}

// Stop asks the loop to exit after the message in flight.
func (r *RunLoop) Stop() {
	r.inbox.put(Control(MsgStop))
}

// Done is closed when the loop has exited.
func (r *RunLoop) Done() <-chan struct{} { return r.done }

func (r *RunLoop) loop() error {
	log.Infof("run loop %s started", r.program.Name)
	r.outbox.put(ClientMessage{Kind: ClientReady})
	for {
		msg, ok := r.inbox.get()
		if !ok {
			break
		}
		if !r.handle(msg) {
			break
		}
	}
	for _, msg := range r.inbox.drain() {
		if msg.reply != nil {
			msg.reply.close()
		}
	}
	err := r.program.Close()
	r.outbox.close()
	log.Infof("run loop %s stopped", r.program.Name)
	return err
}

// handle runs one message, recovering from panics. It reports false when
// the loop should exit.
func (r *RunLoop) handle(msg RunLoopMessage) (more bool) {
	out := r.outbox
	if msg.reply != nil {
		out = msg.reply
	}
	send := func(m ClientMessage) { out.put(m) }
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("%s: panic: %v", msg.Kind, p)
			send(ClientMessage{Kind: ClientError, Err: fmt.Errorf("%s: %v", msg.Kind, p)})
			send(ClientMessage{Kind: ClientDone})
			more = true
		}
	}()

	p := r.program
	switch msg.Kind {
	case MsgTransaction:
		if r.paused {
			r.held = append(r.held, msg)
			send(ClientMessage{Kind: ClientString, Text: fmt.Sprintf("paused: %d transactions held", len(r.held))})
			break
		}
		r.sendStep(send, p.ProcessTransaction(msg.Transaction))
	case MsgCode:
		r.sendStep(send, p.LoadCode(msg.Blocks, msg.Source))
	case MsgListening:
		p.Listen(msg.Registers...)
		for _, reg := range msg.Registers {
			if t, ok := p.core.Table(reg.Table.ID); ok && reg.Table.Global {
				send(ClientMessage{Kind: ClientTransaction, Transaction: TableChanges(t)})
			}
		}
	case MsgGetTable:
		id := msg.Table
		if id == 0 {
			id = value.Hash(msg.Name)
		}
		t, ok := p.core.Table(id)
		if !ok {
			send(ClientMessage{Kind: ClientError, Err: mecherr.NoTable(id)})
			break
		}
		send(ClientMessage{Kind: ClientTable, Table: t.Snapshot()})
	case MsgGetValue:
		v, err := p.core.Value(msg.Table, msg.Row, msg.Col)
		if err != nil {
			send(ClientMessage{Kind: ClientError, Err: err})
			break
		}
		send(ClientMessage{Kind: ClientValue, Value: value.Clone(v)})
	case MsgPause:
		r.paused = true
	case MsgResume:
		r.paused = false
		held := r.held
		r.held = nil
		for _, h := range held {
			r.sendStep(send, p.ProcessTransaction(h.Transaction))
		}
	case MsgStop:
		send(ClientMessage{Kind: ClientExit})
		return false
	case MsgClear:
		p.Clear()
		r.held = nil
	case MsgPrintCore:
		send(ClientMessage{Kind: ClientString, Text: p.core.String()})
	case MsgPrintRuntime:
		send(ClientMessage{Kind: ClientString, Text: r.String()})
	case MsgSnapshot:
		for _, t := range p.core.Database().Tables() {
			send(ClientMessage{Kind: ClientTable, Table: t.Snapshot()})
		}
	default:
		send(ClientMessage{Kind: ClientError, Err: fmt.Errorf("unknown message %s", msg.Kind)})
	}
	send(ClientMessage{Kind: ClientDone})
	return true
}

func (r *RunLoop) sendStep(send func(ClientMessage), step Step) {
	for _, err := range step.Errors {
		send(ClientMessage{Kind: ClientError, Err: err})
	}
	for _, txn := range step.Echo {
		send(ClientMessage{Kind: ClientTransaction, Transaction: txn})
	}
	send(ClientMessage{Kind: ClientStepDone, Changed: step.Changed, Elapsed: step.Elapsed})
}

func (r *RunLoop) String() string {
	state := "running"
	if r.paused {
		state = fmt.Sprintf("paused (%d held)", len(r.held))
	}
	return fmt.Sprintf("%sstate: %s, queued: %d\n", r.program, state, r.inbox.len())
}

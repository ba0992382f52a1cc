package program

import (
	"fmt"
	"time"

	"github.com/chazu/mech/block"
	"github.com/chazu/mech/store"
	"github.com/chazu/mech/value"
)

// RunLoopKind identifies an inbound message.
type RunLoopKind int

const (
	MsgTransaction RunLoopKind = iota
	MsgCode
	MsgListening
	MsgGetTable
	MsgGetValue
	MsgPause
	MsgResume
	MsgStop
	MsgClear
	MsgPrintCore
	MsgPrintRuntime
	MsgSnapshot
)

var runLoopKindNames = [...]string{
	MsgTransaction:  "Transaction",
	MsgCode:         "Code",
	MsgListening:    "Listening",
	MsgGetTable:     "GetTable",
	MsgGetValue:     "GetValue",
	MsgPause:        "Pause",
	MsgResume:       "Resume",
	MsgStop:         "Stop",
	MsgClear:        "Clear",
	MsgPrintCore:    "PrintCore",
	MsgPrintRuntime: "PrintRuntime",
	MsgSnapshot:     "Snapshot",
}

func (k RunLoopKind) String() string {
	if int(k) < len(runLoopKindNames) {
		return runLoopKindNames[k]
	}
	return fmt.Sprintf("RunLoopKind(%d)", int(k))
}

// RunLoopMessage is a request to the run loop. Only the fields relevant
// to Kind are read.
type RunLoopMessage struct {
	Kind RunLoopKind

	// MsgTransaction
	Transaction store.Transaction

	// MsgCode: pre-built blocks are loaded as they are; Source goes
	// through the program's Compiler first.
	Blocks []*block.Block
	Source string

	// MsgListening
	Registers []store.Register

	// MsgGetTable looks up Table, or Name when Table is zero.
	// MsgGetValue reads (Row, Col) of Table.
	Table uint64
	Name  string
	Row   int
	Col   int

	reply *mailbox[ClientMessage]
}

// Transaction returns a MsgTransaction message.
func Transaction(txn store.Transaction) RunLoopMessage {
	return RunLoopMessage{Kind: MsgTransaction, Transaction: txn}
}

// Code returns a MsgCode message carrying compiled blocks.
func Code(blocks ...*block.Block) RunLoopMessage {
	return RunLoopMessage{Kind: MsgCode, Blocks: blocks}
}

// Source returns a MsgCode message carrying program text.
func Source(text string) RunLoopMessage {
	return RunLoopMessage{Kind: MsgCode, Source: text}
}

// Listening returns a MsgListening message.
func Listening(regs ...store.Register) RunLoopMessage {
	return RunLoopMessage{Kind: MsgListening, Registers: regs}
}

// GetTable returns a MsgGetTable message for table id.
func GetTable(id uint64) RunLoopMessage {
	return RunLoopMessage{Kind: MsgGetTable, Table: id}
}

// GetTableNamed returns a MsgGetTable message for a table name.
func GetTableNamed(name string) RunLoopMessage {
	return RunLoopMessage{Kind: MsgGetTable, Name: name}
}

// GetValue returns a MsgGetValue message for one cell.
func GetValue(id uint64, row, col int) RunLoopMessage {
	return RunLoopMessage{Kind: MsgGetValue, Table: id, Row: row, Col: col}
}

// Control returns a message with no payload.
func Control(kind RunLoopKind) RunLoopMessage {
	return RunLoopMessage{Kind: kind}
}

// ClientKind identifies an outbound message.
type ClientKind int

const (
	ClientDone ClientKind = iota
	ClientStepDone
	ClientReady
	ClientTable
	ClientValue
	ClientTransaction
	ClientString
	ClientError
	ClientExit
)

var clientKindNames = [...]string{
	ClientDone:        "Done",
	ClientStepDone:    "StepDone",
	ClientReady:       "Ready",
	ClientTable:       "Table",
	ClientValue:       "Value",
	ClientTransaction: "Transaction",
	ClientString:      "String",
	ClientError:       "Error",
	ClientExit:        "Exit",
}

func (k ClientKind) String() string {
	if int(k) < len(clientKindNames) {
		return clientKindNames[k]
	}
	return fmt.Sprintf("ClientKind(%d)", int(k))
}

// ClientMessage is sent by the run loop. Tables and values are snapshots
// that stay valid after later transactions.
type ClientMessage struct {
	Kind ClientKind

	Table       *value.Table
	Value       value.Value
	Transaction store.Transaction
	Text        string
	Err         error
	Code        int

	// ClientStepDone
	Changed []store.Register
	Elapsed time.Duration
}

func (m ClientMessage) String() string {
	switch m.Kind {
	case ClientTable:
		if m.Table == nil {
			return "Table(none)"
		}
		return m.Table.String()
	case ClientValue:
		return m.Value.String()
	case ClientTransaction:
		return fmt.Sprintf("Transaction(%d changes)", len(m.Transaction))
	case ClientString:
		return m.Text
	case ClientError:
		return m.Err.Error()
	case ClientExit:
		return fmt.Sprintf("Exit(%d)", m.Code)
	case ClientStepDone:
		return fmt.Sprintf("StepDone(%d changed, %v)", len(m.Changed), m.Elapsed)
	}
	return m.Kind.String()
}

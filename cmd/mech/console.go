package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/mech/config"
	"github.com/chazu/mech/export"
	"github.com/chazu/mech/program"
	"github.com/chazu/mech/store"
	"github.com/chazu/mech/value"
)

const historyFile = ".mech_history"

type console struct {
	loop *program.RunLoop
	dict *value.Dictionary
	cfg  *config.Config
	out  io.Writer
}

func newConsole(loop *program.RunLoop, dict *value.Dictionary, cfg *config.Config) *console {
	return &console{loop: loop, dict: dict, cfg: cfg, out: os.Stdout}
}

func (c *console) run() {
	fmt.Fprintf(c.out, "mech console (%s). Type 'help' for commands.\n", c.cfg.Runtime.Name)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, err := ln.Prompt("mech> ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(c.out)
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)
		if !c.exec(line) {
			return
		}
	}
}

// exec runs one console line. It reports false when the console should
// exit.
func (c *console) exec(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "quit", "exit":
		return false
	case "help":
		c.help()
		return true
	case "export":
		c.export(fields[1:])
		return true
	}
	msg, err := parseCommand(fields, c.dict)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return true
	}
	replies, err := c.loop.Call(msg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	printReplies(c.out, replies)
	return true
}

func (c *console) help() {
	fmt.Fprintln(c.out, "Commands (rows and columns are 1-based):")
	fmt.Fprintln(c.out, "  tables                      Print every table")
	fmt.Fprintln(c.out, "  print NAME                  Print one table")
	fmt.Fprintln(c.out, "  get NAME ROW COL            Print one cell")
	fmt.Fprintln(c.out, "  new NAME ROWS COLS          Create a table")
	fmt.Fprintln(c.out, "  set NAME ROW COL VALUE      Write a cell; COL may be a column name")
	fmt.Fprintln(c.out, "  alias NAME COL COLNAME      Name a column")
	fmt.Fprintln(c.out, "  remove NAME                 Drop a table")
	fmt.Fprintln(c.out, "  listen NAME                 Echo changes to a table")
	fmt.Fprintln(c.out, "  pause, resume, clear        Control the run loop")
	fmt.Fprintln(c.out, "  core, runtime               Print core or runtime state")
	fmt.Fprintln(c.out, "  export [PATH]               Write tables to a DuckDB file")
	fmt.Fprintln(c.out, "  quit, exit                  Leave the console")
}

func (c *console) export(args []string) {
	path := c.cfg.Resolve(c.cfg.Export.DuckDB)
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "Error: export needs a path")
		return
	}
	replies, err := c.loop.Call(program.Control(program.MsgSnapshot))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	var tables []*value.Table
	for _, m := range replies {
		if m.Kind == program.ClientTable {
			tables = append(tables, m.Table)
		}
	}
	if err := export.DuckDB(path, tables); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Exported %d tables to %s\n", len(tables), path)
}

// parseCommand turns console fields into a run loop message.
func parseCommand(fields []string, dict *value.Dictionary) (program.RunLoopMessage, error) {
	var none program.RunLoopMessage
	want := func(n int, usage string) error {
		if len(fields) != n {
			return fmt.Errorf("usage: %s", usage)
		}
		return nil
	}
	switch fields[0] {
	case "tables":
		return program.Control(program.MsgSnapshot), nil
	case "core":
		return program.Control(program.MsgPrintCore), nil
	case "runtime":
		return program.Control(program.MsgPrintRuntime), nil
	case "pause":
		return program.Control(program.MsgPause), nil
	case "resume":
		return program.Control(program.MsgResume), nil
	case "clear":
		return program.Control(program.MsgClear), nil
	case "print":
		if err := want(2, "print NAME"); err != nil {
			return none, err
		}
		return program.GetTableNamed(fields[1]), nil
	case "get":
		if err := want(4, "get NAME ROW COL"); err != nil {
			return none, err
		}
		row, err := position(fields[2])
		if err != nil {
			return none, err
		}
		col, err := position(fields[3])
		if err != nil {
			return none, err
		}
		return program.GetValue(dict.Intern(fields[1]), row, col), nil
	case "new":
		if err := want(4, "new NAME ROWS COLS"); err != nil {
			return none, err
		}
		rows, err1 := strconv.Atoi(fields[2])
		cols, err2 := strconv.Atoi(fields[3])
		if err := errors.Join(err1, err2); err != nil || rows < 0 || cols < 0 {
			return none, fmt.Errorf("new: bad size %s x %s", fields[2], fields[3])
		}
		return program.Transaction(store.Transaction{
			store.NewTableChange{Table: dict.Intern(fields[1]), Name: fields[1], Rows: rows, Cols: cols},
		}), nil
	case "set":
		if len(fields) < 5 {
			return none, fmt.Errorf("usage: set NAME ROW COL VALUE")
		}
		row, err := position(fields[2])
		if err != nil {
			return none, err
		}
		col := store.Alias(dict.Intern(fields[3]))
		if n, err := position(fields[3]); err == nil {
			col = store.At(n)
		}
		v := parseValue(strings.Join(fields[4:], " "))
		return program.Transaction(store.Transaction{
			store.Set(dict.Intern(fields[1]), store.At(row), col, v),
		}), nil
	case "alias":
		if err := want(4, "alias NAME COL COLNAME"); err != nil {
			return none, err
		}
		col, err := position(fields[2])
		if err != nil {
			return none, err
		}
		return program.Transaction(store.Transaction{
			store.ColumnAliasChange{Table: dict.Intern(fields[1]), Column: col, Alias: dict.Intern(fields[3]), Name: fields[3]},
		}), nil
	case "remove":
		if err := want(2, "remove NAME"); err != nil {
			return none, err
		}
		return program.Transaction(store.Transaction{store.RemoveTableChange{Table: dict.Intern(fields[1])}}), nil
	case "listen":
		if err := want(2, "listen NAME"); err != nil {
			return none, err
		}
		return program.Listening(store.Whole(store.Global(dict.Intern(fields[1])))), nil
	}
	return none, fmt.Errorf("unknown command %q (try 'help')", fields[0])
}

// position converts a 1-based console index to a 0-based one.
func position(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("index %d: indices start at 1", n)
	}
	return n - 1, nil
}

// parseValue reads a console literal: a boolean, a number, a quoted
// string, "_" for empty, or a bare word taken as a string.
func parseValue(s string) value.Value {
	switch s {
	case "true":
		return value.Bool(true)
	case "false":
		return value.Bool(false)
	case "_":
		return value.Empty
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Float(f)
	}
	if u, err := strconv.Unquote(s); err == nil {
		return value.String(u)
	}
	return value.String(s)
}

func printReplies(w io.Writer, replies []program.ClientMessage) {
	for _, m := range replies {
		switch m.Kind {
		case program.ClientDone, program.ClientStepDone, program.ClientReady:
		case program.ClientError:
			fmt.Fprintf(os.Stderr, "Error: %v\n", m.Err)
		case program.ClientTransaction:
			for _, ch := range m.Transaction {
				fmt.Fprintf(w, "  %v\n", ch)
			}
		default:
			fmt.Fprintln(w, m.String())
		}
	}
}

func printErrors(w io.Writer, replies []program.ClientMessage) {
	for _, m := range replies {
		if m.Kind == program.ClientError {
			fmt.Fprintf(w, "Error: %v\n", m.Err)
		}
	}
}

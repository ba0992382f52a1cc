// Mech CLI - runs a mech core behind its run loop
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/mech/config"
	"github.com/chazu/mech/core"
	"github.com/chazu/mech/export"
	"github.com/chazu/mech/persist"
	"github.com/chazu/mech/program"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output (info logging)")
	verbosity := flag.Int("verbosity", 0, "Log verbosity (-4 none .. 2 debug); overrides [log] verbosity")
	logPath := flag.String("log", "", "Log file (default: [log] path, or stderr)")
	configDir := flag.String("C", ".", "Directory to search upward for mech.toml")
	interactive := flag.Bool("i", false, "Start interactive console")
	persistPath := flag.String("persist", "", "Change log path; overrides [persist] path")
	backend := flag.String("backend", "", "Change log backend: log or sqlite")
	noReplay := flag.Bool("no-replay", false, "Do not replay the change log at startup")
	exportPath := flag.String("export", "", "Write a DuckDB snapshot of every table on exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mech [options] [change-logs...]\n\n")
		fmt.Fprintf(os.Stderr, "Starts a mech core, applies the given change logs and optionally\n")
		fmt.Fprintf(os.Stderr, "opens an interactive console.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mech -i                          # Start console\n")
		fmt.Fprintf(os.Stderr, "  mech -i -persist changes.log     # Console with a persistent change log\n")
		fmt.Fprintf(os.Stderr, "  mech old.log -export snap.duckdb # Replay a log and export the tables\n")
	}
	flag.Parse()

	cfg, err := config.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	applyFlags(cfg, flagOverrides{
		verbose:     *verbose,
		verbosity:   *verbosity,
		logPath:     *logPath,
		persistPath: *persistPath,
		backend:     *backend,
		noReplay:    *noReplay,
		exportPath:  *exportPath,
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if path := cfg.Resolve(cfg.Log.Path); path != "" {
		commonlog.Configure(cfg.Log.Verbosity, &path)
	} else {
		commonlog.Configure(cfg.Log.Verbosity, nil)
	}

	if err := run(cfg, flag.Args(), *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type flagOverrides struct {
	verbose     bool
	verbosity   int
	logPath     string
	persistPath string
	backend     string
	noReplay    bool
	exportPath  string
}

// applyFlags lets command-line flags override mech.toml.
func applyFlags(cfg *config.Config, f flagOverrides) {
	if f.verbose && cfg.Log.Verbosity < 1 {
		cfg.Log.Verbosity = 1
	}
	if f.verbosity != 0 {
		cfg.Log.Verbosity = f.verbosity
	}
	if f.logPath != "" {
		cfg.Log.Path = f.logPath
	}
	if f.persistPath != "" {
		cfg.Persist.Path = f.persistPath
	}
	if f.backend != "" {
		cfg.Persist.Backend = f.backend
	}
	if f.noReplay {
		cfg.Persist.Replay = false
	}
	if f.exportPath != "" {
		cfg.Export.DuckDB = f.exportPath
	}
}

func run(cfg *config.Config, logs []string, interactive bool) error {
	opts, err := cfg.CoreOptions()
	if err != nil {
		return err
	}
	c := core.New(nil, opts)
	p := program.New(cfg.Runtime.Name, c)

	if path := cfg.PersistPath(); path != "" {
		pr, err := persist.Open(cfg.Persist.Backend, path)
		if err != nil {
			return err
		}
		p.SetPersister(pr)
		if cfg.Persist.Replay {
			n, err := p.Replay()
			if err != nil {
				p.Close()
				return err
			}
			if n > 0 {
				fmt.Printf("Replayed %d transactions from %s\n", n, path)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := program.NewRunLoop(p)
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(ctx) }()

	for _, path := range logs {
		if err := applyLog(loop, path); err != nil {
			loop.Stop()
			<-errc
			return err
		}
	}

	if interactive {
		newConsole(loop, c.Dictionary(), cfg).run()
	} else {
		printReplies(os.Stdout, mustCall(loop, program.Control(program.MsgSnapshot)))
	}

	loop.Stop()
	if err := <-errc; err != nil {
		return err
	}

	if path := cfg.Resolve(cfg.Export.DuckDB); path != "" {
		if err := export.DuckDB(path, c.Database().Tables()); err != nil {
			return err
		}
		fmt.Printf("Exported %d tables to %s\n", c.Database().Len(), path)
	}
	return nil
}

// applyLog sends every transaction stored in a change log file to the loop.
func applyLog(loop *program.RunLoop, path string) error {
	txns, err := persist.LoadFile(path)
	if err != nil {
		return err
	}
	for _, txn := range txns {
		replies, err := loop.Call(program.Transaction(txn))
		if err != nil {
			return err
		}
		printErrors(os.Stderr, replies)
	}
	return nil
}

func mustCall(loop *program.RunLoop, msg program.RunLoopMessage) []program.ClientMessage {
	replies, err := loop.Call(msg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return replies
}

// tally CLI - evaluates an arithmetic expression file, or serves
// evaluation over RPC and LSP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/tally/compiler"
	"github.com/chazu/tally/config"
	"github.com/chazu/tally/history"
	"github.com/chazu/tally/pkg/bytecode"
	"github.com/chazu/tally/server"
	"github.com/chazu/tally/vm"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options holds the parsed command line.
type options struct {
	path   string
	remote string
	serve  bool
	lsp    bool
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, cfg, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if errors.Is(err, errUsage) {
		return exitUsage
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	var logPath *string
	if p := cfg.LogFile(); p != "" {
		logPath = &p
	}
	commonlog.Configure(cfg.Log.Verbosity, logPath)

	switch {
	case opts.lsp:
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(stderr, "LSP error: %v\n", err)
			return exitError
		}
		return exitOK

	case opts.serve:
		if err := serve(cfg); err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return exitError
		}
		return exitOK
	}

	source, err := readSource(opts.path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	var result bytecode.Value
	if opts.remote != "" {
		result, err = evaluateRemote(opts.remote, source)
	} else {
		result, err = evaluateLocal(source, cfg, stderr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	fmt.Fprintln(stdout, result)
	return exitOK
}

// parseArgs reads flags and merges them over the configuration file.
// Flags that were set explicitly win.
func parseArgs(args []string, stderr io.Writer) (*options, *config.Config, error) {
	fs := flag.NewFlagSet("tally", flag.ContinueOnError)
	fs.SetOutput(stderr)

	trace := fs.Bool("trace", false, "Print disassembly and the stack for every step (stderr)")
	configPath := fs.String("config", "", "Path to tally.toml (default: search upward from the working directory)")
	verbosity := fs.Int("v", 0, "Log verbosity")
	historyPath := fs.String("history", "", "Record evaluations in this SQLite database")
	remote := fs.String("remote", "", "Evaluate on a tally server at host:port")
	serveMode := fs.Bool("serve", false, "Start the evaluation server (gRPC + Connect HTTP/JSON)")
	port := fs.Int("port", config.DefaultPort, "Server port (used with -serve)")
	lspMode := fs.Bool("lsp", false, "Run the language server on stdio")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: tally [options] [path]\n\n")
		fmt.Fprintf(stderr, "Evaluates the arithmetic expression in path (default: run.entry from tally.toml).\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  tally sum.calc                  # Evaluate sum.calc\n")
		fmt.Fprintf(stderr, "  tally -trace sum.calc           # Evaluate with an instruction trace\n")
		fmt.Fprintf(stderr, "  tally -serve -port 8080         # Serve evaluation on :8080\n")
		fmt.Fprintf(stderr, "  tally -remote localhost:4567 x  # Evaluate x on a running server\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, err
		}
		return nil, nil, errUsage
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return nil, nil, errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return nil, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["trace"] {
		cfg.Run.Trace = *trace
	}
	if set["v"] {
		cfg.Log.Verbosity = *verbosity
	}
	if set["port"] {
		cfg.Server.Port = *port
	}
	if set["history"] {
		// Flag paths are relative to the working directory, not the config.
		abs, err := filepath.Abs(*historyPath)
		if err != nil {
			return nil, nil, err
		}
		cfg.History.Path = abs
	}

	opts := &options{
		path:   fs.Arg(0),
		remote: *remote,
		serve:  *serveMode,
		lsp:    *lspMode,
	}
	if opts.path == "" {
		opts.path = cfg.EntryPath()
	}
	if opts.path == "" && !opts.serve && !opts.lsp {
		fmt.Fprintf(stderr, "tally: no input file and no run.entry configured\n")
		fs.Usage()
		return nil, nil, errUsage
	}
	return opts, cfg, nil
}

// loadConfig reads an explicit tally.toml, or searches upward from the
// working directory. No file means defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return config.Default(), nil
	}
	return cfg, nil
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// evaluateLocal compiles and runs source in process, recording the
// outcome when a history database is configured.
func evaluateLocal(source string, cfg *config.Config, stderr io.Writer) (bytecode.Value, error) {
	result, err := evaluate(source, cfg.Run.Trace, stderr)

	if p := cfg.HistoryPath(); p != "" {
		if recErr := record(p, source, result, err); recErr != nil {
			fmt.Fprintf(stderr, "Warning: %v\n", recErr)
		}
	}
	return result, err
}

func evaluate(source string, trace bool, stderr io.Writer) (bytecode.Value, error) {
	chunk, err := compiler.Compile(compiler.WithSentinel(source))
	if err != nil {
		return bytecode.Value{}, err
	}

	var vmOpts []vm.Option
	if trace {
		fmt.Fprint(stderr, chunk.DisassembleWithName("expression"))
		fmt.Fprintln(stderr)
		vmOpts = append(vmOpts, vm.WithTracer(vm.NewWriterTracer(stderr)))
	}
	return vm.New(vmOpts...).Run(chunk)
}

func record(path, source string, result bytecode.Value, evalErr error) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	entry := history.Entry{Source: source}
	if evalErr != nil {
		entry.Error = evalErr.Error()
	} else {
		entry.Result = result.String()
	}
	_, err = store.Record(context.Background(), entry)
	return err
}

func evaluateRemote(addr, source string) (bytecode.Value, error) {
	client, err := server.Dial(addr)
	if err != nil {
		return bytecode.Value{}, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := client.Evaluate(ctx, source)
	if err != nil {
		return bytecode.Value{}, fmt.Errorf("remote %s: %w", addr, err)
	}
	return bytecode.NumberValue(n), nil
}

func serve(cfg *config.Config) error {
	var srvOpts []server.ServerOption
	if p := cfg.HistoryPath(); p != "" {
		store, err := history.Open(p)
		if err != nil {
			return err
		}
		defer store.Close()
		srvOpts = append(srvOpts, server.WithHistory(store))
	}
	if cfg.Run.Trace {
		srvOpts = append(srvOpts, server.WithVMOptions(
			vm.WithTracer(vm.NewLogTracer(commonlog.GetLogger("tally.trace"))),
		))
	}

	srv := server.New(srvOpts...)
	defer srv.Stop()
	return srv.ListenAndServe(cfg.Addr())
}

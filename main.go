// symevm runs bytecode for a 256-bit stack machine concretely or
// symbolically and explores its paths with Z3.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"slava0135/symevm/asm"
	"slava0135/symevm/config"
	"slava0135/symevm/constraints"
	"slava0135/symevm/corpus"
	"slava0135/symevm/graph"
	"slava0135/symevm/logs"
	"slava0135/symevm/machine"
	"slava0135/symevm/symexec"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "symevm:", err)
		os.Exit(1)
	}
}

// overrides copies a flag value from the parsed flags onto the loaded config.
var overrides = map[string]func(dst, src *config.Config){
	"code":           func(dst, src *config.Config) { dst.Code, dst.CodeFile, dst.AsmFile = src.Code, "", "" },
	"code-file":      func(dst, src *config.Config) { dst.Code, dst.CodeFile, dst.AsmFile = "", src.CodeFile, "" },
	"asm":            func(dst, src *config.Config) { dst.Code, dst.CodeFile, dst.AsmFile = "", "", src.AsmFile },
	"mode":           func(dst, src *config.Config) { dst.Mode = src.Mode },
	"calldata":       func(dst, src *config.Config) { dst.Calldata = src.Calldata },
	"calldata-size":  func(dst, src *config.Config) { dst.CalldataSize = src.CalldataSize },
	"strategy":       func(dst, src *config.Config) { dst.Strategy = src.Strategy },
	"max-runs":       func(dst, src *config.Config) { dst.MaxRuns = src.MaxRuns },
	"solver-timeout": func(dst, src *config.Config) { dst.SolverTimeout = src.SolverTimeout },
	"gas-limit":      func(dst, src *config.Config) { dst.GasLimit = src.GasLimit },
	"corpus":         func(dst, src *config.Config) { dst.Corpus = src.Corpus },
	"report":         func(dst, src *config.Config) { dst.Report = src.Report },
	"gen-tests":      func(dst, src *config.Config) { dst.GenTests = src.GenTests },
	"cfg":            func(dst, src *config.Config) { dst.CFG = src.CFG },
	"log-level":      func(dst, src *config.Config) { dst.LogLevel = src.LogLevel },
	"log-json":       func(dst, src *config.Config) { dst.LogJSON = src.LogJSON },
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("symevm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := config.Default()
	configPath := fs.String("config", "", "YAML or TOML config file, flags override it")
	disasm := fs.Bool("disasm", false, "print the disassembled program and exit")
	fs.StringVar(&flags.Code, "code", "", "program bytecode in hex")
	fs.StringVar(&flags.CodeFile, "code-file", "", "file with raw program bytecode")
	fs.StringVar(&flags.AsmFile, "asm", "", "file with program assembly")
	fs.StringVar(&flags.Mode, "mode", flags.Mode, "concrete, symbolic or explore")
	fs.StringVar(&flags.Calldata, "calldata", "", "calldata in hex, the seed in symbolic mode")
	fs.IntVar(&flags.CalldataSize, "calldata-size", flags.CalldataSize, "length of solved calldata")
	fs.StringVar(&flags.Strategy, "strategy", flags.Strategy, "explore order: dfs, bfs or random")
	fs.IntVar(&flags.MaxRuns, "max-runs", flags.MaxRuns, "explore run limit, 0 for none")
	fs.StringVar(&flags.SolverTimeout, "solver-timeout", flags.SolverTimeout, "limit for one solver check")
	fs.Uint64Var(&flags.GasLimit, "gas-limit", flags.GasLimit, "gas per run with the default costs, 0 disables accounting")
	fs.StringVar(&flags.Corpus, "corpus", "", "sqlite corpus for explored paths")
	fs.StringVar(&flags.Report, "report", "", "YAML report file for explored paths")
	fs.StringVar(&flags.GenTests, "gen-tests", "", "Go test file replaying explored paths")
	fs.StringVar(&flags.CFG, "cfg", "", "YAML file for the control flow graph")
	fs.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "debug, info, warn or error")
	fs.StringVar(&flags.LogJSON, "log-json", "", "also write JSON logs to this file")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: symevm [options]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  symevm -code 6002600301 -mode concrete\n")
		fmt.Fprintf(stderr, "  symevm -asm testdata/nested.asm -calldata-size 1 -report paths.yaml\n")
		fmt.Fprintf(stderr, "  symevm -config run.toml -strategy bfs\n")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply(cfg, flags)
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	code, err := cfg.Program()
	if err != nil {
		return err
	}
	if *disasm {
		text, err := asm.Disassemble(code)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, text)
		return nil
	}

	log, closeLog, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if cfg.CFG != "" {
		if err := writeFile(cfg.CFG, func(w io.Writer) error {
			data, err := graph.Build(code).YAML()
			if err != nil {
				return errors.Wrap(err, "encode cfg")
			}
			_, err = w.Write(data)
			return err
		}); err != nil {
			return err
		}
	}

	switch cfg.Mode {
	case config.ModeConcrete, config.ModeSymbolic:
		return runOnce(cfg, code, log, stdout)
	default:
		return explore(ctx, cfg, code, log, stdout)
	}
}

func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, func(), error) {
	level, err := logs.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	opts := logs.Options{Level: level}
	closeLog := func() {}
	if cfg.LogJSON != "" {
		f, err := os.Create(cfg.LogJSON)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open json log")
		}
		opts.JSON = f
		closeLog = func() { f.Close() }
	}
	return logs.New(stderr, opts), closeLog, nil
}

func costs(cfg *config.Config) machine.CostModel {
	if cfg.GasLimit == 0 {
		return nil
	}
	return machine.DefaultCosts
}

// runOnce runs the program a single time and prints the final stack; in
// symbolic mode also the predicates and a witness for them.
func runOnce(cfg *config.Config, code []byte, log *slog.Logger, stdout io.Writer) error {
	calldata, err := cfg.CalldataBytes()
	if err != nil {
		return err
	}
	symbolic := cfg.Mode == config.ModeSymbolic
	var stack machine.Stack = machine.NewConcreteStack()
	if symbolic {
		stack = machine.NewSymStack()
	}
	m := machine.New(code, stack, machine.Config{
		Symbolic: symbolic,
		Calldata: calldata,
		Costs:    costs(cfg),
		GasLimit: cfg.GasLimit,
		Logger:   log,
	})
	runErr := m.Run()

	fmt.Fprintf(stdout, "status: %s\n", symexec.Testcase{Err: runErr}.Status())
	fmt.Fprintf(stdout, "pc: %d\n", m.PC())
	if cfg.GasLimit > 0 {
		fmt.Fprintf(stdout, "gas: %d\n", m.GasUsed())
	}
	fmt.Fprintln(stdout, "stack:")
	vals := machine.Values(m.Stack())
	for i := len(vals) - 1; i >= 0; i-- {
		fmt.Fprintf(stdout, "  %s\n", vals[i])
	}
	if !symbolic {
		return nil
	}

	preds := m.TakePredicates()
	fmt.Fprintln(stdout, "predicates:")
	for _, p := range preds {
		fmt.Fprintf(stdout, "  %s\n", p)
	}
	witness, sat, err := constraints.Solve(preds, cfg.CalldataSize)
	if err != nil {
		return err
	}
	if sat {
		fmt.Fprintf(stdout, "witness: %s\n", hex.EncodeToString(witness))
	} else {
		fmt.Fprintln(stdout, "witness: unsat")
	}
	return nil
}

func explore(ctx context.Context, cfg *config.Config, code []byte, log *slog.Logger, stdout io.Writer) error {
	queue, err := symexec.NewQueue(cfg.Strategy)
	if err != nil {
		return err
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		return err
	}
	e := &symexec.Explorer{
		Code:          code,
		CalldataSize:  cfg.CalldataSize,
		Queue:         queue,
		MaxRuns:       cfg.MaxRuns,
		SolverTimeout: timeout,
		Costs:         costs(cfg),
		GasLimit:      cfg.GasLimit,
		Logger:        log,
	}
	visited := make(map[uint64]struct{})
	e.Tracer = func(pc uint64, _ machine.OpCode) { visited[pc] = struct{}{} }
	testcases, err := e.Explore(ctx)
	if errors.Is(err, context.Canceled) {
		log.Warn("exploration interrupted", "paths", len(testcases))
	} else if err != nil {
		return err
	}

	covered, total := graph.Build(code).Coverage(visited)
	log.Info("block coverage", "covered", covered, "blocks", total)

	for i, tc := range testcases {
		fmt.Fprintf(stdout, "%d: %s %s\n", i+1, hex.EncodeToString(tc.Calldata), tc.Status())
	}
	if cfg.Corpus != "" {
		if err := store(cfg.Corpus, code, testcases, log); err != nil {
			return err
		}
	}
	if cfg.Report != "" {
		if err := writeFile(cfg.Report, func(w io.Writer) error {
			return symexec.WriteReport(w, testcases)
		}); err != nil {
			return err
		}
	}
	if cfg.GenTests != "" {
		pkg, name := testNames(cfg.GenTests)
		if err := writeFile(cfg.GenTests, func(w io.Writer) error {
			return symexec.GenerateTests(w, pkg, name, code, testcases)
		}); err != nil {
			return err
		}
	}
	return nil
}

func store(path string, code []byte, testcases []symexec.Testcase, log *slog.Logger) error {
	s, err := corpus.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()
	program := corpus.ProgramID(code)
	added := 0
	for _, tc := range testcases {
		e := corpus.Entry{
			Program:  program,
			Key:      tc.PathKey(),
			Calldata: tc.Calldata,
			Branches: tc.Branches,
			Status:   tc.Status(),
		}
		for _, p := range tc.Predicates {
			e.Predicates = append(e.Predicates, p.String())
		}
		ok, err := s.Put(e)
		if err != nil {
			return err
		}
		if ok {
			added++
		}
	}
	log.Info("corpus updated", "path", path, "added", added, "paths", len(testcases))
	return nil
}

func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close output")
}

// testNames derives the package name from the directory of path and the
// test name prefix from its base name.
func testNames(path string) (pkg, name string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	pkg = identifier(filepath.Base(filepath.Dir(abs)))
	if pkg == "" {
		pkg = "main"
	}
	name = identifier(strings.TrimSuffix(strings.TrimSuffix(filepath.Base(path), ".go"), "_test"))
	if name == "" {
		name = "program"
	}
	return pkg, name
}

func identifier(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/InsulaLabs/funcs/internal/config"
	"github.com/InsulaLabs/funcs/internal/repl"
	"github.com/InsulaLabs/funcs/internal/serve"
	"github.com/InsulaLabs/funcs/pkg/interpreter"
	"github.com/InsulaLabs/funcs/pkg/parser"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fatih/color"
)

var (
	logger *slog.Logger

	errorColor  = color.New(color.FgHiRed)
	timingColor = color.New(color.FgHiYellow)
	infoColor   = color.New(color.FgHiGreen)
)

func init() {
	logger = newLogger(slog.LevelInfo)
}

func newLogger(level slog.Level) *slog.Logger {
	handler := log.NewWithOptions(os.Stderr, log.Options{
		Level:           log.Level(level),
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	return slog.New(handler)
}

func printGlobalUsage() {
	fmt.Fprintf(os.Stderr, "Usage: funcs <command> [arguments]\n")
	fmt.Fprintf(os.Stderr, "Run, check and explore funcs programs.\n\n")
	fmt.Fprintf(os.Stderr, "Available commands:\n")
	fmt.Fprintf(os.Stderr, "  run       Execute a program file.\n")
	fmt.Fprintf(os.Stderr, "  check     Parse a program file without running it.\n")
	fmt.Fprintf(os.Stderr, "  repl      Start an interactive session.\n")
	fmt.Fprintf(os.Stderr, "  serve     Serve interactive sessions over SSH.\n")
	fmt.Fprintf(os.Stderr, "  config    Write a default configuration file.\n")
	fmt.Fprintf(os.Stderr, "\nUse \"funcs <command> -h\" for more information about a specific command.\n")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorColor.Sprint("error:"), err)
	os.Exit(1)
}

// loadConfig returns the defaults when path is empty and resets the
// package logger to the configured level.
func loadConfig(path string) *config.Config {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			fail(fmt.Errorf("failed to load configuration %s: %w", path, err))
		}
		cfg = loaded
	}
	logger = newLogger(cfg.LogLevel())
	return cfg
}

func runProgram(args []string) {
	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := runCmd.String("config", "", "Path to configuration file.")
	timing := runCmd.Bool("time", false, "Print parse and execution time to stderr.")
	runCmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: funcs run [flags] <file>\n")
		fmt.Fprintf(os.Stderr, "Executes a program file.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		runCmd.PrintDefaults()
	}
	runCmd.Parse(args)

	if runCmd.NArg() != 1 {
		runCmd.Usage()
		os.Exit(1)
	}
	path := runCmd.Arg(0)
	cfg := loadConfig(*configPath)

	start := time.Now()
	program, err := parser.ParseFile(path)
	if err != nil {
		fail(err)
	}
	parsed := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	interp := interpreter.New(interpreter.Config{
		Logger:   logger,
		MaxDepth: cfg.Interpreter.MaxDepth,
		Trace:    cfg.Interpreter.Trace,
	})
	logger.Debug("Executing program", "path", path, "statements", len(program), "session", interp.SessionID())

	err = interp.Execute(ctx, program)
	if *timing {
		timingColor.Fprintf(os.Stderr, "parse: %s, execute: %s\n", parsed.Sub(start), time.Since(parsed))
	}
	if err != nil {
		fail(err)
	}
}

func checkProgram(args []string) {
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	checkCmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: funcs check <file>\n")
		fmt.Fprintf(os.Stderr, "Parses a program file and reports its top-level invocations.\n")
	}
	checkCmd.Parse(args)

	if checkCmd.NArg() != 1 {
		checkCmd.Usage()
		os.Exit(1)
	}
	path := checkCmd.Arg(0)

	program, err := parser.ParseFile(path)
	if err != nil {
		fail(err)
	}
	infoColor.Printf("%s: ok, %d top-level invocations\n", path, len(program))
}

func startRepl(args []string) {
	replCmd := flag.NewFlagSet("repl", flag.ExitOnError)
	configPath := replCmd.String("config", "", "Path to configuration file.")
	replCmd.Parse(args)

	cfg := loadConfig(*configPath)

	model := repl.New(context.Background(), repl.SessionConfig{
		// The terminal belongs to the TUI.
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		UserID:      os.Getenv("USER"),
		Prompt:      cfg.Repl.Prompt,
		HistorySize: cfg.Repl.HistorySize,
		MaxDepth:    cfg.Interpreter.MaxDepth,
		Trace:       cfg.Interpreter.Trace,
	})

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fail(err)
	}
}

func startServer(args []string) {
	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := serveCmd.String("config", "", "Path to configuration file.")
	addr := serveCmd.String("addr", "", "Address to listen on. Overrides serve.address.")
	serveCmd.Parse(args)

	cfg := loadConfig(*configPath)
	if *addr != "" {
		cfg.Serve.Address = *addr
	}

	srv, err := serve.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server has shutdown.")
}

func generateConfig(args []string) {
	configCmd := flag.NewFlagSet("config", flag.ExitOnError)
	out := configCmd.String("out", "funcs.yaml", "Where to write the configuration.")
	configCmd.Parse(args)

	if _, err := os.Stat(*out); err == nil {
		fail(fmt.Errorf("%s already exists", *out))
	}
	if _, err := config.GenerateConfig(*out); err != nil {
		fail(err)
	}
	infoColor.Printf("wrote %s\n", *out)
}

func main() {
	if len(os.Args) < 2 {
		printGlobalUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runProgram(os.Args[2:])
	case "check":
		checkProgram(os.Args[2:])
	case "repl":
		startRepl(os.Args[2:])
	case "serve":
		startServer(os.Args[2:])
	case "config":
		generateConfig(os.Args[2:])
	case "-h", "--help", "help":
		printGlobalUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown command \"%s\"\n", os.Args[1])
		printGlobalUsage()
		os.Exit(1)
	}
}

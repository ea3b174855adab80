package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hpungsan/recap/internal/config"
	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/gateway"
	"github.com/hpungsan/recap/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"summarize": true, "history": true, "show": true, "delete": true,
	"stats": true, "instructions": true, "instruction": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	args := argsWithoutDebug()
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	args := argsWithoutDebug()
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isDebug reports whether the global --debug flag or RECAP_DEBUG is set.
func isDebug() bool {
	if os.Getenv("RECAP_DEBUG") != "" {
		return true
	}
	return len(argsWithoutDebug()) != len(os.Args)
}

// argsWithoutDebug returns os.Args with the global --debug flag removed.
func argsWithoutDebug() []string {
	args := make([]string, 0, len(os.Args))
	for i, arg := range os.Args {
		if i > 0 && arg == "--debug" {
			continue
		}
		args = append(args, arg)
	}
	return args
}

// newLogger builds the process logger. Logs go to stderr so stdout stays
// clean for JSON output and the MCP stdio transport.
func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___  ___ ___ __ _ _ __
  | '__/ _ \ __/ _' | '_ \
  | | |  __/ (_| (_| | |_) |
  |_|  \___|\___\__,_| .__/
                     |_|
  Chat thread summarizer

  Usage: recap <command> [options]
         recap --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(argsWithoutDebug()) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before store init (no store needed)
	if isHelpOrVersion() {
		cliApp := newCLIApp(nil)
		if err := cliApp.Run(argsWithoutDebug()); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger, err := newLogger(isDebug())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".recap")
	config.LoadEnv(baseDir)

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// The store opens lazily so an unusable data directory is reported per
	// request instead of preventing startup.
	store := db.NewHandle(baseDir, cfg, logger)
	defer store.Close()

	gen := gateway.NewGenAI(cfg.APIKey(), cfg.Model, logger)

	// CLI mode: known subcommand
	if isCLIMode() {
		cliApp := newCLIApp(&app{store: store, gen: gen, cfg: cfg, logger: logger})
		if err := cliApp.Run(argsWithoutDebug()); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			store.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if args := argsWithoutDebug(); len(args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", args[1])
		fmt.Fprintf(os.Stderr, "Run 'recap --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(store, gen, cfg, logger, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		store.Close()
		os.Exit(1)
	}
}

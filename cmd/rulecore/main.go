// Rulecore runs a deck-building battle defined in Lua content.
// Usage: rulecore [--version] [--plain] [--script <file>] [--trace] [--config <file>] [content_dir]
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/nathoo/rulecore/cli"
	"github.com/nathoo/rulecore/config"
	"github.com/nathoo/rulecore/engine"
	"github.com/nathoo/rulecore/loader"
	"github.com/nathoo/rulecore/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = "Usage: rulecore [--version] [--plain] [--script <file>] [--trace] [--config <file>] [content_dir]\n"

func main() {
	plain := false
	trace := false
	var contentDir, scriptFile, configFile string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("rulecore %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			plain = true
		case "--trace":
			trace = true
		case "--script", "--config":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a file path\n", args[i])
				os.Exit(1)
			}
			if args[i] == "--script" {
				scriptFile = args[i+1]
			} else {
				configFile = args[i+1]
			}
			i++
		default:
			if contentDir == "" {
				contentDir = args[i]
			}
		}
	}

	if configFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configFile = filepath.Join(home, ".rulecore", "config.yaml")
		}
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if contentDir != "" {
		cfg.ContentDir = contentDir
	}
	plain = plain || cfg.Plain
	trace = trace || cfg.Trace

	if cfg.ContentDir == "" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	// Load and compile Lua battle content.
	defs, err := loader.Load(cfg.ContentDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading game: %v\n", err)
		os.Exit(1)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
		logger.Info("picked seed", "seed", seed)
	}
	opts := engine.Options{Seed: seed, Logger: logger, MaxDepth: cfg.MaxDepth}

	title := fmt.Sprintf("%s v%s by %s\n\n", defs.Game.Title, defs.Game.Version, defs.Game.Author)

	// Script mode: open file, force plain, echo commands.
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		c, err := cli.New(defs, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error starting battle: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(title)
		c.In = f
		c.EchoInput = true
		c.Trace = trace
		c.SaveDir = cfg.SaveDir
		c.Run()
		return
	}

	// Use plain CLI if --plain flag or stdout is not a terminal.
	if plain || !isatty.IsTerminal(os.Stdout.Fd()) {
		c, err := cli.New(defs, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error starting battle: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(title)
		c.Trace = trace
		c.SaveDir = cfg.SaveDir
		c.Run()
		return
	}

	if err := tui.Run(defs, opts, cfg.SaveDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds a text logger at the configured level. Logs go to
// LogFile when set, otherwise to stderr; the TUI owns the screen, so stderr
// output only shows up after it exits.
func newLogger(cfg config.Config) (*slog.Logger, func(), error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closeFn = func() { f.Close() }
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeFn, nil
}

// Command idlewatch watches for user inactivity and reports idle/active
// transitions, optionally while wrapping an interactive command.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/Veraticus/idlewatch/pkg/config"
	"github.com/Veraticus/idlewatch/pkg/log"
)

// cliOptions holds the parsed command line.
type cliOptions struct {
	configPath string
	threshold  time.Duration
	poll       time.Duration
	source     string
	quiet      bool
	verbose    bool
	json       bool
	help       bool

	command string
	args    []string

	flags *flag.FlagSet
}

// parseArgs parses idlewatch's own flags. Parsing stops at "--" or at the
// first non-flag argument; the rest is the command to wrap.
func parseArgs(argv []string) (*cliOptions, error) {
	opts := &cliOptions{}
	fs := flag.NewFlagSet("idlewatch", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)

	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.DurationVar(&opts.threshold, "threshold", 0, "Inactivity before the user counts as idle")
	fs.DurationVar(&opts.poll, "poll", 0, "How often to evaluate idleness")
	fs.StringVar(&opts.source, "source", "", "Activity source: auto, none, tmux, ioreg, dbus")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "Disable all notifications")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")
	fs.BoolVar(&opts.json, "json", false, "Log as JSON")
	fs.BoolVarP(&opts.help, "help", "h", false, "Show help message")

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}
	opts.flags = fs

	if rest := fs.Args(); len(rest) > 0 {
		opts.command = rest[0]
		opts.args = rest[1:]
	}
	return opts, nil
}

// apply overrides cfg with every flag given on the command line and
// re-validates it.
func (o *cliOptions) apply(cfg *config.Config) error {
	if o.flags.Changed("threshold") {
		cfg.Threshold = o.threshold
	}
	if o.flags.Changed("poll") {
		cfg.PollInterval = o.poll
	}
	if o.flags.Changed("source") {
		cfg.Source = o.source
	}
	if o.quiet {
		cfg.Quiet = true
	}
	if o.verbose {
		cfg.Log.Verbose = true
	}
	if o.json {
		cfg.Log.JSON = true
	}
	return cfg.Validate()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	opts, err := parseArgs(argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage(os.Stderr)
		return 2
	}
	if opts.help {
		printUsage(os.Stdout)
		return 0
	}

	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}
	if err := opts.apply(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		return 1
	}

	logger, err := log.Init(log.Options{
		Verbose:     cfg.Log.Verbose,
		JSONFormat:  cfg.Log.JSON,
		Interactive: opts.command != "",
		File:        cfg.Log.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		return 1
	}
	defer log.Close()

	deps, err := NewDependencies(cfg, DependencyOptions{Command: opts.command, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating dependencies: %v\n", err)
		return 1
	}
	defer deps.Close()

	app := NewApplication(deps)

	// Ensure terminal restoration on panic
	defer func() {
		if r := recover(); r != nil {
			_ = app.Stop()
			panic(r)
		}
	}()

	// A wrapped command receives forwarded signals and decides when to
	// exit; standalone runs stop on the first SIGINT or SIGTERM.
	ctx := context.Background()
	if opts.command == "" {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	if err := app.Run(ctx, opts.command, opts.args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if !cfg.Quiet {
		_ = app.WriteSummary(os.Stderr)
	}

	return app.ExitCode()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "idlewatch - report when you go idle and come back")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: idlewatch [OPTIONS] [--] [COMMAND [ARGS...]]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Without COMMAND, idlewatch runs until interrupted. With COMMAND, it runs")
	fmt.Fprintln(w, "the command in a pseudo-terminal, counts keystrokes as activity and exits")
	fmt.Fprintln(w, "with the command's exit code.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	defaults, _ := parseArgs(nil)
	fmt.Fprint(w, defaults.flags.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  IDLEWATCH_THRESHOLD       Idle threshold (default: 5m)")
	fmt.Fprintln(w, "  IDLEWATCH_POLL_INTERVAL   Evaluation interval (default: 5s)")
	fmt.Fprintln(w, "  IDLEWATCH_SOURCE          Activity source (default: auto)")
	fmt.Fprintln(w, "  IDLEWATCH_TOPIC           Ntfy topic for notifications")
	fmt.Fprintln(w, "  IDLEWATCH_SERVER          Ntfy server URL (default: https://ntfy.sh)")
	fmt.Fprintln(w, "  IDLEWATCH_NOTIFY_ON       idle, active or both (default: idle)")
	fmt.Fprintln(w, "  IDLEWATCH_QUIET           Disable notifications (true/false)")
	fmt.Fprintln(w, "  IDLEWATCH_STARTUP         Send a startup notification (true/false)")
	fmt.Fprintln(w, "  IDLEWATCH_CONFIG          Path to config file")
	fmt.Fprintln(w, "  IDLEWATCH_DEBUG=1         Verbose logging")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration file: ~/.config/idlewatch/config.yaml")
}

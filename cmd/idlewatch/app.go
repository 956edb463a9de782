package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/term"

	"github.com/Veraticus/idlewatch/pkg/clock"
	"github.com/Veraticus/idlewatch/pkg/config"
	"github.com/Veraticus/idlewatch/pkg/idle"
	"github.com/Veraticus/idlewatch/pkg/interfaces"
	"github.com/Veraticus/idlewatch/pkg/notification"
	"github.com/Veraticus/idlewatch/pkg/process"
	"github.com/Veraticus/idlewatch/pkg/session"
	"github.com/Veraticus/idlewatch/pkg/status"
)

// statusRefresh is how often the status line is redrawn.
const statusRefresh = 2 * time.Second

// DependencyOptions overrides the defaults NewDependencies would pick.
type DependencyOptions struct {
	// Command is the wrapped command, empty when running standalone.
	Command string
	Logger  *slog.Logger
	Clock   clock.Clock
	// Notifier replaces the ntfy or stdout notifier.
	Notifier notification.Notifier
	// Stderr receives the status line and the session summary.
	Stderr io.Writer
}

// Dependencies holds all the dependencies for the application
type Dependencies struct {
	Config              *config.Config
	Logger              *slog.Logger
	Clock               clock.Clock
	Source              interfaces.ActivitySource
	Monitor             *idle.Monitor
	Notifier            notification.Notifier
	RateLimiter         interfaces.RateLimiter
	NotificationManager *notification.Manager
	Transitions         *notification.TransitionNotifier
	StatusIndicator     *status.Indicator
	StatusReporter      *status.Reporter
	Tally               *session.Tally
	ProcessManager      *process.Manager
	Stderr              io.Writer

	stopChan   chan struct{}
	unregister []func()
}

// NewDependencies creates all dependencies with the given configuration
func NewDependencies(cfg *config.Config, opts DependencyOptions) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   opts.Logger,
		Clock:    opts.Clock,
		Stderr:   opts.Stderr,
		stopChan: make(chan struct{}),
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}

	source, err := idle.NewSource(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("creating activity source: %w", err)
	}
	deps.Source = source
	if source != nil {
		deps.Logger.Debug("using activity source", "source", fmt.Sprint(source))
	}

	deps.Monitor, err = idle.New(cfg.Threshold, cfg.PollInterval,
		idle.WithClock(deps.Clock),
		idle.WithActivitySource(source),
		idle.WithLogger(deps.Logger),
	)
	if err != nil {
		deps.closeSource()
		return nil, err
	}

	// The status line is drawn only on a real terminal.
	statusEnabled := cfg.StatusLine && isTerminal(deps.Stderr)
	deps.StatusIndicator = status.NewIndicator(deps.Stderr, statusEnabled, status.WithNow(deps.Clock.Now))
	deps.StatusReporter = status.NewReporter(deps.StatusIndicator)
	deps.StatusIndicator.StartAutoRefresh(statusRefresh, deps.stopChan)
	deps.unregister = append(deps.unregister, deps.Monitor.OnTransition(deps.StatusIndicator.Observe))

	deps.Notifier = opts.Notifier
	if deps.Notifier == nil {
		deps.Notifier = defaultNotifier(cfg, opts.Command)
	}
	if deps.Notifier != nil && !cfg.Quiet {
		deps.RateLimiter = notification.NewRateLimiter(cfg.RateLimit)
		deps.NotificationManager = notification.NewManager(cfg, deps.Notifier, deps.RateLimiter,
			notification.WithStatusReporter(deps.StatusReporter),
			notification.WithManagerLogger(deps.Logger),
		)
		deps.Transitions = notification.NewTransitionNotifier(deps.NotificationManager, deps.Monitor, cfg.NotifyOn, cfg.Threshold,
			notification.WithTransitionClock(deps.Clock.Now),
		)
		deps.unregister = append(deps.unregister, deps.Monitor.OnTransition(deps.Transitions.Observe))
	}

	deps.Tally = session.New(deps.Clock, deps.Monitor)
	deps.unregister = append(deps.unregister, deps.Monitor.OnTransition(deps.Tally.Observe))

	if opts.Command != "" {
		// A full-screen program wipes the status line; put it back.
		clears := status.NewClearDetector(deps.StatusIndicator.RequestRedraw)
		deps.ProcessManager = process.NewManager(deps.Monitor,
			process.WithLogger(deps.Logger),
			process.WithOutputObserver(clears.Observe),
		)
	}

	return deps, nil
}

// defaultNotifier picks ntfy when a topic is configured. Without a topic,
// standalone runs print notifications; a wrapped command owns stdout, so it
// gets none.
func defaultNotifier(cfg *config.Config, command string) notification.Notifier {
	switch {
	case cfg.Quiet:
		return nil
	case cfg.NtfyTopic != "":
		var label func() string
		if command != "" {
			name := filepath.Base(command)
			label = func() string { return name }
		}
		return notification.NewContextNotifier(notification.NewNtfyClient(cfg.NtfyServer, cfg.NtfyTopic), label)
	case command == "":
		return notification.NewStdoutNotifier()
	default:
		return nil
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (d *Dependencies) closeSource() {
	if c, ok := d.Source.(io.Closer); ok {
		_ = c.Close()
	}
}

// Close cleans up all dependencies. It is safe to call more than once.
func (d *Dependencies) Close() {
	if d.Monitor != nil {
		d.Monitor.Stop()
	}
	for _, unregister := range d.unregister {
		unregister()
	}
	d.unregister = nil

	if d.stopChan != nil {
		close(d.stopChan)
		d.stopChan = nil
	}

	if d.StatusIndicator != nil {
		_ = d.StatusIndicator.Clear()
	}

	if d.Transitions != nil {
		d.Transitions.Wait()
	}
	if d.NotificationManager != nil {
		_ = d.NotificationManager.Close()
	}

	d.closeSource()
}

// Application represents the main application
type Application struct {
	deps *Dependencies
}

// NewApplication creates a new application with the given dependencies
func NewApplication(deps *Dependencies) *Application {
	return &Application{
		deps: deps,
	}
}

// Run starts the monitor and blocks until ctx is done or, when a command is
// given, until the command exits. The monitor is stopped before Run returns.
func (a *Application) Run(ctx context.Context, command string, args []string) error {
	cfg := a.deps.Config

	if command != "" && a.deps.ProcessManager == nil {
		return errors.New("no process manager for wrapped command")
	}

	if cfg.StartupNotify && a.deps.NotificationManager != nil {
		pwd, _ := os.Getwd()
		_ = a.deps.NotificationManager.Send(notification.Notification{
			Title:   "idlewatch: watching",
			Message: fmt.Sprintf("Idle after %s in %s", cfg.Threshold, pwd),
			Time:    a.deps.Clock.Now(),
			Event:   notification.EventStartup,
		})
	}

	if err := a.deps.Monitor.Start(); err != nil {
		return err
	}
	a.deps.Tally.Begin(a.deps.Monitor.IsIdle())
	defer func() {
		a.deps.Monitor.Stop()
		a.deps.Tally.End()
	}()

	a.deps.Logger.Info("monitoring activity",
		"threshold", cfg.Threshold, "poll_interval", cfg.PollInterval, "command", command)

	if command == "" {
		<-ctx.Done()
		return nil
	}

	if err := a.deps.ProcessManager.Start(command, args); err != nil {
		return err
	}
	return a.deps.ProcessManager.Wait()
}

// Stop asks a wrapped command to exit. Standalone runs stop through the
// context passed to Run.
func (a *Application) Stop() error {
	if a.deps.ProcessManager == nil {
		return nil
	}
	return a.deps.ProcessManager.Stop()
}

// ExitCode returns the exit code of the wrapped process
func (a *Application) ExitCode() int {
	if a.deps.ProcessManager == nil {
		return 0
	}
	return a.deps.ProcessManager.ExitCode()
}

// WriteSummary prints the active/idle tally for the run.
func (a *Application) WriteSummary(w io.Writer) error {
	if len(a.deps.Tally.Days()) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "idlewatch session:"); err != nil {
		return err
	}
	return a.deps.Tally.Write(w)
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/tracksync/internal/collect"
	"github.com/imamik/tracksync/internal/config"
	"github.com/imamik/tracksync/internal/liveness"
	"github.com/imamik/tracksync/internal/logging"
	"github.com/imamik/tracksync/internal/provider"
	"github.com/imamik/tracksync/internal/reconcile"
	"github.com/imamik/tracksync/internal/syncer"
	"github.com/imamik/tracksync/internal/tracker"
)

// LogOptions are the global logging flags.
type LogOptions struct {
	Level  string
	Format string
}

// SyncOptions are the flags of the sync command.
type SyncOptions struct {
	TrackerURL      string
	ProviderKeys    []string
	MarkUsable      *bool
	ConfigPath      string
	CredentialsPath string
	DryRun          bool
	PushGateway     string
	Log             LogOptions
	Out             io.Writer
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// newLogger builds the run logger.
	newLogger = func(opts LogOptions) (logr.Logger, error) {
		return logging.New(logging.Options{Level: opts.Level, Format: opts.Format})
	}

	// loadRegistry loads the provider registry.
	loadRegistry = config.LoadRegistry

	// loadCredentials loads provider credentials.
	loadCredentials = config.LoadCredentials

	// loadTimeouts reads timeouts from the environment.
	loadTimeouts = config.LoadTimeouts

	// newSource creates the template source for the registry.
	newSource = func(reg *config.Registry, creds config.Credentials) collect.Source {
		return provider.NewPool(reg, creds, nil)
	}

	// newChecker creates the liveness checker.
	newChecker = func(t *config.Timeouts, log logr.Logger) liveness.Checker {
		return liveness.NewProber(t.Ping, log)
	}

	// newTracker creates the tracker client.
	newTracker = func(url string, t *config.Timeouts) (reconcile.Tracker, error) {
		return tracker.NewClient(url,
			tracker.WithTimeout(t.Tracker),
			tracker.WithRetry(t.RetryMaxAttempts, t.RetryInitialDelay),
		)
	}

	// isTerminal reports whether w is an interactive terminal.
	isTerminal = func(w io.Writer) bool {
		f, ok := w.(*os.File)
		return ok && isInteractiveTTY(f)
	}
)

// ErrNoTrackerURL is returned when neither flag nor environment name a tracker.
var ErrNoTrackerURL = errors.New("tracker URL is required (use --tracker-url or set TRACKERBOT_URL)")

// Sync runs one synchronization and prints its summary.
func Sync(ctx context.Context, opts SyncOptions) error {
	if opts.TrackerURL == "" {
		return ErrNoTrackerURL
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	log, err := newLogger(opts.Log)
	if err != nil {
		return err
	}

	reg, err := loadRegistry(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	creds, err := loadCredentials(opts.CredentialsPath)
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	timeouts := loadTimeouts()
	trackerClient, err := newTracker(opts.TrackerURL, timeouts)
	if err != nil {
		return err
	}

	s := syncer.New(syncer.Config{
		Registry: reg,
		Source:   newSource(reg, creds),
		Checker:  newChecker(timeouts, log),
		Tracker:  trackerClient,
		Timeouts: timeouts,
		Logger:   log,
	})

	report, err := s.Run(ctx, syncer.Options{
		ProviderKeys: opts.ProviderKeys,
		MarkUsable:   opts.MarkUsable,
		DryRun:       opts.DryRun,
		PushGateway:  opts.PushGateway,
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprint(opts.Out, renderSyncSummary(report, newStyles(isTerminal(opts.Out))))
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

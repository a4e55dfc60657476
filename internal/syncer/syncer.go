// Package syncer runs one synchronization: enumerate providers, drop the
// unreachable ones, collect their templates, classify them and reconcile
// the tracker.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/tracksync/internal/classify"
	"github.com/imamik/tracksync/internal/collect"
	"github.com/imamik/tracksync/internal/config"
	"github.com/imamik/tracksync/internal/liveness"
	"github.com/imamik/tracksync/internal/metrics"
	"github.com/imamik/tracksync/internal/reconcile"
)

// Config wires a Syncer.
type Config struct {
	Registry *config.Registry
	Source   collect.Source
	Checker  liveness.Checker
	Tracker  reconcile.Tracker
	Metrics  *metrics.Metrics
	Timeouts *config.Timeouts
	Logger   logr.Logger
}

// Options select what a run does.
type Options struct {
	// ProviderKeys restricts the run; empty means every registry key.
	ProviderKeys []string
	// MarkUsable is sent with new associations when set.
	MarkUsable *bool
	DryRun     bool
	// PushGateway receives the run metrics when set.
	PushGateway string
}

// RunReport summarizes a run.
type RunReport struct {
	Queried      []string
	Dead         []string
	Collection   collect.Result
	Classified   []classify.Classified
	Skipped      []classify.Skipped
	Reconcile    *reconcile.Report
	StartedAt    time.Time
	Duration     time.Duration
	PushFailed   bool
	Unresponsive []string
}

// Syncer runs synchronizations.
type Syncer struct {
	cfg Config
	log logr.Logger
}

// New creates a Syncer. Missing metrics and timeouts get defaults.
func New(cfg Config) *Syncer {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Timeouts == nil {
		cfg.Timeouts = config.LoadTimeouts()
	}
	if cfg.Checker == nil {
		cfg.Checker = liveness.NewProber(cfg.Timeouts.Ping, cfg.Logger)
	}
	return &Syncer{cfg: cfg, log: cfg.Logger}
}

// Metrics returns the run metrics.
func (s *Syncer) Metrics() *metrics.Metrics {
	return s.cfg.Metrics
}

// Run performs one synchronization. Only failures that prevent the run as a
// whole are returned; per-provider and per-template problems are logged and
// reported.
func (s *Syncer) Run(ctx context.Context, opts Options) (*RunReport, error) {
	report := &RunReport{StartedAt: time.Now()}

	keys, err := s.cfg.Registry.Select(opts.ProviderKeys)
	if err != nil {
		return report, err
	}
	report.Queried = keys
	s.log.Info("starting sync", "providers", len(keys), "dryRun", opts.DryRun)

	targets := make([]liveness.Target, 0, len(keys))
	for _, key := range keys {
		p, _ := s.cfg.Registry.Get(key)
		targets = append(targets, liveness.Target{Key: key, Address: p.Address()})
	}
	live, dead := liveness.Filter(ctx, s.cfg.Checker, targets, s.log)
	report.Dead = dead

	report.Collection = collect.Run(ctx, live, s.cfg.Source, collect.Options{
		Timeout: s.cfg.Timeouts.Collect,
		Logger:  s.log,
	})

	unresponsive := make(map[string]struct{}, len(dead)+len(report.Collection.Unresponsive))
	for _, key := range dead {
		unresponsive[key] = struct{}{}
	}
	for key := range report.Collection.Unresponsive {
		unresponsive[key] = struct{}{}
	}
	for _, key := range keys {
		if _, ok := unresponsive[key]; ok {
			report.Unresponsive = append(report.Unresponsive, key)
		}
	}

	report.Classified, report.Skipped = classify.Classify(report.Collection.Observed, s.log)

	rec := reconcile.New(s.cfg.Tracker, reconcile.Options{
		Usable: opts.MarkUsable,
		DryRun: opts.DryRun,
		Logger: s.log,
	})
	report.Reconcile, err = rec.Run(ctx, reconcile.Input{
		Classified:   report.Classified,
		Observed:     report.Collection.Observed,
		Queried:      keys,
		Unresponsive: unresponsive,
	})
	report.Duration = time.Since(report.StartedAt)

	s.record(report, unresponsive)
	if opts.PushGateway != "" {
		if perr := s.cfg.Metrics.Push(ctx, opts.PushGateway, metrics.DefaultJob); perr != nil {
			s.log.Error(perr, "failed to push metrics")
			report.PushFailed = true
		}
	}

	if err != nil {
		return report, fmt.Errorf("reconciliation failed: %w", err)
	}
	s.log.Info("sync finished",
		"added", report.Reconcile.Added,
		"pruned", report.Reconcile.Pruned,
		"templatesDeleted", report.Reconcile.TemplatesDeleted,
		"unresponsive", len(report.Unresponsive),
		"failures", report.Reconcile.Failures(),
		"duration", report.Duration.Round(time.Millisecond).String())
	return report, nil
}

func (s *Syncer) record(report *RunReport, unresponsive map[string]struct{}) {
	m := s.cfg.Metrics

	for _, key := range report.Queried {
		_, down := unresponsive[key]
		m.SetProviderUp(key, !down)
	}
	for _, out := range report.Collection.Outcomes {
		m.ObserveCollect(out.Key, out.Duration)
	}
	m.SetTemplatesObserved(len(report.Collection.Observed))

	if r := report.Reconcile; r != nil && !r.DryRun {
		m.AddTrackerOperations("add", metrics.ResultSuccess, r.Added)
		m.AddTrackerOperations("add", metrics.ResultSkipped, r.AlreadyTracked+r.Invalid)
		m.AddTrackerOperations("add", metrics.ResultFailure, r.AddFailures)
		m.AddTrackerOperations("prune", metrics.ResultSuccess, r.Pruned)
		m.AddTrackerOperations("prune", metrics.ResultSkipped, r.SkippedUnknown+r.KeptUnresponsive)
		m.AddTrackerOperations("prune", metrics.ResultFailure, r.PruneFailures)
		m.AddTrackerOperations("delete_template", metrics.ResultSuccess, r.TemplatesDeleted)
		m.AddTrackerOperations("delete_template", metrics.ResultFailure, r.TemplateDeleteFailures)
	}
	m.MarkRun(time.Now())
}

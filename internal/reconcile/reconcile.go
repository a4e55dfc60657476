// Package reconcile brings the tracker in line with what the providers
// reported during a run.
//
// Reconciliation runs three passes in order:
//
//  1. Add: associate every classified template with each provider that
//     reported it, unless the association already exists.
//  2. Prune associations: delete associations of queried, responsive
//     providers that no longer report the template.
//  3. Prune templates: delete templates left without any provider.
//
// Every pass is idempotent. Tracker errors for single operations are logged
// and counted; only failing to list the tracker's state aborts the run.
package reconcile

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-logr/logr"

	"github.com/imamik/tracksync/internal/classify"
	"github.com/imamik/tracksync/internal/tracker"
)

// Tracker is the subset of the tracker client used here.
type Tracker interface {
	ListProviderTemplates(ctx context.Context) ([]tracker.ProviderTemplateRecord, error)
	ListTemplates(ctx context.Context) ([]tracker.TemplateRecord, error)
	MarkProviderTemplate(ctx context.Context, provider tracker.Provider, template tracker.Template, opts tracker.MarkOpts) error
	DeleteProviderTemplate(ctx context.Context, providerKey, templateName string) error
	DeleteTemplate(ctx context.Context, name string) error
}

// Input is the outcome of collection and classification.
type Input struct {
	// Classified templates are the only ones added.
	Classified []classify.Classified
	// Observed is every template name each provider reported, including
	// skipped ones.
	Observed map[string][]string
	// Queried are the provider keys this run was responsible for.
	Queried []string
	// Unresponsive providers failed liveness or collection.
	Unresponsive map[string]struct{}
}

// Options configure a reconciliation.
type Options struct {
	// Usable is sent with new associations when set.
	Usable *bool
	// DryRun logs planned operations without writing to the tracker.
	DryRun bool
	Logger logr.Logger
}

// Report counts what reconciliation did, or would do in a dry run.
type Report struct {
	DryRun bool

	Added          int
	AlreadyTracked int
	Invalid        int
	AddFailures    int

	Pruned           int
	SkippedUnknown   int
	KeptUnresponsive int
	PruneFailures    int

	TemplatesDeleted       int
	TemplateDeleteFailures int

	// Rejected counts failed writes the tracker answered with an HTTP
	// error, as opposed to ones that never reached it.
	Rejected int
}

// Failures is the total number of failed tracker writes.
func (r *Report) Failures() int {
	return r.AddFailures + r.PruneFailures + r.TemplateDeleteFailures
}

// reject records err when the tracker answered it and reports whether it did.
func (r *Report) reject(err error) bool {
	if !tracker.IsHTTPError(err) {
		return false
	}
	r.Rejected++
	return true
}

// Reconciler applies collection results to the tracker.
type Reconciler struct {
	tracker Tracker
	opts    Options
	log     logr.Logger
}

// New creates a Reconciler.
func New(t Tracker, opts Options) *Reconciler {
	return &Reconciler{tracker: t, opts: opts, log: opts.Logger}
}

// Run executes the add and prune passes.
func (r *Reconciler) Run(ctx context.Context, in Input) (*Report, error) {
	report := &Report{DryRun: r.opts.DryRun}

	existing, err := r.tracker.ListProviderTemplates(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list tracked provider templates: %w", err)
	}

	plan := newPlan()
	r.add(ctx, in, existing, report, plan)
	r.pruneAssociations(ctx, in, existing, report, plan)

	templates, err := r.tracker.ListTemplates(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list tracked templates: %w", err)
	}
	r.pruneTemplates(ctx, templates, report, plan)

	return report, nil
}

// plan tracks association changes a dry run skipped, so that the template
// pass can predict which templates would end up empty.
type plan struct {
	added  map[string]int
	pruned map[string]int
}

func newPlan() *plan {
	return &plan{added: map[string]int{}, pruned: map[string]int{}}
}

func (r *Reconciler) add(ctx context.Context, in Input, existing []tracker.ProviderTemplateRecord, report *Report, p *plan) {
	tracked := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		tracked[rec.AssociationID()] = struct{}{}
	}

	for _, c := range in.Classified {
		log := r.log.WithValues("template", c.Info.Name)

		tpl, err := tracker.NewTemplate(c.Info.Name, tracker.Group{Name: c.Info.Group, Stream: c.Info.Stream}, c.Info.Datestamp)
		if err != nil {
			log.Error(err, "skipping invalid template")
			report.Invalid++
			continue
		}

		for _, key := range c.Providers {
			id := tracker.ProviderTemplateID(tpl.Name, key)
			if _, ok := tracked[id]; ok {
				log.V(1).Info("template already tracked", "provider", key)
				report.AlreadyTracked++
				continue
			}

			if r.opts.DryRun {
				log.Info("would add template", "provider", key, "group", tpl.Group.Name)
				p.added[tpl.Name]++
				report.Added++
				continue
			}

			if err := r.tracker.MarkProviderTemplate(ctx, tracker.Provider{Key: key}, tpl, tracker.MarkOpts{Usable: r.opts.Usable}); err != nil {
				log.Error(err, "failed to add template", "provider", key, "rejected", report.reject(err))
				report.AddFailures++
				continue
			}
			tracked[id] = struct{}{}
			log.Info("added template", "provider", key, "group", tpl.Group.Name,
				"datestamp", tpl.Datestamp.Format("2006-01-02"))
			report.Added++
		}
	}
}

func (r *Reconciler) pruneAssociations(ctx context.Context, in Input, existing []tracker.ProviderTemplateRecord, report *Report, p *plan) {
	queried := make(map[string]struct{}, len(in.Queried))
	for _, k := range in.Queried {
		queried[k] = struct{}{}
	}

	for _, rec := range existing {
		key, name := rec.Provider.Key, rec.Template.Name
		if slices.Contains(in.Observed[name], key) {
			continue
		}
		if _, down := in.Unresponsive[key]; down {
			r.log.V(1).Info("keeping template on unresponsive provider", "template", name, "provider", key)
			report.KeptUnresponsive++
			continue
		}
		if _, ok := queried[key]; !ok {
			r.log.Info("skipping template cleanup on unknown provider", "template", name, "provider", key)
			report.SkippedUnknown++
			continue
		}

		if r.opts.DryRun {
			r.log.Info("would remove template from provider", "template", name, "provider", key)
			p.pruned[name]++
			report.Pruned++
			continue
		}

		if err := r.tracker.DeleteProviderTemplate(ctx, key, name); err != nil {
			r.log.Error(err, "failed to remove template from provider", "template", name, "provider", key,
				"rejected", report.reject(err))
			report.PruneFailures++
			continue
		}
		r.log.Info("removed template from provider", "template", name, "provider", key)
		report.Pruned++
	}
}

func (r *Reconciler) pruneTemplates(ctx context.Context, templates []tracker.TemplateRecord, report *Report, p *plan) {
	for _, tpl := range templates {
		remaining := len(tpl.Providers)
		if r.opts.DryRun {
			remaining += p.added[tpl.Name] - p.pruned[tpl.Name]
		}
		if remaining > 0 {
			continue
		}

		if r.opts.DryRun {
			r.log.Info("would delete template without providers", "template", tpl.Name)
			report.TemplatesDeleted++
			continue
		}

		if err := r.tracker.DeleteTemplate(ctx, tpl.Name); err != nil {
			r.log.Error(err, "failed to delete template", "template", tpl.Name, "rejected", report.reject(err))
			report.TemplateDeleteFailures++
			continue
		}
		r.log.Info("deleted template without providers", "template", tpl.Name)
		report.TemplatesDeleted++
	}
}

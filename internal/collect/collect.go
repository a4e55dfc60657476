// Package collect lists templates on many providers concurrently and merges
// what they report.
package collect

import (
	"context"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/tracksync/internal/provider"
	"github.com/imamik/tracksync/internal/util/async"
)

// Source lists the templates of a provider by key. *provider.Pool
// implements it.
type Source interface {
	ListTemplates(ctx context.Context, key string) ([]string, error)
}

// Options configure a collection run.
type Options struct {
	// Timeout bounds each provider's listing. Zero means no limit.
	Timeout time.Duration
	Logger  logr.Logger
}

// Outcome is what one provider produced.
type Outcome struct {
	Key       string
	Templates []string
	Err       error
	Class     provider.Class
	Duration  time.Duration
}

// Result is the merged collection.
type Result struct {
	// Observed maps template names to the providers reporting them, in
	// provider key order.
	Observed map[string][]string
	// Unresponsive holds the keys of providers whose listing failed.
	Unresponsive map[string]struct{}
	// Outcomes has one entry per provider, in key order.
	Outcomes []Outcome
}

// IsUnresponsive reports whether key failed during collection.
func (r Result) IsUnresponsive(key string) bool {
	_, ok := r.Unresponsive[key]
	return ok
}

// Run lists every provider in its own goroutine and merges the outcomes once
// all have finished. A failing provider is marked unresponsive; it never
// stops the run.
func Run(ctx context.Context, keys []string, src Source, opts Options) Result {
	log := opts.Logger

	tasks := make([]async.Task[[]string], 0, len(keys))
	for _, key := range keys {
		tasks = append(tasks, async.Task[[]string]{
			Name: key,
			Func: func(ctx context.Context) ([]string, error) {
				if opts.Timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
					defer cancel()
				}
				log.V(1).Info("listing templates", "provider", key)
				return src.ListTemplates(ctx, key)
			},
		})
	}

	res := Result{
		Observed:     map[string][]string{},
		Unresponsive: map[string]struct{}{},
	}

	for _, r := range async.RunAll(ctx, tasks) {
		out := Outcome{Key: r.Name, Err: r.Err, Duration: r.Duration}

		if r.Err != nil {
			out.Class = provider.Classify(r.Err)
			res.Unresponsive[r.Name] = struct{}{}
			log.Error(r.Err, "failed to list templates, marking provider unresponsive",
				"provider", r.Name, "class", string(out.Class))
			res.Outcomes = append(res.Outcomes, out)
			continue
		}

		out.Templates = FilterNames(r.Value)
		for _, name := range out.Templates {
			res.Observed[name] = append(res.Observed[name], r.Name)
		}
		log.Info("collected templates", "provider", r.Name,
			"count", len(out.Templates), "duration", r.Duration.Round(time.Millisecond).String())
		res.Outcomes = append(res.Outcomes, out)
	}

	return res
}

// FilterNames drops database templates (names ending in "db", any case),
// empty names and duplicates.
func FilterNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" || strings.HasSuffix(strings.ToLower(name), "db") {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

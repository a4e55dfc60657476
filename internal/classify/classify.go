// Package classify parses observed template names and drops the ones that
// are never tracked.
package classify

import (
	"sort"

	"github.com/go-logr/logr"

	"github.com/imamik/tracksync/internal/templatename"
)

// Classified is a template ready for the tracker.
type Classified struct {
	Info      templatename.Info
	Providers []string
}

// Skipped is a template left out of reconciliation.
type Skipped struct {
	Name      string
	Providers []string
	Reason    string
}

// Skip reasons.
const (
	ReasonUnrecognized  = "unrecognized name"
	ReasonExcludedGroup = "excluded group"
)

// Classify parses every observed template, in name order.
func Classify(observed map[string][]string, log logr.Logger) ([]Classified, []Skipped) {
	names := make([]string, 0, len(observed))
	for name := range observed {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		classified []Classified
		skipped    []Skipped
	)
	for _, name := range names {
		providers := observed[name]

		info, err := templatename.Parse(name)
		if err != nil {
			log.Info("skipping template with unrecognized name", "template", name, "providers", providers)
			skipped = append(skipped, Skipped{Name: name, Providers: providers, Reason: ReasonUnrecognized})
			continue
		}
		if templatename.Excluded(info.Group) {
			log.V(1).Info("skipping template in excluded group", "template", name, "group", info.Group)
			skipped = append(skipped, Skipped{Name: name, Providers: providers, Reason: ReasonExcludedGroup + " " + info.Group})
			continue
		}

		classified = append(classified, Classified{Info: info, Providers: providers})
	}
	return classified, skipped
}

package handlers

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/imamik/tracksync/internal/syncer"
)

var (
	colorGreen = lipgloss.Color("#22c55e")
	colorRed   = lipgloss.Color("#ef4444")
	colorBlue  = lipgloss.Color("#3b82f6")
	colorDim   = lipgloss.Color("#6b7280")
	colorWhite = lipgloss.Color("#f9fafb")
)

// styles holds the output styles; all are plain when color is off.
type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	dim     lipgloss.Style
	good    lipgloss.Style
	bad     lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{title: plain, section: plain, dim: plain, good: plain, bad: plain}
	}
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorWhite),
		section: lipgloss.NewStyle().Bold(true).Foreground(colorBlue),
		dim:     lipgloss.NewStyle().Foreground(colorDim),
		good:    lipgloss.NewStyle().Foreground(colorGreen),
		bad:     lipgloss.NewStyle().Foreground(colorRed),
	}
}

func isInteractiveTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// renderSyncSummary produces the end-of-run summary.
func renderSyncSummary(r *syncer.RunReport, st styles) string {
	var b strings.Builder

	title := "  tracksync"
	if r.Reconcile != nil && r.Reconcile.DryRun {
		title += " (dry run)"
	}
	b.WriteString("\n")
	b.WriteString(st.title.Render(title))
	b.WriteString("\n")
	b.WriteString(st.dim.Render("  " + strings.Repeat("═", 30)))
	b.WriteString("\n\n")

	b.WriteString(st.section.Render("  Providers"))
	b.WriteString("\n")
	down := make(map[string]bool, len(r.Unresponsive))
	for _, k := range r.Unresponsive {
		down[k] = true
	}
	counts := make(map[string]int, len(r.Collection.Outcomes))
	for _, out := range r.Collection.Outcomes {
		counts[out.Key] = len(out.Templates)
	}
	for _, key := range r.Queried {
		if down[key] {
			b.WriteString(fmt.Sprintf("    %s %-24s %s\n", st.bad.Render("✗"), key, st.dim.Render("unresponsive")))
			continue
		}
		b.WriteString(fmt.Sprintf("    %s %-24s %d templates\n", st.good.Render("✓"), key, counts[key]))
	}

	b.WriteString("\n")
	b.WriteString(st.section.Render("  Templates"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("    Observed:    %d\n", len(r.Collection.Observed)))
	b.WriteString(fmt.Sprintf("    Classified:  %d\n", len(r.Classified)))
	b.WriteString(fmt.Sprintf("    Skipped:     %d\n", len(r.Skipped)))

	if rec := r.Reconcile; rec != nil {
		b.WriteString("\n")
		b.WriteString(st.section.Render("  Tracker"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("    Added:             %d\n", rec.Added))
		b.WriteString(fmt.Sprintf("    Already tracked:   %d\n", rec.AlreadyTracked))
		b.WriteString(fmt.Sprintf("    Removed:           %d\n", rec.Pruned))
		b.WriteString(fmt.Sprintf("    Templates deleted: %d\n", rec.TemplatesDeleted))
		if n := rec.Failures(); n > 0 {
			line := fmt.Sprintf("Failures:          %d", n)
			if rec.Rejected > 0 {
				line += fmt.Sprintf(" (%d rejected by tracker)", rec.Rejected)
			}
			b.WriteString(fmt.Sprintf("    %s\n", st.bad.Render(line)))
		}
	}

	b.WriteString("\n")
	b.WriteString(st.dim.Render("  Finished in " + formatDuration(r.Duration)))
	b.WriteString("\n")
	return b.String()
}

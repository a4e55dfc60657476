package handlers

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Providers lists the registry entries and, with check set, whether each
// passes the liveness check.
func Providers(ctx context.Context, out io.Writer, configPath string, check bool, logOpts LogOptions) error {
	reg, err := loadRegistry(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := newLogger(logOpts)
	if err != nil {
		return err
	}
	checker := newChecker(loadTimeouts(), log)
	st := newStyles(isTerminal(out))

	var b strings.Builder
	b.WriteString(st.section.Render(fmt.Sprintf("  %-24s %-10s %s", "KEY", "TYPE", "ADDRESS")))
	b.WriteString("\n")

	for _, key := range reg.Keys() {
		p, _ := reg.Get(key)
		addr := p.Address()
		shown := addr
		if shown == "" {
			shown = st.dim.Render("-")
		}
		line := fmt.Sprintf("  %-24s %-10s %s", key, p.Type, shown)

		if check {
			line += "  " + livenessLabel(ctx, st, addr, checker.Alive)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	_, err = fmt.Fprint(out, b.String())
	return err
}

func livenessLabel(ctx context.Context, st styles, addr string, alive func(context.Context, string) bool) string {
	switch {
	case addr == "":
		return st.dim.Render("not checked")
	case alive(ctx, addr):
		return st.good.Render("reachable")
	default:
		return st.bad.Render("unreachable")
	}
}

// RegistryKeys returns the provider keys of the registry at configPath, or
// nil when it cannot be loaded.
func RegistryKeys(configPath string) []string {
	reg, err := loadRegistry(configPath)
	if err != nil {
		return nil
	}
	return reg.Keys()
}

package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/tracksync/internal/collect"
	"github.com/imamik/tracksync/internal/config"
	"github.com/imamik/tracksync/internal/liveness"
	"github.com/imamik/tracksync/internal/reconcile"
	"github.com/imamik/tracksync/internal/syncer"
	testutil "github.com/imamik/tracksync/internal/testing"
)

const registryYAML = `
management_systems:
  rhv-a:
    type: rhevm
  hetzner:
    type: hcloud
    ipaddress: 10.0.0.9
`

type stubSource map[string][]string

func (s stubSource) ListTemplates(_ context.Context, key string) ([]string, error) {
	names, ok := s[key]
	if !ok {
		return nil, errors.New("unreachable")
	}
	return names, nil
}

// saveAndRestoreFactories restores every factory variable after the test.
func saveAndRestoreFactories(t *testing.T) {
	t.Helper()
	origNewLogger := newLogger
	origLoadRegistry := loadRegistry
	origLoadCredentials := loadCredentials
	origLoadTimeouts := loadTimeouts
	origNewSource := newSource
	origNewChecker := newChecker
	origNewTracker := newTracker
	origIsTerminal := isTerminal

	t.Cleanup(func() {
		newLogger = origNewLogger
		loadRegistry = origLoadRegistry
		loadCredentials = origLoadCredentials
		loadTimeouts = origLoadTimeouts
		newSource = origNewSource
		newChecker = origNewChecker
		newTracker = origNewTracker
		isTerminal = origIsTerminal
	})

	newLogger = func(LogOptions) (logr.Logger, error) { return logr.Discard(), nil }
	loadTimeouts = func() *config.Timeouts {
		return &config.Timeouts{Ping: time.Second, Collect: 5 * time.Second, Tracker: 5 * time.Second}
	}
	isTerminal = func(io.Writer) bool { return false }
}

func writeRegistry(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(registryYAML), 0o600))
	return path
}

func TestSync_RequiresTrackerURL(t *testing.T) {
	err := Sync(context.Background(), SyncOptions{})
	assert.ErrorIs(t, err, ErrNoTrackerURL)
}

func TestSync_EndToEnd(t *testing.T) {
	saveAndRestoreFactories(t)
	ft := testutil.NewFakeTracker(t)
	ft.Seed("cfme-5.9.4.2-20180709", "rhv-a")

	newSource = func(*config.Registry, config.Credentials) collect.Source {
		return stubSource{"rhv-a": {"cfme-5.10.0.33-20190312", "cfme-5.10.0.33-20190312-nodb"}}
	}
	newChecker = func(*config.Timeouts, logr.Logger) liveness.Checker {
		return liveness.CheckerFunc(func(context.Context, string) bool { return false })
	}

	var out bytes.Buffer
	err := Sync(context.Background(), SyncOptions{
		TrackerURL: ft.URL(),
		ConfigPath: writeRegistry(t),
		Out:        &out,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"cfme-5.10.0.33-20190312_rhv-a"}, ft.Associations())
	assert.Equal(t, []string{"cfme-5.10.0.33-20190312"}, ft.Templates())

	summary := out.String()
	assert.Contains(t, summary, "rhv-a")
	assert.Contains(t, summary, "1 templates")
	assert.Contains(t, summary, "unresponsive")
	assert.Contains(t, summary, "Added:             1")
	assert.NotContains(t, summary, "\x1b[", "no ANSI codes when not a terminal")
}

func TestSync_DryRunSummary(t *testing.T) {
	saveAndRestoreFactories(t)
	ft := testutil.NewFakeTracker(t)

	newSource = func(*config.Registry, config.Credentials) collect.Source {
		return stubSource{"rhv-a": {"miq-nightly-201807091200"}}
	}
	newChecker = func(*config.Timeouts, logr.Logger) liveness.Checker {
		return liveness.CheckerFunc(func(context.Context, string) bool { return true })
	}

	var out bytes.Buffer
	err := Sync(context.Background(), SyncOptions{
		TrackerURL:   ft.URL(),
		ConfigPath:   writeRegistry(t),
		ProviderKeys: []string{"rhv-a"},
		DryRun:       true,
		Out:          &out,
	})
	require.NoError(t, err)

	assert.Empty(t, ft.Associations())
	assert.Contains(t, out.String(), "(dry run)")
}

func TestRenderSyncSummary_Failures(t *testing.T) {
	t.Parallel()

	summary := renderSyncSummary(&syncer.RunReport{
		Queried:   []string{"rhv-a"},
		Reconcile: &reconcile.Report{AddFailures: 2, PruneFailures: 1, Rejected: 2},
	}, newStyles(false))

	assert.Contains(t, summary, "Failures:          3 (2 rejected by tracker)")
}

func TestSync_ConfigErrors(t *testing.T) {
	saveAndRestoreFactories(t)

	err := Sync(context.Background(), SyncOptions{
		TrackerURL: "http://tracker.example.com/api/",
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")

	err = Sync(context.Background(), SyncOptions{
		TrackerURL: "ftp://tracker.example.com/",
		ConfigPath: writeRegistry(t),
	})
	require.Error(t, err)

	err = Sync(context.Background(), SyncOptions{
		TrackerURL:   "http://tracker.example.com/api/",
		ConfigPath:   writeRegistry(t),
		ProviderKeys: []string{"nope"},
	})
	assert.ErrorIs(t, err, config.ErrUnknownProvider)
}

func TestProviders(t *testing.T) {
	saveAndRestoreFactories(t)
	newChecker = func(*config.Timeouts, logr.Logger) liveness.Checker {
		return liveness.CheckerFunc(func(_ context.Context, addr string) bool { return addr == "10.0.0.9" })
	}

	var out bytes.Buffer
	require.NoError(t, Providers(context.Background(), &out, writeRegistry(t), true, LogOptions{}))

	s := out.String()
	assert.Contains(t, s, "hetzner")
	assert.Contains(t, s, "10.0.0.9")
	assert.Contains(t, s, "reachable")
	assert.Contains(t, s, "not checked")

	assert.Equal(t, []string{"hetzner", "rhv-a"}, RegistryKeys(writeRegistry(t)))
	assert.Nil(t, RegistryKeys(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestParse(t *testing.T) {
	saveAndRestoreFactories(t)

	var out bytes.Buffer
	require.NoError(t, Parse(&out, []string{"cfme-5.10.0.33-20190312", "Blank", "fedora-38"}))

	s := out.String()
	assert.Contains(t, s, "group:     downstream-510z")
	assert.Contains(t, s, "datestamp: 2019-03-12")
	assert.Contains(t, s, "not tracked (excluded group)")
	assert.Contains(t, s, "fedora-38\n  unrecognized")
}

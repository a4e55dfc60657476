package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "tracksync", cmd.Use)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"sync", "providers", "parse", "version", "completion"} {
		assert.Contains(t, names, want)
	}

	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-format"))
}

func TestSync_Flags(t *testing.T) {
	t.Setenv("TRACKERBOT_URL", "http://tracker.example.com/api/")
	cmd := Sync()

	for _, name := range []string{"tracker-url", "mark-usable", "provider-key", "config", "credentials", "dry-run", "pushgateway"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "http://tracker.example.com/api/", cmd.Flags().Lookup("tracker-url").DefValue)
	assert.Equal(t, "providers.yaml", cmd.Flags().Lookup("config").DefValue)

	require.NoError(t, cmd.Flags().Parse([]string{"--provider-key", "a", "--provider-key", "b,c"}))
	keys, err := cmd.Flags().GetStringSlice("provider-key")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestSync_RejectsArgs(t *testing.T) {
	cmd := Root()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"sync", "extra"})

	assert.Error(t, cmd.Execute())
}

func TestSync_MissingTrackerURL(t *testing.T) {
	t.Setenv("TRACKERBOT_URL", "")
	cmd := Root()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"sync"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracker URL is required")
}

func TestParse_Command(t *testing.T) {
	cmd := Root()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"parse", "miq-nightly-201807091200"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "group:     upstream")

	cmd = Root()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"parse"})
	assert.Error(t, cmd.Execute())
}

func TestProviders_MissingConfig(t *testing.T) {
	cmd := Root()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"providers", "--config", t.TempDir() + "/missing.yaml"})

	assert.Error(t, cmd.Execute())
}

func TestVersion_Output(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	t.Cleanup(func() {
		version, commit, date = origVersion, origCommit, origDate
	})

	SetVersionInfo("1.2.3", "abc123", "2024-01-01")

	cmd := Version()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "tracksync 1.2.3\n  commit: abc123\n  built:  2024-01-01\n", buf.String())
}

func TestCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			cmd := Root()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetArgs([]string{"completion", shell})

			require.NoError(t, cmd.Execute())
			assert.NotEmpty(t, buf.String())
		})
	}
}

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(Options{Level: "info", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	log.Info("collected templates", "provider", "rhv43", "count", 3)
	log.V(1).Info("debug detail")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "collected templates", entry["msg"])
	assert.Equal(t, "rhv43", entry["provider"])
	assert.EqualValues(t, 3, entry["count"])
	assert.NotContains(t, buf.String(), "debug detail")
}

func TestNew_DebugConsole(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(Options{Level: "debug", Output: &buf})
	require.NoError(t, err)

	log.V(1).Info("debug detail", "template", "cfme-5.10.0.33-20190312")
	assert.Contains(t, buf.String(), "debug detail")
	assert.Contains(t, buf.String(), "cfme-5.10.0.33-20190312")
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRegistry = `
management_systems:
  rhv43:
    name: RHV 4.3
    type: RHEVM
    ipaddress: 10.0.0.5
    credentials: rhv
    endpoints:
      default:
        hostname: rhv43.example.com
        api_port: 443
    discovery_range:
      start: 10.0.0.5
      end: 10.0.0.9
  hetzner:
    type: hcloud
    credentials: hcloud
    labels:
      role: template
  images:
    type: s3
    bucket: vm-images
    prefix: templates/
    endpoint: https://fsn1.your-objectstorage.com
    region: fsn1
  cnv:
    type: kubevirt
    endpoints:
      default:
        hostname: api.cnv.example.com
        credentials: cnv-kube
`

func TestParseRegistry(t *testing.T) {
	t.Parallel()

	reg, err := ParseRegistry([]byte(sampleRegistry))
	require.NoError(t, err)

	assert.Equal(t, []string{"cnv", "hetzner", "images", "rhv43"}, reg.Keys())

	rhv, ok := reg.Get("rhv43")
	require.True(t, ok)
	assert.Equal(t, "rhv43", rhv.Key)
	assert.Equal(t, "rhevm", rhv.Type, "type is normalized to lower case")
	assert.Equal(t, "RHV 4.3", rhv.Name)
	assert.Equal(t, "10.0.0.5", rhv.Address())
	assert.Equal(t, "rhv43.example.com", rhv.Host())
	assert.Equal(t, "rhv", rhv.CredentialsRef())
	require.NotNil(t, rhv.DiscoveryRange)
	assert.Equal(t, "10.0.0.9", rhv.DiscoveryRange.End)

	hetzner, _ := reg.Get("hetzner")
	assert.Equal(t, "hetzner", hetzner.Name, "name defaults to key")
	assert.Empty(t, hetzner.Address(), "no address means no liveness check")
	assert.Equal(t, map[string]string{"role": "template"}, hetzner.Labels)

	cnv, _ := reg.Get("cnv")
	assert.Equal(t, "api.cnv.example.com", cnv.Address())
	assert.Equal(t, "cnv-kube", cnv.CredentialsRef(), "endpoint credentials win")
}

func TestParseRegistry_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing type",
			yaml:    "management_systems:\n  foo:\n    ipaddress: 1.2.3.4\n",
			wantErr: "foo: type is required",
		},
		{
			name:    "discovery range without start",
			yaml:    "management_systems:\n  foo:\n    type: rhevm\n    discovery_range:\n      end: 1.2.3.4\n",
			wantErr: "discovery_range.start is required",
		},
		{
			name:    "malformed yaml",
			yaml:    "management_systems: [",
			wantErr: "failed to unmarshal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseRegistry([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistrySelect(t *testing.T) {
	t.Parallel()

	reg, err := ParseRegistry([]byte(sampleRegistry))
	require.NoError(t, err)

	all, err := reg.Select(nil)
	require.NoError(t, err)
	assert.Equal(t, reg.Keys(), all)

	some, err := reg.Select([]string{"rhv43", "hetzner", "rhv43"})
	require.NoError(t, err)
	assert.Equal(t, []string{"hetzner", "rhv43"}, some)

	_, err = reg.Select([]string{"nope"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestLoadRegistry_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRegistry), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, reg.ManagementSystems, 4)

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

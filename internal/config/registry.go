package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultRegistryFile is the provider registry path used when none is given.
const DefaultRegistryFile = "providers.yaml"

// ErrUnknownProvider is returned when a selected key is not in the registry.
var ErrUnknownProvider = errors.New("unknown provider key")

// Endpoint describes one management endpoint of a provider.
type Endpoint struct {
	Hostname  string `yaml:"hostname"`
	APIPort   int    `yaml:"api_port,omitempty"`
	VerifyTLS *bool  `yaml:"verify_tls,omitempty"`
	CACerts   string `yaml:"ca_certs,omitempty"`
	// Credentials overrides the provider-level credentials reference.
	Credentials string `yaml:"credentials,omitempty"`
}

// DiscoveryRange is the IP range the provider's hosts live in.
type DiscoveryRange struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Provider is one entry of the management_systems registry.
type Provider struct {
	// Key is the registry key; filled in by LoadRegistry.
	Key string `yaml:"-"`

	Name           string              `yaml:"name"`
	Type           string              `yaml:"type"`
	IPAddress      string              `yaml:"ipaddress,omitempty"`
	Hostname       string              `yaml:"hostname,omitempty"`
	Credentials    string              `yaml:"credentials,omitempty"`
	Endpoints      map[string]Endpoint `yaml:"endpoints,omitempty"`
	DiscoveryRange *DiscoveryRange     `yaml:"discovery_range,omitempty"`
	ServerZone     string              `yaml:"server_zone,omitempty"`
	Tags           []string            `yaml:"tags,omitempty"`

	// Object store providers.
	Bucket   string `yaml:"bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`

	// KubeVirt providers.
	Namespace     string `yaml:"namespace,omitempty"`
	LabelSelector string `yaml:"label_selector,omitempty"`

	// Hetzner Cloud providers.
	Location string            `yaml:"location,omitempty"`
	Labels   map[string]string `yaml:"labels,omitempty"`
}

// DefaultEndpoint returns the "default" endpoint, if configured.
func (p Provider) DefaultEndpoint() (Endpoint, bool) {
	ep, ok := p.Endpoints["default"]
	return ep, ok
}

// Host returns the management hostname: the default endpoint's hostname,
// then the top-level hostname, then the IP address.
func (p Provider) Host() string {
	if ep, ok := p.DefaultEndpoint(); ok && ep.Hostname != "" {
		return ep.Hostname
	}
	if p.Hostname != "" {
		return p.Hostname
	}
	return p.IPAddress
}

// Address returns the address probed by the liveness check. An empty
// address means the provider is not checked.
func (p Provider) Address() string {
	if p.IPAddress != "" {
		return p.IPAddress
	}
	if ep, ok := p.DefaultEndpoint(); ok {
		return ep.Hostname
	}
	return ""
}

// CredentialsRef returns the credentials name used to authenticate against
// the default endpoint.
func (p Provider) CredentialsRef() string {
	if ep, ok := p.DefaultEndpoint(); ok && ep.Credentials != "" {
		return ep.Credentials
	}
	return p.Credentials
}

// Registry maps provider keys to their configuration.
type Registry struct {
	ManagementSystems map[string]Provider `yaml:"management_systems"`
}

// LoadRegistry reads and validates the provider registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry parses and validates registry YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider registry: %w", err)
	}

	for key, p := range reg.ManagementSystems {
		p.Key = key
		p.Type = strings.ToLower(strings.TrimSpace(p.Type))
		if p.Name == "" {
			p.Name = key
		}
		reg.ManagementSystems[key] = p
	}

	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("provider registry validation failed: %w", err)
	}
	return &reg, nil
}

// Validate checks every entry has the fields its listing needs.
func (r *Registry) Validate() error {
	var errs []error
	for _, key := range r.Keys() {
		p := r.ManagementSystems[key]
		if p.Type == "" {
			errs = append(errs, fmt.Errorf("%s: type is required", key))
		}
		if p.DiscoveryRange != nil && p.DiscoveryRange.Start == "" {
			errs = append(errs, fmt.Errorf("%s: discovery_range.start is required", key))
		}
	}
	return errors.Join(errs...)
}

// Keys returns all provider keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.ManagementSystems))
	for k := range r.ManagementSystems {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the provider stored under key.
func (r *Registry) Get(key string) (Provider, bool) {
	p, ok := r.ManagementSystems[key]
	return p, ok
}

// Select returns the sorted, deduplicated keys to operate on. With no
// selection every registry key is returned.
func (r *Registry) Select(selected []string) ([]string, error) {
	if len(selected) == 0 {
		return r.Keys(), nil
	}

	seen := make(map[string]struct{}, len(selected))
	keys := make([]string, 0, len(selected))
	for _, key := range selected {
		if _, ok := r.ManagementSystems[key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, key)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

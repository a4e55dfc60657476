package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredentials is returned when a provider references credentials
// that are not defined.
var ErrMissingCredentials = errors.New("missing credentials")

// Credential holds the secrets for one credentials entry. Only the fields
// relevant to the provider type need to be set.
type Credential struct {
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
	Token      string `yaml:"token,omitempty"`
	AccessKey  string `yaml:"access_key,omitempty"`
	SecretKey  string `yaml:"secret_key,omitempty"`
	Kubeconfig string `yaml:"kubeconfig,omitempty"`
}

// Credentials maps credential names to secrets.
type Credentials map[string]Credential

// LoadCredentials reads a credentials YAML file. A missing file yields an
// empty set so that providers relying on environment variables still work.
// Values may reference environment variables as ${NAME}.
func LoadCredentials(path string) (Credentials, error) {
	if path == "" {
		return Credentials{}, nil
	}

	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, nil
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	return ParseCredentials(data)
}

// ParseCredentials parses credentials YAML and expands ${ENV} references.
func ParseCredentials(data []byte) (Credentials, error) {
	creds := Credentials{}
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}

	for name, c := range creds {
		c.Username = os.ExpandEnv(c.Username)
		c.Password = os.ExpandEnv(c.Password)
		c.Token = os.ExpandEnv(c.Token)
		c.AccessKey = os.ExpandEnv(c.AccessKey)
		c.SecretKey = os.ExpandEnv(c.SecretKey)
		c.Kubeconfig = os.ExpandEnv(c.Kubeconfig)
		creds[name] = c
	}
	return creds, nil
}

// Lookup returns the named credential. An empty name returns the zero
// Credential without error.
func (c Credentials) Lookup(name string) (Credential, error) {
	if name == "" {
		return Credential{}, nil
	}
	cred, ok := c[name]
	if !ok {
		return Credential{}, fmt.Errorf("%w: %s", ErrMissingCredentials, name)
	}
	return cred, nil
}

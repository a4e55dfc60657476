// Package rhevm lists templates on a Red Hat Virtualization (oVirt) engine
// through its REST API.
package rhevm

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/imamik/tracksync/internal/config"
)

const templatesPath = "/ovirt-engine/api/templates"

// StatusError is returned for non-2xx engine responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ovirt GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPStatusCode returns the response status.
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client lists templates on one engine.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the engine at baseURL, e.g.
// https://rhv.example.com.
func NewClient(baseURL, username, password string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid engine URL %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(u.String(), "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig builds a client from the provider's default endpoint.
func NewFromConfig(p config.Provider, cred config.Credential) (*Client, error) {
	host := p.Host()
	if host == "" {
		return nil, fmt.Errorf("provider %s has no hostname", p.Key)
	}
	if cred.Username == "" {
		return nil, fmt.Errorf("%w: provider %s needs a username", config.ErrMissingCredentials, p.Key)
	}

	ep, _ := p.DefaultEndpoint()
	if ep.APIPort != 0 {
		host = net.JoinHostPort(host, strconv.Itoa(ep.APIPort))
	}

	tlsCfg, err := tlsConfig(ep)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", p.Key, err)
	}
	hc := &http.Client{
		Timeout:   2 * time.Minute,
		Transport: &http.Transport{TLSClientConfig: tlsCfg, Proxy: http.ProxyFromEnvironment},
	}
	return NewClient("https://"+host, cred.Username, cred.Password, WithHTTPClient(hc))
}

func tlsConfig(ep config.Endpoint) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if ep.VerifyTLS != nil && !*ep.VerifyTLS {
		// #nosec G402
		cfg.InsecureSkipVerify = true
		return cfg, nil
	}
	if ep.CACerts == "" {
		return cfg, nil
	}

	// #nosec G304
	pem, err := os.ReadFile(ep.CACerts)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificates: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("no CA certificates found in " + ep.CACerts)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

type templateList struct {
	Template []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"template"`
}

// ListTemplates returns the names of all templates on the engine.
func (c *Client) ListTemplates(ctx context.Context) ([]string, error) {
	endpoint := c.baseURL + templatesPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Version", "4")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{URL: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var list templateList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode template list: %w", err)
	}

	names := make([]string, 0, len(list.Template))
	for _, t := range list.Template {
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return names, nil
}

// Package tracker is a client for the template tracker API, the service of
// record for which templates exist on which providers.
//
// The API is a paginated REST interface with provider, group, template and
// providertemplate resources rooted at the tracker URL, e.g.
// http://tracker.example.com/api/.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/imamik/tracksync/internal/util/retry"
)

// DefaultPageSize is the page size requested when listing resources.
const DefaultPageSize = 100

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Client talks to the tracker API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	pageSize   int
	maxRetries int
	retryDelay time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetry sets how often and how fast transient failures are retried.
func WithRetry(maxRetries int, initialDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = initialDelay
	}
}

// NewClient creates a client for the tracker API rooted at trackerURL.
func NewClient(trackerURL string, opts ...ClientOption) (*Client, error) {
	if trackerURL == "" {
		return nil, fmt.Errorf("tracker URL is required")
	}
	u, err := url.Parse(trackerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid tracker URL %q: %w", trackerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid tracker URL %q: scheme must be http or https", trackerURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		baseURL:    u,
		httpClient: http.DefaultClient,
		timeout:    30 * time.Second,
		pageSize:   DefaultPageSize,
		maxRetries: 2,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resourceURL(resource string, id ...string) string {
	ref := &url.URL{Path: resource + "/"}
	if len(id) > 0 {
		ref.Path = resource + "/" + id[0] + "/"
		ref.RawPath = resource + "/" + url.PathEscape(id[0]) + "/"
	}
	return c.baseURL.ResolveReference(ref).String()
}

// do sends one request, retrying transient failures. A non-nil out is
// filled from the JSON response body.
func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", method, err)
		}
	}

	return retry.WithExponentialBackoff(ctx, func() error {
		err := c.doOnce(ctx, method, rawURL, payload, out)
		if err != nil && !IsTransient(err) {
			return retry.Fatal(err)
		}
		return err
	}, retry.WithMaxRetries(c.maxRetries), retry.WithInitialDelay(c.retryDelay))
}

func (c *Client) doOnce(ctx context.Context, method, rawURL string, payload []byte, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s %s: %w", method, rawURL, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tracker %s %s: %w", method, rawURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{
			Method:     method,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode tracker response from %s: %w", rawURL, err)
	}
	return nil
}

// Depaginate lists every object of a resource, following meta.next links
// until the last page.
func Depaginate[T any](ctx context.Context, c *Client, resource string) ([]T, error) {
	first, err := url.Parse(c.resourceURL(resource))
	if err != nil {
		return nil, err
	}
	q := first.Query()
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("offset", "0")
	first.RawQuery = q.Encode()

	var objects []T
	next := first.String()
	seen := map[string]struct{}{}

	for next != "" {
		if _, loop := seen[next]; loop {
			return nil, fmt.Errorf("tracker pagination loop at %s", next)
		}
		seen[next] = struct{}{}

		var p page
		if err := c.do(ctx, http.MethodGet, next, nil, &p); err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", resource, err)
		}

		for _, raw := range p.Objects {
			var obj T
			if err := json.Unmarshal(raw, &obj); err != nil {
				return nil, fmt.Errorf("failed to decode %s object: %w", resource, err)
			}
			objects = append(objects, obj)
		}

		next = ""
		if p.Meta.Next != nil && *p.Meta.Next != "" {
			ref, err := url.Parse(*p.Meta.Next)
			if err != nil {
				return nil, fmt.Errorf("invalid next link %q: %w", *p.Meta.Next, err)
			}
			next = c.baseURL.ResolveReference(ref).String()
		}
	}

	return objects, nil
}

// ListProviderTemplates returns every provider/template association.
func (c *Client) ListProviderTemplates(ctx context.Context) ([]ProviderTemplateRecord, error) {
	return Depaginate[ProviderTemplateRecord](ctx, c, ResourceProviderTemplate)
}

// ListTemplates returns every template record.
func (c *Client) ListTemplates(ctx context.Context) ([]TemplateRecord, error) {
	return Depaginate[TemplateRecord](ctx, c, ResourceTemplate)
}

// EnsureGroup creates the group unless it already exists.
func (c *Client) EnsureGroup(ctx context.Context, group Group) error {
	err := c.do(ctx, http.MethodGet, c.resourceURL(ResourceGroup, group.Name), nil, nil)
	if err == nil {
		return nil
	}
	if !IsNotFound(err) {
		return fmt.Errorf("failed to look up group %s: %w", group.Name, err)
	}

	if err := c.do(ctx, http.MethodPost, c.resourceURL(ResourceGroup), group, nil); err != nil {
		return fmt.Errorf("failed to create group %s: %w", group.Name, err)
	}
	return nil
}

// MarkOpts are the optional attributes of a new association.
type MarkOpts struct {
	// Usable is sent only when set.
	Usable *bool
}

// MarkProviderTemplate records that provider exposes template, creating the
// template's group first when it is missing.
func (c *Client) MarkProviderTemplate(ctx context.Context, provider Provider, template Template, opts MarkOpts) error {
	if err := c.EnsureGroup(ctx, template.Group); err != nil {
		return err
	}

	body := providerTemplatePayload{
		Provider: provider,
		Template: templatePayload{
			Name:      template.Name,
			Group:     template.Group,
			Datestamp: template.Datestamp.Format(datestampLayout),
		},
		Usable: opts.Usable,
	}
	if err := c.do(ctx, http.MethodPost, c.resourceURL(ResourceProviderTemplate), body, nil); err != nil {
		return fmt.Errorf("failed to mark template %s on provider %s: %w", template.Name, provider.Key, err)
	}
	return nil
}

// DeleteProviderTemplate removes the association between a provider and a
// template. A missing association is not an error.
func (c *Client) DeleteProviderTemplate(ctx context.Context, providerKey, templateName string) error {
	id := ProviderTemplateID(templateName, providerKey)
	err := c.do(ctx, http.MethodDelete, c.resourceURL(ResourceProviderTemplate, id), nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete template %s on provider %s: %w", templateName, providerKey, err)
	}
	return nil
}

// DeleteTemplate removes a template record. A missing template is not an
// error.
func (c *Client) DeleteTemplate(ctx context.Context, name string) error {
	err := c.do(ctx, http.MethodDelete, c.resourceURL(ResourceTemplate, name), nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete template %s: %w", name, err)
	}
	return nil
}

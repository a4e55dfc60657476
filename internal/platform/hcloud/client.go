package hcloud

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/tracksync/internal/config"
)

// Client lists snapshot templates through the Hetzner Cloud API.
type Client struct {
	client        *hcloud.Client
	labelSelector string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// WithLabelSelector restricts listing to snapshots matching selector.
func WithLabelSelector(selector string) ClientOption {
	return func(c *Client) {
		c.labelSelector = selector
	}
}

// NewClient creates a new Client with optional configuration.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		client: hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("tracksync", "")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a Client for a registry entry.
func NewFromConfig(p config.Provider, cred config.Credential) (*Client, error) {
	token := cred.Token
	if token == "" {
		token = os.Getenv("HCLOUD_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("%w: %s needs an hcloud token or HCLOUD_TOKEN", config.ErrMissingCredentials, p.Key)
	}
	return NewClient(token, WithLabelSelector(labelSelector(p))), nil
}

// labelSelector combines the entry's label_selector with its labels map.
func labelSelector(p config.Provider) string {
	parts := make([]string, 0, 2)
	if p.LabelSelector != "" {
		parts = append(parts, p.LabelSelector)
	}
	if sel := BuildLabelSelector(p.Labels); sel != "" {
		parts = append(parts, sel)
	}
	return strings.Join(parts, ",")
}

// ListSnapshots returns every snapshot image matching the client's label
// selector, newest first.
func (c *Client) ListSnapshots(ctx context.Context) ([]*hcloud.Image, error) {
	opts := hcloud.ImageListOpts{
		Type: []hcloud.ImageType{hcloud.ImageTypeSnapshot},
	}
	opts.LabelSelector = c.labelSelector

	images, err := c.client.Image.AllWithOpts(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	sort.SliceStable(images, func(i, j int) bool {
		return images[i].Created.After(images[j].Created)
	})
	return images, nil
}

// ListTemplates returns the template name of every snapshot.
func (c *Client) ListTemplates(ctx context.Context) ([]string, error) {
	images, err := c.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(images))
	for _, img := range images {
		names = append(names, TemplateName(img))
	}
	return names, nil
}

// TemplateName returns the description of an image, or its ID if the
// description is blank.
func TemplateName(img *hcloud.Image) string {
	if name := strings.TrimSpace(img.Description); name != "" {
		return name
	}
	return strconv.FormatInt(img.ID, 10)
}

// BuildLabelSelector creates a label selector string from a map of labels.
// Keys are sorted so the result is stable.
func BuildLabelSelector(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	selectors := make([]string, 0, len(keys))
	for _, k := range keys {
		selectors = append(selectors, fmt.Sprintf("%s=%s", k, labels[k]))
	}
	return strings.Join(selectors, ",")
}

// Package kubevirt lists VM templates published on an OpenShift
// Virtualization (KubeVirt) cluster as template.openshift.io Templates.
package kubevirt

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/imamik/tracksync/internal/config"
)

// Defaults applied when the provider entry leaves them empty.
const (
	DefaultNamespace     = "openshift"
	DefaultLabelSelector = "template.kubevirt.io/type=base"
	DefaultAPIPort       = 6443
)

// TemplateResource is the OpenShift template resource.
var TemplateResource = schema.GroupVersionResource{
	Group:    "template.openshift.io",
	Version:  "v1",
	Resource: "templates",
}

const listPageSize = 500

// Client lists templates in one namespace.
type Client struct {
	dynamic       dynamic.Interface
	namespace     string
	labelSelector string
}

// NewClient wraps an existing dynamic client.
func NewClient(dyn dynamic.Interface, namespace, labelSelector string) *Client {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if labelSelector == "" {
		labelSelector = DefaultLabelSelector
	}
	return &Client{dynamic: dyn, namespace: namespace, labelSelector: labelSelector}
}

// NewFromConfig builds a client from a registry entry. A kubeconfig
// credential (path or inline document) takes precedence over a token.
func NewFromConfig(p config.Provider, cred config.Credential) (*Client, error) {
	restCfg, err := restConfig(p, cred)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", p.Key, err)
	}

	dyn, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	return NewClient(dyn, p.Namespace, p.LabelSelector), nil
}

func restConfig(p config.Provider, cred config.Credential) (*rest.Config, error) {
	switch {
	case strings.Contains(cred.Kubeconfig, "apiVersion:"):
		cfg, err := clientcmd.RESTConfigFromKubeConfig([]byte(cred.Kubeconfig))
		if err != nil {
			return nil, fmt.Errorf("failed to build kubeconfig from bytes: %w", err)
		}
		return cfg, nil
	case cred.Kubeconfig != "":
		if _, err := os.Stat(cred.Kubeconfig); err != nil {
			return nil, fmt.Errorf("kubeconfig: %w", err)
		}
		cfg, err := clientcmd.BuildConfigFromFlags("", cred.Kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
		}
		return cfg, nil
	case cred.Token != "":
		host := p.Host()
		if host == "" {
			return nil, fmt.Errorf("no hostname configured")
		}
		ep, _ := p.DefaultEndpoint()
		port := ep.APIPort
		if port == 0 {
			port = DefaultAPIPort
		}
		cfg := &rest.Config{
			Host:        "https://" + net.JoinHostPort(host, strconv.Itoa(port)),
			BearerToken: cred.Token,
		}
		if ep.VerifyTLS != nil && !*ep.VerifyTLS {
			cfg.TLSClientConfig.Insecure = true
		}
		if ep.CACerts != "" {
			cfg.TLSClientConfig.CAFile = ep.CACerts
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("%w: kubeconfig or token required", config.ErrMissingCredentials)
	}
}

// ListTemplates returns the names of all matching templates, following
// list continuation tokens.
func (c *Client) ListTemplates(ctx context.Context) ([]string, error) {
	var names []string
	opts := metav1.ListOptions{LabelSelector: c.labelSelector, Limit: listPageSize}

	for {
		list, err := c.dynamic.Resource(TemplateResource).Namespace(c.namespace).List(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list templates in %s: %w", c.namespace, err)
		}
		for _, item := range list.Items {
			names = append(names, item.GetName())
		}
		if list.GetContinue() == "" {
			return names, nil
		}
		opts.Continue = list.GetContinue()
	}
}

// IsTransient reports whether a Kubernetes API error is throttling, a
// timeout or a server-side failure.
func IsTransient(err error) bool {
	return apierrors.IsTooManyRequests(err) ||
		apierrors.IsServerTimeout(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsInternalError(err)
}

// Package provider turns registry entries into template Listers.
//
// Each provider type maps to a Factory in a dispatch table. A Pool builds
// and caches one Lister per provider key; building is serialized so that
// management clients are never set up concurrently for the same key, while
// listing itself runs without holding the lock.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/imamik/tracksync/internal/config"
)

// ErrUnsupportedType is returned for provider types without a strategy.
var ErrUnsupportedType = errors.New("unsupported provider type")

// Lister lists the template names a provider currently exposes.
type Lister interface {
	ListTemplates(ctx context.Context) ([]string, error)
}

// ListerFunc adapts a function to the Lister interface.
type ListerFunc func(ctx context.Context) ([]string, error)

// ListTemplates calls f.
func (f ListerFunc) ListTemplates(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// Factory builds the Lister for one provider.
type Factory func(ctx context.Context, p config.Provider, cred config.Credential) (Lister, error)

// Strategies maps provider types to factories.
type Strategies map[string]Factory

// Pool hands out Listers per provider key.
type Pool struct {
	registry    *config.Registry
	credentials config.Credentials
	strategies  Strategies

	mu      sync.Mutex
	listers map[string]Lister
}

// NewPool creates a pool. A nil strategies table uses DefaultStrategies.
func NewPool(reg *config.Registry, creds config.Credentials, strategies Strategies) *Pool {
	if strategies == nil {
		strategies = DefaultStrategies()
	}
	if creds == nil {
		creds = config.Credentials{}
	}
	return &Pool{
		registry:    reg,
		credentials: creds,
		strategies:  strategies,
		listers:     map[string]Lister{},
	}
}

// Lister returns the Lister for key, building it on first use.
func (p *Pool) Lister(ctx context.Context, key string) (Lister, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.listers[key]; ok {
		return l, nil
	}

	prov, ok := p.registry.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownProvider, key)
	}
	factory, ok := p.strategies[prov.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q (provider %s)", ErrUnsupportedType, prov.Type, key)
	}
	cred, err := p.credentials.Lookup(prov.CredentialsRef())
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", key, err)
	}

	l, err := factory(ctx, prov, cred)
	if err != nil {
		return nil, fmt.Errorf("failed to set up provider %s: %w", key, err)
	}
	p.listers[key] = l
	return l, nil
}

// ListTemplates acquires the Lister for key and lists its templates.
func (p *Pool) ListTemplates(ctx context.Context, key string) ([]string, error) {
	l, err := p.Lister(ctx, key)
	if err != nil {
		return nil, err
	}
	return l.ListTemplates(ctx)
}

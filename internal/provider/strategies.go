package provider

import (
	"context"

	"github.com/imamik/tracksync/internal/config"
	"github.com/imamik/tracksync/internal/platform/hcloud"
	"github.com/imamik/tracksync/internal/platform/kubevirt"
	"github.com/imamik/tracksync/internal/platform/rhevm"
	"github.com/imamik/tracksync/internal/platform/s3"
)

// Provider types with a listing strategy.
const (
	TypeRHEVM    = "rhevm"
	TypeHCloud   = "hcloud"
	TypeS3       = "s3"
	TypeKubeVirt = "kubevirt"
)

// DefaultStrategies returns the built-in dispatch table.
func DefaultStrategies() Strategies {
	return Strategies{
		TypeRHEVM: func(_ context.Context, p config.Provider, cred config.Credential) (Lister, error) {
			return rhevm.NewFromConfig(p, cred)
		},
		TypeHCloud: func(_ context.Context, p config.Provider, cred config.Credential) (Lister, error) {
			return hcloud.NewFromConfig(p, cred)
		},
		TypeS3: func(ctx context.Context, p config.Provider, cred config.Credential) (Lister, error) {
			return s3.NewFromConfig(ctx, p, cred)
		},
		TypeKubeVirt: func(_ context.Context, p config.Provider, cred config.Credential) (Lister, error) {
			return kubevirt.NewFromConfig(p, cred)
		},
	}
}

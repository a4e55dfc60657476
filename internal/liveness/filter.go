package liveness

import (
	"context"

	"github.com/go-logr/logr"
)

// Target is one provider to check.
type Target struct {
	Key     string
	Address string
}

// Filter checks targets one after another. Targets without an address are
// always kept. It returns the live keys and the keys that failed, both in
// input order.
func Filter(ctx context.Context, checker Checker, targets []Target, log logr.Logger) (live, dead []string) {
	for _, t := range targets {
		if t.Address == "" {
			live = append(live, t.Key)
			continue
		}
		if checker.Alive(ctx, t.Address) {
			live = append(live, t.Key)
			continue
		}
		log.Info("provider failed liveness check, skipping", "provider", t.Key, "address", t.Address)
		dead = append(dead, t.Key)
	}
	return live, dead
}

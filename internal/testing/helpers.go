package testing

import (
	"context"
	"testing"
	"time"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

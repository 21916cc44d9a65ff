package shared

import (
	"context"

	"github.com/odyssey-erp/odyssey-desk/internal/rbac"
)

type capabilityContextKey struct{}

// ContextWithCapability stores the request capability in context.
func ContextWithCapability(ctx context.Context, c rbac.Capability) context.Context {
	return context.WithValue(ctx, capabilityContextKey{}, c)
}

// CapabilityFromContext extracts the request capability. The zero value
// denies everything.
func CapabilityFromContext(ctx context.Context) rbac.Capability {
	c, _ := ctx.Value(capabilityContextKey{}).(rbac.Capability)
	return c
}

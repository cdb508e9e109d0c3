package shared

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the authenticated caller scoped to one company. Authentication
// itself happens upstream; the gateway forwards the resolved ids.
type Identity struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

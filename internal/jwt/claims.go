package jwt

import (
	"context"
	"slices"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
)

var _ validator.CustomClaims = (*PermissionClaims)(nil)

// PermissionClaims are the non-registered claims this API reads from an
// access token: the set of permissions granted to the caller.
type PermissionClaims struct {
	Permissions []string `json:"permissions"`
}

// Validate normalizes an absent permissions claim to an empty set. No
// permission is required at validation time: that is decided per route.
func (c *PermissionClaims) Validate(_ context.Context) error {
	if c.Permissions == nil {
		c.Permissions = []string{}
	}
	return nil
}

// Has reports whether the permission was granted.
func (c *PermissionClaims) Has(permission string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Permissions, permission)
}

// ClaimsFromContext returns the validated claims from the context as set by
// the JWT middleware. This will return nil if the context data is not set.
// This should be regarded as an error for handlers that expect the claims to
// be present.
func ClaimsFromContext(ctx context.Context) *validator.ValidatedClaims {
	claims, _ := ctx.Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	return claims
}

// ContextWithClaims returns a context holding the claims where the JWT
// middleware would place them.
func ContextWithClaims(ctx context.Context, claims *validator.ValidatedClaims) context.Context {
	return context.WithValue(ctx, jwtmiddleware.ContextKey{}, claims)
}

// PermissionClaimsFromContext returns the permission claims of the validated
// token, or nil if there are none.
func PermissionClaimsFromContext(ctx context.Context) *PermissionClaims {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return nil
	}

	permissions, _ := claims.CustomClaims.(*PermissionClaims)
	return permissions
}

// RequireClaimsFromContext returns the validated claims, panicking if they
// are absent. Use only behind the authorization middleware.
func RequireClaimsFromContext(ctx context.Context) *validator.ValidatedClaims {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		panic("validated claims not present in context, likely used outside of the JWT middleware")
	}
	return claims
}

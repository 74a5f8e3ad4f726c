package gateway

import "context"

// User is the authenticated principal projected from ID-token claims or
// the UserInfo endpoint (spec §3 "User"). Roles and Groups drive
// per-route authorization checks (spec §4.2); Tenant, when present, is
// propagated to the upstream via the X-TENANT-ID header.
type User struct {
	ID         string
	FullName   string
	GivenName  string
	FamilyName string
	Username   string
	Email      string
	Roles      []string
	Groups     []string
	Tenant     string // empty means absent
}

// HasTenant reports whether the user carries a tenant scope.
func (u *User) HasTenant() bool {
	return u != nil && u.Tenant != ""
}

type userContextKey struct{}

// ContextWithUser attaches user (which may be nil) to ctx. The OIDC/
// session subsystem (internal/auth) calls this after extracting the
// caller's identity from the session cookie, before the request reaches
// the route pipeline.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the User attached by ContextWithUser, or nil
// if none was attached (no session, invalid session, or auth disabled).
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey{}).(*User)
	return u
}

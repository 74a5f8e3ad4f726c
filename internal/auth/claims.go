package auth

import "github.com/meshgate/platform/internal/gateway"

// userFromClaims projects an ID-token or UserInfo claim set into a
// gateway.User (spec §4.3 step 4). Grounded on original_source's
// openid/user.rs::User, which reads realm_access.roles, groups, and
// tenant as provider-specific additional claims alongside the standard
// OIDC profile claims.
func userFromClaims(claims map[string]interface{}) *gateway.User {
	return &gateway.User{
		ID:         stringClaim(claims, "sub"),
		FullName:   stringClaim(claims, "name"),
		GivenName:  stringClaim(claims, "given_name"),
		FamilyName: stringClaim(claims, "family_name"),
		Username:   stringClaim(claims, "preferred_username"),
		Email:      stringClaim(claims, "email"),
		Roles:      realmRoles(claims),
		Groups:     stringSliceClaim(claims, "groups"),
		Tenant:     stringClaim(claims, "tenant"),
	}
}

func stringClaim(claims map[string]interface{}, key string) string {
	v, _ := claims[key].(string)
	return v
}

// realmRoles reads roles from the nested realm_access.roles claim (the
// shape a Keycloak-style provider issues) and falls back to a top-level
// roles claim for providers that flatten it.
func realmRoles(claims map[string]interface{}) []string {
	if realm, ok := claims["realm_access"].(map[string]interface{}); ok {
		if roles := stringSliceClaim(realm, "roles"); len(roles) > 0 {
			return roles
		}
	}
	return stringSliceClaim(claims, "roles")
}

func stringSliceClaim(claims map[string]interface{}, key string) []string {
	raw, ok := claims[key]
	if !ok {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserFromClaimsRealmAccessRoles(t *testing.T) {
	claims := map[string]interface{}{
		"sub":                "user-123",
		"name":               "Ada Lovelace",
		"given_name":         "Ada",
		"family_name":        "Lovelace",
		"preferred_username": "ada",
		"email":              "ada@example.com",
		"realm_access": map[string]interface{}{
			"roles": []interface{}{"admin", "operator"},
		},
		"groups": []interface{}{"platform"},
		"tenant": "acme",
	}

	user := userFromClaims(claims)

	require.Equal(t, "user-123", user.ID)
	require.Equal(t, "Ada Lovelace", user.FullName)
	require.Equal(t, "ada", user.Username)
	require.Equal(t, []string{"admin", "operator"}, user.Roles)
	require.Equal(t, []string{"platform"}, user.Groups)
	require.Equal(t, "acme", user.Tenant)
}

func TestUserFromClaimsFallsBackToTopLevelRoles(t *testing.T) {
	claims := map[string]interface{}{
		"sub":   "user-456",
		"roles": []interface{}{"viewer"},
	}

	user := userFromClaims(claims)

	require.Equal(t, []string{"viewer"}, user.Roles)
}

func TestUserFromClaimsMissingFieldsAreZeroValues(t *testing.T) {
	user := userFromClaims(map[string]interface{}{"sub": "user-789"})

	require.Equal(t, "user-789", user.ID)
	require.Empty(t, user.Roles)
	require.Empty(t, user.Groups)
	require.Empty(t, user.Tenant)
	require.False(t, user.HasTenant())
}

func TestDemoUser(t *testing.T) {
	user := demoUser()

	require.Equal(t, demoUserID, user.ID)
	require.Equal(t, []string{"demo"}, user.Roles)
	require.True(t, user.HasTenant())
}

package gateway

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadRoutesOrdersFragmentsByOrder(t *testing.T) {
	dir := t.TempDir()

	writeConfigFile(t, dir, "second.yaml", `
order: 2
routes:
  - id: b
    uri: http://b.internal
    predicates:
      - !path "/b"
`)
	writeConfigFile(t, dir, "first.yaml", `
order: 1
routes:
  - id: a
    uri: http://a.internal
    predicates:
      - !path "/a"
`)

	routes := LoadRoutes(dir)
	require.Len(t, routes, 2)
	require.Equal(t, "a", routes[0].ID)
	require.Equal(t, "b", routes[1].ID)
}

func TestLoadRoutesPanicsOnDuplicateID(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "routes.yaml", `
order: 1
routes:
  - id: dup
    uri: http://a.internal
  - id: dup
    uri: http://b.internal
`)

	require.Panics(t, func() { LoadRoutes(dir) })
}

func TestLoadRoutesPanicsOnInvalidPredicateRegex(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "routes.yaml", `
order: 1
routes:
  - id: bad
    uri: http://a.internal
    predicates:
      - !path "("
`)

	require.Panics(t, func() { LoadRoutes(dir) })
}

func TestLoadRoutesPanicsOnMissingUpstreamHost(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "routes.yaml", `
order: 1
routes:
  - id: bad
    uri: /no-host
`)

	require.Panics(t, func() { LoadRoutes(dir) })
}

func TestLoadRoutesCompilesFiltersAndAuthorizations(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "routes.yaml", `
order: 1
routes:
  - id: svc
    uri: http://svc.internal
    filters:
      - !rewrite_path
        source: "^/api/(?P<rest>.*)"
        dest: "/${rest}"
      - !add_request_header
        key: X-Forwarded-By
        value: gateway
    authorizations:
      - method: GET
        has_roles: ["admin"]
`)

	routes := LoadRoutes(dir)
	require.Len(t, routes, 1)
	route := routes[0]
	require.Len(t, route.Filters, 2)
	require.Len(t, route.Authorizations, 1)
	require.Equal(t, "GET", route.Authorizations[0].Method)
	require.Equal(t, []string{"admin"}, route.Authorizations[0].HasRoles)
}

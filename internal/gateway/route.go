package gateway

import (
	"fmt"
	"net/http"
	"net/url"
)

// Authorization is a per-method requirement on a user's roles and
// groups (spec §3 "Authorization"). Multiple authorizations on one
// route are AND-combined.
type Authorization struct {
	Method    string // as configured; only triggers on this method (case-insensitive)
	HasRoles  []string
	HasGroups []string
}

// Route is one compiled predicate/filter/authorization bundle plus an
// upstream base URI (spec §3 "Route").
type Route struct {
	ID             string
	URI            *url.URL
	HostHeader     string
	Predicates     []Predicate
	Filters        []Filter
	Authorizations []Authorization
}

// compileRoute turns a RouteConfig into a Route, panicking on any of the
// fail-fast invariants in spec §4.2: invalid regex, missing upstream
// host. Duplicate ids are checked by the caller across the whole table.
func compileRoute(cfg RouteConfig) *Route {
	if cfg.ID == "" {
		panic("gateway: route has empty id")
	}

	uri, err := url.Parse(cfg.URI)
	if err != nil {
		panic(fmt.Sprintf("gateway: route %q has invalid uri %q: %v", cfg.ID, cfg.URI, err))
	}
	if uri.Host == "" {
		panic(fmt.Sprintf("gateway: route %q is missing an upstream host in uri %q", cfg.ID, cfg.URI))
	}

	route := &Route{
		ID:         cfg.ID,
		URI:        uri,
		HostHeader: uri.Host,
	}

	for _, p := range cfg.Predicates {
		compiled, err := compilePredicate(p)
		if err != nil {
			panic(fmt.Sprintf("gateway: route %q has invalid predicate: %v", cfg.ID, err))
		}
		route.Predicates = append(route.Predicates, compiled)
	}

	for _, f := range cfg.Filters {
		compiled, err := compileFilter(f)
		if err != nil {
			panic(fmt.Sprintf("gateway: route %q has invalid filter: %v", cfg.ID, err))
		}
		route.Filters = append(route.Filters, compiled)
	}

	for _, a := range cfg.Authorizations {
		route.Authorizations = append(route.Authorizations, Authorization{
			Method:    a.Method,
			HasRoles:  a.HasRoles,
			HasGroups: a.HasGroups,
		})
	}

	return route
}

// Matches reports whether all of the route's predicates match the
// request (spec §4.2 "A route matches when all its predicates match").
// A route with no predicates matches everything.
func (r *Route) Matches(req *http.Request) bool {
	for _, p := range r.Predicates {
		if !p.Matches(req) {
			return false
		}
	}
	return true
}

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/meshgate/platform/internal/apperr"
	"github.com/meshgate/platform/internal/logging"
)

// errUpstreamForbidden is a sentinel threaded from Forwarder's
// ModifyResponse hook to its ErrorHandler hook: httputil.ReverseProxy
// only gives us one place (ErrorHandler) to short-circuit the response
// it has already started to forward, so ModifyResponse returning this
// error is how an upstream 401/403 gets turned into an error the
// handler can recognize (spec §4.2 "Forwarding").
var errUpstreamForbidden = errors.New("gateway: upstream returned 401/403")

// Forwarder is the request pipeline described in spec §4.2: match one
// route, apply its filters, check its authorizations, rewrite the
// request, and forward it via a shared transport. Grounded on the
// teacher's SelkiesProxyHandler.proxyToService
// (internal/handlers/selkies_proxy.go), which composes
// httputil.NewSingleHostReverseProxy with a custom Director and
// ErrorHandler; this adds ModifyResponse for the upstream-403 case and
// replaces the teacher's single in-cluster target with the compiled
// route table.
type Forwarder struct {
	routes    []*Route
	transport http.RoundTripper
}

// NewForwarder builds a Forwarder over routes using transport as the
// shared HTTPS-capable connection pool (spec §4.2 "Forwarding"). A nil
// transport falls back to http.DefaultTransport.
func NewForwarder(routes []*Route, transport http.RoundTripper) *Forwarder {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Forwarder{routes: routes, transport: transport}
}

// ServeHTTP implements the full pipeline. The caller is responsible for
// having already attached the request's User (if any) via
// ContextWithUser before calling this — the pipeline only reads it.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logging.Gateway()

	route := f.match(r)
	if route == nil {
		writeJSONError(w, apperr.New(apperr.CodeRouteNotMatched, "no route matched request"))
		return
	}

	wr := newWorkingRequest(r)
	for _, filter := range route.Filters {
		filter.Apply(wr)
	}

	user := UserFromContext(r.Context())
	if len(route.Authorizations) > 0 {
		if user == nil {
			log.Warn().Str("route", route.ID).Msg("authorization required but no user in context")
			redirectToLogout(w, r)
			return
		}
		if !authorize(route.Authorizations, r.Method, user) {
			log.Warn().Str("route", route.ID).Str("user", user.ID).Msg("authorization check failed")
			redirectToLogout(w, r)
			return
		}
		if user.HasTenant() {
			wr.header.Set("X-TENANT-ID", user.Tenant)
		}
	}

	target, err := url.Parse(route.URI.String() + wr.pathQuery)
	if err != nil {
		log.Error().Err(err).Str("route", route.ID).Msg("rewritten uri failed to parse")
		writeJSONError(w, apperr.Wrap(apperr.CodeInternalServer, "invalid rewritten uri", err))
		return
	}

	proxy := &httputil.ReverseProxy{
		Transport: f.transport,
		Director: func(req *http.Request) {
			req.URL = target
			req.Header = wr.header
			req.Header.Del("Host")
			req.Host = route.HostHeader
		},
		ModifyResponse: func(resp *http.Response) error {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return errUpstreamForbidden
			}
			return nil
		},
		ErrorHandler: func(rw http.ResponseWriter, req *http.Request, err error) {
			if errors.Is(err, errUpstreamForbidden) {
				redirectToLogout(rw, req)
				return
			}
			log.Error().Err(err).Str("route", route.ID).Msg("upstream request failed")
			writeJSONError(rw, apperr.Wrap(apperr.CodeUpstreamUnavailable, "upstream request failed", err))
		},
	}
	proxy.ServeHTTP(w, r)
}

// match returns the first route (in declared order) all of whose
// predicates match r (spec §4.2 "Matching").
func (f *Forwarder) match(r *http.Request) *Route {
	for _, route := range f.routes {
		if route.Matches(r) {
			return route
		}
	}
	return nil
}

// authorize reports whether user satisfies every authorization whose
// method matches the request (spec §4.2 "Authorization check").
// Authorizations are AND-combined; a non-matching method is vacuously
// satisfied.
func authorize(auths []Authorization, method string, user *User) bool {
	for _, a := range auths {
		if !strings.EqualFold(a.Method, method) {
			continue
		}
		if !containsAll(user.Roles, a.HasRoles) || !containsAll(user.Groups, a.HasGroups) {
			return false
		}
	}
	return true
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func redirectToLogout(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/logout", http.StatusPermanentRedirect)
}

func writeJSONError(w http.ResponseWriter, appErr *apperr.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(appErr.ToResponse())
}

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func newRoute(t *testing.T, upstream string, auths []Authorization) *Route {
	t.Helper()
	u, err := url.Parse(upstream)
	require.NoError(t, err)
	return &Route{
		ID:             "test-route",
		URI:            u,
		HostHeader:     u.Host,
		Predicates:     []Predicate{},
		Authorizations: auths,
	}
}

func TestForwarderNoRouteMatched(t *testing.T) {
	forwarder := NewForwarder(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()

	forwarder.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestForwarderRedirectsToLogoutWithoutUser(t *testing.T) {
	route := newRoute(t, "http://upstream.internal", []Authorization{
		{Method: "GET", HasRoles: []string{"admin"}},
	})
	forwarder := NewForwarder([]*Route{route}, http.DefaultTransport)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	forwarder.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPermanentRedirect, rec.Code)
	require.Equal(t, "/logout", rec.Header().Get("Location"))
}

func TestForwarderRedirectsToLogoutOnMissingRole(t *testing.T) {
	route := newRoute(t, "http://upstream.internal", []Authorization{
		{Method: "GET", HasRoles: []string{"admin"}},
	})
	forwarder := NewForwarder([]*Route{route}, http.DefaultTransport)

	user := &User{ID: "u1", Roles: []string{"viewer"}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithUser(req.Context(), user))
	rec := httptest.NewRecorder()

	forwarder.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPermanentRedirect, rec.Code)
}

func TestForwarderForwardsAuthorizedRequestAndSetsTenantHeader(t *testing.T) {
	var gotHost, gotTenant string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		gotTenant = r.Header.Get("X-TENANT-ID")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	route := newRoute(t, upstream.URL, []Authorization{
		{Method: "GET", HasRoles: []string{"admin"}},
	})
	forwarder := NewForwarder([]*Route{route}, http.DefaultTransport)

	user := &User{ID: "u1", Roles: []string{"admin"}, Tenant: "acme"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithUser(req.Context(), user))
	rec := httptest.NewRecorder()

	forwarder.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "acme", gotTenant)
	require.NotEmpty(t, gotHost)
}

func TestForwarderRedirectsToLogoutOnUpstreamForbidden(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	route := newRoute(t, upstream.URL, nil)
	forwarder := NewForwarder([]*Route{route}, http.DefaultTransport)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	forwarder.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPermanentRedirect, rec.Code)
	require.Equal(t, "/logout", rec.Header().Get("Location"))
}

func TestUserFromContextRoundTrip(t *testing.T) {
	require.Nil(t, UserFromContext(context.Background()))

	user := &User{ID: "abc"}
	ctx := ContextWithUser(context.Background(), user)
	require.Same(t, user, UserFromContext(ctx))
}

func TestUserHasTenant(t *testing.T) {
	var nilUser *User
	require.False(t, nilUser.HasTenant())

	require.False(t, (&User{}).HasTenant())
	require.True(t, (&User{Tenant: "acme"}).HasTenant())
}

// yahooFinanceRewrite builds the rewrite_path filter from spec §8
// scenario 5: "/proxy/yahoo-finance/chart/**" -> "/v8/finance/chart/${s}".
func yahooFinanceRewrite(t *testing.T) Filter {
	t.Helper()
	filter, err := compileFilter(FilterConfig{
		Kind:   "rewrite_path",
		Source: `/proxy/yahoo-finance/chart/(?P<s>.*)`,
		Dest:   "/v8/finance/chart/${s}",
	})
	require.NoError(t, err)
	return filter
}

func TestRewritePathFilterExpandsNamedCapture(t *testing.T) {
	filter := yahooFinanceRewrite(t)

	req := httptest.NewRequest(http.MethodGet, "/proxy/yahoo-finance/chart/AAPL?range=1d", nil)
	wr := newWorkingRequest(req)

	filter.Apply(wr)

	require.Equal(t, "/v8/finance/chart/AAPL?range=1d", wr.pathQuery)
}

// TestRewritePathFilterIsDeterministic is the §8 "Filter determinism"
// property: running the chain twice on the same input yields the same
// output.
func TestRewritePathFilterIsDeterministic(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/proxy/yahoo-finance/chart/AAPL?range=1d", nil)

	wr1 := newWorkingRequest(req)
	yahooFinanceRewrite(t).Apply(wr1)

	wr2 := newWorkingRequest(req)
	yahooFinanceRewrite(t).Apply(wr2)

	require.Equal(t, wr1.pathQuery, wr2.pathQuery)
}

// TestForwarderAppliesRewritePathFilter exercises the full pipeline
// (spec §8 scenario 5): the upstream must see the rewritten path+query
// and the route's host header, not the original request's.
func TestForwarderAppliesRewritePathFilter(t *testing.T) {
	var gotPath, gotQuery, gotHost string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotHost = r.Host
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	u, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	route := &Route{
		ID:         "yahoo-finance",
		URI:        u,
		HostHeader: u.Host,
		Filters:    []Filter{yahooFinanceRewrite(t)},
	}
	forwarder := NewForwarder([]*Route{route}, http.DefaultTransport)

	req := httptest.NewRequest(http.MethodGet, "/proxy/yahoo-finance/chart/AAPL?range=1d", nil)
	rec := httptest.NewRecorder()

	forwarder.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	require.Equal(t, "range=1d", gotQuery)
	require.Equal(t, u.Host, gotHost)
}

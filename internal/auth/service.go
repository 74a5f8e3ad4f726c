// Package auth is the gateway's OIDC/session subsystem (spec §4.3): the
// /login, /login/authorized/:nonce, /logout, and /@me endpoints, plus
// the per-request user-extraction logic the route pipeline relies on to
// check authorizations. It composes internal/oidc (the provider
// collaborator) and internal/sessionstore (the session backend) and
// projects their output into gateway.User, the shape the pipeline
// understands.
//
// Grounded on the teacher's internal/auth/oidc.go (gin handler shape,
// cookie handling) and original_source's services/gateway/src/openid/
// (router.rs's login/login_authorized/logout handlers, user.rs's
// from_cookie extraction-with-refresh, and main.rs's demo_account
// fallback and nonce-in-path AUTH_REDIRECT_PATH).
package auth

import (
	"context"
	"time"

	"github.com/meshgate/platform/internal/gateway"
	"github.com/meshgate/platform/internal/oidc"
	"github.com/meshgate/platform/internal/sessionstore"
)

// CookieName is the session cookie (spec §6 "Gateway config format",
// scenario 7). Named independently of original_source's project-specific
// cookie name, per SPEC_FULL.md §9a.
const CookieName = "MESHGATE_SESSION"

// sessionTTL bounds how long a session survives in the store after it
// was last written (created or refreshed), independent of the OIDC access token's own expiry (which is checked
// and refreshed on each use, spec §4.3 step 3).
const sessionTTL = 24 * time.Hour

// demoUserID is the fixed subject used for the demo_account fallback
// (spec §4.3 step 5, SPEC_FULL.md §9a).
const demoUserID = "demo-user"

// Service wires the OIDC client and session store behind the handlers
// and middleware the gateway registers.
type Service struct {
	client      *oidc.Client
	store       *sessionstore.Store
	appRootURL  string
	demoAccount bool
}

// NewService discovers the OIDC provider and connects to the session
// store. Only called when spec §6's OPENID_ENABLED is true.
func NewService(ctx context.Context, cfg gateway.Config) (*Service, error) {
	client, err := oidc.New(ctx, oidc.Config{
		ClientID:           cfg.OpenIDClientID,
		ClientSecret:       cfg.OpenIDClientSecret,
		IssuerURL:          cfg.OpenIDIssuerURL,
		Scopes:             cfg.OpenIDScopes,
		InsecureSkipVerify: cfg.OpenIDInsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}

	store, err := sessionstore.New(cfg.SessionRedisURL, sessionTTL)
	if err != nil {
		return nil, err
	}

	return &Service{
		client:      client,
		store:       store,
		appRootURL:  cfg.AppRootURL,
		demoAccount: cfg.DemoAccount,
	}, nil
}

func demoUser() *gateway.User {
	return &gateway.User{
		ID:         demoUserID,
		FullName:   "Account Demo",
		GivenName:  "Account",
		FamilyName: "Demo",
		Username:   "demo",
		Email:      "demo@random.corp",
		Roles:      []string{"demo"},
		Groups:     []string{"demogroup"},
		Tenant:     "demo",
	}
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/meshgate/platform/internal/gateway"
)

// errNoSession is returned by extractUser when the request carries no
// usable session cookie — distinct from a store error: only this case
// falls through to demo_account; any other failure leaves the request
// anonymous.
var errNoSession = errors.New("auth: no session cookie")

// extractUser implements spec §4.3 steps 1-5: read the session cookie,
// load its bundle, refresh it if the access token has expired
// (destroying the session on refresh failure), and project its claims
// into a gateway.User — falling back to the UserInfo endpoint when no
// ID-token claims were stored.
func (s *Service) extractUser(r *http.Request) (*gateway.User, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, errNoSession
	}
	return s.userForSession(r.Context(), cookie.Value)
}

func (s *Service) userForSession(ctx context.Context, sessionID string) (*gateway.User, error) {
	bundle, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if bundle.Expired(time.Now()) {
		token, err := s.client.Refresh(ctx, bundle.RefreshToken)
		if err != nil {
			_ = s.store.Destroy(ctx, sessionID)
			return nil, err
		}
		bundle.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			bundle.RefreshToken = token.RefreshToken
		}
		bundle.Expiry = token.Expiry
		if err := s.store.Put(ctx, sessionID, bundle); err != nil {
			return nil, err
		}
	}

	if len(bundle.IDClaims) > 0 {
		return userFromClaims(bundle.IDClaims), nil
	}

	claims, err := s.client.UserInfo(ctx, bundle.AccessToken)
	if err != nil {
		_ = s.store.Destroy(ctx, sessionID)
		return nil, err
	}
	return userFromClaims(claims), nil
}

// fallbackUser returns the demo_account user when enabled, otherwise
// nil (spec §4.3 step 5: "DEMO_ACCOUNT=true" substitutes a canned user
// for a request that carries no session cookie).
func (s *Service) fallbackUser() *gateway.User {
	if !s.demoAccount {
		return nil
	}
	return demoUser()
}

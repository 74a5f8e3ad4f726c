package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/meshgate/platform/internal/gateway"
	"github.com/meshgate/platform/internal/sessionstore"
)

// Middleware attaches the caller's User to the request context without
// rejecting the request on extraction failure: the pipeline (not this
// middleware) enforces per-route authorization, mirroring
// original_source's main.rs handler, which treats the user as an
// Option<User> available to every proxied request. Falls back to
// demo_account when enabled and the request carries no session cookie;
// a cookie whose session cannot be resolved leaves the request anonymous.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.extractUser(c.Request)
		if errors.Is(err, errNoSession) {
			user = s.fallbackUser()
		}
		ctx := gateway.ContextWithUser(c.Request.Context(), user)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bundleFromToken(token *oauth2.Token, claims map[string]interface{}) sessionstore.Bundle {
	return sessionstore.Bundle{
		IDClaims:     claims,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
}

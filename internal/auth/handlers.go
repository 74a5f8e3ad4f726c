package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meshgate/platform/internal/gateway"
	"github.com/meshgate/platform/internal/logging"
)

// RegisterRoutes attaches the reserved auth endpoints (spec §4.3) ahead
// of the catch-all forwarder.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/login", s.handleLogin)
	r.GET("/login/authorized/:nonce", s.handleCallback)
	r.GET("/logout", s.handleLogout)
	r.GET("/@me", s.handleMe)
}

// handleLogin redirects to the provider's authorization endpoint,
// embedding a fresh nonce in the callback path (Design Note
// "Nonce-in-path"). A request that already carries a valid session
// skips the round trip and goes straight to /@me.
func (s *Service) handleLogin(c *gin.Context) {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		if _, err := s.userForSession(c.Request.Context(), cookie); err == nil {
			c.Redirect(http.StatusFound, "/@me")
			return
		}
	}

	nonce, err := newNonce()
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	redirectURL := s.appRootURL + "/login/authorized/" + nonce
	c.Redirect(http.StatusFound, s.client.AuthCodeURL(redirectURL, nonce))
}

// handleCallback completes the authorization-code flow: exchanges the
// code, verifies the ID token against the nonce carried in the path,
// creates a session, and sets the session cookie.
func (s *Service) handleCallback(c *gin.Context) {
	log := logging.OIDC()
	ctx := c.Request.Context()
	nonce := c.Param("nonce")
	code := c.Query("code")
	if code == "" {
		c.String(http.StatusBadRequest, "missing authorization code")
		return
	}

	redirectURL := s.appRootURL + "/login/authorized/" + nonce
	token, err := s.client.Exchange(ctx, redirectURL, code)
	if err != nil {
		log.Error().Err(err).Msg("oidc code exchange failed")
		c.String(http.StatusBadGateway, "authorization failed")
		return
	}

	claims, err := s.client.VerifyIDToken(ctx, token, nonce)
	if err != nil {
		log.Error().Err(err).Msg("id token verification failed")
		c.String(http.StatusForbidden, "authorization failed")
		return
	}

	sessionID, err := s.store.Create(ctx, bundleFromToken(token, claims))
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, sessionID, int(sessionTTL.Seconds()), "/", "", false, true)
	c.Redirect(http.StatusFound, "/@me")
}

// handleLogout revokes the session's tokens upstream, destroys it
// server-side, and clears the cookie (spec §4.3 "GET /logout").
func (s *Service) handleLogout(c *gin.Context) {
	log := logging.OIDC()
	ctx := c.Request.Context()

	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		if bundle, err := s.store.Get(ctx, cookie); err == nil {
			if err := s.client.Revoke(ctx, bundle.AccessToken, bundle.RefreshToken); err != nil {
				log.Warn().Err(err).Msg("token revocation failed")
			}
		}
		if err := s.store.Destroy(ctx, cookie); err != nil {
			log.Warn().Err(err).Msg("failed to destroy session")
		}
	}

	c.SetCookie(CookieName, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/login")
}

// handleMe returns the caller's profile, or redirects to /login when no
// session (and no demo_account fallback) resolved one.
func (s *Service) handleMe(c *gin.Context) {
	user := gateway.UserFromContext(c.Request.Context())
	if user == nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	c.JSON(http.StatusOK, user)
}

func newNonce() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

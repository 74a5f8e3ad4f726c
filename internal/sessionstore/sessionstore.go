// Package sessionstore is the key/value session store named in spec §9
// "Session storage": "A key/value store with TTL and atomic
// get-set-destroy is sufficient; the specific backend is pluggable."
// Adapted from the teacher's internal/cache/cache.go (Redis client
// setup, JSON marshaling, TTL semantics) and internal/auth/session_store.go
// (session key shape, CreateSession/GetSession/DeleteSession naming),
// narrowed from a generic cache to the one thing the gateway stores per
// session: an OIDC token bundle.
package sessionstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when sessionID has no bundle (expired,
// revoked, or never existed).
var ErrNotFound = errors.New("sessionstore: session not found")

// Bundle is the server-side state associated with a session (spec §3
// "Session"): the OIDC token bundle. IDClaims is nil when the provider
// issued no usable ID-token claims, in which case the UserInfo endpoint
// is consulted instead (spec §4.3 step 4).
type Bundle struct {
	IDClaims     map[string]interface{} `json:"id_claims,omitempty"`
	AccessToken  string                  `json:"access_token"`
	RefreshToken string                  `json:"refresh_token,omitempty"`
	Expiry       time.Time               `json:"expiry"`
}

// Expired reports whether the bundle's access token has expired as of
// now (spec §4.3 step 3, "now >= claim exp").
func (b Bundle) Expired(now time.Time) bool {
	return !b.Expiry.IsZero() && !now.Before(b.Expiry)
}

// Store is a Redis-backed session store: one key per session id, TTL
// matching the configured session lifetime.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to redisURL (e.g. "redis://127.0.0.1:6379/0", spec §6
// SESSION_REDIS_URL) and returns a Store whose entries expire ttl after
// they were last written by Create or Put; Get does not extend it.
func New(redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return &Store{client: client, ttl: ttl}, nil
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// Create generates a fresh, URL-safe, high-entropy session id, stores
// bundle under it with the store's TTL, and returns the id (spec §4.3
// "create a new session storing the token bundle").
func (s *Store) Create(ctx context.Context, bundle Bundle) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", fmt.Errorf("sessionstore: generate session id: %w", err)
	}
	if err := s.Put(ctx, id, bundle); err != nil {
		return "", err
	}
	return id, nil
}

// Get loads the bundle stored under sessionID. Returns ErrNotFound if
// absent.
func (s *Store) Get(ctx context.Context, sessionID string) (Bundle, error) {
	var bundle Bundle
	data, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return bundle, ErrNotFound
	}
	if err != nil {
		return bundle, fmt.Errorf("sessionstore: get session: %w", err)
	}
	if err := json.Unmarshal(data, &bundle); err != nil {
		return bundle, fmt.Errorf("sessionstore: decode session: %w", err)
	}
	return bundle, nil
}

// Put atomically overwrites the bundle for sessionID (e.g. after a
// refresh) and resets its TTL.
func (s *Store) Put(ctx context.Context, sessionID string, bundle Bundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("sessionstore: encode session: %w", err)
	}
	if err := s.client.Set(ctx, key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("sessionstore: set session: %w", err)
	}
	return nil
}

// Destroy removes sessionID's bundle (spec §4.3 "GET /logout" — "destroy
// the session"). Idempotent: destroying an absent session is not an
// error.
func (s *Store) Destroy(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("sessionstore: destroy session: %w", err)
	}
	return nil
}

func key(sessionID string) string {
	return "gateway:session:" + sessionID
}

func newSessionID() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

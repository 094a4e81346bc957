// ABOUTME: Dashboard session guard with opaque bearer tokens
// ABOUTME: Issues crypto-random tokens and authorizes requests with constant-time comparison

package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrForbidden is returned for unknown or expired tokens. It carries no
// diagnostic detail; authorization failures are terminal for the request.
var ErrForbidden = errors.New("forbidden")

// tokenBytes is the raw entropy per token (base64url-encoded on the wire)
const tokenBytes = 32

// Context describes an authorized dashboard session
type Context struct {
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type entry struct {
	issuedAt  time.Time
	expiresAt time.Time
}

// Guard tracks dashboard sessions in process memory. Expiry is fixed at
// issuance with no sliding renewal; a restart invalidates every session.
type Guard struct {
	mu       sync.Mutex
	sessions map[string]entry

	ttl    time.Duration
	logger *slog.Logger

	now func() time.Time
}

// NewGuard creates a session guard with the given fixed token TTL
func NewGuard(ttl time.Duration) *Guard {
	return &Guard{
		sessions: make(map[string]entry),
		ttl:      ttl,
		logger:   slog.Default().With("component", "session"),
		now:      time.Now,
	}
}

// Issue mints a new bearer token with the guard's fixed TTL
func (g *Guard) Issue() (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked()

	now := g.now()
	g.sessions[token] = entry{issuedAt: now, expiresAt: now.Add(g.ttl)}

	g.logger.Info("issued dashboard session", "expires_at", now.Add(g.ttl))
	return token, nil
}

// Authorize validates a bearer token. Unknown or expired tokens get
// ErrForbidden. Tokens are compared in constant time; with a single admin
// the linear scan over live sessions is cheap.
func (g *Guard) Authorize(token string) (*Context, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked()

	for candidate, e := range g.sessions {
		if subtle.ConstantTimeCompare([]byte(token), []byte(candidate)) == 1 {
			return &Context{IssuedAt: e.issuedAt, ExpiresAt: e.expiresAt}, nil
		}
	}
	return nil, ErrForbidden
}

// Revoke deletes a session, ending it before its natural expiry
func (g *Guard) Revoke(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, token)
}

// sweepLocked lazily drops expired sessions
func (g *Guard) sweepLocked() {
	now := g.now()
	for token, e := range g.sessions {
		if now.After(e.expiresAt) {
			delete(g.sessions, token)
		}
	}
}

// generateToken returns a URL-safe base64 token from crypto/rand
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

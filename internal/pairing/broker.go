// ABOUTME: Pairing broker correlating chat-side code confirmation with web-side polling
// ABOUTME: Issues one-time numeric codes and exchanges verified sessions for dashboard tokens

package pairing

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnauthorized is returned when a non-admin identity requests a pairing code
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotVerified is returned when promoting a session that isn't verified
var ErrNotVerified = errors.New("pairing session not verified")

// ErrNotFound is returned when a correlation ID matches no live session
var ErrNotFound = errors.New("pairing session not found")

// Status of a pairing session as seen by the polling web client
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusNotFound Status = "not_found"
)

// TokenIssuer mints dashboard session tokens for promoted pairings
type TokenIssuer interface {
	Issue() (string, error)
}

// session is one outstanding pairing attempt. Lives only in process memory;
// a restart invalidates all pairings.
type session struct {
	code          string
	correlationID string
	requester     string
	verified      bool
	createdAt     time.Time
	expiresAt     time.Time
}

// Broker issues one-time pairing codes and tracks their lifecycle.
//
// State machine: pending -> verified -> promoted (terminal), or
// pending -> expired (terminal). Expired entries are purged lazily on
// access; a verified session never expires.
type Broker struct {
	mu       sync.Mutex
	sessions []*session // insertion order, scanned linearly (single admin, low cardinality)

	admin  string
	ttl    time.Duration
	issuer TokenIssuer
	logger *slog.Logger

	now func() time.Time
}

// New creates a pairing broker for the given admin identity.
// ttl bounds how long an unconfirmed code stays valid.
func New(admin string, ttl time.Duration, issuer TokenIssuer) *Broker {
	return &Broker{
		admin:  admin,
		ttl:    ttl,
		issuer: issuer,
		logger: slog.Default().With("component", "pairing"),
		now:    time.Now,
	}
}

// Issue creates a new pairing code for the requester. Only the configured
// admin identity may pair; anyone else gets ErrUnauthorized with no detail.
// Issuing invalidates any prior outstanding code for the same admin.
func (b *Broker) Issue(requester string) (code, correlationID string, err error) {
	if requester != b.admin {
		return "", "", ErrUnauthorized
	}

	code, err = generateCode()
	if err != nil {
		return "", "", fmt.Errorf("generating pairing code: %w", err)
	}
	correlationID = uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.purgeLocked()

	// At most one pending pairing per admin
	kept := b.sessions[:0]
	for _, s := range b.sessions {
		if s.requester != requester {
			kept = append(kept, s)
		}
	}
	b.sessions = kept

	now := b.now()
	b.sessions = append(b.sessions, &session{
		code:          code,
		correlationID: correlationID,
		requester:     requester,
		createdAt:     now,
		expiresAt:     now.Add(b.ttl),
	})

	b.logger.Info("issued pairing code", "correlation_id", correlationID)
	return code, correlationID, nil
}

// Confirm marks the first matching unexpired, unverified session as verified,
// in insertion order. No match, an expired code, or an already-verified
// session returns false without side effects.
func (b *Broker) Confirm(code string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.purgeLocked()

	for _, s := range b.sessions {
		if s.code == code && !s.verified {
			s.verified = true
			b.logger.Info("pairing code confirmed", "correlation_id", s.correlationID)
			return true
		}
	}
	return false
}

// Poll reports the state of a pairing session to the web client
func (b *Broker) Poll(correlationID string) Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.purgeLocked()

	for _, s := range b.sessions {
		if s.correlationID == correlationID {
			if s.verified {
				return StatusVerified
			}
			return StatusPending
		}
	}
	return StatusNotFound
}

// Promote exchanges a verified session for a dashboard session token and
// removes the pairing session. Single use: a second promote (or a late
// Confirm of the same code) fails, closing replay windows.
func (b *Broker) Promote(correlationID string) (string, error) {
	b.mu.Lock()
	var found *session
	for i, s := range b.sessions {
		if s.correlationID == correlationID {
			if !s.verified {
				b.mu.Unlock()
				if b.now().After(s.expiresAt) {
					return "", ErrNotFound
				}
				return "", ErrNotVerified
			}
			found = s
			b.sessions = append(b.sessions[:i], b.sessions[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	if found == nil {
		return "", ErrNotFound
	}

	// Token issuance happens outside the session lock
	token, err := b.issuer.Issue()
	if err != nil {
		return "", fmt.Errorf("issuing session token: %w", err)
	}

	b.logger.Info("pairing promoted to dashboard session", "correlation_id", correlationID)
	return token, nil
}

// purgeLocked removes expired, unverified sessions. Verified sessions are
// never removed here: the verified flag is checked before delete so a
// concurrently confirmed code can't be swept away.
func (b *Broker) purgeLocked() {
	now := b.now()
	kept := b.sessions[:0]
	for _, s := range b.sessions {
		if s.verified || now.Before(s.expiresAt) {
			kept = append(kept, s)
		}
	}
	// Drop references so purged sessions can be collected
	for i := len(kept); i < len(b.sessions); i++ {
		b.sessions[i] = nil
	}
	b.sessions = kept
}

// generateCode returns a 6-digit decimal code from crypto/rand
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

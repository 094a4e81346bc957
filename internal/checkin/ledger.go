// ABOUTME: Check-in ledger providing idempotent daily presence records
// ABOUTME: Gates recording on current membership and delegates dedup to the store

package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/rollcall/internal/store"
)

// Result of a check-in attempt. Duplicates are a normal reported outcome,
// never an error.
type Result int

const (
	// Inserted means a new check-in record was stored
	Inserted Result = iota
	// AlreadyPresent means an identical record already existed
	AlreadyPresent
	// NotMember means the identity is not on the tenant's roster; the
	// attempt is silently ignored, not rejected
	NotMember
	// Expired means the member's service period has lapsed
	Expired
)

// Store is the subset of persistence the ledger needs
type Store interface {
	GetMember(ctx context.Context, tenantID, externalID string) (*store.Member, error)
	InsertCheckin(ctx context.Context, tenantID, externalID, date string) (bool, error)
	RosterFor(ctx context.Context, tenantID, date string) ([]*store.Member, error)
}

// Ledger records check-ins and answers roster queries
type Ledger struct {
	store  Store
	logger *slog.Logger

	now func() time.Time
}

// NewLedger creates a check-in ledger backed by the given store
func NewLedger(s Store) *Ledger {
	return &Ledger{
		store:  s,
		logger: slog.Default().With("component", "checkin"),
		now:    time.Now,
	}
}

// Record stores a check-in for the member on the given date. Recording is a
// privilege of existing membership: unknown identities get NotMember with no
// error. Concurrent identical attempts are resolved by the storage layer's
// uniqueness constraint; the losing writer observes AlreadyPresent.
func (l *Ledger) Record(ctx context.Context, tenantID, externalID, date string) (Result, *store.Member, error) {
	member, err := l.store.GetMember(ctx, tenantID, externalID)
	if errors.Is(err, store.ErrNotFound) {
		l.logger.Debug("ignoring check-in from unregistered identity",
			"tenant", tenantID, "external_id", externalID)
		return NotMember, nil, nil
	}
	if err != nil {
		return NotMember, nil, fmt.Errorf("looking up member: %w", err)
	}

	if member.Expired(l.now()) {
		return Expired, member, nil
	}

	inserted, err := l.store.InsertCheckin(ctx, tenantID, externalID, date)
	if err != nil {
		return AlreadyPresent, member, fmt.Errorf("recording check-in: %w", err)
	}
	if !inserted {
		return AlreadyPresent, member, nil
	}

	l.logger.Info("recorded check-in", "tenant", tenantID, "external_id", externalID, "date", date)
	return Inserted, member, nil
}

// RosterFor returns the members checked in on the given date, carrying
// current member attributes and ordered by descending rank
func (l *Ledger) RosterFor(ctx context.Context, tenantID, date string) ([]*store.Member, error) {
	return l.store.RosterFor(ctx, tenantID, date)
}

// Today returns the current date in the ledger's canonical format
func (l *Ledger) Today() string {
	return l.now().Format(store.DateFormat)
}

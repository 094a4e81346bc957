// ABOUTME: Store interface and data types for rollcall persistence
// ABOUTME: Defines Tenant, Member, CheckinRecord structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// DateFormat is the canonical storage format for check-in dates
const DateFormat = "2006-01-02"

// Defaults for tenants created on first sight of a group chat.
const (
	DefaultPageSize = 10
	DefaultReaction = "✅"
	DefaultTemplate = "{name} | {area}"
)

// Tenant represents an isolated group scope owning its own roster and settings
type Tenant struct {
	ID        string // chat/group identifier, immutable after creation
	Name      string
	PageSize  int    // roster page size; <= 0 means single page
	Reaction  string // symbol attached to successful check-in messages
	Template  string // per-member roster line template
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Member represents a verified member of a tenant's roster.
// Members are created and updated only through the dashboard.
type Member struct {
	TenantID    string
	ExternalID  string // chat identity within the tenant
	DisplayName string
	Rank        int // descending sort order in roster output
	Area        string
	Price       string
	Size        string
	PhotoURL    string
	ExpiresAt   *time.Time // nil means no expiry
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether the member's service period has lapsed
func (m *Member) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && m.ExpiresAt.Before(now)
}

// CheckinRecord represents one member's presence on one date.
// Append-only; uniqueness of (tenant, member, date) is enforced by the
// storage layer.
type CheckinRecord struct {
	TenantID   string
	ExternalID string
	Date       string // DateFormat
	CreatedAt  time.Time
}

// AreaCount is a per-area check-in tally for the stats view
type AreaCount struct {
	Area  string
	Count int
}

// MemberFilter narrows ListMembers results
type MemberFilter struct {
	// Search matches against display name or external ID (substring)
	Search string
}

// Store defines the interface for tenant, member, and check-in persistence
type Store interface {
	// Tenants
	EnsureTenant(ctx context.Context, id, name string) (*Tenant, error)
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	UpdateTenantSettings(ctx context.Context, id string, pageSize int, reaction, template string) error

	// Members
	UpsertMember(ctx context.Context, member *Member) error
	GetMember(ctx context.Context, tenantID, externalID string) (*Member, error)
	DeleteMember(ctx context.Context, tenantID, externalID string) error
	ListMembers(ctx context.Context, tenantID string, filter MemberFilter) ([]*Member, error)
	CountMembers(ctx context.Context, tenantID string) (int, error)

	// Check-ins
	InsertCheckin(ctx context.Context, tenantID, externalID, date string) (inserted bool, err error)
	RosterFor(ctx context.Context, tenantID, date string) ([]*Member, error)
	CountCheckins(ctx context.Context, tenantID, date string) (int, error)
	RecentCheckins(ctx context.Context, tenantID string, limit int) ([]*CheckinRecord, error)
	AreaStats(ctx context.Context, tenantID, date string) ([]AreaCount, error)

	// Close releases any resources held by the store
	Close() error
}

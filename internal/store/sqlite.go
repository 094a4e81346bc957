// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides tenant/member/check-in persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// The pragma is in the DSN so it applies to every connection in the
	// database/sql pool, not just the one that runs the Exec below.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Wait instead of failing when concurrent writers contend
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			page_size INTEGER NOT NULL,
			reaction TEXT NOT NULL,
			template TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS members (
			tenant_id TEXT NOT NULL,
			external_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			rank INTEGER NOT NULL DEFAULT 0,
			area TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL DEFAULT '',
			size TEXT NOT NULL DEFAULT '',
			photo_url TEXT NOT NULL DEFAULT '',
			expires_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (tenant_id, external_id),
			FOREIGN KEY (tenant_id) REFERENCES tenants(id)
		);

		CREATE INDEX IF NOT EXISTS idx_members_tenant_rank
			ON members(tenant_id, rank DESC);

		CREATE TABLE IF NOT EXISTS checkins (
			tenant_id TEXT NOT NULL,
			external_id TEXT NOT NULL,
			date TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (tenant_id, external_id, date)
		);

		CREATE INDEX IF NOT EXISTS idx_checkins_tenant_date
			ON checkins(tenant_id, date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureTenant returns the tenant with the given ID, creating it with default
// settings if it doesn't exist yet. The name is only applied on creation.
func (s *SQLiteStore) EnsureTenant(ctx context.Context, id, name string) (*Tenant, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO tenants (id, name, page_size, reaction, template, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query,
		id, name, DefaultPageSize, DefaultReaction, DefaultTemplate,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("ensuring tenant: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Info("created tenant", "id", id, "name", name)
	}

	return s.GetTenant(ctx, id)
}

// GetTenant retrieves a tenant by ID
func (s *SQLiteStore) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	query := `
		SELECT id, name, page_size, reaction, template, created_at, updated_at
		FROM tenants
		WHERE id = ?
	`

	var t Tenant
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.PageSize, &t.Reaction, &t.Template,
		&createdAtStr, &updatedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tenant: %w", err)
	}

	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)
	return &t, nil
}

// UpdateTenantSettings updates a tenant's page size, reaction symbol, and template
func (s *SQLiteStore) UpdateTenantSettings(ctx context.Context, id string, pageSize int, reaction, template string) error {
	query := `
		UPDATE tenants
		SET page_size = ?, reaction = ?, template = ?, updated_at = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		pageSize, reaction, template, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating tenant settings: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Info("updated tenant settings", "id", id, "page_size", pageSize)
	return nil
}

// UpsertMember inserts or replaces a member row, preserving created_at on update
func (s *SQLiteStore) UpsertMember(ctx context.Context, member *Member) error {
	now := time.Now().UTC()
	var expiresAt any
	if member.ExpiresAt != nil {
		expiresAt = member.ExpiresAt.UTC().Format(time.RFC3339)
	}

	query := `
		INSERT INTO members (tenant_id, external_id, display_name, rank, area, price, size, photo_url, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, external_id) DO UPDATE SET
			display_name = excluded.display_name,
			rank = excluded.rank,
			area = excluded.area,
			price = excluded.price,
			size = excluded.size,
			photo_url = excluded.photo_url,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		member.TenantID, member.ExternalID, member.DisplayName, member.Rank,
		member.Area, member.Price, member.Size, member.PhotoURL, expiresAt,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting member: %w", err)
	}

	s.logger.Info("upserted member", "tenant", member.TenantID, "external_id", member.ExternalID)
	return nil
}

const memberColumns = `tenant_id, external_id, display_name, rank, area, price, size, photo_url, expires_at, created_at, updated_at`

// scanMember scans one member row from the given scanner
func scanMember(scan func(dest ...any) error) (*Member, error) {
	var m Member
	var expiresAt sql.NullString
	var createdAtStr, updatedAtStr string

	err := scan(
		&m.TenantID, &m.ExternalID, &m.DisplayName, &m.Rank,
		&m.Area, &m.Price, &m.Size, &m.PhotoURL, &expiresAt,
		&createdAtStr, &updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		t, err := time.Parse(time.RFC3339, expiresAt.String)
		if err == nil {
			m.ExpiresAt = &t
		}
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)
	return &m, nil
}

// GetMember retrieves a member by its composite key
func (s *SQLiteStore) GetMember(ctx context.Context, tenantID, externalID string) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE tenant_id = ? AND external_id = ?`

	row := s.db.QueryRowContext(ctx, query, tenantID, externalID)
	m, err := scanMember(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying member: %w", err)
	}
	return m, nil
}

// DeleteMember removes a member row
func (s *SQLiteStore) DeleteMember(ctx context.Context, tenantID, externalID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM members WHERE tenant_id = ? AND external_id = ?`,
		tenantID, externalID,
	)
	if err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Info("deleted member", "tenant", tenantID, "external_id", externalID)
	return nil
}

// ListMembers returns a tenant's members ordered by descending rank.
// A non-empty filter search narrows by display name or external ID substring.
func (s *SQLiteStore) ListMembers(ctx context.Context, tenantID string, filter MemberFilter) ([]*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE tenant_id = ?`
	args := []any{tenantID}

	if filter.Search != "" {
		query += ` AND (display_name LIKE ? OR external_id LIKE ?)`
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY rank DESC, external_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CountMembers returns the number of members in a tenant
func (s *SQLiteStore) CountMembers(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE tenant_id = ?`, tenantID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting members: %w", err)
	}
	return count, nil
}

// InsertCheckin records a check-in for the given member and date.
// Returns false if an identical record already exists; the primary key on
// (tenant_id, external_id, date) makes concurrent duplicates resolve here
// rather than in application code.
func (s *SQLiteStore) InsertCheckin(ctx context.Context, tenantID, externalID, date string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO checkins (tenant_id, external_id, date, created_at) VALUES (?, ?, ?, ?)`,
		tenantID, externalID, date, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("inserting checkin: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}

// RosterFor returns the members checked in on the given date, joined against
// current member attributes and ordered by descending rank. Check-ins from
// identities no longer in the member table are excluded.
func (s *SQLiteStore) RosterFor(ctx context.Context, tenantID, date string) ([]*Member, error) {
	query := `
		SELECT m.tenant_id, m.external_id, m.display_name, m.rank, m.area, m.price, m.size, m.photo_url, m.expires_at, m.created_at, m.updated_at
		FROM checkins c
		JOIN members m ON m.tenant_id = c.tenant_id AND m.external_id = c.external_id
		WHERE c.tenant_id = ? AND c.date = ?
		ORDER BY m.rank DESC, m.external_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, date)
	if err != nil {
		return nil, fmt.Errorf("querying roster: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning roster member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CountCheckins returns the number of check-ins for a tenant on a date
func (s *SQLiteStore) CountCheckins(ctx context.Context, tenantID, date string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checkins WHERE tenant_id = ? AND date = ?`,
		tenantID, date,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting checkins: %w", err)
	}
	return count, nil
}

// RecentCheckins returns the most recent check-in records for a tenant
func (s *SQLiteStore) RecentCheckins(ctx context.Context, tenantID string, limit int) ([]*CheckinRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id, external_id, date, created_at FROM checkins WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent checkins: %w", err)
	}
	defer rows.Close()

	var records []*CheckinRecord
	for rows.Next() {
		var r CheckinRecord
		var createdAtStr string
		if err := rows.Scan(&r.TenantID, &r.ExternalID, &r.Date, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning checkin: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
		records = append(records, &r)
	}
	return records, rows.Err()
}

// AreaStats returns per-area check-in counts for a tenant on a date, joined
// against current member attributes
func (s *SQLiteStore) AreaStats(ctx context.Context, tenantID, date string) ([]AreaCount, error) {
	query := `
		SELECT m.area, COUNT(*) AS count
		FROM checkins c
		JOIN members m ON m.tenant_id = c.tenant_id AND m.external_id = c.external_id
		WHERE c.tenant_id = ? AND c.date = ?
		GROUP BY m.area
		ORDER BY count DESC, m.area ASC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, date)
	if err != nil {
		return nil, fmt.Errorf("querying area stats: %w", err)
	}
	defer rows.Close()

	var stats []AreaCount
	for rows.Next() {
		var ac AreaCount
		if err := rows.Scan(&ac.Area, &ac.Count); err != nil {
			return nil, fmt.Errorf("scanning area stat: %w", err)
		}
		stats = append(stats, ac)
	}
	return stats, rows.Err()
}

// ABOUTME: Package documentation for store
// ABOUTME: Describes the SQLite persistence layer for rollcall

// Package store provides persistent storage for rollcall using SQLite.
//
// The Store interface covers three tables: tenants (per-group settings),
// members (the verified roster, keyed by tenant and chat identity), and
// checkins (append-only presence records, one per member per date).
//
// The checkins primary key is the durability boundary for idempotent
// check-ins: InsertCheckin is an atomic insert-if-absent, so concurrent
// identical check-ins resolve inside SQLite and the losing writer simply
// observes inserted=false.
package store

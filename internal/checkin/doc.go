// ABOUTME: Package documentation for checkin
// ABOUTME: Describes the idempotent daily check-in ledger

// Package checkin records idempotent, date-scoped presence for roster
// members. A check-in records presence only, not an attribute snapshot:
// roster queries join against current member rows, so later attribute
// edits retroactively affect historical roster display.
package checkin

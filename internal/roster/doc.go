// ABOUTME: Package documentation for roster
// ABOUTME: Describes pagination and template rendering of check-in rosters

// Package roster turns an ordered list of checked-in members into paginated,
// per-tenant-templated output for the chat and dashboard surfaces.
package roster

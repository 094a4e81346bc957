// ABOUTME: Package documentation for dedupe
// ABOUTME: Describes the TTL cache used for chat event deduplication

// Package dedupe provides a TTL-based, size-bounded cache of handled chat
// event IDs so redelivered events are processed at most once.
package dedupe

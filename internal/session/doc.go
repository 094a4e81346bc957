// ABOUTME: Package documentation for session
// ABOUTME: Describes dashboard bearer-token sessions

// Package session guards the web dashboard with process-local bearer tokens.
//
// Tokens are opaque 32-byte crypto/rand values granted by the pairing
// handshake, never persisted, and compared in constant time. The TTL is
// fixed at issuance; there is no sliding renewal.
package session

// ABOUTME: Package documentation for webadmin
// ABOUTME: Describes the dashboard HTTP surface

// Package webadmin serves the browser dashboard: a small HTML shell plus a
// JSON API guarded by bearer tokens from the pairing handshake.
//
// There is no password login. The /login page polls the pairing endpoint
// with a correlation ID; once the admin confirms the code in chat, the
// poll returns the session token exactly once and the page stores it for
// subsequent API calls.
package webadmin

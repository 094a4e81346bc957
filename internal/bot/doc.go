// ABOUTME: Package documentation for bot
// ABOUTME: Describes chat command routing for check-ins, rosters, and pairing

// Package bot routes inbound chat messages to rollcall's core components.
//
// Group chats get the check-in and roster commands; the admin's private
// chat carries the pairing handshake. The package is transport-agnostic:
// the Messenger interface is implemented by internal/matrix.
package bot

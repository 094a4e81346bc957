// ABOUTME: Package documentation for pairing
// ABOUTME: Describes the chat-to-web pairing handshake

// Package pairing implements the passwordless pairing handshake between the
// chat bot and the web dashboard.
//
// The admin starts pairing from chat and receives a short numeric code and a
// correlation ID. The web client polls with the correlation ID while the
// admin confirms the code back in chat. Once verified, a single Promote
// exchanges the pairing session for a dashboard bearer token and destroys
// the underlying code.
//
// All state is process-local and guarded by a single mutex; the chat path
// and the HTTP path share one Broker by reference.
package pairing

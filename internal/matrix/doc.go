// ABOUTME: Package documentation for matrix
// ABOUTME: Describes the Matrix transport frontend

// Package matrix connects the bot to a Matrix homeserver. It syncs room
// events, classifies rooms as private or group chats, deduplicates
// redelivered events, and implements the outbound messenger with
// markdown-formatted bodies.
package matrix

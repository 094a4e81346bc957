// ABOUTME: Messenger interface and inbound message types for the chat surface
// ABOUTME: Decouples command handling from the messaging transport

package bot

import "context"

// ChatKind distinguishes private chats from group chats
type ChatKind string

const (
	ChatPrivate ChatKind = "private"
	ChatGroup   ChatKind = "group"
)

// Message is one inbound chat message
type Message struct {
	Sender   string // sender identity
	ChatID   string // chat identity; for groups this is the tenant ID
	ChatName string // human-readable chat name, best effort
	Kind     ChatKind
	Text     string
	EventID  string // transport event ID, used for reactions
}

// NavControl is an inline navigation descriptor: a label plus either a URL
// or an opaque callback payload for the transport to attach.
type NavControl struct {
	Label    string
	URL      string
	Callback string
}

// Messenger is the outbound side of the messaging transport
type Messenger interface {
	// Reply sends a plain text reply into a chat
	Reply(ctx context.Context, chatID, text string) error

	// ReplyMarkdown sends a markdown-formatted reply, rendered richly by
	// transports that support it, with optional navigation controls
	ReplyMarkdown(ctx context.Context, chatID, markdown string, nav []NavControl) error

	// React attaches a reaction symbol to a message
	React(ctx context.Context, chatID, eventID, symbol string) error
}

// ABOUTME: Matrix frontend for the rollcall bot
// ABOUTME: Syncs with the homeserver and routes room messages to the command handler

package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/rollcall/internal/bot"
	"github.com/2389/rollcall/internal/dedupe"
)

// networkTimeout bounds outbound Matrix API calls
const networkTimeout = 10 * time.Second

// sendTimeout bounds message sends, which can be larger than other calls
const sendTimeout = 30 * time.Second

// mdRenderer is a goldmark instance for formatted message bodies.
// Raw HTML in the input is escaped, never passed through.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// Config holds Matrix connection settings
type Config struct {
	Homeserver   string
	UserID       string
	AccessToken  string
	AllowedRooms []string

	// RosterCommand is the chat token used to render page-navigation hints,
	// since Matrix has no inline buttons
	RosterCommand string
}

// MessageHandler consumes inbound chat messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg bot.Message)
}

// Client connects the bot to a Matrix homeserver. It implements
// bot.Messenger for the outbound side.
type Client struct {
	config  Config
	matrix  *mautrix.Client
	handler MessageHandler
	dedupe  *dedupe.Cache
	logger  *slog.Logger

	// kinds caches private/group classification per room
	kindMu sync.Mutex
	kinds  map[id.RoomID]bot.ChatKind

	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a Matrix client for the given account. The message
// handler is attached separately with SetHandler, since the handler's
// outbound messenger is this client.
func NewClient(cfg Config) (*Client, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	return &Client{
		config: cfg,
		matrix: client,
		dedupe: dedupe.New(time.Hour, 10000),
		logger: slog.Default().With("component", "matrix"),
		kinds:  make(map[id.RoomID]bot.ChatKind),
	}, nil
}

// SetHandler attaches the inbound message handler. Must be called before Run.
func (c *Client) SetHandler(h MessageHandler) {
	c.handler = h
}

// Run starts syncing and blocks until the context is cancelled or the sync
// loop fails.
func (c *Client) Run(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("no message handler attached")
	}

	c.logger.Info("starting matrix frontend",
		"homeserver", c.config.Homeserver,
		"user_id", c.config.UserID,
	)

	c.ctx, c.cancel = context.WithCancel(ctx)
	defer c.cancel()
	c.startedAt = time.Now()

	syncer, ok := c.matrix.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", c.matrix.Syncer)
	}
	syncer.OnEventType(event.EventMessage, c.handleMessageEvent)

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- c.matrix.SyncWithContext(c.ctx)
	}()

	select {
	case <-ctx.Done():
		c.logger.Info("shutting down matrix frontend")
		c.cancel()
		c.dedupe.Close()
		return nil
	case err := <-syncErr:
		c.dedupe.Close()
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

// handleMessageEvent filters one sync event and hands it to the command
// handler on its own goroutine so sync never blocks on command work.
func (c *Client) handleMessageEvent(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}

	// Initial sync replays room history; only react to live traffic
	if time.UnixMilli(evt.Timestamp).Before(c.startedAt) {
		return
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType != event.MsgText {
		return
	}

	// Sync can redeliver after reconnects
	if c.dedupe.CheckAndMark(evt.ID.String()) {
		c.logger.Debug("dropping duplicate event", "event_id", evt.ID)
		return
	}

	kind := c.roomKind(evt.RoomID)
	if kind == bot.ChatGroup && !c.isRoomAllowed(evt.RoomID.String()) {
		c.logger.Debug("ignoring message from non-allowed room", "room", evt.RoomID)
		return
	}

	msg := bot.Message{
		Sender:   evt.Sender.String(),
		ChatID:   evt.RoomID.String(),
		ChatName: c.roomName(evt.RoomID),
		Kind:     kind,
		Text:     content.Body,
		EventID:  evt.ID.String(),
	}

	go c.handler.HandleMessage(c.ctx, msg)
}

// roomKind classifies a room as private or group by member count: a room
// with just the bot and one other account is a private chat. The result is
// cached; membership churn in group rooms doesn't change the classification.
func (c *Client) roomKind(roomID id.RoomID) bot.ChatKind {
	c.kindMu.Lock()
	if kind, ok := c.kinds[roomID]; ok {
		c.kindMu.Unlock()
		return kind
	}
	c.kindMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
	defer cancel()

	kind := bot.ChatGroup
	resp, err := c.matrix.JoinedMembers(ctx, roomID)
	if err != nil {
		// Err on the group side; group commands are the safe subset
		c.logger.Warn("querying room members", "room", roomID, "error", err)
		return kind
	}
	if len(resp.Joined) <= 2 {
		kind = bot.ChatPrivate
	}

	c.kindMu.Lock()
	c.kinds[roomID] = kind
	c.kindMu.Unlock()
	return kind
}

// roomName fetches the room's display name, best effort
func (c *Client) roomName(roomID id.RoomID) string {
	ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
	defer cancel()

	var name event.RoomNameEventContent
	if err := c.matrix.StateEvent(ctx, roomID, event.StateRoomName, "", &name); err != nil {
		return ""
	}
	return name.Name
}

func (c *Client) isRoomAllowed(roomID string) bool {
	if len(c.config.AllowedRooms) == 0 {
		return true
	}
	for _, allowed := range c.config.AllowedRooms {
		if allowed == roomID {
			return true
		}
	}
	return false
}

// Reply sends a plain text message
func (c *Client) Reply(ctx context.Context, chatID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if _, err := c.matrix.SendText(ctx, id.RoomID(chatID), text); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// ReplyMarkdown sends a formatted message. The markdown source stays in the
// plain-text body for clients without HTML rendering. Matrix has no inline
// buttons, so navigation controls become links and reply hints appended to
// the message.
func (c *Client) ReplyMarkdown(ctx context.Context, chatID, markdown string, nav []bot.NavControl) error {
	markdown += c.renderNav(nav)

	var htmlBuf bytes.Buffer
	if err := mdRenderer.Convert([]byte(markdown), &htmlBuf); err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}

	content := &event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          markdown,
		Format:        event.FormatHTML,
		FormattedBody: htmlBuf.String(),
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if _, err := c.matrix.SendMessageEvent(ctx, id.RoomID(chatID), event.EventMessage, content); err != nil {
		return fmt.Errorf("sending formatted message: %w", err)
	}
	return nil
}

// renderNav turns navigation controls into markdown
func (c *Client) renderNav(nav []bot.NavControl) string {
	if len(nav) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n")
	for _, n := range nav {
		switch {
		case n.URL != "":
			fmt.Fprintf(&sb, "\n[%s](%s)", n.Label, n.URL)
		case n.Callback != "":
			var payload bot.NavPayload
			if err := json.Unmarshal([]byte(n.Callback), &payload); err != nil {
				continue
			}
			fmt.Fprintf(&sb, "\nReply `%s %d` for page %d", c.config.RosterCommand, payload.Page, payload.Page)
		}
	}
	return sb.String()
}

// React attaches a reaction to a message
func (c *Client) React(ctx context.Context, chatID, eventID, symbol string) error {
	ctx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()

	if _, err := c.matrix.SendReaction(ctx, id.RoomID(chatID), id.EventID(eventID), symbol); err != nil {
		return fmt.Errorf("sending reaction: %w", err)
	}
	return nil
}

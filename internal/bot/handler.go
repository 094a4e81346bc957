// ABOUTME: Chat command handler: check-in, roster, and pairing commands
// ABOUTME: Routes inbound messages to the ledger, broker, and roster renderer

package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/2389/rollcall/internal/checkin"
	"github.com/2389/rollcall/internal/pairing"
	"github.com/2389/rollcall/internal/roster"
	"github.com/2389/rollcall/internal/store"
)

// Fixed reply strings for the chat surface.
const (
	emptyRosterMessage = "No check-ins yet today."
	expiredMemberReply = "Your membership has expired."
	deniedReply        = "Not authorized."
	codeRejectedReply  = "That code is not valid."
	codeConfirmedReply = "Code confirmed. Return to your browser."
)

// codePattern matches a bare pairing code reply
var codePattern = regexp.MustCompile(`^\d{6}$`)

// TenantStore is the subset of persistence the handler needs directly
type TenantStore interface {
	EnsureTenant(ctx context.Context, id, name string) (*store.Tenant, error)
	GetTenant(ctx context.Context, id string) (*store.Tenant, error)
}

// Config holds the exact-match command tokens and the dashboard location
type Config struct {
	CheckinCommand string
	RosterCommand  string
	LoginCommand   string
	DashboardURL   string // base URL for pairing links
	AdminID        string // administrator chat identity
}

// NavPayload is the opaque callback payload attached to roster navigation
// controls, round-tripped through the transport.
type NavPayload struct {
	TenantID string `json:"tenant_id"`
	Page     int    `json:"page"`
}

// Handler routes chat commands. No failure here is fatal; every error is
// scoped to the single message that triggered it.
type Handler struct {
	store     TenantStore
	ledger    *checkin.Ledger
	broker    *pairing.Broker
	messenger Messenger
	config    Config
	logger    *slog.Logger
}

// NewHandler creates a chat command handler
func NewHandler(ts TenantStore, ledger *checkin.Ledger, broker *pairing.Broker, messenger Messenger, cfg Config) *Handler {
	return &Handler{
		store:     ts,
		ledger:    ledger,
		broker:    broker,
		messenger: messenger,
		config:    cfg,
		logger:    slog.Default().With("component", "bot"),
	}
}

// HandleMessage processes one inbound chat message
func (h *Handler) HandleMessage(ctx context.Context, msg Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if msg.Kind == ChatPrivate {
		h.handlePrivate(ctx, msg, text)
		return
	}

	h.handleGroup(ctx, msg, text)
}

// handlePrivate handles the pairing conversation with the admin
func (h *Handler) handlePrivate(ctx context.Context, msg Message, text string) {
	switch {
	case text == h.config.LoginCommand:
		code, correlationID, err := h.broker.Issue(msg.Sender)
		if errors.Is(err, pairing.ErrUnauthorized) {
			// Generic denial, no diagnostic detail
			h.reply(ctx, msg.ChatID, deniedReply)
			return
		}
		if err != nil {
			h.logger.Error("issuing pairing code", "error", err)
			return
		}

		md := fmt.Sprintf(
			"Open **%s/login?c=%s** in your browser, then reply here with the code **%s** to unlock the dashboard.\n\nThe code expires in a few minutes.",
			h.config.DashboardURL, correlationID, code,
		)
		nav := []NavControl{{Label: "Open dashboard", URL: fmt.Sprintf("%s/login?c=%s", h.config.DashboardURL, correlationID)}}
		if err := h.messenger.ReplyMarkdown(ctx, msg.ChatID, md, nav); err != nil {
			h.logger.Error("sending pairing reply", "error", err)
		}

	case codePattern.MatchString(text):
		if msg.Sender != h.config.AdminID {
			h.reply(ctx, msg.ChatID, deniedReply)
			return
		}
		if h.broker.Confirm(text) {
			h.reply(ctx, msg.ChatID, codeConfirmedReply)
		} else {
			h.reply(ctx, msg.ChatID, codeRejectedReply)
		}
	}
}

// handleGroup handles check-in and roster commands inside a group chat
func (h *Handler) handleGroup(ctx context.Context, msg Message, text string) {
	fields := strings.Fields(text)
	command := fields[0]

	switch {
	case text == h.config.CheckinCommand:
		h.handleCheckin(ctx, msg)

	case command == h.config.RosterCommand && len(fields) <= 2:
		page := 1
		if len(fields) == 2 {
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return
			}
			page = n
		}
		h.handleRoster(ctx, msg, page)
	}
}

func (h *Handler) handleCheckin(ctx context.Context, msg Message) {
	tenant, err := h.store.EnsureTenant(ctx, msg.ChatID, msg.ChatName)
	if err != nil {
		h.logger.Error("ensuring tenant", "chat", msg.ChatID, "error", err)
		return
	}

	result, member, err := h.ledger.Record(ctx, tenant.ID, msg.Sender, h.ledger.Today())
	if err != nil {
		h.logger.Error("recording check-in", "chat", msg.ChatID, "error", err)
		return
	}

	switch result {
	case checkin.Inserted:
		if err := h.messenger.React(ctx, msg.ChatID, msg.EventID, tenant.Reaction); err != nil {
			h.logger.Warn("attaching reaction", "error", err)
		}
		md := fmt.Sprintf("**%s** checked in!", member.DisplayName)
		if member.Area != "" {
			md += fmt.Sprintf("\nArea: %s", member.Area)
		}
		if err := h.messenger.ReplyMarkdown(ctx, msg.ChatID, md, nil); err != nil {
			h.logger.Error("sending check-in reply", "error", err)
		}

	case checkin.AlreadyPresent:
		// Normal outcome: acknowledge with the reaction only
		if err := h.messenger.React(ctx, msg.ChatID, msg.EventID, tenant.Reaction); err != nil {
			h.logger.Warn("attaching reaction", "error", err)
		}

	case checkin.Expired:
		h.reply(ctx, msg.ChatID, expiredMemberReply)

	case checkin.NotMember:
		// Check-in is a privilege of existing membership; stay silent
	}
}

func (h *Handler) handleRoster(ctx context.Context, msg Message, page int) {
	tenant, err := h.store.EnsureTenant(ctx, msg.ChatID, msg.ChatName)
	if err != nil {
		h.logger.Error("ensuring tenant", "chat", msg.ChatID, "error", err)
		return
	}
	h.sendRosterPage(ctx, tenant, page)
}

// HandleCallback processes an opaque navigation payload produced by a
// roster reply's nav controls.
func (h *Handler) HandleCallback(ctx context.Context, payload string) error {
	var nav NavPayload
	if err := json.Unmarshal([]byte(payload), &nav); err != nil {
		return fmt.Errorf("decoding nav payload: %w", err)
	}

	tenant, err := h.store.GetTenant(ctx, nav.TenantID)
	if err != nil {
		return fmt.Errorf("loading tenant: %w", err)
	}

	h.sendRosterPage(ctx, tenant, nav.Page)
	return nil
}

// sendRosterPage renders and sends one page of today's roster
func (h *Handler) sendRosterPage(ctx context.Context, tenant *store.Tenant, pageNum int) {
	date := h.ledger.Today()
	members, err := h.ledger.RosterFor(ctx, tenant.ID, date)
	if err != nil {
		h.logger.Error("querying roster", "tenant", tenant.ID, "error", err)
		return
	}

	if len(members) == 0 {
		h.reply(ctx, tenant.ID, emptyRosterMessage)
		return
	}

	page := roster.Paginate(members, tenant.PageSize, pageNum)

	var md strings.Builder
	fmt.Fprintf(&md, "**Roster %s** (page %d/%d)\n\n", date, page.Number, page.TotalPages)
	for _, m := range page.Items {
		// A broken tenant template degrades per line, never aborting the roster
		fmt.Fprintf(&md, "- %s\n", roster.RenderLine(tenant.Template, m))
	}

	var nav []NavControl
	if page.HasPrev {
		nav = append(nav, NavControl{Label: "◀ Prev", Callback: marshalNav(tenant.ID, page.Number-1)})
	}
	if page.HasNext {
		nav = append(nav, NavControl{Label: "Next ▶", Callback: marshalNav(tenant.ID, page.Number+1)})
	}

	if err := h.messenger.ReplyMarkdown(ctx, tenant.ID, md.String(), nav); err != nil {
		h.logger.Error("sending roster page", "tenant", tenant.ID, "error", err)
	}
}

func (h *Handler) reply(ctx context.Context, chatID, text string) {
	if err := h.messenger.Reply(ctx, chatID, text); err != nil {
		h.logger.Error("sending reply", "chat", chatID, "error", err)
	}
}

func marshalNav(tenantID string, page int) string {
	payload, _ := json.Marshal(NavPayload{TenantID: tenantID, Page: page})
	return string(payload)
}

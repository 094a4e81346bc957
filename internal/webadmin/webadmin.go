// ABOUTME: Admin web UI and JSON API for rollcall management
// ABOUTME: Provides pairing status polling, roster queries, member and tenant management

package webadmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2389/rollcall/internal/pairing"
	"github.com/2389/rollcall/internal/roster"
	"github.com/2389/rollcall/internal/session"
	"github.com/2389/rollcall/internal/store"
)

// Config holds admin UI configuration
type Config struct {
	// BaseURL is the external URL of the dashboard, used in page links
	BaseURL string
}

// Store is the persistence surface the dashboard needs
type Store interface {
	GetTenant(ctx context.Context, id string) (*store.Tenant, error)
	UpdateTenantSettings(ctx context.Context, id string, pageSize int, reaction, template string) error

	UpsertMember(ctx context.Context, member *store.Member) error
	GetMember(ctx context.Context, tenantID, externalID string) (*store.Member, error)
	DeleteMember(ctx context.Context, tenantID, externalID string) error
	ListMembers(ctx context.Context, tenantID string, filter store.MemberFilter) ([]*store.Member, error)
	CountMembers(ctx context.Context, tenantID string) (int, error)

	RosterFor(ctx context.Context, tenantID, date string) ([]*store.Member, error)
	CountCheckins(ctx context.Context, tenantID, date string) (int, error)
	RecentCheckins(ctx context.Context, tenantID string, limit int) ([]*store.CheckinRecord, error)
	AreaStats(ctx context.Context, tenantID, date string) ([]store.AreaCount, error)
}

// Admin handles dashboard routes and authorization
type Admin struct {
	store  Store
	broker *pairing.Broker
	guard  *session.Guard
	config Config
	logger *slog.Logger
}

// New creates a new Admin handler
func New(s Store, broker *pairing.Broker, guard *session.Guard, cfg Config) *Admin {
	return &Admin{
		store:  s,
		broker: broker,
		guard:  guard,
		config: cfg,
		logger: slog.Default().With("component", "webadmin"),
	}
}

// RegisterRoutes registers all dashboard routes on the given mux
func (a *Admin) RegisterRoutes(mux *http.ServeMux) {
	// HTML shell (pages carry no data; the API below is the guarded surface)
	mux.HandleFunc("GET /login", a.handleLoginPage)
	mux.HandleFunc("GET /{$}", a.handleDashboardPage)

	// Pairing (public: the correlation ID is the capability)
	mux.HandleFunc("GET /api/pairing/{id}", a.handlePairingStatus)

	// Guarded API
	mux.HandleFunc("GET /api/tenants/{id}/roster", a.requireAuth(a.handleRoster))
	mux.HandleFunc("GET /api/tenants/{id}/members", a.requireAuth(a.handleMembersList))
	mux.HandleFunc("POST /api/tenants/{id}/members", a.requireAuth(a.handleMemberUpsert))
	mux.HandleFunc("DELETE /api/tenants/{id}/members/{external}", a.requireAuth(a.handleMemberDelete))
	mux.HandleFunc("POST /api/tenants/{id}/settings", a.requireAuth(a.handleSettingsUpdate))
	mux.HandleFunc("GET /api/tenants/{id}/stats", a.requireAuth(a.handleStats))
	mux.HandleFunc("POST /api/logout", a.requireAuth(a.handleLogout))
}

// requireAuth gates a handler behind a valid bearer token. Failures get a
// generic denial with no diagnostic detail.
func (a *Admin) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			a.denyForbidden(w)
			return
		}
		if _, err := a.guard.Authorize(token); err != nil {
			a.denyForbidden(w)
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}

func (a *Admin) denyForbidden(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
}

// handlePairingStatus reports the pairing state for a correlation ID.
// When the pairing turns verified it is promoted immediately: the token is
// returned exactly once and the underlying code is invalidated.
func (a *Admin) handlePairingStatus(w http.ResponseWriter, r *http.Request) {
	correlationID := r.PathValue("id")

	switch a.broker.Poll(correlationID) {
	case pairing.StatusPending:
		writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})

	case pairing.StatusVerified:
		token, err := a.broker.Promote(correlationID)
		if err != nil {
			// Lost a race with a concurrent poll; the winner got the token
			a.logger.Warn("promote failed", "correlation_id", correlationID, "error", err)
			writeJSON(w, http.StatusNotFound, map[string]string{"status": "not_found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "verified", "token": token})

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "not_found"})
	}
}

// memberView is the JSON shape of a roster member
type memberView struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	Rank        int    `json:"rank"`
	Area        string `json:"area,omitempty"`
	Price       string `json:"price,omitempty"`
	Size        string `json:"size,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	Line        string `json:"line,omitempty"` // rendered roster line
}

func toMemberView(m *store.Member, template string) memberView {
	v := memberView{
		ExternalID:  m.ExternalID,
		DisplayName: m.DisplayName,
		Rank:        m.Rank,
		Area:        m.Area,
		Price:       m.Price,
		Size:        m.Size,
		PhotoURL:    m.PhotoURL,
	}
	if m.ExpiresAt != nil {
		v.ExpiresAt = m.ExpiresAt.UTC().Format(store.DateFormat)
	}
	if template != "" {
		v.Line = roster.RenderLine(template, m)
	}
	return v
}

// handleRoster returns one page of a tenant's roster for a date
func (a *Admin) handleRoster(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("id")

	tenant, err := a.store.GetTenant(r.Context(), tenantID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
		return
	}
	if err != nil {
		a.internalError(w, "loading tenant", err)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format(store.DateFormat)
	}

	pageNum := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid page"})
			return
		}
		pageNum = n
	}

	members, err := a.store.RosterFor(r.Context(), tenantID, date)
	if err != nil {
		a.internalError(w, "querying roster", err)
		return
	}

	if filter := r.URL.Query().Get("filter"); filter != "" {
		members = filterMembers(members, filter)
	}

	page := roster.Paginate(members, tenant.PageSize, pageNum)

	views := make([]memberView, 0, len(page.Items))
	for _, m := range page.Items {
		views = append(views, toMemberView(m, tenant.Template))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":        date,
		"page":        page.Number,
		"total_pages": page.TotalPages,
		"has_prev":    page.HasPrev,
		"has_next":    page.HasNext,
		"members":     views,
	})
}

// filterMembers narrows a roster by display name or external ID substring
func filterMembers(members []*store.Member, filter string) []*store.Member {
	filter = strings.ToLower(filter)
	var out []*store.Member
	for _, m := range members {
		if strings.Contains(strings.ToLower(m.DisplayName), filter) ||
			strings.Contains(strings.ToLower(m.ExternalID), filter) {
			out = append(out, m)
		}
	}
	return out
}

// handleMembersList returns all of a tenant's members for the edit view
func (a *Admin) handleMembersList(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("id")

	if _, err := a.store.GetTenant(r.Context(), tenantID); errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
		return
	} else if err != nil {
		a.internalError(w, "loading tenant", err)
		return
	}

	members, err := a.store.ListMembers(r.Context(), tenantID, store.MemberFilter{
		Search: r.URL.Query().Get("filter"),
	})
	if err != nil {
		a.internalError(w, "listing members", err)
		return
	}

	views := make([]memberView, 0, len(members))
	for _, m := range members {
		views = append(views, toMemberView(m, ""))
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": views})
}

// memberUpsertRequest is the POST body for member creation and update
type memberUpsertRequest struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	Rank        int    `json:"rank"`
	Area        string `json:"area"`
	Price       string `json:"price"`
	Size        string `json:"size"`
	PhotoURL    string `json:"photo_url"`
	ExpiresAt   string `json:"expires_at"` // DateFormat, empty for none
}

// handleMemberUpsert creates or updates a member. Members are mutated only
// through this dashboard surface, never from chat.
func (a *Admin) handleMemberUpsert(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("id")

	if _, err := a.store.GetTenant(r.Context(), tenantID); errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
		return
	} else if err != nil {
		a.internalError(w, "loading tenant", err)
		return
	}

	var req memberUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.ExternalID == "" || req.DisplayName == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "external_id and display_name are required"})
		return
	}

	member := &store.Member{
		TenantID:    tenantID,
		ExternalID:  req.ExternalID,
		DisplayName: req.DisplayName,
		Rank:        req.Rank,
		Area:        req.Area,
		Price:       req.Price,
		Size:        req.Size,
		PhotoURL:    req.PhotoURL,
	}
	if req.ExpiresAt != "" {
		expires, err := time.Parse(store.DateFormat, req.ExpiresAt)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid expires_at"})
			return
		}
		member.ExpiresAt = &expires
	}

	if err := a.store.UpsertMember(r.Context(), member); err != nil {
		a.internalError(w, "upserting member", err)
		return
	}

	writeJSON(w, http.StatusOK, toMemberView(member, ""))
}

// handleMemberDelete removes a member by explicit admin action
func (a *Admin) handleMemberDelete(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("id")
	externalID := r.PathValue("external")

	err := a.store.DeleteMember(r.Context(), tenantID, externalID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}
	if err != nil {
		a.internalError(w, "deleting member", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// settingsUpdateRequest is the POST body for tenant settings
type settingsUpdateRequest struct {
	PageSize int    `json:"page_size"`
	Reaction string `json:"reaction"`
	Template string `json:"template"`
}

// handleSettingsUpdate changes a tenant's page size, reaction symbol, and
// roster template. The template is validated against the recognized
// placeholder set before it is stored.
func (a *Admin) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("id")

	var req settingsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := roster.ValidateTemplate(req.Template); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": fmt.Sprintf("invalid template: %v", err)})
		return
	}

	err := a.store.UpdateTenantSettings(r.Context(), tenantID, req.PageSize, req.Reaction, req.Template)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
		return
	}
	if err != nil {
		a.internalError(w, "updating settings", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleStats returns the tenant stats view: today's count, member count,
// recent check-ins, and per-area tallies
func (a *Admin) handleStats(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("id")

	if _, err := a.store.GetTenant(r.Context(), tenantID); errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
		return
	} else if err != nil {
		a.internalError(w, "loading tenant", err)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format(store.DateFormat)
	}

	todayCount, err := a.store.CountCheckins(r.Context(), tenantID, date)
	if err != nil {
		a.internalError(w, "counting checkins", err)
		return
	}
	memberCount, err := a.store.CountMembers(r.Context(), tenantID)
	if err != nil {
		a.internalError(w, "counting members", err)
		return
	}
	recent, err := a.store.RecentCheckins(r.Context(), tenantID, 10)
	if err != nil {
		a.internalError(w, "loading recent checkins", err)
		return
	}
	areas, err := a.store.AreaStats(r.Context(), tenantID, date)
	if err != nil {
		a.internalError(w, "loading area stats", err)
		return
	}

	type recentView struct {
		ExternalID string `json:"external_id"`
		Date       string `json:"date"`
		At         string `json:"at"`
	}
	recentViews := make([]recentView, 0, len(recent))
	for _, rec := range recent {
		recentViews = append(recentViews, recentView{
			ExternalID: rec.ExternalID,
			Date:       rec.Date,
			At:         rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	type areaView struct {
		Area  string `json:"area"`
		Count int    `json:"count"`
	}
	areaViews := make([]areaView, 0, len(areas))
	for _, ac := range areas {
		areaViews = append(areaViews, areaView{Area: ac.Area, Count: ac.Count})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":          date,
		"checkin_count": todayCount,
		"member_count":  memberCount,
		"recent":        recentViews,
		"areas":         areaViews,
	})
}

// handleLogout revokes the presented session token
func (a *Admin) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.guard.Revoke(bearerToken(r))
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (a *Admin) internalError(w http.ResponseWriter, msg string, err error) {
	a.logger.Error(msg, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

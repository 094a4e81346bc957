// ABOUTME: Tests for the dashboard HTTP surface
// ABOUTME: Covers pairing promotion, bearer auth, roster paging, and member management

package webadmin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/rollcall/internal/pairing"
	"github.com/2389/rollcall/internal/session"
	"github.com/2389/rollcall/internal/store"
)

const testAdmin = "@admin:example.org"

// fakeStore is an in-memory Store for handler tests
type fakeStore struct {
	tenants  map[string]*store.Tenant
	members  map[string]*store.Member // tenantID|externalID
	checkins map[string]bool          // tenantID|externalID|date
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenants:  make(map[string]*store.Tenant),
		members:  make(map[string]*store.Member),
		checkins: make(map[string]bool),
	}
}

func (f *fakeStore) addTenant(id string) *store.Tenant {
	t := &store.Tenant{
		ID:       id,
		Name:     id,
		PageSize: store.DefaultPageSize,
		Reaction: store.DefaultReaction,
		Template: store.DefaultTemplate,
	}
	f.tenants[id] = t
	return t
}

func (f *fakeStore) GetTenant(_ context.Context, id string) (*store.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) UpdateTenantSettings(_ context.Context, id string, pageSize int, reaction, template string) error {
	t, ok := f.tenants[id]
	if !ok {
		return store.ErrNotFound
	}
	t.PageSize = pageSize
	t.Reaction = reaction
	t.Template = template
	return nil
}

func (f *fakeStore) UpsertMember(_ context.Context, m *store.Member) error {
	f.members[m.TenantID+"|"+m.ExternalID] = m
	return nil
}

func (f *fakeStore) GetMember(_ context.Context, tenantID, externalID string) (*store.Member, error) {
	m, ok := f.members[tenantID+"|"+externalID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) DeleteMember(_ context.Context, tenantID, externalID string) error {
	key := tenantID + "|" + externalID
	if _, ok := f.members[key]; !ok {
		return store.ErrNotFound
	}
	delete(f.members, key)
	return nil
}

func (f *fakeStore) ListMembers(_ context.Context, tenantID string, filter store.MemberFilter) ([]*store.Member, error) {
	var out []*store.Member
	for _, m := range f.members {
		if m.TenantID != tenantID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(m.DisplayName), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) CountMembers(_ context.Context, tenantID string) (int, error) {
	n := 0
	for _, m := range f.members {
		if m.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) RosterFor(_ context.Context, tenantID, date string) ([]*store.Member, error) {
	var out []*store.Member
	for key := range f.checkins {
		parts := strings.SplitN(key, "|", 3)
		if parts[0] != tenantID || parts[2] != date {
			continue
		}
		if m, ok := f.members[tenantID+"|"+parts[1]]; ok {
			out = append(out, m)
		}
	}
	// Rank order, highest first
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Rank > out[i].Rank {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeStore) CountCheckins(_ context.Context, tenantID, date string) (int, error) {
	members, _ := f.RosterFor(context.Background(), tenantID, date)
	return len(members), nil
}

func (f *fakeStore) RecentCheckins(_ context.Context, tenantID string, limit int) ([]*store.CheckinRecord, error) {
	var out []*store.CheckinRecord
	for key := range f.checkins {
		parts := strings.SplitN(key, "|", 3)
		if parts[0] != tenantID {
			continue
		}
		out = append(out, &store.CheckinRecord{
			TenantID:   tenantID,
			ExternalID: parts[1],
			Date:       parts[2],
			CreatedAt:  time.Now(),
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) AreaStats(_ context.Context, tenantID, date string) ([]store.AreaCount, error) {
	counts := make(map[string]int)
	members, _ := f.RosterFor(context.Background(), tenantID, date)
	for _, m := range members {
		if m.Area != "" {
			counts[m.Area]++
		}
	}
	var out []store.AreaCount
	for area, n := range counts {
		out = append(out, store.AreaCount{Area: area, Count: n})
	}
	return out, nil
}

// testServer wires a full dashboard stack against the fake store
func testServer(t *testing.T, fs *fakeStore) (*httptest.Server, *pairing.Broker, *session.Guard) {
	t.Helper()

	guard := session.NewGuard(time.Hour)
	broker := pairing.New(testAdmin, 5*time.Minute, guard)

	admin := New(fs, broker, guard, Config{BaseURL: "http://dash.test"})
	mux := http.NewServeMux()
	admin.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, broker, guard
}

// pairedToken runs the pairing handshake and returns a live bearer token
func pairedToken(t *testing.T, srv *httptest.Server, broker *pairing.Broker) string {
	t.Helper()

	code, correlationID, err := broker.Issue(testAdmin)
	require.NoError(t, err)
	require.True(t, broker.Confirm(code))

	resp, err := http.Get(srv.URL + "/api/pairing/" + correlationID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "verified", body["status"])
	require.NotEmpty(t, body["token"])
	return body["token"]
}

func doJSON(t *testing.T, method, url, token string, payload any) (*http.Response, map[string]any) {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestPairingStatus_Lifecycle(t *testing.T) {
	fs := newFakeStore()
	srv, broker, _ := testServer(t, fs)

	// Unknown correlation ID
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/pairing/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["status"])

	// Pending before the code is confirmed
	code, correlationID, err := broker.Issue(testAdmin)
	require.NoError(t, err)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/pairing/"+correlationID, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", body["status"])
	assert.Empty(t, body["token"])

	// Verified: the first poll gets the token
	require.True(t, broker.Confirm(code))
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/pairing/"+correlationID, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "verified", body["status"])
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	// Single use: the second poll finds nothing
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/pairing/"+correlationID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["status"])
}

func TestRequireAuth_RejectsWithoutToken(t *testing.T) {
	fs := newFakeStore()
	fs.addTenant("!room:example.org")
	srv, _, _ := testServer(t, fs)

	url := srv.URL + "/api/tenants/!room:example.org/roster"

	resp, body := doJSON(t, http.MethodGet, url, "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["error"])

	resp, body = doJSON(t, http.MethodGet, url, "bogus-token", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["error"])
}

func TestRoster_PagingAndFilter(t *testing.T) {
	fs := newFakeStore()
	tenant := fs.addTenant("!room:example.org")
	tenant.PageSize = 2

	today := time.Now().Format(store.DateFormat)
	for i := 1; i <= 5; i++ {
		ext := fmt.Sprintf("@m%d:example.org", i)
		fs.members[tenant.ID+"|"+ext] = &store.Member{
			TenantID:    tenant.ID,
			ExternalID:  ext,
			DisplayName: fmt.Sprintf("Member %d", i),
			Rank:        i,
			Area:        "north",
		}
		fs.checkins[tenant.ID+"|"+ext+"|"+today] = true
	}

	srv, broker, _ := testServer(t, fs)
	token := pairedToken(t, srv, broker)
	base := srv.URL + "/api/tenants/!room:example.org/roster"

	resp, body := doJSON(t, http.MethodGet, base, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, float64(3), body["total_pages"])
	assert.Equal(t, false, body["has_prev"])
	assert.Equal(t, true, body["has_next"])
	members := body["members"].([]any)
	require.Len(t, members, 2)

	// Rank order: highest rank first
	first := members[0].(map[string]any)
	assert.Equal(t, "Member 5", first["display_name"])
	assert.Equal(t, "Member 5 | north", first["line"])

	// Out-of-range page clamps to the last page
	resp, body = doJSON(t, http.MethodGet, base+"?page=99", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), body["page"])
	assert.Equal(t, false, body["has_next"])
	require.Len(t, body["members"].([]any), 1)

	// Non-numeric page is rejected
	resp, _ = doJSON(t, http.MethodGet, base+"?page=abc", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Substring filter narrows the roster
	resp, body = doJSON(t, http.MethodGet, base+"?filter=member+3", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	members = body["members"].([]any)
	require.Len(t, members, 1)
	assert.Equal(t, "Member 3", members[0].(map[string]any)["display_name"])
}

func TestRoster_UnknownTenant(t *testing.T) {
	fs := newFakeStore()
	srv, broker, _ := testServer(t, fs)
	token := pairedToken(t, srv, broker)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/tenants/!nope:example.org/roster", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMemberUpsert_Validation(t *testing.T) {
	fs := newFakeStore()
	fs.addTenant("!room:example.org")
	srv, broker, _ := testServer(t, fs)
	token := pairedToken(t, srv, broker)
	url := srv.URL + "/api/tenants/!room:example.org/members"

	// Missing required fields
	resp, _ := doJSON(t, http.MethodPost, url, token, map[string]any{"display_name": "No ID"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Malformed expiry date
	resp, _ = doJSON(t, http.MethodPost, url, token, map[string]any{
		"external_id":  "@x:example.org",
		"display_name": "X",
		"expires_at":   "soon",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Valid member round-trips
	resp, body := doJSON(t, http.MethodPost, url, token, map[string]any{
		"external_id":  "@x:example.org",
		"display_name": "X",
		"rank":         7,
		"area":         "south",
		"expires_at":   "2027-01-31",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "@x:example.org", body["external_id"])
	assert.Equal(t, float64(7), body["rank"])
	assert.Equal(t, "2027-01-31", body["expires_at"])

	saved, err := fs.GetMember(context.Background(), "!room:example.org", "@x:example.org")
	require.NoError(t, err)
	assert.Equal(t, "south", saved.Area)
	require.NotNil(t, saved.ExpiresAt)
}

func TestMemberDelete(t *testing.T) {
	fs := newFakeStore()
	tenant := fs.addTenant("!room:example.org")
	fs.members[tenant.ID+"|@x:example.org"] = &store.Member{
		TenantID: tenant.ID, ExternalID: "@x:example.org", DisplayName: "X",
	}

	srv, broker, _ := testServer(t, fs)
	token := pairedToken(t, srv, broker)

	resp, body := doJSON(t, http.MethodDelete, srv.URL+"/api/tenants/!room:example.org/members/@x:example.org", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "deleted", body["status"])

	// A second delete finds nothing
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/tenants/!room:example.org/members/@x:example.org", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSettingsUpdate(t *testing.T) {
	fs := newFakeStore()
	fs.addTenant("!room:example.org")
	srv, broker, _ := testServer(t, fs)
	token := pairedToken(t, srv, broker)
	url := srv.URL + "/api/tenants/!room:example.org/settings"

	// Unknown placeholder is rejected before storage
	resp, _ := doJSON(t, http.MethodPost, url, token, map[string]any{
		"page_size": 5,
		"reaction":  "👍",
		"template":  "{name} {bogus}",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, store.DefaultTemplate, fs.tenants["!room:example.org"].Template)

	resp, body := doJSON(t, http.MethodPost, url, token, map[string]any{
		"page_size": 5,
		"reaction":  "👍",
		"template":  "{name} ({area})",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "updated", body["status"])

	tenant := fs.tenants["!room:example.org"]
	assert.Equal(t, 5, tenant.PageSize)
	assert.Equal(t, "👍", tenant.Reaction)
	assert.Equal(t, "{name} ({area})", tenant.Template)
}

func TestStats(t *testing.T) {
	fs := newFakeStore()
	tenant := fs.addTenant("!room:example.org")
	today := time.Now().Format(store.DateFormat)
	for i := 1; i <= 3; i++ {
		ext := fmt.Sprintf("@m%d:example.org", i)
		fs.members[tenant.ID+"|"+ext] = &store.Member{
			TenantID: tenant.ID, ExternalID: ext, DisplayName: fmt.Sprintf("M%d", i), Area: "east",
		}
	}
	fs.checkins[tenant.ID+"|@m1:example.org|"+today] = true
	fs.checkins[tenant.ID+"|@m2:example.org|"+today] = true

	srv, broker, _ := testServer(t, fs)
	token := pairedToken(t, srv, broker)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/tenants/!room:example.org/stats", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["checkin_count"])
	assert.Equal(t, float64(3), body["member_count"])
	assert.Equal(t, today, body["date"])

	areas := body["areas"].([]any)
	require.Len(t, areas, 1)
	assert.Equal(t, "east", areas[0].(map[string]any)["area"])
	assert.Equal(t, float64(2), areas[0].(map[string]any)["count"])
}

func TestLogout_RevokesToken(t *testing.T) {
	fs := newFakeStore()
	fs.addTenant("!room:example.org")
	srv, broker, _ := testServer(t, fs)
	token := pairedToken(t, srv, broker)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/tenants/!room:example.org/roster", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPages_Render(t *testing.T) {
	fs := newFakeStore()
	srv, _, _ := testServer(t, fs)

	for _, path := range []string{"/login", "/"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		resp.Body.Close()
	}
}

// ABOUTME: Template rendering functions for the dashboard shell
// ABOUTME: Loads templates from the embedded filesystem and renders them

package webadmin

import (
	"html/template"
	"net/http"
)

type loginData struct {
	Title   string
	BaseURL string
}

type dashboardData struct {
	Title   string
	BaseURL string
}

// renderTemplate renders a named template with the given data
func (a *Admin) renderTemplate(w http.ResponseWriter, name string, data any) {
	tmpl, err := template.ParseFS(templateFS, "templates/"+name)
	if err != nil {
		a.logger.Error("parsing template", "name", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		a.logger.Error("rendering template", "name", name, "error", err)
	}
}

// handleLoginPage serves the pairing page. The page polls the pairing API
// with the correlation ID from its query string until the chat side
// confirms the code.
func (a *Admin) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	a.renderTemplate(w, "login.html", loginData{
		Title:   "rollcall — pair",
		BaseURL: a.config.BaseURL,
	})
}

// handleDashboardPage serves the dashboard shell. All data access goes
// through the guarded JSON API with the bearer token held by the page.
func (a *Admin) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	a.renderTemplate(w, "dashboard.html", dashboardData{
		Title:   "rollcall — dashboard",
		BaseURL: a.config.BaseURL,
	})
}

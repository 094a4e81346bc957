// ABOUTME: Per-tenant roster line templates with placeholder substitution
// ABOUTME: Falls back to a minimal line on malformed templates or missing attributes

package roster

import (
	"fmt"
	"strings"

	"github.com/2389/rollcall/internal/store"
)

// Placeholders is the enumerated set of recognized template placeholders,
// each bound to a Member attribute.
var Placeholders = map[string]func(*store.Member) string{
	"name":  func(m *store.Member) string { return m.DisplayName },
	"area":  func(m *store.Member) string { return m.Area },
	"price": func(m *store.Member) string { return m.Price },
	"size":  func(m *store.Member) string { return m.Size },
}

// Render substitutes {placeholder} references in the template with the
// member's attributes. It returns ok=false on an unterminated brace, an
// unknown placeholder, or a referenced attribute that is empty; callers
// choose fallback behavior explicitly.
func Render(template string, m *store.Member) (string, bool) {
	var out strings.Builder

	for i := 0; i < len(template); {
		c := template[i]
		if c != '{' {
			out.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			return "", false
		}

		name := template[i+1 : i+end]
		attr, ok := Placeholders[name]
		if !ok {
			return "", false
		}
		value := attr(m)
		if value == "" {
			return "", false
		}

		out.WriteString(value)
		i += end + 1
	}

	return out.String(), true
}

// RenderLine renders the template for a member, degrading to the fixed
// fallback line so one tenant's broken template never aborts the rest of
// the roster.
func RenderLine(template string, m *store.Member) string {
	if line, ok := Render(template, m); ok {
		return line
	}
	return Fallback(m)
}

// Fallback is the fixed minimal-format roster line
func Fallback(m *store.Member) string {
	return m.DisplayName
}

// ValidateTemplate checks template syntax against the recognized placeholder
// set without needing a member. Used when an admin saves tenant settings.
func ValidateTemplate(template string) error {
	for i := 0; i < len(template); {
		if template[i] != '{' {
			i++
			continue
		}
		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			return fmt.Errorf("unterminated placeholder at offset %d", i)
		}
		name := template[i+1 : i+end]
		if _, ok := Placeholders[name]; !ok {
			return fmt.Errorf("unknown placeholder %q", name)
		}
		i += end + 1
	}
	return nil
}

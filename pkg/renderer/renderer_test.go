package renderer

import (
	"strings"
	"testing"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
)

func tpl(body string, vars ...string) models.PromptTemplate {
	t := models.PromptTemplate{Body: body}
	for _, name := range vars {
		t.Variables = append(t.Variables, models.Variable{Name: name, Type: models.TypeString})
	}
	return t
}

func TestRenderSubstitutesAll(t *testing.T) {
	got := Render(tpl("Hello {{name}}, you asked: {{query}}", "name", "query"),
		map[string]string{"name": "Priya", "query": "what should I eat"})

	if got != "Hello Priya, you asked: what should I eat" {
		t.Errorf("unexpected render: %q", got)
	}
}

func TestRenderGlobalSubstitution(t *testing.T) {
	got := Render(tpl("{{name}} and {{name}} again", "name"),
		map[string]string{"name": "x"})
	if got != "x and x again" {
		t.Errorf("expected global substitution, got %q", got)
	}
}

func TestRenderRemovesUnresolvedDeclared(t *testing.T) {
	got := Render(tpl("Tips for {{name}} {{mood_note}} today", "name", "mood_note"),
		map[string]string{"name": "Alex"})

	if strings.Contains(got, "{{") {
		t.Errorf("residual placeholder in %q", got)
	}
	if got != "Tips for Alex today" {
		t.Errorf("expected collapsed whitespace, got %q", got)
	}
}

func TestRenderNoLeftoverForDeclaredVars(t *testing.T) {
	template := tpl("a {{x}} b {{ y }} c {{z}}", "x", "y", "z")
	got := Render(template, map[string]string{"x": "1"})
	if left := LeftoverPlaceholders(got); len(left) != 0 {
		t.Errorf("leftover placeholders: %v", left)
	}
}

func TestRenderKeepsUndeclaredPlaceholder(t *testing.T) {
	got := Render(tpl("hello {{unknown_thing}}"), nil)
	if !strings.Contains(got, "{{unknown_thing}}") {
		t.Errorf("undeclared placeholder should remain visible, got %q", got)
	}
}

func TestRenderWhitespaceNormalized(t *testing.T) {
	got := Render(tpl("  a\n\nb\t c  "), nil)
	if got != "a b c" {
		t.Errorf("expected normalized whitespace, got %q", got)
	}
}

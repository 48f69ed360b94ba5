package renderer

import (
	"regexp"
	"strings"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
)

var (
	placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Render substitutes every {{name}} occurrence in the template body with
// its resolved value. Placeholders for declared variables that have no
// value are removed. The result is whitespace-normalized: runs of
// whitespace collapse to a single space and the ends are trimmed.
//
// The contract with the resolver is that the output never contains a
// residual {{...}} token for any variable declared on the template.
func Render(tpl models.PromptTemplate, values map[string]string) string {
	out := placeholderRe.ReplaceAllStringFunc(tpl.Body, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		if v, ok := values[name]; ok {
			return v
		}
		if _, declared := tpl.Var(name); declared {
			return ""
		}
		// Undeclared placeholder: leave as-is so the gap is visible.
		return m
	})
	return Normalize(out)
}

// Normalize collapses whitespace runs and trims the ends.
func Normalize(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// LeftoverPlaceholders returns any {{...}} tokens remaining in rendered
// text. Used to verify the rendering-completeness contract.
func LeftoverPlaceholders(rendered string) []string {
	return placeholderRe.FindAllString(rendered, -1)
}

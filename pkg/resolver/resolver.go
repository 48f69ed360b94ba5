package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
)

// DataProvider fetches one user's data snapshot from the external user
// data service. Implementations must be idempotent and side-effect free.
type DataProvider interface {
	Context(ctx context.Context, userID string) (models.ResolvedContext, error)
}

// StaticProvider serves a fixed context regardless of user. Used by the
// CLI and in tests.
type StaticProvider struct {
	Ctx models.ResolvedContext
}

func (p StaticProvider) Context(_ context.Context, _ string) (models.ResolvedContext, error) {
	return p.Ctx, nil
}

// Resolver determines concrete values for template variables.
type Resolver struct {
	provider DataProvider
}

// New creates a Resolver backed by the given data provider. A nil provider
// resolves from caller input and fallbacks only.
func New(provider DataProvider) *Resolver {
	return &Resolver{provider: provider}
}

// Resolve determines a value for every variable of the template. For each
// variable the chain is: caller input (validated), then the context section
// named by the variable's source, then the declared default, then a curated
// fallback for required variables. Optional variables with no value are
// simply absent from the result; the renderer strips their placeholders.
// Resolve never fails a single variable — the worst case is a bracketed
// placeholder token.
func (r *Resolver) Resolve(ctx context.Context, userID string, tpl models.PromptTemplate, input map[string]any) (map[string]string, error) {
	var rc models.ResolvedContext
	if r.provider != nil {
		var err error
		rc, err = r.provider.Context(ctx, userID)
		if err != nil {
			// Degrade to fallback resolution rather than failing the render.
			rc = models.ResolvedContext{}
		}
	}

	values := make(map[string]string, len(tpl.Variables))
	for _, v := range tpl.Variables {
		if val, ok := resolveOne(v, input, rc); ok {
			values[v.Name] = val
		}
	}
	return values, nil
}

func resolveOne(v models.Variable, input map[string]any, rc models.ResolvedContext) (string, bool) {
	// 1. Caller input wins, subject to validation.
	if raw, ok := input[v.Name]; ok {
		if val, ok := Validate(v, raw); ok {
			return val, true
		}
		// Rejected input reverts to the declared default when present.
		if v.Default != "" {
			return v.Default, true
		}
	} else if raw, ok := lookupSection(rc.Section(v.Source), v.Name); ok {
		// 2. Dispatch by source against the context snapshot.
		return stringify(raw, v.Source), true
	} else if v.Default != "" {
		// 3. Declared default.
		return v.Default, true
	}

	if !v.Required {
		// 5. Optional and unresolved: absent; renderer removes the token.
		return "", false
	}

	// 4. Required with nothing else: curated fallback, then a generic
	// bracketed token. Never fail the whole render.
	if fb, ok := curatedFallbacks[v.Name]; ok {
		return fb, true
	}
	return genericFallback, true
}

// lookupSection finds a field in a context section, accepting both
// snake_case and camelCase spellings of the variable name.
func lookupSection(section map[string]any, name string) (any, bool) {
	if len(section) == 0 {
		return nil, false
	}
	for _, alias := range aliases(name) {
		if v, ok := section[alias]; ok {
			return v, true
		}
	}
	return nil, false
}

// aliases returns the candidate field names for a variable: the name
// itself plus its snake_case and camelCase forms.
func aliases(name string) []string {
	out := []string{name}
	if snake := toSnake(name); snake != name {
		out = append(out, snake)
	}
	if camel := toCamel(name); camel != name {
		out = append(out, camel)
	}
	return out
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toCamel(s string) string {
	parts := strings.Split(s, "_")
	if len(parts) == 1 {
		return s
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// stringify renders a context value as prompt text. Arrays become a
// human-readable comma list; an empty array becomes a source-specific
// phrase, never an empty string.
func stringify(raw any, src models.VarSource) string {
	switch val := raw.(type) {
	case string:
		return val
	case []string:
		if len(val) == 0 {
			return emptyListPhrase(src)
		}
		return strings.Join(val, ", ")
	case []any:
		if len(val) == 0 {
			return emptyListPhrase(src)
		}
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	case float64:
		return trimFloat(val)
	default:
		return fmt.Sprint(val)
	}
}

func emptyListPhrase(src models.VarSource) string {
	switch src {
	case models.SourceHealthData:
		return "none reported"
	case models.SourcePreferences:
		return "no preferences set"
	case models.SourceContext:
		return "none"
	default:
		return "not specified"
	}
}

// genericFallback stands in for a required variable with no curated entry.
const genericFallback = "[not specified]"

// curatedFallbacks are safe stand-ins for required variables that could
// not be resolved any other way.
var curatedFallbacks = map[string]string{
	"user_name":         "there",
	"user_query":        "general health advice",
	"health_conditions": "none reported",
	"medications":       "none",
	"diet_preference":   "balanced",
	"fitness_goal":      "general wellness",
	"activity_level":    "moderate",
}

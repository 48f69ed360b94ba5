package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
)

// ErrNotFound is returned when no template matches a lookup.
var ErrNotFound = errors.New("template not found")

// Source is a reloadable collection of template definitions.
type Source interface {
	Load() ([]models.PromptTemplate, error)
}

// Registry stores prompt templates keyed by id. Lookups never observe a
// partially loaded state; all mutation happens under the mutex.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]models.PromptTemplate
	custom    map[string]bool
	source    Source
}

// New creates a Registry populated from the given source. A nil source
// yields the built-in templates only. Source load errors are returned but
// the registry is still usable with the built-ins.
func New(source Source) (*Registry, error) {
	r := &Registry{
		custom: make(map[string]bool),
		source: source,
	}
	templates, err := r.load()
	r.templates = templates
	return r, err
}

// load builds a fresh template map from the builtins plus the source. On a
// source error the builtins are still returned so the caller stays usable.
func (r *Registry) load() (map[string]models.PromptTemplate, error) {
	templates := make(map[string]models.PromptTemplate)
	for _, t := range builtinTemplates() {
		templates[t.ID] = t
	}
	if r.source == nil {
		return templates, nil
	}
	loaded, err := r.source.Load()
	if err != nil {
		return templates, fmt.Errorf("load templates: %w", err)
	}
	for _, t := range loaded {
		templates[t.ID] = t
	}
	return templates, nil
}

// Add inserts or overwrites a template by id. Templates added this way are
// marked custom and survive Reload.
func (r *Registry) Add(t models.PromptTemplate) error {
	if t.ID == "" {
		return errors.New("template id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = t
	r.custom[t.ID] = true
	return nil
}

// Get returns the template with the given id.
func (r *Registry) Get(id string) (models.PromptTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	return t, ok
}

// ByCategory returns all templates in a category.
func (r *Registry) ByCategory(category string) []models.PromptTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.PromptTemplate
	for _, t := range r.templates {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Select resolves the template for a request. Resolution degrades
// gracefully: an explicit id wins; then a category+language match,
// preferring cost-optimized templates; then any template in the category
// regardless of language. Category match is never sacrificed.
func (r *Registry) Select(category, explicitID, language string) (models.PromptTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if explicitID != "" {
		if t, ok := r.templates[explicitID]; ok {
			return t, true
		}
	}

	var inCategory []models.PromptTemplate
	for _, t := range r.templates {
		if t.Category == category {
			inCategory = append(inCategory, t)
		}
	}
	if len(inCategory) == 0 {
		return models.PromptTemplate{}, false
	}
	// Deterministic "first match" regardless of map iteration order.
	sort.Slice(inCategory, func(i, j int) bool { return inCategory[i].ID < inCategory[j].ID })

	if language != "" {
		var langMatch []models.PromptTemplate
		for _, t := range inCategory {
			if t.Language == language {
				langMatch = append(langMatch, t)
			}
		}
		if len(langMatch) > 0 {
			for _, t := range langMatch {
				if t.CostOptimized {
					return t, true
				}
			}
			return langMatch[0], true
		}
	}

	for _, t := range inCategory {
		if t.CostOptimized {
			return t, true
		}
	}
	return inCategory[0], true
}

// Reload clears all non-custom entries and re-ingests from the source.
// Custom templates persist. The new map is built to the side and swapped
// in only on success: a failing source leaves the registry untouched.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fresh, err := r.load()
	if err != nil {
		return err
	}
	for id := range r.custom {
		if t, ok := r.templates[id]; ok {
			fresh[id] = t
		}
	}
	r.templates = fresh
	return nil
}

// All returns every registered template, ordered by id.
func (r *Registry) All() []models.PromptTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.PromptTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len reports the number of registered templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

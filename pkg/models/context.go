package models

// ResolvedContext is a per-execution snapshot of one user's data pulled
// from the external data provider. It lives for a single resolution and
// is never cached.
type ResolvedContext struct {
	Profile     map[string]any `json:"profile,omitempty"`
	HealthData  map[string]any `json:"health_data,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
	History     map[string]any `json:"history,omitempty"`
}

// Section returns the context section backing a variable source. The
// input source has no section; it is satisfied from caller input only.
func (rc *ResolvedContext) Section(src VarSource) map[string]any {
	switch src {
	case SourceUserProfile:
		return rc.Profile
	case SourceHealthData:
		return rc.HealthData
	case SourcePreferences:
		return rc.Preferences
	case SourceContext:
		return rc.History
	default:
		return nil
	}
}

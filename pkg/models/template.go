package models

// VarType enumerates the value types a template variable may carry.
type VarType string

const (
	TypeString  VarType = "string"
	TypeNumber  VarType = "number"
	TypeBoolean VarType = "boolean"
	TypeArray   VarType = "array"
	TypeObject  VarType = "object"
)

// VarSource identifies which section of the resolved user context a
// variable is filled from when the caller does not supply it.
type VarSource string

const (
	SourceUserProfile VarSource = "user_profile"
	SourceHealthData  VarSource = "health_data"
	SourcePreferences VarSource = "preferences"
	SourceInput       VarSource = "input"
	SourceContext     VarSource = "context"
)

// Validation constrains the value a variable may take. All fields are
// optional; zero values mean "no constraint".
type Validation struct {
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Variable declares one placeholder of a prompt template.
type Variable struct {
	Name        string      `json:"name" yaml:"name"`
	Type        VarType     `json:"type" yaml:"type"`
	Required    bool        `json:"required" yaml:"required"`
	Source      VarSource   `json:"source" yaml:"source"`
	Default     string      `json:"default,omitempty" yaml:"default,omitempty"`
	Validation  *Validation `json:"validation,omitempty" yaml:"validation,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

// PromptTemplate is a parameterized prompt body plus its declared variables.
// Templates are immutable once registered; replacement goes through an
// explicit add.
type PromptTemplate struct {
	ID            string     `json:"id" yaml:"id"`
	Category      string     `json:"category" yaml:"category"`
	Name          string     `json:"name" yaml:"name"`
	Description   string     `json:"description,omitempty" yaml:"description,omitempty"`
	Language      string     `json:"language" yaml:"language"`
	Body          string     `json:"body" yaml:"body"`
	Variables     []Variable `json:"variables" yaml:"variables"`
	CostOptimized bool       `json:"cost_optimized" yaml:"cost_optimized"`
}

// Var returns the declared variable with the given name, if any.
func (t *PromptTemplate) Var(name string) (Variable, bool) {
	for _, v := range t.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

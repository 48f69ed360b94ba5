package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
)

// FileSource loads template definitions from YAML files in a directory.
// Each file holds a list of templates under a top-level "templates" key.
type FileSource struct {
	Dir string
}

type templateFile struct {
	Templates []models.PromptTemplate `yaml:"templates"`
}

// Load reads every *.yaml and *.yml file in the directory. A missing
// directory is not an error; it simply yields no templates.
func (s FileSource) Load() ([]models.PromptTemplate, error) {
	entries, err := os.ReadDir(s.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read template dir: %w", err)
	}

	var out []models.PromptTemplate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.Dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read template file %s: %w", e.Name(), err)
		}
		var tf templateFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			return nil, fmt.Errorf("parse template file %s: %w", e.Name(), err)
		}
		for _, t := range tf.Templates {
			if t.ID == "" {
				return nil, fmt.Errorf("template file %s: template missing id", e.Name())
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// builtinTemplates are the defaults available even without a template dir.
func builtinTemplates() []models.PromptTemplate {
	return []models.PromptTemplate{
		{
			ID:            "nutrition_advice_basic",
			Category:      "nutrition",
			Name:          "Basic nutrition advice",
			Language:      "en",
			CostOptimized: true,
			Body: "You are a supportive nutrition coach. The user {{user_name}} asks: {{user_query}}. " +
				"Their dietary preference is {{diet_preference}} and known health conditions are {{health_conditions}}. " +
				"Give practical, safe dietary guidance.",
			Variables: []models.Variable{
				{Name: "user_name", Type: models.TypeString, Required: true, Source: models.SourceUserProfile},
				{Name: "user_query", Type: models.TypeString, Required: true, Source: models.SourceInput},
				{Name: "diet_preference", Type: models.TypeString, Source: models.SourcePreferences, Default: "balanced"},
				{Name: "health_conditions", Type: models.TypeArray, Source: models.SourceHealthData, Default: "none reported"},
			},
		},
		{
			ID:            "symptom_analysis_basic",
			Category:      "symptom_analysis",
			Name:          "Symptom triage",
			Language:      "en",
			CostOptimized: true,
			Body: "You are a cautious health assistant. {{user_name}} ({{user_age}} years old) reports: {{user_query}}. " +
				"Known conditions: {{health_conditions}}. Current medications: {{medications}}. " +
				"Suggest next steps and flag anything that needs professional attention.",
			Variables: []models.Variable{
				{Name: "user_name", Type: models.TypeString, Required: true, Source: models.SourceUserProfile},
				{Name: "user_age", Type: models.TypeNumber, Source: models.SourceUserProfile, Default: "unknown",
					Validation: &models.Validation{Min: f(0), Max: f(120)}},
				{Name: "user_query", Type: models.TypeString, Required: true, Source: models.SourceInput},
				{Name: "health_conditions", Type: models.TypeArray, Source: models.SourceHealthData, Default: "none reported"},
				{Name: "medications", Type: models.TypeArray, Source: models.SourceHealthData, Default: "none"},
			},
		},
		{
			ID:       "general_chat_basic",
			Category: "general_chat",
			Name:     "General coaching chat",
			Language: "en",
			Body: "You are a friendly health coach chatting with {{user_name}}. " +
				"Their goal is {{fitness_goal}}. Message: {{user_query}}",
			Variables: []models.Variable{
				{Name: "user_name", Type: models.TypeString, Required: true, Source: models.SourceUserProfile},
				{Name: "fitness_goal", Type: models.TypeString, Source: models.SourcePreferences, Default: "general wellness"},
				{Name: "user_query", Type: models.TypeString, Required: true, Source: models.SourceInput},
			},
		},
		{
			ID:            "lifestyle_tips_basic",
			Category:      "lifestyle",
			Name:          "Lifestyle tips",
			Language:      "en",
			CostOptimized: true,
			Body: "Offer three short lifestyle tips for {{user_name}} whose activity level is {{activity_level}}. " +
				"Focus area: {{user_query}}",
			Variables: []models.Variable{
				{Name: "user_name", Type: models.TypeString, Required: true, Source: models.SourceUserProfile},
				{Name: "activity_level", Type: models.TypeString, Source: models.SourceUserProfile, Default: "moderate",
					Validation: &models.Validation{Options: []string{"sedentary", "light", "moderate", "active", "athlete"}}},
				{Name: "user_query", Type: models.TypeString, Required: true, Source: models.SourceInput},
			},
		},
	}
}

func f(v float64) *float64 { return &v }

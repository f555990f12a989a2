package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// GreetingTemplates maps scenario -> language -> template text.
type GreetingTemplates map[string]map[string]string

// LoadGreetingTemplates reads template overrides from a YAML file shaped as:
//
//	known_customer:
//	  german: "Hallo {name}! Wohin soll es heute gehen?"
//
// An empty path returns no overrides.
func LoadGreetingTemplates(path string) (GreetingTemplates, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read greeting templates: %w", err)
	}

	var raw GreetingTemplates
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse greeting templates: %w", err)
	}

	out := make(GreetingTemplates, len(raw))
	for scenario, byLang := range raw {
		scenario = strings.ToLower(strings.TrimSpace(scenario))
		if out[scenario] == nil {
			out[scenario] = make(map[string]string, len(byLang))
		}
		for lang, text := range byLang {
			if strings.TrimSpace(text) == "" {
				return nil, fmt.Errorf("empty template for %s/%s", scenario, lang)
			}
			out[scenario][strings.ToLower(strings.TrimSpace(lang))] = text
		}
	}
	return out, nil
}

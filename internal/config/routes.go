package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"streamflix-rag/internal/guardrail"
	"streamflix-rag/internal/validation"
)

type routesFile struct {
	Routes []guardrail.Route `yaml:"routes" validate:"required,min=1,dive"`
}

// LoadRoutes returns the guardrail routes from path, or the built-in
// StreamFlix route when path is empty. ${VAR} references are expanded.
func LoadRoutes(path string) ([]guardrail.Route, error) {
	if path == "" {
		return []guardrail.Route{guardrail.StreamFlixRoute()}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read routes: %w", err)
	}
	return ParseRoutes(raw)
}

func ParseRoutes(raw []byte) ([]guardrail.Route, error) {
	var f routesFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &f); err != nil {
		return nil, fmt.Errorf("config: parse routes: %w", err)
	}
	for i := range f.Routes {
		if f.Routes[i].DistanceThreshold == 0 {
			f.Routes[i].DistanceThreshold = guardrail.DefaultDistanceThreshold
		}
	}
	if err := validation.Struct(f); err != nil {
		return nil, fmt.Errorf("config: routes: %w", err)
	}
	return f.Routes, nil
}

package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cleaning-manager/internal/model"
)

//go:embed seed.yaml
var defaultSeed []byte

// LoadSeed returns the room list written to a user's store on first use.
// An empty path selects the built-in list.
func LoadSeed(path string) (model.Catalog, error) {
	data := defaultSeed
	source := "built-in seed"
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return model.Catalog{}, fmt.Errorf("read seed: %w", err)
		}
		data = raw
		source = path
	}
	return parseSeed(data, source)
}

func parseSeed(data []byte, source string) (model.Catalog, error) {
	var catalog model.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return model.Catalog{}, fmt.Errorf("parse %s: %w", source, err)
	}
	if catalog.Len() == 0 {
		return model.Catalog{}, fmt.Errorf("parse %s: no categories", source)
	}
	if err := catalog.Validate(); err != nil {
		return model.Catalog{}, fmt.Errorf("parse %s: %w", source, err)
	}
	return catalog.ResetAll(), nil
}

// Package infer provides heuristic category and shelf-life defaults
// for free-text item names. The tables are intentionally simple: they
// supply a convenience default a user is expected to correct, not a
// categorization engine.
package infer

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// OtherCategory is returned when no keyword matches an item name.
const OtherCategory = "Other"

type categoryEntry struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type tableFile struct {
	Categories           []categoryEntry `yaml:"categories"`
	ShelfLifeDays        map[string]int  `yaml:"shelf_life_days"`
	DefaultShelfLifeDays int             `yaml:"default_shelf_life_days"`
}

var (
	loadOnce sync.Once
	defaults tableFile
)

// load parses the embedded tables once. The asset is part of the
// binary, so a parse failure is a build defect and panics.
func load() *tableFile {
	loadOnce.Do(func() {
		if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
			panic(fmt.Sprintf("infer: parse embedded defaults.yaml: %v", err))
		}
		if defaults.DefaultShelfLifeDays <= 0 {
			defaults.DefaultShelfLifeDays = 7
		}
	})
	return &defaults
}

package drinks

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document used to populate an empty catalog.
type SeedFile struct {
	Drinks []SeedDrink `yaml:"drinks"`
}

type SeedDrink struct {
	Title  string       `yaml:"title"`
	Recipe []Ingredient `yaml:"recipe"`
}

// LoadSeed reads and validates the seed file at path.
func LoadSeed(path string) ([]Drink, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeed(data)
}

// ParseSeed decodes a seed document. Every drink must be valid and titles
// must not repeat, otherwise nothing is returned.
func ParseSeed(data []byte) ([]Drink, error) {
	var seed SeedFile
	err := yaml.Unmarshal(data, &seed)
	if err != nil {
		return nil, fmt.Errorf("seed file could not be parsed: %w", err)
	}

	titles := make(map[string]struct{}, len(seed.Drinks))
	result := make([]Drink, 0, len(seed.Drinks))

	for n, s := range seed.Drinks {
		d := Drink{Title: strings.TrimSpace(s.Title), Recipe: s.Recipe}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("seed drink %d: %w", n, err)
		}

		if _, seen := titles[d.Title]; seen {
			return nil, fmt.Errorf("seed drink %d: %w: %s", n, ErrDuplicateTitle, d.Title)
		}
		titles[d.Title] = struct{}{}

		result = append(result, d)
	}

	return result, nil
}

package repository

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aimd54/travelquest-rewards/internal/models"
)

type badgeSeedFile struct {
	Badges []badgeSeed `yaml:"badges"`
}

type badgeSeed struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Icon        string  `yaml:"icon"`
	Category    string  `yaml:"category"`
	Threshold   float64 `yaml:"threshold"`
	Rule        string  `yaml:"rule"`
}

// LoadBadgeSeed reads the badge catalog from a YAML file.
func LoadBadgeSeed(path string) ([]models.Badge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read badge seed file: %w", err)
	}
	return ParseBadgeSeed(data)
}

// ParseBadgeSeed decodes and validates a YAML badge catalog.
func ParseBadgeSeed(data []byte) ([]models.Badge, error) {
	var file badgeSeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse badge seed: %w", err)
	}

	seen := make(map[string]bool, len(file.Badges))
	badges := make([]models.Badge, 0, len(file.Badges))
	for i, b := range file.Badges {
		if b.Name == "" {
			return nil, fmt.Errorf("badge #%d: name is required", i+1)
		}
		if seen[b.Name] {
			return nil, fmt.Errorf("badge %q: duplicate name", b.Name)
		}
		seen[b.Name] = true

		if !models.IsValidBadgeCategory(b.Category) {
			return nil, fmt.Errorf("badge %q: unknown category %q", b.Name, b.Category)
		}
		if b.Category == models.BadgeCategorySpecial && b.Rule == "" {
			return nil, fmt.Errorf("badge %q: special badges need a rule", b.Name)
		}
		if b.Category != models.BadgeCategorySpecial && b.Threshold <= 0 {
			return nil, fmt.Errorf("badge %q: threshold must be positive", b.Name)
		}

		badges = append(badges, models.Badge{
			Name:        b.Name,
			Description: b.Description,
			Icon:        b.Icon,
			Category:    b.Category,
			Threshold:   b.Threshold,
			Rule:        b.Rule,
		})
	}
	return badges, nil
}

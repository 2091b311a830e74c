package repository

import (
	"strings"
	"testing"

	"github.com/aimd54/travelquest-rewards/internal/models"
)

func TestParseBadgeSeed(t *testing.T) {
	data := []byte(`
badges:
  - name: First Steps
    category: missions
    threshold: 1
  - name: Marathon
    category: special
    rule: marathon
`)
	badges, err := ParseBadgeSeed(data)
	if err != nil {
		t.Fatalf("ParseBadgeSeed() failed: %v", err)
	}
	if len(badges) != 2 {
		t.Fatalf("Expected 2 badges, got %d", len(badges))
	}
	if badges[1].Category != models.BadgeCategorySpecial || badges[1].Rule != "marathon" {
		t.Errorf("Unexpected special badge: %+v", badges[1])
	}
}

func TestParseBadgeSeed_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing name":     "badges:\n  - category: missions\n    threshold: 1\n",
		"unknown category": "badges:\n  - name: X\n    category: food\n    threshold: 1\n",
		"special no rule":  "badges:\n  - name: X\n    category: special\n",
		"zero threshold":   "badges:\n  - name: X\n    category: cities\n",
		"duplicate":        "badges:\n  - name: X\n    category: level\n    threshold: 1\n  - name: X\n    category: level\n    threshold: 2\n",
		"malformed yaml":   "badges: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseBadgeSeed([]byte(data)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestLoadBadgeSeed_MissingFile(t *testing.T) {
	_, err := LoadBadgeSeed("does-not-exist.yaml")
	if err == nil || !strings.Contains(err.Error(), "badge seed") {
		t.Errorf("Expected read error, got %v", err)
	}
}

package labels

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Rule maps a set of venue labels to a canonical category. Rules are ordered;
// the first rule whose label set contains an applied label wins. The core
// ships no vocabulary of its own; tables are authored externally.
type Rule struct {
	Labels   []string `yaml:"labels"`
	Category string   `yaml:"category"`
}

// RuleTable is an ordered list of classification rules.
type RuleTable []Rule

// CategoryFor returns the category of the first rule whose label set
// intersects labels. Rule order decides, not the order labels were applied
// in, so the derived category is stable for a given label set.
func (rt RuleTable) CategoryFor(labels []string) (string, bool) {
	for _, r := range rt {
		for _, l := range r.Labels {
			if slices.Contains(labels, l) {
				return r.Category, true
			}
		}
	}
	return "", false
}

// LoadRules reads an ordered rule table from a YAML file. The file is a list
// of {labels: [...], category: ...} entries.
func LoadRules(path string) (RuleTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	return ParseRules(raw)
}

// ParseRules parses YAML rule data and validates every entry.
func ParseRules(raw []byte) (RuleTable, error) {
	var rules RuleTable
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	for i, r := range rules {
		if r.Category == "" {
			return nil, fmt.Errorf("rule %d: category must not be empty", i)
		}
		if len(r.Labels) == 0 {
			return nil, fmt.Errorf("rule %d (%s): labels must not be empty", i, r.Category)
		}
	}
	return rules, nil
}

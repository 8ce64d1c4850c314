package common

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules is the optional YAML overlay for parser and categorizer vocabularies.
//
//	header_rules:
//	  - name: distributor
//	    pattern: "BRAND|PACK SIZE|PRICE"
//	    columns: [BRAND, PACK SIZE, PRICE]
//	alcohol_keywords: [wine, beer]
//
// Header rules are tried in file order; the first match wins.
type Rules struct {
	HeaderRules     []HeaderRuleSpec `yaml:"header_rules"`
	AlcoholKeywords []string         `yaml:"alcohol_keywords"`
}

type HeaderRuleSpec struct {
	Name    string   `yaml:"name"`
	Pattern string   `yaml:"pattern"`
	Columns []string `yaml:"columns"`
}

// LoadRules reads a rules file. An empty path yields empty rules (use defaults).
func LoadRules(path string) (*Rules, error) {
	r := &Rules{}
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, NewAppError(CodeConfig, fmt.Sprintf("parse rules %s", path), err)
	}
	for i, hr := range r.HeaderRules {
		if hr.Pattern == "" {
			return nil, NewAppError(CodeConfig, fmt.Sprintf("header_rules[%d]: pattern is required", i), ErrInvalidInput)
		}
	}
	return r, nil
}

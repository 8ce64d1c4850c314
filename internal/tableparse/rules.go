package tableparse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// HeaderRule recognizes a header line. Columns lists the expected column names;
// multi-word names ("PACK SIZE") are kept as one header token.
type HeaderRule struct {
	Name    string
	Pattern *regexp.Regexp
	Columns []string
}

var (
	distributorColumns = []string{"BRAND", "PACK SIZE", "PRICE", "ORDERED", "CONFIRMED", "STATUS"}
	inventoryColumns   = []string{"Brand", "Bin", "Size", "Totals", "Unit Cost", "Ext Value"}
)

// DefaultRules returns the built-in rules in match order: the first rule that
// matches a line wins.
func DefaultRules() []HeaderRule {
	return []HeaderRule{
		{
			Name:    "distributor",
			Pattern: regexp.MustCompile(`(?i)BRAND|PACK SIZE|PRICE|ORDERED|CONFIRMED|STATUS`),
			Columns: distributorColumns,
		},
		{
			Name:    "inventory",
			Pattern: regexp.MustCompile(`(?i)Brand|Bin|Size|Totals|Unit Cost|Ext Value`),
			Columns: inventoryColumns,
		},
	}
}

// RulesFromSpecs compiles rules from the YAML rules file, in file order. Patterns
// are matched case-insensitively. Empty specs yield DefaultRules.
func RulesFromSpecs(specs []common.HeaderRuleSpec) ([]HeaderRule, error) {
	if len(specs) == 0 {
		return DefaultRules(), nil
	}
	rules := make([]HeaderRule, 0, len(specs))
	for i, s := range specs {
		pattern := s.Pattern
		if !strings.HasPrefix(pattern, "(?i)") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("header rule %d (%s)", i, s.Name), err)
		}
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("rule-%d", i+1)
		}
		rules = append(rules, HeaderRule{Name: name, Pattern: re, Columns: s.Columns})
	}
	return rules, nil
}

// match returns the first rule matching line.
func match(rules []HeaderRule, line string) (HeaderRule, bool) {
	for _, r := range rules {
		if r.Pattern.MatchString(line) {
			return r, true
		}
	}
	return HeaderRule{}, false
}

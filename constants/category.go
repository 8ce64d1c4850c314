package constants

import (
	"strings"
)

type Category string

const (
	Food    Category = "food"
	Alcohol Category = "alcohol"
)

var allCategories = []Category{
	Food,
	Alcohol,
}

// AlcoholKeywords are matched as case-insensitive substrings of a product name.
var AlcoholKeywords = []string{
	"wine", "beer", "vodka", "rum", "whiskey", "gin", "tequila", "brandy",
	"cognac", "liqueur", "cider", "champagne", "alcohol", "liquor", "spirit",
	"scotch", "bourbon", "ale", "lager", "merlot", "cabernet", "chardonnay",
	"sauvignon", "blanc", "pinot", "zinfandel", "riesling", "malbec",
	"syrah", "chablis", "prosecco", "port", "sherry",
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Categorizer classifies product names by keyword. The zero value uses AlcoholKeywords.
type Categorizer struct {
	keywords []string
}

// NewCategorizer lowercases and de-blanks keywords. An empty list falls back to AlcoholKeywords.
func NewCategorizer(keywords []string) Categorizer {
	var kw []string
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kw = append(kw, k)
		}
	}
	return Categorizer{keywords: kw}
}

func (c Categorizer) Categorize(name string) Category {
	kw := c.keywords
	if len(kw) == 0 {
		kw = AlcoholKeywords
	}
	lower := strings.ToLower(name)
	for _, k := range kw {
		if strings.Contains(lower, k) {
			return Alcohol
		}
	}
	return Food
}

// Categorize uses the default keyword list.
func Categorize(name string) Category {
	return Categorizer{}.Categorize(name)
}

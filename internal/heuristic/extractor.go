// Package heuristic pulls line items out of text that has no recognizable table header.
package heuristic

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/dates"
	"github.com/joseph-ayodele/invoice-extractor/internal/record"
)

// DefaultPackSize is used when no pack-size token is found.
const DefaultPackSize = "Standard"

// Strategy names, recorded on each item.
const (
	StrategyFullLine = "full-line"
	StrategyPrice    = "price-token"
)

var (
	reNoise    = regexp.MustCompile(`(?i)invoice|customer|page|total|subtotal|tax`)
	reFullLine = regexp.MustCompile(`^([\p{L}\p{N}\p{P}][\p{L}\p{N}\p{P}\s]*?)\s+(\d+(?:\.\d+)?)\s+\$?(\d+(?:\.\d+)?)\s+\$?(\d+(?:\.\d+)?)$`)
	rePrice    = regexp.MustCompile(`\$(\d+\.\d{2})`)
	reQty      = regexp.MustCompile(`(?i)\bqty:?\s*(\d+)\b|\b(\d+)\s*units?\b`)
	rePackSize = regexp.MustCompile(`(?i)(\d+(?:[./]\d+)*)\s*(ml|oz|ct|lb)\b`)
	reLetter   = regexp.MustCompile(`\p{L}`)
	reDigit    = regexp.MustCompile(`\d`)
	reWS       = regexp.MustCompile(`\s+`)
)

// LineItem is the fixed-shape record of the heuristic path.
type LineItem struct {
	Name     string
	Quantity float64
	Price    float64
	Total    float64
	Date     string
	Category constants.Category
	PackSize string
	Strategy string
	Line     int // 1-based source line
}

// Record converts the item to the shared record shape.
func (li LineItem) Record() record.Record {
	return record.FromFields(
		record.Field{Key: "name", Value: li.Name},
		record.Field{Key: "quantity", Value: li.Quantity},
		record.Field{Key: "price", Value: li.Price},
		record.Field{Key: "total", Value: li.Total},
		record.Field{Key: "date", Value: li.Date},
		record.Field{Key: "category", Value: string(li.Category)},
		record.Field{Key: "packSize", Value: li.PackSize},
	)
}

type Extractor struct {
	categorizer constants.Categorizer
	logger      *slog.Logger
}

func NewExtractor(c constants.Categorizer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{categorizer: c, logger: logger}
}

// Extract never fails. Lines matching neither strategy are skipped.
func (e *Extractor) Extract(text string) []LineItem {
	date := dates.DetectOr(text, dates.Unknown)
	lines := strings.Split(text, "\n")

	items := []LineItem{}
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || reNoise.MatchString(line) {
			continue
		}
		item, ok := fullLine(line)
		if !ok {
			item, ok = priceToken(line)
		}
		if !ok {
			continue
		}

		next := ""
		if i+1 < len(lines) {
			next = lines[i+1]
		}
		item.PackSize = packSize(line, next)
		item.Date = date
		item.Category = e.categorizer.Categorize(item.Name)
		item.Line = i + 1
		items = append(items, item)
	}
	e.logger.Debug("heuristic.extract", "lines", len(lines), "items", len(items))
	return items
}

// Records is Extract converted to records.
func (e *Extractor) Records(text string) []record.Record {
	items := e.Extract(text)
	out := make([]record.Record, len(items))
	for i, it := range items {
		out[i] = it.Record()
	}
	return out
}

// fullLine matches "name qty price total" over the whole line.
func fullLine(line string) (LineItem, bool) {
	m := reFullLine.FindStringSubmatch(line)
	if m == nil {
		return LineItem{}, false
	}
	qty, err1 := strconv.ParseFloat(m[2], 64)
	price, err2 := strconv.ParseFloat(m[3], 64)
	total, err3 := strconv.ParseFloat(m[4], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return LineItem{}, false
	}
	return LineItem{
		Name:     collapse(m[1]),
		Quantity: qty,
		Price:    price,
		Total:    total,
		Strategy: StrategyFullLine,
	}, true
}

// priceToken finds a $d.dd price and an optional quantity; total is computed.
func priceToken(line string) (LineItem, bool) {
	if !reLetter.MatchString(line) || !reDigit.MatchString(line) {
		return LineItem{}, false
	}
	loc := rePrice.FindStringSubmatchIndex(line)
	if loc == nil {
		return LineItem{}, false
	}
	price, err := strconv.ParseFloat(line[loc[2]:loc[3]], 64)
	if err != nil {
		return LineItem{}, false
	}

	qty := 1.0
	if m := reQty.FindStringSubmatch(line); m != nil {
		n := m[1]
		if n == "" {
			n = m[2]
		}
		if q, err := strconv.ParseFloat(n, 64); err == nil && q > 0 {
			qty = q
		}
	}

	name := collapse(line[:loc[0]] + " " + line[loc[1]:])
	if name == "" {
		return LineItem{}, false
	}
	return LineItem{
		Name:     name,
		Quantity: qty,
		Price:    price,
		Total:    roundCents(price * qty),
		Strategy: StrategyPrice,
	}, true
}

// packSize looks at the line, then the one after it.
func packSize(line, next string) string {
	for _, s := range []string{line, next} {
		if m := rePackSize.FindStringSubmatch(s); m != nil {
			return m[1] + strings.ToLower(m[2])
		}
	}
	return DefaultPackSize
}

func collapse(s string) string {
	return strings.TrimSpace(reWS.ReplaceAllString(s, " "))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

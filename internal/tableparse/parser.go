package tableparse

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/dates"
	"github.com/joseph-ayodele/invoice-extractor/internal/record"
)

// DefaultMinFieldRatio is the share of header columns a data line must fill.
const DefaultMinFieldRatio = 0.7

var reKeyUnsafe = regexp.MustCompile(`[^a-z0-9_]`)

// HeaderSpec is the header in effect while scanning.
type HeaderSpec struct {
	Rule   string
	Tokens []string // as written
	Keys   []string // record keys, unique
}

// Result of one Parse call.
type Result struct {
	Records     []record.Record
	HeaderLines int
	Rejected    int    // data lines under a header with too few values
	Date        string // detected document date, "" if none
}

func (r Result) Empty() bool { return len(r.Records) == 0 }

// Err is ErrStructuralParseEmpty when nothing was parsed.
func (r Result) Err() error {
	if r.Empty() {
		return common.ErrStructuralParseEmpty
	}
	return nil
}

type Parser struct {
	rules    []HeaderRule
	minRatio float64
	logger   *slog.Logger
}

type Option func(*Parser)

// WithMinFieldRatio sets the acceptance ratio; values outside (0,1] are ignored.
func WithMinFieldRatio(r float64) Option {
	return func(p *Parser) {
		if r > 0 && r <= 1 {
			p.minRatio = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewParser uses DefaultRules when rules is empty.
func NewParser(rules []HeaderRule, opts ...Option) *Parser {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	p := &Parser{rules: rules, minRatio: DefaultMinFieldRatio, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ParseRows returns only the records of Parse.
func (p *Parser) ParseRows(text string) []record.Record {
	return p.Parse(text).Records
}

// Parse scans lines in order. A line matching a header rule becomes the current
// header and is never a data row. Other lines under a header become records when
// they fill enough columns. All state is local to the call.
func (p *Parser) Parse(text string) Result {
	var lines []line
	for _, raw := range strings.Split(text, "\n") {
		l := strings.TrimSpace(raw)
		if l == "" {
			continue
		}
		lines = append(lines, line{text: l, cells: strings.Fields(l)})
	}
	return p.scan(text, lines, true)
}

// ParseCells is Parse over tabular input: each row's cells are its tokens, so
// cells holding spaces stay in their column. Header rules still match the
// row's cells joined by spaces.
func (p *Parser) ParseCells(rows [][]string) Result {
	var (
		lines  []line
		joined []string
	)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.TrimSpace(c)
		}
		text := strings.TrimSpace(strings.Join(nonEmpty(cells), " "))
		if text == "" {
			continue
		}
		joined = append(joined, text)
		lines = append(lines, line{text: text, cells: cells})
	}
	return p.scan(strings.Join(joined, "\n"), lines, false)
}

type line struct {
	text  string
	cells []string
}

func (p *Parser) scan(text string, lines []line, mergeHeader bool) Result {
	date, _ := dates.Detect(text)
	res := Result{Date: date, Records: []record.Record{}}

	var current *HeaderSpec
	for _, l := range lines {
		if rule, ok := match(p.rules, l.text); ok {
			tokens := l.cells
			if mergeHeader {
				tokens = mergePhrases(tokens, rule.Columns)
			}
			current = headerFromTokens(rule, tokens)
			res.HeaderLines++
			p.logger.Debug("tableparse.header", "rule", rule.Name, "columns", strings.Join(current.Keys, ","))
			continue
		}
		if current == nil {
			continue
		}
		if !p.accept(len(nonEmpty(l.cells)), len(nonEmpty(current.Keys))) {
			res.Rejected++
			continue
		}

		var rec record.Record
		for i, key := range current.Keys {
			if i >= len(l.cells) {
				break
			}
			if key == "" || l.cells[i] == "" {
				continue
			}
			rec.Set(key, l.cells[i])
		}
		if date != "" && !rec.Has("date") {
			rec.Set("date", date)
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// accept compares the floor-rounded fill percentage with the ratio, both as
// whole percents.
func (p *Parser) accept(values, columns int) bool {
	if columns == 0 || values == 0 {
		return false
	}
	pct := values * 100 / columns
	return pct >= int(math.Round(p.minRatio*100))
}

func newHeader(rule HeaderRule, line string) *HeaderSpec {
	return headerFromTokens(rule, mergePhrases(strings.Fields(line), rule.Columns))
}

// headerFromTokens keys each token. Blank tokens (empty header cells) keep
// their position with an empty key so later columns stay aligned.
func headerFromTokens(rule HeaderRule, tokens []string) *HeaderSpec {
	h := &HeaderSpec{Rule: rule.Name, Tokens: tokens, Keys: make([]string, len(tokens))}
	seen := map[string]int{}
	for i, t := range tokens {
		k := Key(strings.TrimSpace(t))
		if k == "" {
			continue
		}
		seen[k]++
		if n := seen[k]; n > 1 {
			k += "_" + strconv.Itoa(n)
		}
		h.Keys[i] = k
	}
	return h
}

func nonEmpty(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Key lowercases a header token and replaces anything outside [a-z0-9_] with '_'.
func Key(token string) string {
	return reKeyUnsafe.ReplaceAllString(strings.ToLower(token), "_")
}

// mergePhrases joins adjacent tokens that spell a multi-word column name.
func mergePhrases(tokens, columns []string) []string {
	var phrases [][]string
	for _, c := range columns {
		if f := strings.Fields(c); len(f) > 1 {
			phrases = append(phrases, f)
		}
	}
	if len(phrases) == 0 {
		return tokens
	}

	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		n := 1
		for _, ph := range phrases {
			if len(ph) > n && hasPhraseAt(tokens, i, ph) {
				n = len(ph)
			}
		}
		out = append(out, strings.Join(tokens[i:i+n], " "))
		i += n
	}
	return out
}

func hasPhraseAt(tokens []string, i int, phrase []string) bool {
	if i+len(phrase) > len(tokens) {
		return false
	}
	for j, w := range phrase {
		if !strings.EqualFold(tokens[i+j], w) {
			return false
		}
	}
	return true
}

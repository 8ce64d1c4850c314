package normalize

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reMarkup     = regexp.MustCompile(`<[a-zA-Z/!?][^>]*>|&(?:#\d+|#[xX][0-9a-fA-F]+|[a-zA-Z]+);`)
	reJunk       = regexp.MustCompile(`[^\p{L}\p{N}\p{M}\p{P}\p{Sc}\p{Sm}\p{Zs}\t\n]+`)
	reSpaces     = regexp.MustCompile(`[\t\p{Zs}]+`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
)

var strict = bluemonday.StrictPolicy()

// maxPasses bounds the fixpoint loop in Normalize.
const maxPasses = 4

// Normalize strips markup and control noise and tidies whitespace while
// keeping line structure. It never fails and Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return s
	}
	// Unescaping entities or NFKC folding can surface new markup, so run to a fixpoint.
	for i := 0; i < maxPasses; i++ {
		next := clean(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func clean(s string) string {
	s = strings.ToValidUTF8(s, " ")
	s = reCRLF.ReplaceAllString(s, "\n")
	if reMarkup.MatchString(s) {
		s = html.UnescapeString(strict.Sanitize(s))
	}
	s = norm.NFKC.String(s)
	s = reJunk.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// RowsToText flattens tabular cells: cells joined by a space, rows by a newline.
func RowsToText(rows [][]string) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Join(row, " "))
	}
	return b.String()
}

// Cells normalizes every cell on its own, folding any line breaks inside a
// cell to a space. The row and column shape is unchanged.
func Cells(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = make([]string, len(row))
		for j, c := range row {
			out[i][j] = strings.Join(strings.Fields(Normalize(c)), " ")
		}
	}
	return out
}

package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

var delimiters = []rune{',', ';', '\t', '|'}

// DelimitedLoader reads CSV/TSV-style files into rows.
type DelimitedLoader struct {
	limits Limits
	logger *slog.Logger
}

func NewDelimitedLoader(limits Limits, logger *slog.Logger) *DelimitedLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &DelimitedLoader{limits: limits, logger: logger}
}

func (l *DelimitedLoader) Kind() constants.FormatKind { return constants.DELIMITED }

func (l *DelimitedLoader) Load(_ context.Context, doc SourceDocument) (Content, error) {
	if err := admit(l.Kind(), doc, l.limits); err != nil {
		return Content{}, err
	}
	start := time.Now()

	data := stripBOM(doc.Content)
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	rows := [][]string{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Content{}, corrupt(doc, err)
		}
		rows = appendRows(rows, [][]string{rec})
	}
	l.logger.Debug("loader.delimited.ok", "file", doc.Filename, "delimiter", string(r.Comma), "rows", len(rows))
	return Content{Rows: rows, Pages: 1, Method: MethodDelimited, Duration: time.Since(start)}, nil
}

// sniffDelimiter picks the candidate that occurs most often, and consistently,
// across the first few non-empty lines. Comma wins by default.
func sniffDelimiter(data []byte) rune {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() && len(lines) < 10 {
		if ln := strings.TrimSpace(sc.Text()); ln != "" {
			lines = append(lines, sc.Text())
		}
	}
	if len(lines) == 0 {
		return ','
	}

	best, bestScore := ',', 0
	for _, d := range delimiters {
		first := strings.Count(lines[0], string(d))
		if first == 0 {
			continue
		}
		score := first
		for _, ln := range lines[1:] {
			if strings.Count(ln, string(d)) != first {
				score = first / 2
				break
			}
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
}

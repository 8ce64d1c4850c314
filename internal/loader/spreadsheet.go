package loader

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// SpreadsheetLoader returns the cells of every sheet, in workbook order.
type SpreadsheetLoader struct {
	limits Limits
	logger *slog.Logger
}

func NewSpreadsheetLoader(limits Limits, logger *slog.Logger) *SpreadsheetLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpreadsheetLoader{limits: limits, logger: logger}
}

func (l *SpreadsheetLoader) Kind() constants.FormatKind { return constants.SPREADSHEET }

func (l *SpreadsheetLoader) Load(_ context.Context, doc SourceDocument) (Content, error) {
	if err := admit(l.Kind(), doc, l.limits); err != nil {
		return Content{}, err
	}
	start := time.Now()

	f, err := excelize.OpenReader(bytes.NewReader(doc.Content))
	if err != nil {
		return Content{}, corrupt(doc, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			l.logger.Warn("loader.spreadsheet.close_failed", "file", doc.Filename, "error", err)
		}
	}()

	sheets := f.GetSheetList()
	rows := [][]string{}
	for _, sheet := range sheets {
		sheetRows, err := f.GetRows(sheet)
		if err != nil {
			return Content{}, corrupt(doc, err)
		}
		rows = appendRows(rows, sheetRows)
	}
	l.logger.Debug("loader.spreadsheet.ok", "file", doc.Filename, "sheets", len(sheets), "rows", len(rows))
	return Content{Rows: rows, Pages: len(sheets), Method: MethodSheet, Duration: time.Since(start)}, nil
}

// appendRows trims cells, drops trailing empty cells and skips blank rows.
func appendRows(dst, src [][]string) [][]string {
	for _, row := range src {
		cells := make([]string, len(row))
		last := -1
		for i, c := range row {
			cells[i] = strings.TrimSpace(c)
			if cells[i] != "" {
				last = i
			}
		}
		if last < 0 {
			continue
		}
		dst = append(dst, cells[:last+1])
	}
	return dst
}

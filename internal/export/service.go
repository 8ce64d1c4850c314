package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/internal/assemble"
	"github.com/joseph-ayodele/invoice-extractor/internal/dates"
)

const (
	recordsSheet   = "Records"
	documentsSheet = "Documents"
)

// Fixed leading columns of the records sheet; record keys follow in first-seen order.
var recordColumns = []string{"Document", "File", "Line", "Line Value"}

var documentColumns = []string{
	"Document",
	"File",
	"Kind",
	"Status",
	"Method",
	"Source",
	"Records",
	"Total Value",
	"Delivery Date",
	"Vendor",
	"Invoice #",
	"Error Code",
	"Error",
	"Raw Text",
}

// Service renders results as an XLSX workbook.
type Service struct {
	assembler *assemble.Assembler
	logger    *slog.Logger
}

func NewService(a *assemble.Assembler, logger *slog.Logger) *Service {
	if a == nil {
		a = assemble.NewAssembler()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{assembler: a, logger: logger}
}

// WriteXLSX returns a workbook with one row per record and one row per document.
func (s *Service) WriteXLSX(results []assemble.Result) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", recordsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(documentsSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(recordsSheet)
	f.SetActiveSheet(activeIndex)

	keys := recordKeys(results)
	header := append(append([]string{}, recordColumns...), keys...)
	if err := writeRow(f, recordsSheet, 1, toAny(header)); err != nil {
		return nil, err
	}

	row := 2
	for _, res := range results {
		for i, r := range res.Records {
			vals := []any{res.DocumentID, res.Filename, i + 1, s.assembler.Value(r)}
			for _, k := range keys {
				v, _ := r.Get(k)
				vals = append(vals, v)
			}
			if err := writeRow(f, recordsSheet, row, vals); err != nil {
				return nil, err
			}
			row++
		}
	}
	records := row - 2

	if err := writeRow(f, documentsSheet, 1, toAny(documentColumns)); err != nil {
		return nil, err
	}
	for i, res := range results {
		vendor, invoiceNo := "", ""
		if res.Meta != nil {
			vendor, invoiceNo = res.Meta.Vendor, res.Meta.InvoiceNumber
		}
		delivery := res.DeliveryDate
		if iso := dates.ISO(delivery); iso != "" {
			delivery = iso
		}
		vals := []any{
			res.DocumentID,
			res.Filename,
			string(res.Kind),
			string(res.Status),
			res.Method,
			res.Source,
			res.Count,
			res.TotalValue,
			delivery,
			vendor,
			invoiceNo,
			res.ErrorCode,
			truncate(res.Error, 140),
			truncate(strings.ReplaceAll(res.RawText, "\n", " | "), 500),
		}
		if err := writeRow(f, documentsSheet, i+2, vals); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(recordsSheet, "A", "A", 38) // document id
	_ = f.SetColWidth(recordsSheet, "B", "B", 28) // file
	_ = f.SetColWidth(documentsSheet, "A", "A", 38)
	_ = f.SetColWidth(documentsSheet, "B", "B", 28)
	_ = f.SetColWidth(documentsSheet, "M", "N", 60) // error, raw text

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"documents", len(results),
		"rows", records,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// recordKeys returns every record key across results in first-seen order.
func recordKeys(results []assemble.Result) []string {
	seen := map[string]bool{}
	var keys []string
	for _, res := range results {
		for _, r := range res.Records {
			for _, k := range r.Keys() {
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
		}
	}
	return keys
}

func writeRow(f *excelize.File, sheet string, row int, vals []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &vals)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

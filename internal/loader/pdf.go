package loader

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// PageRecognizer is the slice of *ocr.Ensemble the loaders need.
type PageRecognizer interface {
	RecognizePages(ctx context.Context, pages []ocr.Image) (text string, noText bool, sels []ocr.Selection)
}

// Rasterizer renders PDF pages for OCR.
type Rasterizer func(name string, data []byte, dpi float64, maxPages int) ([]ocr.Image, error)

type PDFConfig struct {
	Limits    Limits
	Pdftotext string // binary; empty disables the subprocess step
	MinChars  int    // letters+digits below which a text layer is considered missing
	DPI       float64
}

// PDFLoader tries the embedded text layer first, then pdftotext, then OCR.
type PDFLoader struct {
	cfg    PDFConfig
	runner ocr.Runner
	ocr    PageRecognizer
	raster Rasterizer
	logger *slog.Logger
}

func NewPDFLoader(cfg PDFConfig, runner ocr.Runner, rec PageRecognizer, logger *slog.Logger) *PDFLoader {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ocr.ExecRunner{}
	}
	if cfg.MinChars <= 0 {
		cfg.MinChars = 20
	}
	return &PDFLoader{cfg: cfg, runner: runner, ocr: rec, raster: ocr.RasterizePDF, logger: logger}
}

// WithRasterizer swaps the page renderer (tests).
func (l *PDFLoader) WithRasterizer(r Rasterizer) *PDFLoader {
	l.raster = r
	return l
}

func (l *PDFLoader) Kind() constants.FormatKind { return constants.PDF }

func (l *PDFLoader) Load(ctx context.Context, doc SourceDocument) (Content, error) {
	if err := admit(l.Kind(), doc, l.cfg.Limits); err != nil {
		return Content{}, err
	}
	start := time.Now()

	pages, err := validatePDF(doc.Content)
	if err != nil {
		return Content{}, corrupt(doc, err)
	}
	maxPages := pages
	if l.cfg.Limits.MaxPages > 0 && maxPages > l.cfg.Limits.MaxPages {
		maxPages = l.cfg.Limits.MaxPages
	}

	var warnings []string
	if maxPages < pages {
		warnings = append(warnings, fmt.Sprintf("only first %d of %d pages processed", maxPages, pages))
	}
	out := Content{Pages: maxPages, Warnings: warnings}

	text, err := textLayer(doc.Content, maxPages)
	if err != nil {
		l.logger.Warn("loader.pdf.text_layer_failed", "file", doc.Filename, "error", err)
	}
	if l.usable(text) {
		out.Text, out.Method, out.Duration = text, MethodPDFText, time.Since(start)
		return out, nil
	}

	if l.cfg.Pdftotext != "" {
		text, err = l.pdftotext(ctx, doc, maxPages)
		if err != nil {
			l.logger.Warn("loader.pdf.pdftotext_failed", "file", doc.Filename, "error", err)
		} else if l.usable(text) {
			out.Text, out.Method, out.Duration = text, MethodPdftotext, time.Since(start)
			return out, nil
		}
	}

	if l.ocr == nil {
		out.Warnings = append(out.Warnings, "no OCR configured for scanned PDF")
		out.Text, out.Method, out.Duration = text, MethodPDFText, time.Since(start)
		return out, nil
	}

	imgs, err := l.raster(doc.Filename, doc.Content, l.cfg.DPI, maxPages)
	if err != nil && len(imgs) == 0 {
		return Content{}, corrupt(doc, err)
	}
	if err != nil {
		out.Warnings = append(out.Warnings, err.Error())
	}
	ocrText, noText, _ := l.ocr.RecognizePages(ctx, imgs)
	out.Text, out.NoText, out.Method, out.Duration = ocrText, noText, MethodPDFOCR, time.Since(start)
	l.logger.Info("loader.pdf.ocr", "file", doc.Filename, "pages", len(imgs), "no_text", noText)
	return out, nil
}

func (l *PDFLoader) usable(text string) bool {
	return ocr.AlnumScore(text) >= l.cfg.MinChars
}

// pdftotext -layout -l N <file> -
func (l *PDFLoader) pdftotext(ctx context.Context, doc SourceDocument, maxPages int) (string, error) {
	var out string
	err := withTempFile("doc.pdf", doc.Content, func(path string) error {
		args := []string{"-layout"}
		if maxPages > 0 {
			args = append(args, "-l", strconv.Itoa(maxPages))
		}
		args = append(args, path, "-")
		stdout, stderr, err := l.runner.Run(ctx, l.cfg.Pdftotext, l.logger, args...)
		if err != nil {
			return fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(string(stderr)))
		}
		out = string(stdout)
		return nil
	})
	return out, err
}

// validatePDF checks structure with pdfcpu and returns the page count.
func validatePDF(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx.PageCount, nil
}

// textLayer reads embedded text row by row.
func textLayer(data []byte, maxPages int) (text string, err error) {
	defer func() {
		// ledongthuc/pdf panics on some malformed streams.
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf text layer: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	n := r.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}

	var b strings.Builder
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return b.String(), fmt.Errorf("page %d: %w", i, err)
		}
		if i > 1 && b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		for _, row := range rows {
			b.WriteString(joinRow(row.Content))
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// joinRow inserts a space where the horizontal gap between fragments is wider
// than a fifth of the font size.
func joinRow(texts []pdf.Text) string {
	var b strings.Builder
	for i, t := range texts {
		if i > 0 {
			prev := texts[i-1]
			gap := t.X - (prev.X + prev.W)
			if gap > prev.FontSize*0.2 && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(t.S, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
	}
	return b.String()
}

func withTempFile(name string, data []byte, fn func(path string) error) error {
	dir, err := os.MkdirTemp("", "loader-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return err
	}
	return fn(p)
}

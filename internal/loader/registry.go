package loader

import (
	"log/slog"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// NewDefaultRegistry wires one loader per supported format from config.
// rec may be nil, in which case image and scanned PDF input yields no text.
func NewDefaultRegistry(cfg *common.Config, runner ocr.Runner, rec PageRecognizer, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	lim := Limits{MaxBytes: cfg.Loader.MaxBytes, MaxPages: cfg.Loader.MaxPages}
	return NewRegistry(
		NewPDFLoader(PDFConfig{
			Limits:    lim,
			Pdftotext: cfg.Loader.Pdftotext,
			MinChars:  cfg.Loader.MinPDFTextChars,
			DPI:       float64(cfg.OCR.DPI),
		}, runner, rec, logger),
		NewImageLoader(lim, rec, logger),
		NewSpreadsheetLoader(lim, logger),
		NewDelimitedLoader(lim, logger),
		NewDocxLoader(lim, logger),
		NewTextLoader(lim),
	)
}

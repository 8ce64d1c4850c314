package loader

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// ImageLoader runs a raster image through the OCR ensemble.
type ImageLoader struct {
	limits Limits
	ocr    PageRecognizer
	logger *slog.Logger
}

func NewImageLoader(limits Limits, rec PageRecognizer, logger *slog.Logger) *ImageLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageLoader{limits: limits, ocr: rec, logger: logger}
}

func (l *ImageLoader) Kind() constants.FormatKind { return constants.IMAGE }

func (l *ImageLoader) Load(ctx context.Context, doc SourceDocument) (Content, error) {
	if err := admit(l.Kind(), doc, l.limits); err != nil {
		return Content{}, err
	}
	start := time.Now()

	png, err := ocr.ToPNG(doc.Content)
	if err != nil {
		return Content{}, corrupt(doc, err)
	}
	if l.ocr == nil {
		return Content{Text: ocr.NoTextSentinel, NoText: true, Pages: 1, Method: MethodImageOCR,
			Warnings: []string{"no OCR configured"}}, nil
	}

	text, noText, sels := l.ocr.RecognizePages(ctx, []ocr.Image{{Name: doc.Filename, Page: 1, PNG: png}})
	out := Content{Text: text, NoText: noText, Pages: 1, Method: MethodImageOCR, Duration: time.Since(start)}
	for _, s := range sels {
		for _, o := range s.Observations {
			if o.Failed() {
				out.Warnings = append(out.Warnings, o.Engine+": "+o.Err.Error())
			}
		}
	}
	return out, nil
}

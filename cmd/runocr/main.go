package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// runocr runs the OCR ensemble on one image or PDF and prints every engine's
// observation next to the winner, for tuning engines and scorers.
func main() {
	cfg := common.LoadConfig()

	fs := ff.NewFlagSet("runocr")
	var (
		engines = fs.StringLong("engines", strings.Join(cfg.OCR.Engines, ","), "comma-separated engines, in tie-break order")
		scorer  = fs.StringLong("scorer", cfg.OCR.Scorer, "alnum | artifact")
		timeout = fs.DurationLong("timeout", cfg.OCR.EngineTimeout, "per-engine timeout")
		showAll = fs.BoolLong("text", "print each engine's full text")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("INVOICE_EXTRACTOR")); err != nil || len(fs.GetArgs()) != 1 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs, "runocr [flags] <image-or-pdf>"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	path := fs.GetArgs()[0]
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read input", "path", path, "error", err)
		os.Exit(1)
	}

	cfg.OCR.Engines = strings.Split(*engines, ",")
	cfg.OCR.Scorer = *scorer
	cfg.OCR.EngineTimeout = *timeout
	ens := ocr.NewEnsembleFromConfig(cfg.OCR, nil, logger)

	name := filepath.Base(path)
	var pages []ocr.Image
	if constants.MapExtToFormat(filepath.Ext(path)) == constants.PDF {
		pages, err = ocr.RasterizePDF(name, data, float64(cfg.OCR.DPI), cfg.Loader.MaxPages)
	} else {
		var png []byte
		png, err = ocr.ToPNG(data)
		pages = []ocr.Image{{Name: name, Page: 1, PNG: png}}
	}
	if err != nil {
		logger.Error("prepare image", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(len(pages)+1)*(*timeout))
	defer cancel()

	start := time.Now()
	text, noText, sels := ens.RecognizePages(ctx, pages)
	for i, sel := range sels {
		for _, o := range sel.Observations {
			attrs := []any{
				"page", i + 1,
				"engine", o.Engine,
				"score", o.Score,
				"confidence", o.Confidence,
				"chars", len(o.Text),
				"duration_ms", o.Duration.Milliseconds(),
			}
			if o.Err != nil {
				attrs = append(attrs, "error", o.Err.Error())
			}
			if *showAll {
				attrs = append(attrs, "text", o.Text)
			}
			logger.Info("ocr.observation", attrs...)
		}
		logger.Info("ocr.selection", "page", i+1, "winner", sel.Engine, "score", sel.Score, "no_text", sel.NoText)
	}

	logger.Info("ocr.done",
		"engines", ens.Engines(),
		"pages", len(pages),
		"no_text", noText,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	fmt.Println(text)
}

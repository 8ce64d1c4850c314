package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

type TesseractConfig struct {
	Bin         string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default

	EnableTSVConfidence bool
}

// Tesseract is the primary engine.
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg TesseractConfig, runner Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if cfg.Bin == "" {
		cfg.Bin = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

func (t *Tesseract) Name() string { return common.EngineTesseract }

func (t *Tesseract) Recognize(ctx context.Context, img Image) Observation {
	start := time.Now()
	obs := Observation{Engine: t.Name()}

	err := withTempPNG(img.PNG, func(path string) error {
		// tesseract <file> stdout -l <lang>
		out, errb, err := t.runner.Run(ctx, t.cfg.Bin, t.logger, t.args(path)...)
		if err != nil {
			return fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
		}
		obs.Text = reBoxNoise.ReplaceAllString(string(out), "")

		if t.cfg.EnableTSVConfidence {
			if c, err := t.tsvConfidence(ctx, path); err == nil {
				obs.Confidence = c
			} else {
				t.logger.Warn("ocr.tesseract.tsv_failed", "image", img.Name, "error", err)
			}
		}
		return nil
	})
	obs.Duration = time.Since(start)
	if err != nil {
		obs.Text = ""
		obs.Err = common.NewAppError(common.CodeEngineFailure, t.Name(), fmt.Errorf("%w: %v", common.ErrEngineFailure, err))
	}
	return obs
}

func (t *Tesseract) args(path string, extra ...string) []string {
	args := []string{path, "stdout", "-l", t.cfg.Lang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return append(args, extra...)
}

// tsvConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (t *Tesseract) tsvConfidence(ctx context.Context, path string) (float32, error) {
	out, errb, err := t.runner.Run(ctx, t.cfg.Bin, t.logger, t.args(path, "tsv")...)
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w: %s", err, truncate(string(errb), 512))
	}
	return meanTSVConfidence(string(out)), nil
}

// meanTSVConfidence averages the conf column, skipping the header and -1 rows.
func meanTSVConfidence(tsv string) float32 {
	var sum, n float64
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || len(ln) == 0 {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[10] // level..height, conf, text
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float32(sum / n / 100.0)
}

package ocr

import (
	"log/slog"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// NewEnsembleFromConfig builds engines in the configured order. A nil runner uses ExecRunner.
func NewEnsembleFromConfig(cfg common.OCRConfig, runner Runner, logger *slog.Logger) *Ensemble {
	if logger == nil {
		logger = slog.Default()
	}
	var engines []Engine
	for _, name := range cfg.Engines {
		switch name {
		case common.EngineTesseract:
			engines = append(engines, NewTesseract(TesseractConfig{
				Bin:         cfg.Tesseract,
				Lang:        cfg.TesseractLang,
				TessdataDir: cfg.TessdataDir,
				PSM:         cfg.PSM,
				OEM:         cfg.OEM,
			}, runner, logger))
		case common.EngineEasyOCR:
			engines = append(engines, NewEasyOCR(cfg.Python, cfg.EasyOCRScript, runner, logger))
		case common.EnginePaddleOCR:
			engines = append(engines, NewPaddleOCR(cfg.Python, cfg.PaddleOCRScript, runner, logger))
		default:
			logger.Warn("ocr.engine.unknown", "engine", name)
		}
	}
	return NewEnsemble(engines, logger,
		WithEngineTimeout(cfg.EngineTimeout),
		WithScoreFunc(ScorerByName(cfg.Scorer)),
	)
}

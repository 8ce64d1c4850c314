package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// ScriptEngine runs an OCR helper script that prints recognized text on stdout:
//
//	<interpreter> <script> <image.png>
//
// EasyOCR and PaddleOCR are wired this way.
type ScriptEngine struct {
	name        string
	interpreter string
	script      string
	runner      Runner
	logger      *slog.Logger
}

func NewScriptEngine(name, interpreter, script string, runner Runner, logger *slog.Logger) *ScriptEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if interpreter == "" {
		interpreter = "python3"
	}
	return &ScriptEngine{name: name, interpreter: interpreter, script: script, runner: runner, logger: logger}
}

func NewEasyOCR(interpreter, script string, runner Runner, logger *slog.Logger) *ScriptEngine {
	return NewScriptEngine(common.EngineEasyOCR, interpreter, script, runner, logger)
}

func NewPaddleOCR(interpreter, script string, runner Runner, logger *slog.Logger) *ScriptEngine {
	return NewScriptEngine(common.EnginePaddleOCR, interpreter, script, runner, logger)
}

func (s *ScriptEngine) Name() string { return s.name }

func (s *ScriptEngine) Recognize(ctx context.Context, img Image) Observation {
	start := time.Now()
	obs := Observation{Engine: s.name}
	err := withTempPNG(img.PNG, func(path string) error {
		out, errb, err := s.runner.Run(ctx, s.interpreter, s.logger, s.script, path)
		if err != nil {
			return fmt.Errorf("%s: %w: %s", s.name, err, truncate(string(errb), 512))
		}
		obs.Text = string(out)
		return nil
	})
	obs.Duration = time.Since(start)
	if err != nil {
		obs.Text = ""
		obs.Err = common.NewAppError(common.CodeEngineFailure, s.name, fmt.Errorf("%w: %v", common.ErrEngineFailure, err))
	}
	return obs
}

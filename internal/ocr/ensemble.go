package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// NoTextSentinel replaces recognized text when every engine failed.
const NoTextSentinel = "No text extracted"

// Selection is the reduced outcome of one ensemble run on one image.
type Selection struct {
	Text         string
	Engine       string
	Score        int
	NoText       bool
	Observations []Observation // in engine order
}

// Ensemble runs every engine on an image and keeps the best-scoring text.
type Ensemble struct {
	engines []Engine
	timeout time.Duration
	score   ScoreFunc
	logger  *slog.Logger
}

type Option func(*Ensemble)

func WithEngineTimeout(d time.Duration) Option {
	return func(e *Ensemble) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithScoreFunc(f ScoreFunc) Option {
	return func(e *Ensemble) {
		if f != nil {
			e.score = f
		}
	}
}

// NewEnsemble keeps engines in preference order: earlier engines win ties.
func NewEnsemble(engines []Engine, logger *slog.Logger, opts ...Option) *Ensemble {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Ensemble{
		engines: engines,
		timeout: 60 * time.Second,
		score:   AlnumScore,
		logger:  logger,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Engines returns the configured engine names in order.
func (e *Ensemble) Engines() []string {
	names := make([]string, len(e.engines))
	for i, eng := range e.engines {
		names[i] = eng.Name()
	}
	return names
}

// Recognize runs all engines concurrently, each under its own timeout.
// It never returns an error: with no usable text the Selection carries NoTextSentinel.
func (e *Ensemble) Recognize(ctx context.Context, img Image) Selection {
	obs := make([]Observation, len(e.engines))

	var wg sync.WaitGroup
	for i, eng := range e.engines {
		wg.Add(1)
		go func(i int, eng Engine) {
			defer wg.Done()
			obs[i] = e.runOne(ctx, eng, img)
		}(i, eng)
	}
	wg.Wait()

	for i := range obs {
		if obs[i].Err == nil {
			obs[i].Score = e.score(obs[i].Text)
		}
	}

	idx, ok := Select(obs)
	if !ok {
		e.logger.Warn("ocr.ensemble.no_text", "image", img.Name, "page", img.Page, "engines", len(obs))
		return Selection{Text: NoTextSentinel, NoText: true, Observations: obs}
	}
	win := obs[idx]
	e.logger.Info("ocr.ensemble.selected",
		"image", img.Name,
		"page", img.Page,
		"engine", win.Engine,
		"score", win.Score,
		"candidates", len(obs),
	)
	return Selection{Text: win.Text, Engine: win.Engine, Score: win.Score, Observations: obs}
}

// runOne bounds a single engine call. An engine that ignores ctx is abandoned
// once the timeout fires.
func (e *Ensemble) runOne(parent context.Context, eng Engine, img Image) Observation {
	ctx, cancel := context.WithTimeout(parent, e.timeout)
	defer cancel()

	start := time.Now()
	ch := make(chan Observation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- Observation{Engine: eng.Name(), Err: fmt.Errorf("%w: panic: %v", common.ErrEngineFailure, r)}
			}
		}()
		ch <- eng.Recognize(ctx, img)
	}()

	var o Observation
	select {
	case o = <-ch:
	case <-ctx.Done():
		o = Observation{Engine: eng.Name(), Err: fmt.Errorf("%w: %v", common.ErrEngineFailure, ctx.Err())}
	}
	if o.Engine == "" {
		o.Engine = eng.Name()
	}
	o.Duration = time.Since(start)
	if o.Err == nil && strings.TrimSpace(o.Text) == "" {
		o.Err = fmt.Errorf("%w: empty output", common.ErrEngineFailure)
	}
	if o.Err != nil {
		o.Text = ""
		e.logger.Warn("ocr.engine.failed", "engine", o.Engine, "image", img.Name, "duration_ms", o.Duration.Milliseconds(), "error", o.Err)
	} else {
		e.logger.Debug("ocr.engine.ok", "engine", o.Engine, "image", img.Name, "duration_ms", o.Duration.Milliseconds(), "chars", len(o.Text))
	}
	return o
}

// Select returns the index of the non-failing observation with the strictly
// highest Score; on ties the lowest index wins. ok is false if all failed.
func Select(obs []Observation) (idx int, ok bool) {
	idx = -1
	for i, o := range obs {
		if o.Failed() {
			continue
		}
		if idx < 0 || o.Score > obs[idx].Score {
			idx = i
		}
	}
	return idx, idx >= 0
}

// RecognizePages runs the ensemble per page and joins the winners with a form feed.
// noText is true only when no page produced text.
func (e *Ensemble) RecognizePages(ctx context.Context, pages []Image) (text string, noText bool, sels []Selection) {
	var b strings.Builder
	for _, p := range pages {
		if ctx.Err() != nil {
			break
		}
		sel := e.Recognize(ctx, p)
		sels = append(sels, sel)
		if sel.NoText {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(sel.Text)
	}
	if b.Len() == 0 {
		return NoTextSentinel, true, sels
	}
	return b.String(), false, sels
}

package ocr

import (
	"context"
	"time"
)

// Image is one PNG-encoded page handed to every engine.
type Image struct {
	Name string // source name, for logs
	Page int    // 1-based
	PNG  []byte
}

// Observation is one engine's result on one image. Err != nil marks a failure;
// Text is empty in that case.
type Observation struct {
	Engine     string
	Text       string
	Score      int
	Confidence float32 // engine-reported, 0 if unknown
	Err        error
	Duration   time.Duration
}

func (o Observation) Failed() bool { return o.Err != nil }

// Engine wraps one OCR backend. Recognize must not panic; failures go in
// Observation.Err.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img Image) Observation
}

package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/assemble"
	"github.com/joseph-ayodele/invoice-extractor/internal/loader"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one document waiting for extraction.
type Job struct {
	Document    loader.SourceDocument
	Force       bool // extract even if the content hash was seen before
	SubmittedAt time.Time
	BatchID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context) error
}

// Extractor is the document-level operation the workers run.
type Extractor interface {
	Extract(ctx context.Context, doc loader.SourceDocument) assemble.Result
}

// Sink receives every result, in completion order. It is called from worker
// goroutines and must be safe for concurrent use.
type Sink func(ctx context.Context, job Job, res assemble.Result)

package ingest

import (
	"context"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/loader"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	Document     loader.SourceDocument
	Deduplicated bool
	HashHex      string
	Kind         constants.FormatKind
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor turns files into classified, hashed SourceDocuments.
type Ingestor interface {
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}

// Deduper reports whether a content hash was already extracted.
type Deduper interface {
	Seen(ctx context.Context, contentHash string) (bool, error)
}

package loader

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// SourceDocument is one input file. It is read-only once built.
type SourceDocument struct {
	Filename string
	Path     string // empty for in-memory documents
	Content  []byte
	Kind     constants.FormatKind
	SHA256   string // hex, filled by ingest
}

func (d SourceDocument) Size() int64 { return int64(len(d.Content)) }

// Content is what a loader produced: either Text or Rows, never both.
type Content struct {
	Text     string
	Rows     [][]string
	NoText   bool // text is the OCR sentinel
	Pages    int
	Method   string
	Duration time.Duration
	Warnings []string
}

// Tabular reports whether the loader returned cells instead of text.
func (c Content) Tabular() bool { return c.Rows != nil }

// Extraction methods recorded on Content.
const (
	MethodPDFText   = "pdf-text"
	MethodPdftotext = "pdftotext"
	MethodPDFOCR    = "pdf-ocr"
	MethodImageOCR  = "image-ocr"
	MethodSheet     = "spreadsheet"
	MethodDelimited = "delimited"
	MethodDocx      = "docx"
	MethodPlainText = "plain-text"
)

// Loader turns the bytes of one format into Content.
type Loader interface {
	Kind() constants.FormatKind
	Load(ctx context.Context, doc SourceDocument) (Content, error)
}

// Limits bound the work a loader will accept.
type Limits struct {
	MaxBytes int64
	MaxPages int
}

func DefaultLimits() Limits {
	return Limits{MaxBytes: 50 << 20, MaxPages: 50}
}

// admit runs the checks every loader performs before parsing.
func admit(kind constants.FormatKind, doc SourceDocument, lim Limits) error {
	if doc.Kind != kind {
		return common.Errorf(common.ErrUnsupportedFormat, "%s loader cannot read %s (%s)", kind, doc.Filename, doc.Kind)
	}
	if lim.MaxBytes > 0 && doc.Size() > lim.MaxBytes {
		return common.Errorf(common.ErrSizeLimitExceeded, "%s is %d bytes, limit %d", doc.Filename, doc.Size(), lim.MaxBytes)
	}
	return nil
}

func corrupt(doc SourceDocument, err error) error {
	return common.NewAppError(common.CodeCorruptInput, doc.Filename, fmt.Errorf("%w: %v", common.ErrCorruptInput, err))
}

// Registry maps each FormatKind to its Loader.
type Registry struct {
	loaders map[constants.FormatKind]Loader
}

func NewRegistry(loaders ...Loader) *Registry {
	r := &Registry{loaders: make(map[constants.FormatKind]Loader, len(loaders))}
	for _, l := range loaders {
		r.Register(l)
	}
	return r
}

// Register replaces any loader already bound to l.Kind().
func (r *Registry) Register(l Loader) {
	r.loaders[l.Kind()] = l
}

func (r *Registry) Lookup(kind constants.FormatKind) (Loader, bool) {
	l, ok := r.loaders[kind]
	return l, ok
}

// Kinds lists registered kinds, sorted.
func (r *Registry) Kinds() []constants.FormatKind {
	out := make([]constants.FormatKind, 0, len(r.loaders))
	for k := range r.loaders {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

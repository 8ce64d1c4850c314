package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/assemble"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/dates"
	"github.com/joseph-ayodele/invoice-extractor/internal/heuristic"
	"github.com/joseph-ayodele/invoice-extractor/internal/loader"
	"github.com/joseph-ayodele/invoice-extractor/internal/normalize"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/record"
	"github.com/joseph-ayodele/invoice-extractor/internal/tableparse"
)

// documentNamespace seeds content-derived document IDs.
var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("invoice-extractor/documents"))

// DocumentID derives a stable ID from the content hash (hex SHA-256).
func DocumentID(contentHash string) string {
	return uuid.NewSHA1(documentNamespace, []byte(contentHash)).String()
}

// ContentHash returns the hex SHA-256 of b.
func ContentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Keys searched, in order, for the product name of a table record.
var nameKeys = []string{"name", "description", "product", "item", "brand"}

// Pipeline turns one SourceDocument into one Result: load, normalize, parse
// (table first, heuristic on empty), categorize, assemble.
type Pipeline struct {
	registry    *loader.Registry
	parser      *tableparse.Parser
	heuristic   *heuristic.Extractor
	categorizer constants.Categorizer
	assembler   *assemble.Assembler
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Pipeline)

func WithParser(p *tableparse.Parser) Option { return func(pl *Pipeline) { pl.parser = p } }

func WithCategorizer(c constants.Categorizer) Option {
	return func(pl *Pipeline) { pl.categorizer = c }
}

func WithAssembler(a *assemble.Assembler) Option { return func(pl *Pipeline) { pl.assembler = a } }

func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) {
		if l != nil {
			pl.logger = l
		}
	}
}

// WithClock fixes ExtractedAt (tests).
func WithClock(now func() time.Time) Option { return func(pl *Pipeline) { pl.now = now } }

func New(registry *loader.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:  registry,
		assembler: assemble.NewAssembler(),
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(p)
	}
	if p.parser == nil {
		p.parser = tableparse.NewParser(nil, tableparse.WithLogger(p.logger))
	}
	p.heuristic = heuristic.NewExtractor(p.categorizer, p.logger)
	return p
}

// NewFromConfig wires the OCR ensemble, loaders and parser from configuration
// and the optional rules overlay.
func NewFromConfig(cfg *common.Config, rules *common.Rules, runner ocr.Runner, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		rules = &common.Rules{}
	}
	headerRules, err := tableparse.RulesFromSpecs(rules.HeaderRules)
	if err != nil {
		return nil, err
	}
	ens := ocr.NewEnsembleFromConfig(cfg.OCR, runner, logger)
	registry := loader.NewDefaultRegistry(cfg, runner, ens, logger)
	parser := tableparse.NewParser(headerRules,
		tableparse.WithMinFieldRatio(cfg.Parser.MinFieldRatio),
		tableparse.WithLogger(logger),
	)
	return New(registry,
		WithParser(parser),
		WithCategorizer(constants.NewCategorizer(rules.AlcoholKeywords)),
		WithLogger(logger),
	), nil
}

// Extract never returns an error: failures are carried in the Result.
func (p *Pipeline) Extract(ctx context.Context, doc loader.SourceDocument) assemble.Result {
	start := time.Now()
	hash := doc.SHA256
	if hash == "" {
		hash = ContentHash(doc.Content)
	}
	id := DocumentID(hash)
	ctx = common.WithDocumentID(ctx, id)
	logger := common.LoggerFrom(ctx, p.logger).With("file", doc.Filename, "kind", string(doc.Kind))

	stamp := func(r assemble.Result) assemble.Result {
		r.DocumentID = id
		r.Filename = doc.Filename
		r.Kind = doc.Kind
		r.ContentHash = hash
		r.ExtractedAt = p.now()
		return r
	}
	fail := func(err error) assemble.Result {
		logger.Warn("pipeline.extract.failed", "code", common.CodeOf(err), "error", err)
		return stamp(assemble.Failed(doc.Filename, doc.Kind, err))
	}

	l, ok := p.registry.Lookup(doc.Kind)
	if !ok {
		return fail(common.Errorf(common.ErrUnsupportedFormat, "no loader for format %q", doc.Kind))
	}
	content, err := l.Load(ctx, doc)
	if err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(common.WrapError(err, "extraction cancelled"))
	}

	raw := content.Text
	var cells [][]string
	if content.Tabular() {
		cells = normalize.Cells(content.Rows)
		raw = normalize.RowsToText(cells)
	}
	text := normalize.Normalize(raw)

	if content.NoText || text == "" {
		res := p.assembler.Assemble(nil, ocr.NoTextSentinel)
		res.ErrorCode = common.CodeNoTextExtracted
		res.Error = doc.Filename + ": " + common.ErrNoTextExtracted.Error()
		res.Source = content.Method
		res.Warnings = content.Warnings
		logger.Warn("pipeline.extract.no_text", "method", content.Method)
		return stamp(res)
	}

	method := constants.MethodTable
	var parsed tableparse.Result
	if cells != nil {
		parsed = p.parser.ParseCells(cells)
	} else {
		parsed = p.parser.Parse(text)
	}
	records := parsed.Records
	if parsed.Empty() {
		method = constants.MethodHeuristic
		records = p.heuristic.Records(text)
	}
	p.categorize(records)

	res := p.assembler.Assemble(records, text)
	if res.Structured() {
		res.Method = method
	}
	res.Source = content.Method
	res.Warnings = content.Warnings
	res.DeliveryDate = dates.DetectOr(text, "")
	if meta := heuristic.ExtractMeta(text); !meta.IsZero() {
		res.Meta = &meta
	}

	logger.Info("pipeline.extract.ok",
		"status", string(res.Status),
		"method", res.Method,
		"source", res.Source,
		"records", res.Count,
		"total_value", res.TotalValue,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return stamp(res)
}

// categorize sets "category" on every record from its product name.
func (p *Pipeline) categorize(records []record.Record) {
	for i := range records {
		records[i].Set("category", string(p.categorizer.Categorize(productName(records[i]))))
	}
}

func productName(r record.Record) string {
	for _, k := range nameKeys {
		if v := r.Text(k); v != "" {
			return v
		}
	}
	return strings.Join(r.Values(), " ")
}

// ExtractFile reads path, classifies it and extracts it.
func (p *Pipeline) ExtractFile(ctx context.Context, path string) assemble.Result {
	name := filepath.Base(path)
	b, err := os.ReadFile(path)
	if err != nil {
		res := assemble.Failed(name, constants.MapExtToFormat(filepath.Ext(path)), fmt.Errorf("read %s: %w", path, err))
		res.DocumentID = uuid.NewSHA1(documentNamespace, []byte("path:"+path)).String()
		res.ExtractedAt = p.now()
		return res
	}
	return p.Extract(ctx, loader.SourceDocument{
		Filename: name,
		Path:     path,
		Content:  b,
		Kind:     Classify(b, name),
		SHA256:   ContentHash(b),
	})
}

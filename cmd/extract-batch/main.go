package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/assemble"
	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

func main() {
	cfg := common.LoadConfig()

	fs := ff.NewFlagSet("extract-batch")
	var (
		dir     = fs.StringLong("dir", "", "directory of documents to extract (required)")
		out     = fs.StringLong("out", cfg.Store.OutDir, "directory for JSON/TXT artifacts and the XLSX export")
		dbPath  = fs.StringLong("db", cfg.Store.DBPath, "sqlite database file or postgres:// DSN (\"\" disables)")
		cache   = fs.StringLong("cache", cfg.Store.CachePath, "bbolt result cache; unchanged files are skipped (\"\" disables)")
		workers = fs.IntLong("workers", cfg.Batch.Workers, "documents extracted in parallel")
		watch   = fs.BoolLong("watch", "keep running and extract files as they appear")
		rules   = fs.StringLong("rules", cfg.Parser.RulesFile, "YAML header rules / keyword overlay")
		force   = fs.BoolLong("force", "re-extract files already in the cache")
		xlsx    = fs.StringLong("xlsx", "extraction.xlsx", "XLSX export file name under --out (\"\" disables)")
		debug   = fs.BoolLong("debug", "debug logging")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("INVOICE_EXTRACTOR")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *dir == "" {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: --dir is required\n")
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg.Batch.Workers = *workers
	cfg.Parser.RulesFile = *rules
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, options{
		dir: *dir, out: *out, db: *dbPath, cache: *cache, xlsx: *xlsx, watch: *watch, force: *force,
	}, logger); err != nil {
		logger.Error("extract-batch failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	dir, out, db, cache, xlsx string
	watch, force              bool
}

func run(ctx context.Context, cfg *common.Config, opt options, logger *slog.Logger) error {
	rules, err := common.LoadRules(cfg.Parser.RulesFile)
	if err != nil {
		return err
	}
	p, err := pipeline.NewFromConfig(cfg, rules, nil, logger)
	if err != nil {
		return err
	}

	files, err := export.NewFileSaver(opt.out)
	if err != nil {
		return err
	}
	savers := []repo.Saver{files}

	if opt.db != "" {
		db, err := repo.Open(ctx, repo.ConfigFor(opt.db), logger)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer repo.Close(db, logger)
		savers = append(savers, repo.NewSQLStore(db, nil, logger))
	}

	var resultCache *repo.ResultCache
	if opt.cache != "" {
		if resultCache, err = repo.NewResultCache(opt.cache); err != nil {
			return err
		}
		defer resultCache.Close()
	}

	var dedup ingest.Deduper
	if resultCache != nil && !opt.force {
		dedup = resultCache
	}
	ingestor := ingest.NewFSIngestor(cfg.Loader.MaxBytes, dedup, logger)

	batchID := uuid.NewString()
	logger = logger.With("batch_id", batchID)
	tally := &summary{}

	sink := func(ctx context.Context, job async.Job, res assemble.Result) {
		var last repo.Location
		for _, s := range savers {
			loc, err := s.Save(context.WithoutCancel(ctx), res)
			if err != nil {
				logger.Error("save failed", "file", res.Filename, "error", err)
				continue
			}
			last = loc
		}
		if resultCache != nil {
			if err := resultCache.Put(res, last); err != nil {
				logger.Warn("cache put failed", "file", res.Filename, "error", err)
			}
		}
		tally.add(res)
	}

	q := async.NewProcessorQueue(p, sink,
		async.WithWorkers(cfg.Batch.Workers),
		async.WithQueueSize(cfg.Batch.QueueSize),
		async.WithProcessTimeout(cfg.Batch.DocTimeout),
		async.WithLogger(logger),
	)

	submit := func(r ingest.IngestionResult) {
		if r.Err != "" {
			logger.Warn("ingest failed", "path", r.SourcePath, "error", r.Err)
			return
		}
		if r.Deduplicated {
			logger.Info("skipping unchanged file", "path", r.SourcePath, "hash", r.HashHex)
			tally.skip()
			return
		}
		if err := q.Enqueue(ctx, async.Job{Document: r.Document, Force: opt.force, BatchID: batchID}); err != nil {
			logger.Warn("enqueue failed", "path", r.SourcePath, "error", err)
		}
	}

	start := time.Now()
	logger.Info("starting ingestion", "dir", opt.dir, "workers", cfg.Batch.Workers)
	results, stats, err := ingestor.IngestDirectory(ctx, opt.dir, cfg.Batch.SkipHidden)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("directory walk stopped", "error", err)
	}
	for _, r := range results {
		submit(r)
	}
	logger.Info("ingestion complete", "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)

	if opt.watch {
		if err := watchLoop(ctx, cfg, opt, ingestor, submit, logger); err != nil {
			logger.Error("watcher stopped", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Batch.DocTimeout+10*time.Second)
	defer cancel()
	// Shutdown returns only after every sink call finished, so the deferred
	// store closes below never race a worker.
	if err := q.Shutdown(shutdownCtx); err != nil {
		logger.Warn("queue did not drain; unfinished documents were cancelled", "error", err)
	}

	if opt.xlsx != "" {
		data, err := export.NewService(nil, logger).WriteXLSX(tally.snapshot())
		if err != nil {
			return fmt.Errorf("xlsx export: %w", err)
		}
		path, err := files.WriteWorkbook(opt.xlsx, data)
		if err != nil {
			return err
		}
		logger.Info("export written", "path", path)
	}

	tally.log(logger, time.Since(start))
	return nil
}

// watchLoop feeds new files to submit until ctx is cancelled.
func watchLoop(ctx context.Context, cfg *common.Config, opt options, ing *ingest.FSIngestor, submit func(ingest.IngestionResult), logger *slog.Logger) error {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:      []string{opt.dir},
		SkipHidden: cfg.Batch.SkipHidden,
		Debounce:   cfg.Batch.WatchSettle,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	logger.Info("watching for new documents", "dir", opt.dir)
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return nil
			}
			r, err := ing.IngestPath(ctx, path)
			if err != nil {
				r.Err = err.Error()
			}
			submit(r)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

type summary struct {
	mu      sync.Mutex
	results []assemble.Result
	skipped int
}

func (s *summary) add(res assemble.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
}

func (s *summary) skip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped++
}

func (s *summary) snapshot() []assemble.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]assemble.Result(nil), s.results...)
}

func (s *summary) log(logger *slog.Logger, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[constants.ResultStatus]int{}
	records := 0
	for _, r := range s.results {
		counts[r.Status]++
		records += r.Count
	}
	logger.Info("batch complete",
		"documents", len(s.results),
		"structured", counts[constants.StatusStructured],
		"unstructured", counts[constants.StatusUnstructured],
		"failed", counts[constants.StatusFailed],
		"skipped", s.skipped,
		"records", records,
		"elapsed", elapsed.Round(time.Millisecond).String(),
	)
}

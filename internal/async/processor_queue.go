package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/assemble"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// ProcessorQueue runs extraction on a fixed pool of workers. Documents share no
// state, so workers need no coordination beyond the channel.
type ProcessorQueue struct {
	extractor Extractor
	sink      Sink
	logger    *slog.Logger
	workers   int
	timeout   time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// base parents every job context; Shutdown cancels it when its deadline passes.
	base  context.Context
	abort context.CancelFunc

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithProcessTimeout bounds a single document.
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(q *ProcessorQueue) {
		if l != nil {
			q.logger = l
		}
	}
}

// NewProcessorQueue starts the workers immediately. A nil sink discards results.
func NewProcessorQueue(ex Extractor, sink Sink, opts ...Option) *ProcessorQueue {
	q := &ProcessorQueue{
		extractor: ex,
		sink:      sink,
		logger:    slog.Default(),
		workers:   4,
		timeout:   3 * time.Minute,
		ch:        make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	if q.sink == nil {
		q.sink = func(context.Context, Job, assemble.Result) {}
	}
	q.base, q.abort = context.WithCancel(context.Background())
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					if q.base.Err() != nil {
						q.logger.Warn("queue.process.dropped", "worker_id", workerID, "file", job.Document.Filename)
						continue
					}
					q.process(workerID, job)
				}

				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(q.base, q.timeout)
	defer cancel()
	if job.BatchID != "" {
		ctx = common.WithBatchID(ctx, job.BatchID)
	}

	res := q.extractor.Extract(ctx, job.Document)
	if res.Failed() {
		q.logger.Error("queue.process.failed",
			"worker_id", workerID, "file", job.Document.Filename, "code", res.ErrorCode, "error", res.Error)
	} else {
		q.logger.Info("queue.process.ok",
			"worker_id", workerID, "file", job.Document.Filename, "status", string(res.Status),
			"wait_ms", time.Since(job.SubmittedAt).Milliseconds())
	}
	q.sink(ctx, job, res)
}

// Enqueue blocks while the buffer is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "file", job.Document.Filename)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queue.enqueue.ok", "file", job.Document.Filename, "force", job.Force)
		return nil
	default:
	}

	q.logger.Warn("queue.enqueue.backpressure", "file", job.Document.Filename)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to drain. When ctx
// ends first, in-flight jobs are cancelled, queued ones are dropped, and
// Shutdown still waits for every worker to return before reporting ctx.Err().
// No sink runs after Shutdown returns.
func (q *ProcessorQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.wg.Wait()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-done:
		q.abort()
		q.logger.Info("queue.shutdown.drained")
		return nil
	case <-ctx.Done():
	}

	q.logger.Warn("queue.shutdown.interrupted", "error", ctx.Err())
	q.abort()
	<-done
	q.logger.Info("queue.shutdown.stopped")
	return ctx.Err()
}

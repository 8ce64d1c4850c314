package async

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/assemble"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/loader"
)

func TestAsync(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Async Suite")
}

type fakeExtractor struct {
	delay   time.Duration
	calls   atomic.Int32
	batches sync.Map
	release chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, doc loader.SourceDocument) assemble.Result {
	f.calls.Add(1)
	f.batches.Store(doc.Filename, common.BatchIDFromContext(ctx))
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return assemble.Failed(doc.Filename, doc.Kind, common.WrapError(ctx.Err(), "cancelled"))
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return assemble.Failed(doc.Filename, doc.Kind, common.WrapError(ctx.Err(), "cancelled"))
		}
	}
	return assemble.Result{Filename: doc.Filename, Status: constants.StatusUnstructured}
}

type collector struct {
	mu      sync.Mutex
	results []assemble.Result
}

func (c *collector) sink(_ context.Context, _ Job, res assemble.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, res)
}

func (c *collector) snapshot() []assemble.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]assemble.Result(nil), c.results...)
}

func job(name string) Job {
	return Job{Document: loader.SourceDocument{Filename: name, Kind: constants.PLAINTEXT}, BatchID: "batch-1"}
}

var _ = Describe("ProcessorQueue", func() {
	var (
		ex  *fakeExtractor
		out *collector
	)

	BeforeEach(func() {
		ex = &fakeExtractor{}
		out = &collector{}
	})

	It("processes every job and drains on shutdown", func() {
		q := NewProcessorQueue(ex, out.sink, WithWorkers(3))
		for _, n := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
			Expect(q.Enqueue(context.Background(), job(n))).To(Succeed())
		}
		q.Shutdown(context.Background())

		Expect(ex.calls.Load()).To(BeEquivalentTo(5))
		names := []string{}
		for _, r := range out.snapshot() {
			names = append(names, r.Filename)
		}
		Expect(names).To(ConsistOf("a.txt", "b.txt", "c.txt", "d.txt", "e.txt"))
	})

	It("threads the batch ID into the extraction context", func() {
		q := NewProcessorQueue(ex, out.sink, WithWorkers(1))
		Expect(q.Enqueue(context.Background(), job("a.txt"))).To(Succeed())
		q.Shutdown(context.Background())
		v, ok := ex.batches.Load("a.txt")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("batch-1"))
	})

	It("bounds each document by the process timeout", func() {
		ex.delay = time.Second
		q := NewProcessorQueue(ex, out.sink, WithWorkers(1), WithProcessTimeout(20*time.Millisecond))
		Expect(q.Enqueue(context.Background(), job("slow.txt"))).To(Succeed())
		q.Shutdown(context.Background())

		res := out.snapshot()
		Expect(res).To(HaveLen(1))
		Expect(res[0].Failed()).To(BeTrue())
		Expect(res[0].ErrorCode).To(Equal(common.CodeTimeout))
	})

	It("rejects jobs after shutdown", func() {
		q := NewProcessorQueue(ex, nil)
		q.Shutdown(context.Background())
		Expect(q.Enqueue(context.Background(), job("late.txt"))).To(MatchError(ErrQueueClosed))
	})

	It("applies backpressure until the context ends", func() {
		ex.release = make(chan struct{})
		q := NewProcessorQueue(ex, out.sink, WithWorkers(1), WithQueueSize(1))

		Expect(q.Enqueue(context.Background(), job("busy.txt"))).To(Succeed())
		Eventually(ex.calls.Load).Should(BeEquivalentTo(1))
		Expect(q.Enqueue(context.Background(), job("buffered.txt"))).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		Expect(q.Enqueue(ctx, job("blocked.txt"))).To(MatchError(context.DeadlineExceeded))

		close(ex.release)
		q.Shutdown(context.Background())
		Expect(out.snapshot()).To(HaveLen(2))
	})

	It("cancels in-flight work and waits for it when its context ends first", func() {
		ex.release = make(chan struct{})
		defer close(ex.release)
		q := NewProcessorQueue(ex, out.sink, WithWorkers(1))
		Expect(q.Enqueue(context.Background(), job("stuck.txt"))).To(Succeed())
		Eventually(ex.calls.Load).Should(BeEquivalentTo(1))
		Expect(q.Enqueue(context.Background(), job("queued.txt"))).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		Expect(q.Shutdown(ctx)).To(MatchError(context.DeadlineExceeded))

		res := out.snapshot()
		Expect(res).To(HaveLen(1))
		Expect(res[0].Filename).To(Equal("stuck.txt"))
		Expect(res[0].ErrorCode).To(Equal(common.CodeCancelled))
		Expect(ex.calls.Load()).To(BeEquivalentTo(1))
	})
})

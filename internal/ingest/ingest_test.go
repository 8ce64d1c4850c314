package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
)

func TestIngest(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Ingest Suite")
}

type seenSet map[string]bool

func (s seenSet) Seen(_ context.Context, hash string) (bool, error) { return s[hash], nil }

type brokenDedup struct{}

func (brokenDedup) Seen(context.Context, string) (bool, error) { return false, errors.New("db closed") }

func write(dir, rel, content string) string {
	p := filepath.Join(dir, rel)
	Expect(os.MkdirAll(filepath.Dir(p), 0o755)).To(Succeed())
	Expect(os.WriteFile(p, []byte(content), 0o600)).To(Succeed())
	return p
}

var _ = Describe("FSIngestor", func() {
	var (
		dir string
		ing *FSIngestor
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		ing = NewFSIngestor(0, nil, nil)
	})

	Describe("IngestPath", func() {
		It("hashes and classifies the file", func() {
			p := write(dir, "inv.csv", "Brand,Price\nHeinz,31.77\n")
			r, err := ing.IngestPath(context.Background(), p)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Kind).To(Equal(constants.DELIMITED))
			Expect(r.HashHex).To(Equal(pipeline.ContentHash([]byte("Brand,Price\nHeinz,31.77\n"))))
			Expect(r.Document.Filename).To(Equal("inv.csv"))
			Expect(r.Document.SHA256).To(Equal(r.HashHex))
			Expect(r.Deduplicated).To(BeFalse())
		})

		It("rejects extensions outside the allowed set", func() {
			_, err := ing.IngestPath(context.Background(), write(dir, "notes.md", "# hi"))
			Expect(errors.Is(err, common.ErrUnsupportedFormat)).To(BeTrue())
		})

		It("rejects files over the size limit before reading them", func() {
			ing.MaxBytes = 4
			_, err := ing.IngestPath(context.Background(), write(dir, "big.txt", "more than four"))
			Expect(common.CodeOf(err)).To(Equal(common.CodeSizeLimitExceeded))
		})

		It("marks previously seen content", func() {
			p := write(dir, "inv.txt", "Heinz $31.77")
			ing.Dedup = seenSet{pipeline.ContentHash([]byte("Heinz $31.77")): true}
			r, err := ing.IngestPath(context.Background(), p)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Deduplicated).To(BeTrue())
		})

		It("treats a dedup failure as unseen", func() {
			ing.Dedup = brokenDedup{}
			r, err := ing.IngestPath(context.Background(), write(dir, "inv.txt", "x"))
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Deduplicated).To(BeFalse())
		})
	})

	Describe("IngestDirectory", func() {
		BeforeEach(func() {
			write(dir, "a.txt", "Heinz $31.77")
			write(dir, "sub/b.csv", "Brand,Price\n")
			write(dir, "sub/skip.md", "ignored")
			write(dir, ".hidden/c.txt", "hidden")
			write(dir, ".d.txt", "hidden file")
		})

		It("walks allowed files and skips hidden entries", func() {
			results, stats, err := ing.IngestDirectory(context.Background(), dir, true)
			Expect(err).NotTo(HaveOccurred())
			names := []string{}
			for _, r := range results {
				names = append(names, r.Document.Filename)
			}
			Expect(names).To(ConsistOf("a.txt", "b.csv"))
			Expect(stats.Matched).To(BeEquivalentTo(2))
			Expect(stats.Succeeded).To(BeEquivalentTo(2))
			Expect(stats.Failed).To(BeZero())
		})

		It("includes hidden entries when asked", func() {
			results, _, err := ing.IngestDirectory(context.Background(), dir, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(4))
		})

		It("honours a custom extension set", func() {
			ing.AllowedExts = ExtSet([]string{".CSV"})
			results, _, err := ing.IngestDirectory(context.Background(), dir, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Kind).To(Equal(constants.DELIMITED))
		})

		It("counts per-file failures without stopping", func() {
			ing.MaxBytes = 5
			results, stats, err := ing.IngestDirectory(context.Background(), dir, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Failed).To(BeEquivalentTo(2))
			Expect(results[0].Err).NotTo(BeEmpty())
		})

		It("requires a root", func() {
			_, _, err := ing.IngestDirectory(context.Background(), " ", true)
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("utils", func() {
	It("detects hidden paths", func() {
		Expect(IsHidden("/tmp/.git")).To(BeTrue())
		Expect(IsHidden("/tmp/inv.pdf")).To(BeFalse())
		Expect(IsHidden(".")).To(BeFalse())
	})

	It("defaults to the supported extensions", func() {
		Expect(AllowedExt(".PDF", nil)).To(BeTrue())
		Expect(AllowedExt("docx", nil)).To(BeTrue())
		Expect(AllowedExt(".exe", nil)).To(BeFalse())
		Expect(ExtSet([]string{" ", ""})).To(BeNil())
	})
})

var _ = Describe("StartWatcher", func() {
	It("requires roots", func() {
		_, _, err := StartWatcher(context.Background(), WatchConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("emits existing and new files", func() {
		dir := GinkgoT().TempDir()
		write(dir, "old.txt", "old")
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, _, err := StartWatcher(ctx, WatchConfig{
			Roots:       []string{dir},
			InitialScan: true,
			SkipHidden:  true,
			Debounce:    20 * time.Millisecond,
		})
		Expect(err).NotTo(HaveOccurred())
		Eventually(events).Should(Receive(Equal(filepath.Join(dir, "old.txt"))))

		write(dir, ".tmp.txt", "ignored")
		write(dir, "skip.md", "ignored")
		fresh := write(dir, "new.txt", "new")
		Eventually(events, 2*time.Second).Should(Receive(Equal(fresh)))
		Consistently(events, 100*time.Millisecond).ShouldNot(Receive(Or(HaveSuffix(".tmp.txt"), HaveSuffix("skip.md"))))

		cancel()
		Eventually(events).Should(BeClosed())
	})
})

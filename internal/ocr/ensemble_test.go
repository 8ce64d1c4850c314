package ocr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

func TestOCR(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "OCR Suite")
}

type fakeEngine struct {
	name    string
	text    string
	err     error
	delay   time.Duration
	ignores bool // ignores ctx while delaying
}

func (f fakeEngine) Name() string { return f.name }

func (f fakeEngine) Recognize(ctx context.Context, _ Image) Observation {
	if f.delay > 0 {
		if f.ignores {
			time.Sleep(f.delay)
		} else {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return Observation{Engine: f.name, Err: ctx.Err()}
			}
		}
	}
	if f.err != nil {
		return Observation{Engine: f.name, Err: f.err}
	}
	return Observation{Engine: f.name, Text: f.text}
}

func engines(fs ...fakeEngine) []Engine {
	out := make([]Engine, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}

var _ = Describe("Ensemble", func() {
	var (
		ens  *Ensemble
		engs []Engine
		opts []Option
		sel  Selection
	)

	BeforeEach(func() {
		opts = nil
	})

	JustBeforeEach(func() {
		ens = NewEnsemble(engs, nil, opts...)
		sel = ens.Recognize(context.Background(), Image{Name: "scan.png", Page: 1})
	})

	When("engines score 10, 55 and 3", func() {
		BeforeEach(func() {
			engs = engines(
				fakeEngine{name: "a", text: strings.Repeat("x", 10)},
				fakeEngine{name: "b", text: strings.Repeat("y", 55)},
				fakeEngine{name: "c", text: strings.Repeat("z", 3)},
			)
		})

		It("selects the highest-scoring text", func() {
			Expect(sel.Engine).To(Equal("b"))
			Expect(sel.Text).To(Equal(strings.Repeat("y", 55)))
			Expect(sel.Score).To(Equal(55))
			Expect(sel.NoText).To(BeFalse())
		})

		It("keeps every observation in engine order", func() {
			Expect(sel.Observations).To(HaveLen(3))
			Expect(sel.Observations[0].Engine).To(Equal("a"))
			Expect(sel.Observations[2].Score).To(Equal(3))
		})
	})

	When("the best engine runs last", func() {
		BeforeEach(func() {
			engs = engines(
				fakeEngine{name: "c", text: "abc"},
				fakeEngine{name: "a", text: strings.Repeat("x", 10)},
				fakeEngine{name: "b", text: strings.Repeat("y", 55)},
			)
		})

		It("still selects it", func() {
			Expect(sel.Engine).To(Equal("b"))
		})
	})

	When("two engines tie", func() {
		BeforeEach(func() {
			engs = engines(
				fakeEngine{name: "primary", text: "ABC 123"},
				fakeEngine{name: "secondary", text: "abc-123"},
			)
		})

		It("prefers the earlier engine", func() {
			Expect(sel.Engine).To(Equal("primary"))
		})
	})

	When("one engine fails", func() {
		BeforeEach(func() {
			engs = engines(
				fakeEngine{name: "broken", err: errors.New("exit status 1")},
				fakeEngine{name: "ok", text: "Heinz Mustard $31.77"},
			)
		})

		It("selects among the remaining engines", func() {
			Expect(sel.Engine).To(Equal("ok"))
		})

		It("records the failure without text", func() {
			Expect(sel.Observations[0].Failed()).To(BeTrue())
			Expect(sel.Observations[0].Text).To(BeEmpty())
		})
	})

	When("an engine exceeds its timeout", func() {
		var start time.Time

		BeforeEach(func() {
			start = time.Now()
			opts = []Option{WithEngineTimeout(50 * time.Millisecond)}
			engs = engines(
				fakeEngine{name: "slow", text: strings.Repeat("s", 500), delay: 2 * time.Second, ignores: true},
				fakeEngine{name: "fast", text: "fast text"},
			)
		})

		It("treats it as a failure of that engine only", func() {
			Expect(sel.Engine).To(Equal("fast"))
			Expect(errors.Is(sel.Observations[0].Err, common.ErrEngineFailure)).To(BeTrue())
		})

		It("does not wait for the slow engine", func() {
			Expect(time.Since(start)).To(BeNumerically("<", time.Second))
		})
	})

	When("every engine fails", func() {
		BeforeEach(func() {
			engs = engines(
				fakeEngine{name: "a", err: errors.New("boom")},
				fakeEngine{name: "b", text: "   \n  "},
			)
		})

		It("returns the no-text sentinel", func() {
			Expect(sel.NoText).To(BeTrue())
			Expect(sel.Text).To(Equal(NoTextSentinel))
		})
	})

	When("a custom scorer is configured", func() {
		BeforeEach(func() {
			opts = []Option{WithScoreFunc(func(s string) int { return -len(s) })}
			engs = engines(
				fakeEngine{name: "long", text: "long long text"},
				fakeEngine{name: "short", text: "short"},
			)
		})

		It("uses it for selection", func() {
			Expect(sel.Engine).To(Equal("short"))
		})
	})
})

var _ = Describe("Select", func() {
	It("reports no winner when every observation failed", func() {
		_, ok := Select([]Observation{{Err: errors.New("x")}, {Err: errors.New("y")}})
		Expect(ok).To(BeFalse())
	})

	It("picks the strictly highest score regardless of position", func() {
		scores := [][]int{{10, 55, 3}, {55, 10, 3}, {3, 10, 55}}
		for _, s := range scores {
			obs := []Observation{{Score: s[0]}, {Score: s[1]}, {Score: s[2]}}
			idx, ok := Select(obs)
			Expect(ok).To(BeTrue())
			Expect(obs[idx].Score).To(Equal(55))
		}
	})
})

var _ = Describe("RecognizePages", func() {
	It("joins page winners with a page break", func() {
		ens := NewEnsemble(engines(fakeEngine{name: "a", text: "page text"}), nil)
		text, noText, sels := ens.RecognizePages(context.Background(), []Image{{Page: 1}, {Page: 2}})
		Expect(noText).To(BeFalse())
		Expect(sels).To(HaveLen(2))
		Expect(text).To(Equal("page text\n\f\npage text"))
	})

	It("returns the sentinel when no page has text", func() {
		ens := NewEnsemble(engines(fakeEngine{name: "a", err: errors.New("x")}), nil)
		text, noText, _ := ens.RecognizePages(context.Background(), []Image{{Page: 1}})
		Expect(noText).To(BeTrue())
		Expect(text).To(Equal(NoTextSentinel))
	})
})

var _ = Describe("NewEnsembleFromConfig", func() {
	It("builds engines in configured order and skips unknown names", func() {
		ens := NewEnsembleFromConfig(common.OCRConfig{
			Engines: []string{common.EnginePaddleOCR, "mystery", common.EngineTesseract},
		}, &fakeRunner{}, nil)
		Expect(ens.Engines()).To(Equal([]string{common.EnginePaddleOCR, common.EngineTesseract}))
	})
})

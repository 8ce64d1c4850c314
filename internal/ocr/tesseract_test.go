package ocr

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

type runCall struct {
	name string
	args []string
	file []byte // contents of the image argument at call time
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  []runCall
	stdout map[string]string // keyed by last arg ("tsv" or the image path suffix)
	out    string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := runCall{name: name, args: args}
	for _, a := range args {
		if b, err := os.ReadFile(a); err == nil {
			c.file = b
		}
	}
	f.calls = append(f.calls, c)
	if f.err != nil {
		return nil, []byte("engine exploded"), f.err
	}
	if len(args) > 0 {
		if s, ok := f.stdout[args[len(args)-1]]; ok {
			return []byte(s), nil, nil
		}
	}
	return []byte(f.out), nil, nil
}

var _ = Describe("Tesseract", func() {
	var (
		runner *fakeRunner
		cfg    TesseractConfig
		obs    Observation
	)

	BeforeEach(func() {
		runner = &fakeRunner{out: "BRAND PACK SIZE PRICE\n-----\nHeinz 18/12 OZ $31.77\n"}
		cfg = TesseractConfig{Lang: "eng", PSM: 6}
	})

	JustBeforeEach(func() {
		t := NewTesseract(cfg, runner, nil)
		obs = t.Recognize(context.Background(), Image{Name: "a.png", PNG: []byte("png-bytes")})
	})

	It("runs tesseract to stdout with language and psm", func() {
		Expect(runner.calls).To(HaveLen(1))
		c := runner.calls[0]
		Expect(c.name).To(Equal("tesseract"))
		Expect(c.args[1:]).To(Equal([]string{"stdout", "-l", "eng", "--psm", "6"}))
	})

	It("hands the engine the image bytes", func() {
		Expect(runner.calls[0].file).To(Equal([]byte("png-bytes")))
	})

	It("drops box-drawing noise lines", func() {
		Expect(obs.Text).NotTo(ContainSubstring("-----"))
		Expect(obs.Text).To(ContainSubstring("Heinz 18/12 OZ $31.77"))
		Expect(obs.Err).NotTo(HaveOccurred())
	})

	When("tessdata dir and TSV confidence are enabled", func() {
		BeforeEach(func() {
			cfg.TessdataDir = "/usr/share/tessdata"
			cfg.EnableTSVConfidence = true
			runner.stdout = map[string]string{
				"tsv": "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
					"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tHeinz\n" +
					"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t70\tMustard\n" +
					"4\t1\t1\t1\t1\t0\t0\t0\t10\t10\t-1\t\n",
			}
		})

		It("passes the tessdata dir", func() {
			Expect(runner.calls[0].args).To(ContainElements("--tessdata-dir", "/usr/share/tessdata"))
		})

		It("records the mean word confidence", func() {
			Expect(runner.calls).To(HaveLen(2))
			Expect(obs.Confidence).To(BeNumerically("~", 0.8, 0.001))
		})
	})

	When("the binary fails", func() {
		BeforeEach(func() {
			runner.err = errors.New("exit status 1")
		})

		It("returns a failing observation", func() {
			Expect(obs.Failed()).To(BeTrue())
			Expect(obs.Text).To(BeEmpty())
			Expect(errors.Is(obs.Err, common.ErrEngineFailure)).To(BeTrue())
			Expect(common.CodeOf(obs.Err)).To(Equal(common.CodeEngineFailure))
		})
	})
})

var _ = Describe("ScriptEngine", func() {
	It("invokes the interpreter with script and image", func() {
		runner := &fakeRunner{out: "line one\nline two\n"}
		eng := NewPaddleOCR("python3", "scripts/paddle_ocr_extractor.py", runner, nil)
		obs := eng.Recognize(context.Background(), Image{PNG: []byte("img")})

		Expect(eng.Name()).To(Equal(common.EnginePaddleOCR))
		Expect(obs.Text).To(Equal("line one\nline two\n"))
		Expect(runner.calls[0].name).To(Equal("python3"))
		Expect(runner.calls[0].args[0]).To(Equal("scripts/paddle_ocr_extractor.py"))
		Expect(runner.calls[0].file).To(Equal([]byte("img")))
	})

	It("reports script failures as engine failures", func() {
		runner := &fakeRunner{err: errors.New("no module named easyocr")}
		obs := NewEasyOCR("", "easy.py", runner, nil).Recognize(context.Background(), Image{})
		Expect(errors.Is(obs.Err, common.ErrEngineFailure)).To(BeTrue())
	})
})

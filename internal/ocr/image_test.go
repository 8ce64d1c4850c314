package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ToPNG", func() {
	sample := func() image.Image {
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		img.Set(1, 1, color.Black)
		return img
	}

	It("passes PNG input through", func() {
		var buf bytes.Buffer
		Expect(png.Encode(&buf, sample())).To(Succeed())
		out, err := ToPNG(buf.Bytes())
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(buf.Bytes()))
	})

	It("re-encodes JPEG as PNG", func() {
		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, sample(), nil)).To(Succeed())
		out, err := ToPNG(buf.Bytes())
		Expect(err).NotTo(HaveOccurred())
		Expect(isPNG(out)).To(BeTrue())
	})

	It("rejects bytes that are not an image", func() {
		_, err := ToPNG([]byte("definitely not an image"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("IsHEIC", func() {
	It("recognizes the ftyp heic brand", func() {
		Expect(IsHEIC([]byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00"))).To(BeTrue())
	})

	It("rejects other containers", func() {
		Expect(IsHEIC([]byte("\x00\x00\x00\x18ftypisom\x00\x00\x00\x00"))).To(BeFalse())
		Expect(IsHEIC([]byte("short"))).To(BeFalse())
	})
})

var _ = Describe("scorers", func() {
	It("counts letters and digits only", func() {
		Expect(AlnumScore("Heinz $31.77 - 2x")).To(Equal(11))
	})

	It("weights invoice-like text higher", func() {
		plain := "lorem ipsum dolor"
		Expect(ArtifactScore(plain)).To(BeNumerically("<", ArtifactScore("lorem $1.99 10/04/2024")))
	})

	It("resolves scorers by name", func() {
		Expect(ScorerByName("artifact")("$1.00 01/02/2024")).To(Equal(ArtifactScore("$1.00 01/02/2024")))
		Expect(ScorerByName("")("abc")).To(Equal(3))
	})
})

package pipeline

import (
	"bytes"
	"image"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

var _ = Describe("Classify", func() {
	It("recognizes PDFs by magic", func() {
		Expect(Classify([]byte("%PDF-1.4\n%âãÏÓ\n1 0 obj"), "scan")).To(Equal(constants.PDF))
	})

	It("recognizes images regardless of extension", func() {
		var buf bytes.Buffer
		Expect(png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2)))).To(Succeed())
		Expect(Classify(buf.Bytes(), "scan.dat")).To(Equal(constants.IMAGE))
	})

	It("recognizes workbooks", func() {
		buf, err := excelize.NewFile().WriteToBuffer()
		Expect(err).NotTo(HaveOccurred())
		Expect(Classify(buf.Bytes(), "inv.xlsx")).To(Equal(constants.SPREADSHEET))
	})

	It("uses the extension for delimited text", func() {
		Expect(Classify([]byte("Brand,Price\nHeinz,31.77\n"), "inv.csv")).To(Equal(constants.DELIMITED))
		Expect(Classify([]byte("Brand Price\nHeinz 31.77\n"), "inv.txt")).To(Equal(constants.PLAINTEXT))
	})

	It("treats unnamed text as plain text", func() {
		Expect(Classify([]byte("Heinz Mustard $31.77\n"), "note")).To(Equal(constants.PLAINTEXT))
	})

	It("keeps the claimed type for undecodable bytes", func() {
		Expect(Classify([]byte{0x00, 0xde, 0xad, 0xbe, 0xef}, "broken.pdf")).To(Equal(constants.PDF))
	})

	It("reports unrecognized binaries as unknown", func() {
		Expect(Classify([]byte{0x00, 0xde, 0xad, 0xbe, 0xef}, "blob.bin")).To(Equal(constants.UNKNOWN))
	})
})

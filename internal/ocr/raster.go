package ocr

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// RasterizePDF renders up to maxPages pages (0 = all) as PNG images at dpi.
func RasterizePDF(name string, data []byte, dpi float64, maxPages int) ([]Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}
	if dpi <= 0 {
		dpi = 300
	}

	pages := make([]Image, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return pages, fmt.Errorf("rendering PDF page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return pages, fmt.Errorf("encoding PNG page %d: %w", i+1, err)
		}
		pages = append(pages, Image{Name: name, Page: i + 1, PNG: buf.Bytes()})
	}
	return pages, nil
}

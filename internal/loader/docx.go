package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// DocxLoader reads word/document.xml out of a .docx archive.
// Paragraphs become lines; table rows become tab-joined lines.
type DocxLoader struct {
	limits Limits
	logger *slog.Logger
}

func NewDocxLoader(limits Limits, logger *slog.Logger) *DocxLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocxLoader{limits: limits, logger: logger}
}

func (l *DocxLoader) Kind() constants.FormatKind { return constants.WORD }

func (l *DocxLoader) Load(_ context.Context, doc SourceDocument) (Content, error) {
	if err := admit(l.Kind(), doc, l.limits); err != nil {
		return Content{}, err
	}
	start := time.Now()

	zr, err := zip.NewReader(bytes.NewReader(doc.Content), doc.Size())
	if err != nil {
		return Content{}, corrupt(doc, err)
	}
	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return Content{}, corrupt(doc, errors.New("word/document.xml not found in archive"))
	}

	rc, err := docFile.Open()
	if err != nil {
		return Content{}, corrupt(doc, err)
	}
	defer rc.Close()

	text, err := docxText(rc)
	if err != nil {
		return Content{}, corrupt(doc, err)
	}
	return Content{Text: text, Pages: 1, Method: MethodDocx, Duration: time.Since(start)}, nil
}

func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		out       strings.Builder
		para      strings.Builder
		cells     []string
		tableDeep int
		inText    bool
	)
	flushPara := func() {
		p := strings.TrimSpace(para.String())
		para.Reset()
		if tableDeep > 0 {
			if len(cells) == 0 {
				cells = append(cells, "")
			}
			if p != "" {
				if cells[len(cells)-1] != "" {
					cells[len(cells)-1] += " "
				}
				cells[len(cells)-1] += p
			}
			return
		}
		if p != "" {
			out.WriteString(p)
			out.WriteByte('\n')
		}
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDeep++
			case "tr":
				cells = nil
			case "tc":
				cells = append(cells, "")
			case "t":
				inText = true
			case "tab":
				para.WriteByte(' ')
			case "br", "cr":
				if tableDeep == 0 {
					para.WriteByte('\n')
				} else {
					para.WriteByte(' ')
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flushPara()
			case "tr":
				if row := strings.TrimRight(strings.Join(cells, "\t"), "\t"); row != "" {
					out.WriteString(row)
					out.WriteByte('\n')
				}
				cells = nil
			case "tbl":
				if tableDeep > 0 {
					tableDeep--
				}
			}
		}
	}
	return out.String(), nil
}

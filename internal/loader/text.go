package loader

import (
	"context"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// TextLoader reads plain UTF-8. Invalid bytes become U+FFFD.
type TextLoader struct {
	limits Limits
}

func NewTextLoader(limits Limits) *TextLoader { return &TextLoader{limits: limits} }

func (l *TextLoader) Kind() constants.FormatKind { return constants.PLAINTEXT }

func (l *TextLoader) Load(_ context.Context, doc SourceDocument) (Content, error) {
	if err := admit(l.Kind(), doc, l.limits); err != nil {
		return Content{}, err
	}
	start := time.Now()
	text := strings.ToValidUTF8(string(stripBOM(doc.Content)), "�")
	return Content{Text: text, Pages: 1, Method: MethodPlainText, Duration: time.Since(start)}, nil
}

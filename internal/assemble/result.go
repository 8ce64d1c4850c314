package assemble

import (
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/heuristic"
	"github.com/joseph-ayodele/invoice-extractor/internal/record"
)

// Result is the outcome of extracting one document. Either Records is non-empty
// (structured), or RawText carries the normalized text (unstructured), or the
// document failed and ErrorCode says why.
type Result struct {
	DocumentID   string                  `json:"documentId"`
	Filename     string                  `json:"filename"`
	Kind         constants.FormatKind    `json:"kind"`
	ContentHash  string                  `json:"contentHash,omitempty"`
	Status       constants.ResultStatus  `json:"status"`
	Method       string                  `json:"method"`
	Source       string                  `json:"source,omitempty"`
	Records      []record.Record         `json:"records"`
	Count        int                     `json:"count"`
	TotalValue   float64                 `json:"totalValue"`
	DeliveryDate string                  `json:"deliveryDate,omitempty"`
	Meta         *heuristic.DocumentMeta `json:"meta,omitempty"`
	RawText      string                  `json:"rawText,omitempty"`
	ErrorCode    string                  `json:"errorCode,omitempty"`
	Error        string                  `json:"error,omitempty"`
	Warnings     []string                `json:"warnings,omitempty"`
	ExtractedAt  time.Time               `json:"extractedAt"`
}

func (r Result) Failed() bool     { return r.Status == constants.StatusFailed }
func (r Result) Structured() bool { return r.Status == constants.StatusStructured }

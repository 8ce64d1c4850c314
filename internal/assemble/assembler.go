// Package assemble packages records and aggregates into a Result.
package assemble

import (
	"math"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/record"
)

// Key aliases tried, in order, when valuing a record.
var (
	DefaultTotalKeys    = []string{"total", "ext_value", "totals", "amount", "extended"}
	DefaultPriceKeys    = []string{"price", "unit_cost", "unit_price", "cost"}
	DefaultQuantityKeys = []string{"quantity", "qty", "confirmed", "delivered", "ordered"}
)

type Assembler struct {
	totalKeys []string
	priceKeys []string
	qtyKeys   []string
}

type Option func(*Assembler)

func WithTotalKeys(keys ...string) Option    { return func(a *Assembler) { a.totalKeys = keys } }
func WithPriceKeys(keys ...string) Option    { return func(a *Assembler) { a.priceKeys = keys } }
func WithQuantityKeys(keys ...string) Option { return func(a *Assembler) { a.qtyKeys = keys } }

func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{
		totalKeys: DefaultTotalKeys,
		priceKeys: DefaultPriceKeys,
		qtyKeys:   DefaultQuantityKeys,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble builds a structured result from records, or an unstructured one
// carrying normalizedText when there are none.
func (a *Assembler) Assemble(records []record.Record, normalizedText string) Result {
	if len(records) == 0 {
		return Result{
			Status:  constants.StatusUnstructured,
			Method:  constants.MethodNone,
			Records: []record.Record{},
			RawText: normalizedText,
		}
	}
	var total float64
	for _, r := range records {
		total += a.Value(r)
	}
	return Result{
		Status:     constants.StatusStructured,
		Records:    records,
		Count:      len(records),
		TotalValue: finite(roundCents(total)),
	}
}

// Value is a record's line value: a stated total, else price times quantity,
// else price alone. Non-numeric records are worth 0.
func (a *Assembler) Value(r record.Record) float64 {
	if v, ok := first(r, a.totalKeys); ok {
		return v
	}
	price, ok := first(r, a.priceKeys)
	if !ok {
		return 0
	}
	if q, ok := first(r, a.qtyKeys); ok {
		return finite(price * q)
	}
	return price
}

// finite maps overflowed products to 0 so TotalValue always encodes as JSON.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func first(r record.Record, keys []string) (float64, bool) {
	for _, k := range keys {
		if v, ok := r.Float(k); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v, true
		}
	}
	return 0, false
}

// Failed builds the result of a document that could not be extracted.
func Failed(filename string, kind constants.FormatKind, err error) Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result{
		Filename:  filename,
		Kind:      kind,
		Status:    constants.StatusFailed,
		Method:    constants.MethodNone,
		Records:   []record.Record{},
		ErrorCode: common.CodeOf(err),
		Error:     filename + ": " + msg,
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

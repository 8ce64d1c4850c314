package heuristic

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/record"
)

// DocumentMeta is header information printed on the document itself.
type DocumentMeta struct {
	InvoiceNumber string   `json:"invoiceNumber,omitempty"`
	Vendor        string   `json:"vendor,omitempty"`
	StatedTotal   *float64 `json:"statedTotal,omitempty"`
}

func (m DocumentMeta) IsZero() bool {
	return m.InvoiceNumber == "" && m.Vendor == "" && m.StatedTotal == nil
}

var (
	reInvoiceNo = regexp.MustCompile(`(?i)invoice[ \t]*(?:no\.?|number|#)?[ \t]*:?[ \t]*#?[ \t]*([A-Z0-9-]*\d[A-Z0-9-]*)`)
	reStated    = regexp.MustCompile(`(?im)^[^\n]*?\b(?:grand[ \t]+)?total(?:[ \t]+due)?[ \t]*:?[ \t]*[$£€]?[ \t]*(\d[\d,]*[.,]\d{2})\b`)
	reVendor    = regexp.MustCompile(`(?i)vendor[ \t]*:?[ \t]*([A-Za-z0-9 &.,'-]+)`)
	reSubtotal  = regexp.MustCompile(`(?i)sub[ \t-]*total`)
)

// ExtractMeta reads invoice number, vendor and the stated total. Subtotal lines
// are not taken as the total.
func ExtractMeta(text string) DocumentMeta {
	var m DocumentMeta
	if g := reInvoiceNo.FindStringSubmatch(text); g != nil {
		m.InvoiceNumber = g[1]
	}
	if g := reVendor.FindStringSubmatch(text); g != nil {
		m.Vendor = strings.TrimSpace(g[1])
	}
	for _, g := range reStated.FindAllStringSubmatch(text, -1) {
		if reSubtotal.MatchString(g[0]) {
			continue
		}
		if v, ok := record.ToFloat(normalizeDecimal(g[1])); ok {
			m.StatedTotal = &v
			break
		}
	}
	return m
}

// normalizeDecimal turns a trailing ",dd" into ".dd" so "12,50" reads as 12.50.
func normalizeDecimal(s string) string {
	if n := len(s); n > 3 && s[n-3] == ',' {
		return strings.ReplaceAll(s[:n-3], ".", "") + "." + s[n-2:]
	}
	return s
}

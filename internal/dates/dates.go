// Package dates finds the delivery date of a document.
package dates

import (
	"regexp"
	"strings"
	"time"
)

// Unknown is used when a document carries no recognizable date.
const Unknown = "Unknown"

const (
	month   = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?`
	numeric = `\d{1,2}[/-]\d{1,2}[/-](?:\d{4}|\d{2})`
	iso     = `\d{4}-\d{1,2}-\d{1,2}`
	mdy     = month + `\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}`
	dmy     = `\d{1,2}(?:st|nd|rd|th)?\s+` + month + `,?\s+\d{4}`
	anyDate = `(?:` + iso + `|` + numeric + `|` + mdy + `|` + dmy + `)`
)

var (
	reDelivery = regexp.MustCompile(`(?i)\b(?:delivery\s+date|delivered(?:\s+on)?)\s*[:\-]?\s*(` + anyDate + `)\b`)
	reDated    = regexp.MustCompile(`(?i)\bdate\s*[:\-]?\s*(` + anyDate + `)\b`)
	reBare     = regexp.MustCompile(`(?i)\b` + anyDate + `\b`)
)

// Detect returns the document date as written. Preference: "Delivery date:" or
// "Delivered:", then "Date:", then the first bare date. ok is false when none is found.
func Detect(text string) (string, bool) {
	for _, re := range []*regexp.Regexp{reDelivery, reDated} {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	if m := reBare.FindString(text); m != "" {
		return strings.TrimSpace(m), true
	}
	return "", false
}

// DetectOr returns Detect's date or def.
func DetectOr(text, def string) string {
	if d, ok := Detect(text); ok {
		return d
	}
	return def
}

var layouts = []string{
	"2006-1-2",
	"1/2/2006",
	"1-2-2006",
	"1/2/06",
	"1-2-06",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

var (
	reOrdinal = regexp.MustCompile(`(?i)(\d)(?:st|nd|rd|th)\b`)
	reSep     = regexp.MustCompile(`[,.]?\s+`)
)

// Parse interprets a date found by Detect. Numeric dates are read month first.
func Parse(s string) (time.Time, bool) {
	s = reOrdinal.ReplaceAllString(strings.TrimSpace(s), "$1")
	s = reSep.ReplaceAllString(s, " ")
	s = strings.TrimSuffix(s, ".")
	if len(s) > 0 {
		s = strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	// "Sept" is not a Go month abbreviation.
	if strings.Contains(s, "Sept ") {
		return Parse(strings.Replace(s, "Sept ", "Sep ", 1))
	}
	return time.Time{}, false
}

// ISO renders a detected date as YYYY-MM-DD, or "" when it cannot be parsed.
func ISO(s string) string {
	t, ok := Parse(s)
	if !ok {
		return ""
	}
	return t.Format(time.DateOnly)
}

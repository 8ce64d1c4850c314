package ocr

import (
	"regexp"
	"strings"
	"unicode"
)

var reBoxNoise = regexp.MustCompile(`(?m)^\s*[_\-]{3,}\s*$`)

var (
	reDate   = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b20\d{2}-\d{2}-\d{2}\b`)
	reCurr   = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud)\b|[$£€]`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
)

// ScoreFunc rates recognized text; higher is better.
type ScoreFunc func(text string) int

// AlnumScore counts letters and digits.
func AlnumScore(text string) int {
	n := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// ArtifactScore weights AlnumScore by how invoice-like the text looks
// (date, currency and amount patterns).
func ArtifactScore(text string) int {
	return int(float32(AlnumScore(text)) * (1 + heuristicConfidence(text)))
}

// heuristicConfidence is a 0..1 estimate from common invoice artifacts.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reCurr.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// ScorerByName resolves a configured scorer; unknown names fall back to AlnumScore.
func ScorerByName(name string) ScoreFunc {
	switch strings.ToLower(name) {
	case "artifact":
		return ArtifactScore
	default:
		return AlnumScore
	}
}

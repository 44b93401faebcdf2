package validate

import (
	"strings"
	"unicode"
)

const (
	ellipsis = "…"
	// sentenceRatio and wordRatio bound how much text a clean cut may drop.
	sentenceRatio = 0.7
	wordRatio     = 0.8
)

// Truncate shortens text to at most limit runes. It cuts at the last sentence end within
// the limit if that keeps at least 70% of it, else at the last word boundary keeping 80%,
// else hard at the limit with an ellipsis. The result without the ellipsis is always a
// prefix of text.
func Truncate(text string, limit int) (string, bool) {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text, false
	}

	prefix := runes[:limit]

	for i := len(prefix) - 1; i >= 0; i-- {
		if float64(i+1) < sentenceRatio*float64(limit) {
			break
		}
		if !isSentenceEnd(prefix[i]) {
			continue
		}
		// the sentence must end here in the original text, not inside "3.14"
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		return string(prefix[:i+1]), true
	}

	for i := len(prefix); i > 0; i-- {
		if float64(i) < wordRatio*float64(limit) {
			break
		}
		if i < len(runes) && unicode.IsSpace(runes[i]) {
			if cut := strings.TrimRightFunc(string(prefix[:i]), unicode.IsSpace); cut != "" {
				return cut, true
			}
		}
	}

	return string(runes[:limit-1]) + ellipsis, true
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

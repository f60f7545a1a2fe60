package tokenizer

import (
	"strings"
	"unicode"
)

// CountTokens estimates the token count of text. Latin words count as 4/3
// tokens each; CJK characters count as one token apiece since they are not
// separated by spaces. The result is at least 1.
func CountTokens(text string) int {
	words, ideographs := 0, 0
	for _, field := range strings.Fields(text) {
		latin := false
		for _, r := range field {
			if isIdeograph(r) {
				ideographs++
			} else {
				latin = true
			}
		}
		if latin {
			words++
		}
	}
	return max(words*4/3+ideographs, 1)
}

// CountWords returns the number of whitespace separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

func isIdeograph(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

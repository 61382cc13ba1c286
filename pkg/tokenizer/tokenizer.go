package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// CountTokens estimates BPE tokens for text: the larger of four tokens per
// three words and one token per four runes. Empty text has zero tokens.
func CountTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	byWords := (len(strings.Fields(text))*4 + 2) / 3
	byRunes := (utf8.RuneCountInString(text) + 3) / 4
	return max(byWords, byRunes, 1)
}

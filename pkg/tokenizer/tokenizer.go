package tokenizer

import (
	"strings"
)

// Count estimates the token count of text at about four tokens per three
// words, which is close enough for budgeting English prompts.
func Count(text string) int {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	return max(len(words)*4/3, 1)
}

// Truncate keeps the leading words of text that fit in maxTokens.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if Count(text) <= maxTokens {
		return text
	}
	words := strings.Fields(text)
	keep := maxTokens * 3 / 4
	if keep < 1 {
		keep = 1
	}
	if keep > len(words) {
		keep = len(words)
	}
	return strings.Join(words[:keep], " ")
}

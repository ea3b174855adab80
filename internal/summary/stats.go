package summary

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Stats is a snapshot of text statistics.
type Stats struct {
	WordCount     int `json:"word_count"`
	CharCount     int `json:"char_count"`
	TokenEstimate int `json:"token_estimate"`
}

// ComputeStats counts words and characters of the trimmed text and estimates tokens.
// The estimate averages two common heuristics: ~4 characters per token and
// ~1.3 tokens per word.
func ComputeStats(text string) Stats {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Stats{}
	}

	words := CountWords(trimmed)
	chars := CountChars(trimmed)

	return Stats{
		WordCount:     words,
		CharCount:     chars,
		TokenEstimate: int(math.Ceil((float64(chars)/4 + float64(words)*1.3) / 2)),
	}
}

// CountWords returns the number of whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

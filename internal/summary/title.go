package summary

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Title derivation defaults.
const (
	DefaultTitleMaxChars = 60
	DefaultTitleMinChars = 5
)

// TitleRule controls how titles are derived from input text.
type TitleRule struct {
	MaxChars int
	MinChars int
}

// DeriveTitle returns the first line of text, truncated to MaxChars runes and trimmed.
// Lines shorter than MinChars are replaced by a time-stamped fallback so
// history entries are never blank.
func (r TitleRule) DeriveTitle(text string, now time.Time) string {
	maxChars := r.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultTitleMaxChars
	}
	minChars := r.MinChars
	if minChars <= 0 {
		minChars = DefaultTitleMinChars
	}

	first, _, _ := strings.Cut(text, "\n")
	title := strings.TrimSpace(truncateRunes(first, maxChars))

	if utf8.RuneCountInString(title) < minChars {
		return FallbackTitle(now)
	}
	return title
}

// DeriveTitle applies the default title rule.
func DeriveTitle(text string, now time.Time) string {
	return TitleRule{}.DeriveTitle(text, now)
}

// FallbackTitle returns the generated title used when the input has no usable first line.
func FallbackTitle(now time.Time) string {
	return "Chat Summary " + now.Format("2006-01-02 15:04")
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

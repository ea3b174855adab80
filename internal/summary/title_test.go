package summary

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)

func TestDeriveTitle(t *testing.T) {
	seventy := strings.Repeat("x", 70)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"first line", "Fix login bug\nmore text", "Fix login bug"},
		{"single line", "Refactor the parser", "Refactor the parser"},
		{"trimmed", "   Deploy notes   \nbody", "Deploy notes"},
		{"crlf", "Windows title\r\nbody", "Windows title"},
		{"too short", "hi\nmore", FallbackTitle(fixedNow)},
		{"exactly min", "abcde\nmore", "abcde"},
		{"empty", "", FallbackTitle(fixedNow)},
		{"blank first line", "\nsecond line is long", FallbackTitle(fixedNow)},
		{"truncated", seventy + "\nrest", seventy[:60]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.input, fixedNow))
		})
	}
}

func TestDeriveTitle_TruncatesRunesNotBytes(t *testing.T) {
	input := strings.Repeat("é", 70)

	got := DeriveTitle(input, fixedNow)

	assert.Equal(t, 60, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}

func TestDeriveTitle_TruncateThenTrim(t *testing.T) {
	// Cut lands right after a space: trailing space must not survive.
	input := strings.Repeat("a", 59) + " tail"

	got := DeriveTitle(input, fixedNow)

	assert.Equal(t, strings.Repeat("a", 59), got)
}

func TestTitleRule_Custom(t *testing.T) {
	rule := TitleRule{MaxChars: 10, MinChars: 3}

	assert.Equal(t, "abcdefghij", rule.DeriveTitle("abcdefghijklmnop", fixedNow))
	assert.Equal(t, "abc", rule.DeriveTitle("abc", fixedNow))
	assert.Equal(t, FallbackTitle(fixedNow), rule.DeriveTitle("ab", fixedNow))
}

func TestFallbackTitle_IncludesTime(t *testing.T) {
	assert.Equal(t, "Chat Summary 2026-03-14 09:26", FallbackTitle(fixedNow))
}

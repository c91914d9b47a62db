package text

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func assertWithinLimit(t *testing.T, parts []string, max int) {
	t.Helper()
	for i, p := range parts {
		assert.LessOrEqual(t, utf8.RuneCountInString(p), max, "part %d too long", i)
		assert.NotEmpty(t, strings.TrimSpace(p), "part %d empty", i)
	}
}

func TestSplitMessage_Short(t *testing.T) {
	assert.Equal(t, []string{"hello"}, SplitMessage("  hello ", 1000))
	assert.Nil(t, SplitMessage("   ", 1000))
}

func TestSplitMessage_Paragraphs(t *testing.T) {
	text := strings.Repeat("a", 30) + "\n\n" + strings.Repeat("b", 30) + "\n\n" + strings.Repeat("c", 30)
	parts := SplitMessage(text, 70)

	assert.Equal(t, []string{
		strings.Repeat("a", 30) + "\n\n" + strings.Repeat("b", 30),
		strings.Repeat("c", 30),
	}, parts)
}

func TestSplitMessage_LinesAndWords(t *testing.T) {
	line := strings.TrimSpace(strings.Repeat("word ", 40))
	text := line + "\n" + line
	parts := SplitMessage(text, 50)

	assertWithinLimit(t, parts, 50)
	assert.Equal(t, 80, strings.Count(strings.Join(parts, " "), "word"))
}

func TestSplitMessage_LongWordIsCut(t *testing.T) {
	parts := SplitMessage(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, parts)
}

func TestSplitMessage_CountsRunesNotBytes(t *testing.T) {
	text := strings.Repeat("é", 1000)
	parts := SplitMessage(text, 1000)
	assert.Len(t, parts, 1)

	parts = SplitMessage(strings.Repeat("日本 ", 600), DefaultMaxRunes)
	assertWithinLimit(t, parts, DefaultMaxRunes)
	assert.Len(t, parts, 2)
}

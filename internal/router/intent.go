package router

import (
	"strings"
	"unicode"
)

type Intent int

const (
	IntentAnnotation Intent = iota
	IntentQuestion
)

// IntentClassifier decides whether free text annotates media or asks
// something. A text that replies to a message is always an annotation.
type IntentClassifier interface {
	ClassifyIntent(text string, hasReplyRef bool) Intent
}

// WordCountIntent treats texts longer than MaxWords words as questions.
type WordCountIntent struct {
	MaxWords int
}

const DefaultMaxAnnotationWords = 10

func (w WordCountIntent) ClassifyIntent(text string, hasReplyRef bool) Intent {
	if hasReplyRef {
		return IntentAnnotation
	}
	max := w.MaxWords
	if max <= 0 {
		max = DefaultMaxAnnotationWords
	}
	if len(strings.Fields(text)) > max {
		return IntentQuestion
	}
	return IntentAnnotation
}

const searchCommand = "search"

// ParseSearch reports whether text is a search command and returns its query.
// The command word is case-insensitive and must be followed by whitespace or
// end the text.
func ParseSearch(text string) (string, bool) {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	if len(trimmed) < len(searchCommand) || !strings.EqualFold(trimmed[:len(searchCommand)], searchCommand) {
		return "", false
	}
	rest := trimmed[len(searchCommand):]
	if rest != "" {
		r := []rune(rest)[0]
		if !unicode.IsSpace(r) {
			return "", false
		}
	}
	return strings.TrimSpace(rest), true
}

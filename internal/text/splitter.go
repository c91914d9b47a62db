package text

import (
	"strings"
	"unicode/utf8"
)

const DefaultMaxRunes = 1000

// SplitMessage splits text into messages of at most maxRunes runes,
// preferring breaks at paragraphs, then lines, then words. A single word
// longer than the limit is cut at rune boundaries.
func SplitMessage(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= maxRunes {
		return []string{text}
	}

	s := &splitter{max: maxRunes}
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if s.fits(para, 2) {
			s.add(para, "\n\n")
			continue
		}
		s.flush()

		if runeLen(para) <= s.max {
			s.add(para, "")
			continue
		}
		for _, line := range strings.Split(para, "\n") {
			s.addLine(line)
		}
		s.flush()
	}
	s.flush()
	return s.out
}

type splitter struct {
	max int
	cur strings.Builder
	n   int
	out []string
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func (s *splitter) fits(part string, sepLen int) bool {
	if s.n == 0 {
		return runeLen(part) <= s.max
	}
	return s.n+sepLen+runeLen(part) <= s.max
}

func (s *splitter) add(part, sep string) {
	if s.n > 0 {
		s.cur.WriteString(sep)
		s.n += runeLen(sep)
	}
	s.cur.WriteString(part)
	s.n += runeLen(part)
}

func (s *splitter) flush() {
	if s.n > 0 {
		s.out = append(s.out, s.cur.String())
	}
	s.cur.Reset()
	s.n = 0
}

func (s *splitter) addLine(line string) {
	if s.fits(line, 1) {
		s.add(line, "\n")
		return
	}
	s.flush()

	if runeLen(line) <= s.max {
		s.add(line, "")
		return
	}
	for _, word := range strings.Fields(line) {
		s.addWord(word)
	}
}

func (s *splitter) addWord(word string) {
	if s.fits(word, 1) {
		s.add(word, " ")
		return
	}
	s.flush()

	for runeLen(word) > s.max {
		runes := []rune(word)
		s.out = append(s.out, string(runes[:s.max]))
		word = string(runes[s.max:])
	}
	s.add(word, "")
}

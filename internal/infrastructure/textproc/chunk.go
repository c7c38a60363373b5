package textproc

import (
	"strings"
	"unicode/utf8"
)

const DefaultMaxChars = 1900

// Splitter prepares audio scripts: Split sanitizes the text and then chunks it.
type Splitter struct {
	MaxChars int
}

func NewSplitter(maxChars int) *Splitter {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Splitter{MaxChars: maxChars}
}

func (s *Splitter) Split(text string) []string {
	return Chunk(Sanitize(text), s.MaxChars)
}

// Chunk packs sentences greedily into chunks of at most maxChars code points.
// Sentences that do not fit on their own are split at word boundaries, and
// words that still do not fit are cut.
func Chunk(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		out     []string
		current string
	)
	flush := func() {
		if current != "" {
			out = append(out, current)
			current = ""
		}
	}

	for _, sentence := range splitSentences(text) {
		if current == "" {
			if utf8.RuneCountInString(sentence) <= maxChars {
				current = sentence
				continue
			}
		} else if utf8.RuneCountInString(current)+1+utf8.RuneCountInString(sentence) <= maxChars {
			current += " " + sentence
			continue
		}

		flush()
		if utf8.RuneCountInString(sentence) <= maxChars {
			current = sentence
			continue
		}
		out = append(out, splitWords(sentence, maxChars)...)
	}
	flush()
	return out
}

func splitSentences(text string) []string {
	runes := []rune(text)
	var (
		out   []string
		start int
	)
	for i := 0; i < len(runes)-1; i++ {
		r, next := runes[i], runes[i+1]
		boundary := (r == '.' || r == '!' || r == '?') && next == ' '
		if r == '.' && next == '\n' {
			boundary = true
		}
		if !boundary {
			continue
		}
		if sentence := strings.TrimSpace(string(runes[start : i+1])); sentence != "" {
			out = append(out, sentence)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

func splitWords(sentence string, maxChars int) []string {
	var (
		out     []string
		current string
	)
	for _, word := range strings.Fields(sentence) {
		wordLen := utf8.RuneCountInString(word)
		if wordLen > maxChars {
			if current != "" {
				out = append(out, current)
				current = ""
			}
			runes := []rune(word)
			for len(runes) > maxChars {
				out = append(out, string(runes[:maxChars]))
				runes = runes[maxChars:]
			}
			current = string(runes)
			continue
		}
		switch {
		case current == "":
			current = word
		case utf8.RuneCountInString(current)+1+wordLen <= maxChars:
			current += " " + word
		default:
			out = append(out, current)
			current = word
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

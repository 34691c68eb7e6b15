package chunker

import (
	"unicode"
	"unicode/utf8"
)

// Span is a half-open byte-offset range into the source text.
type Span struct {
	Start int
	End   int
}

// Tokenizer splits text into tokens while preserving byte offsets into the
// original string. Offsets are what let chunk boundaries map back to exact
// substrings of the document.
type Tokenizer interface {
	Tokenize(text string) []Span
}

// WordTokenizer tokenizes on letter/digit runs; any other rune is a
// separator. It approximates the embedding model's subword tokenizer closely
// enough for window sizing while keeping offsets exact.
type WordTokenizer struct{}

// NewWordTokenizer creates the default tokenizer.
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{}
}

// Tokenize returns one span per maximal letter/digit run.
func (t *WordTokenizer) Tokenize(text string) []Span {
	if text == "" {
		return nil
	}

	var spans []Span
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			spans = append(spans, Span{Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, Span{Start: start, End: len(text)})
	}
	return spans
}

// WhitespaceTokenizer tokenizes on whitespace boundaries, keeping punctuation
// attached to words. Used where parity with shell-style token counts matters.
type WhitespaceTokenizer struct{}

// Tokenize returns one span per maximal non-whitespace run.
func (t *WhitespaceTokenizer) Tokenize(text string) []Span {
	var spans []Span
	start := -1
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, Span{Start: start, End: i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
		i += size
	}
	if start >= 0 {
		spans = append(spans, Span{Start: start, End: len(text)})
	}
	return spans
}

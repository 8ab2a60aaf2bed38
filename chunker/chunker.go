package chunker

import (
	"strings"
	"unicode/utf8"

	"docchat/types"
)

// separators in boundary-preference order: paragraph breaks, line breaks,
// sentence breaks, spaces, then hard character cuts.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}

// Chunker splits extracted text into overlapping fragments. Splitting
// falls back down the separator list only when a higher-priority boundary
// is unavailable within the target size.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split produces the ordered fragment sequence for one document.
func (c *Chunker) Split(text string) ([]types.Fragment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyInput
	}

	pieces := c.splitRecursive(text, separators)
	fragments := c.merge(pieces)

	if len(fragments) == 0 {
		return nil, types.ErrNoFragments
	}
	return fragments, nil
}

func (c *Chunker) splitRecursive(text string, seps []string) []string {
	if utf8.RuneCountInString(text) <= c.size {
		return []string{text}
	}

	sep := seps[0]
	if sep == "" {
		return hardCut(text, c.size)
	}

	var out []string
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= c.size {
			out = append(out, part)
		} else {
			out = append(out, c.splitRecursive(part, seps[1:])...)
		}
	}
	return out
}

// merge packs split pieces into fragments up to the target size, carrying
// an overlap tail from each fragment into the next. A carried tail that
// leaves no room for the next piece is dropped, never emitted on its own.
func (c *Chunker) merge(pieces []string) []types.Fragment {
	var fragments []types.Fragment
	var buf strings.Builder
	bufLen := 0
	hasPiece := false

	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text != "" {
			fragments = append(fragments, types.Fragment{
				SequenceIndex: len(fragments),
				Text:          text,
			})
		}
	}

	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)

		if hasPiece && bufLen+pieceLen > c.size {
			flush()
			tail := overlapTail(buf.String(), c.overlap)
			buf.Reset()
			buf.WriteString(tail)
			bufLen = utf8.RuneCountInString(tail)
			hasPiece = false
		}
		if !hasPiece && bufLen > 0 && bufLen+pieceLen > c.size {
			buf.Reset()
			bufLen = 0
		}

		buf.WriteString(piece)
		bufLen += pieceLen
		hasPiece = true
	}
	flush()

	return fragments
}

// overlapTail returns at most n trailing runes, extended left to the
// nearest word boundary when one exists inside the window.
func overlapTail(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	tail := runes[len(runes)-n:]
	if idx := strings.IndexRune(string(tail), ' '); idx >= 0 {
		return strings.TrimLeft(string(tail)[idx:], " ")
	}
	return string(tail)
}

func hardCut(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

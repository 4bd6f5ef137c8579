package pipeline

import (
	"strings"
	"unicode/utf8"
)

// sentence-ending runes that close a segment
const sentenceEnds = ".!?"

// Segmenter accumulates streamed text deltas and emits segments at
// sentence boundaries or a character cap, so synthesis can start
// before generation finishes.
type Segmenter struct {
	limit int
	buf   strings.Builder
}

// NewSegmenter creates a segmenter with the given character cap.
// A non-positive cap uses 100.
func NewSegmenter(limit int) *Segmenter {
	if limit <= 0 {
		limit = 100
	}
	return &Segmenter{limit: limit}
}

// Add appends a delta and returns any segments it completed.
func (s *Segmenter) Add(delta string) []string {
	s.buf.WriteString(delta)

	var out []string
	for {
		seg, rest, ok := s.cut(s.buf.String())
		if !ok {
			break
		}
		out = append(out, seg)
		s.buf.Reset()
		s.buf.WriteString(rest)
	}
	return out
}

// Flush returns whatever text remains, trimmed. Call at end of stream.
func (s *Segmenter) Flush() string {
	rest := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	return rest
}

// cut extracts one completed segment from text, if any.
func (s *Segmenter) cut(text string) (seg, rest string, ok bool) {
	// A sentence end followed by more content closes a segment. The
	// trailing content requirement avoids emitting on "e.g." style
	// fragments mid-delta less often than it avoids waiting on a
	// genuine sentence end at the very tip of the stream.
	for i, r := range text {
		if strings.ContainsRune(sentenceEnds, r) && i+1 < len(text) {
			return strings.TrimSpace(text[:i+1]), strings.TrimLeft(text[i+1:], " "), true
		}
	}

	if len(text) < s.limit {
		return "", "", false
	}

	// Over the cap with no boundary: cut at the last space before the
	// cap, or hard-cut when the text has no spaces at all. A hard cut
	// backs up to a rune start so a multi-byte character never splits
	// across segments.
	cutAt := strings.LastIndex(text[:s.limit], " ")
	if cutAt <= 0 {
		cutAt = s.limit
		for cutAt > 0 && !utf8.RuneStart(text[cutAt]) {
			cutAt--
		}
		if cutAt == 0 {
			cutAt = s.limit
		}
	}
	return strings.TrimSpace(text[:cutAt]), strings.TrimLeft(text[cutAt:], " "), true
}

package chunker

import "unicode"

const (
	DefaultWindow  = 1000
	DefaultOverlap = 200
)

// Span is a half-open rune range [Start, End) of the input text.
type Span struct {
	Start int
	End   int
}

var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
	[]rune(" "),
}

type Splitter struct {
	window  int
	overlap int
}

func New(window, overlap int) *Splitter {
	window, overlap = normalize(window, overlap)
	return &Splitter{window: window, overlap: overlap}
}

func (s *Splitter) Window() int {
	return s.window
}

func (s *Splitter) Overlap() int {
	return s.overlap
}

func (s *Splitter) Split(text string) []string {
	return Split(text, s.window, s.overlap)
}

// Split cuts text into windows of at most window runes where consecutive
// windows share at most overlap runes.
func Split(text string, window, overlap int) []string {
	runes := []rune(text)
	spans := splitRunes(runes, window, overlap)
	out := make([]string, 0, len(spans))
	for _, sp := range spans {
		out = append(out, string(runes[sp.Start:sp.End]))
	}
	return out
}

func SplitSpans(text string, window, overlap int) []Span {
	return splitRunes([]rune(text), window, overlap)
}

func normalize(window, overlap int) (int, int) {
	if window <= 0 {
		return DefaultWindow, DefaultOverlap
	}
	if overlap < 0 || overlap >= window {
		overlap = window / 5
	}
	return window, overlap
}

func splitRunes(runes []rune, window, overlap int) []Span {
	window, overlap = normalize(window, overlap)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= window {
		return []Span{{Start: 0, End: n}}
	}
	spans := make([]Span, 0, n/(window-overlap)+1)
	start, prevEnd := 0, 0
	for {
		limit := start + window
		if limit >= n {
			return append(spans, Span{Start: start, End: n})
		}
		lo := start + window/4
		if lo <= prevEnd {
			lo = prevEnd + 1
		}
		end := splitPoint(runes, lo, limit)
		spans = append(spans, Span{Start: start, End: end})

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = alignWord(runes, next, end)
		prevEnd = end
	}
}

// splitPoint returns the cut position in [lo, limit], preferring the
// coarsest separator. The separator stays with the left chunk.
func splitPoint(runes []rune, lo, limit int) int {
	for _, sep := range separators {
		size := len(sep)
		for i := limit - size; i+size >= lo && i >= 0; i-- {
			if hasPrefixAt(runes, i, sep) {
				return i + size
			}
		}
	}
	return limit
}

func hasPrefixAt(runes []rune, at int, sep []rune) bool {
	if at+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[at+j] != r {
			return false
		}
	}
	return true
}

// alignWord moves pos forward so an overlap never begins mid-word. It
// returns end when the tail holds no word boundary.
func alignWord(runes []rune, pos, end int) int {
	if pos <= 0 || unicode.IsSpace(runes[pos-1]) {
		return pos
	}
	for j := pos; j < end; j++ {
		if unicode.IsSpace(runes[j]) {
			return j + 1
		}
	}
	return end
}

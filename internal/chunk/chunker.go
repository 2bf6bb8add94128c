package chunk

import (
	"strconv"
	"unicode/utf8"

	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
)

// Chunker splits text with a fixed size and overlap, counted in runes. Build
// one with New; the zero value produces no chunks.
type Chunker struct {
	size    int
	overlap int
}

// New returns a Chunker after validating 0 < overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Validate reports whether the geometry satisfies 0 < overlap < size.
func (c *Chunker) Validate() error { return validate(c.size, c.overlap) }

// Chunks splits a document's text and assigns ids in order.
func (c *Chunker) Chunks(path, text string) []Chunk {
	if c.Validate() != nil {
		return nil
	}
	parts := split(text, c.size, c.overlap)
	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{ID: ID(path, i), Source: path, Index: i, Text: p}
	}
	return chunks
}

// Count returns how many chunks text would produce.
func (c *Chunker) Count(text string) int {
	if c.Validate() != nil {
		return 0
	}
	return count(utf8.RuneCountInString(text), c.size, c.overlap)
}

// Split divides text into segments [start, min(start+size, n)) where start
// advances by size-overlap. Empty text yields no segments; text no longer than
// size yields exactly one.
func Split(text string, size, overlap int) ([]string, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return split(text, size, overlap), nil
}

func split(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}

	// Byte offset of every rune boundary, plus len(text).
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	n := len(offsets)
	offsets = append(offsets, len(text))

	step := size - overlap
	if step <= 0 {
		return nil
	}
	out := make([]string, 0, count(n, size, overlap))
	for start := 0; start < n; start += step {
		end := min(start+size, n)
		out = append(out, text[offsets[start]:offsets[end]])
		// A window that reaches the end covers every later start.
		if end == n {
			break
		}
	}
	return out
}

// count is ceil(max(n-overlap, 0) / (size-overlap)), with 1 for 0 < n <= size.
func count(n, size, overlap int) int {
	switch {
	case n == 0:
		return 0
	case n <= size:
		return 1
	}
	step := size - overlap
	return (n - overlap + step - 1) / step
}

func validate(size, overlap int) error {
	if size <= 0 || overlap <= 0 || overlap >= size {
		return rerrors.ValidationError("chunk size and overlap must satisfy 0 < overlap < size", nil).
			WithDetail("size", strconv.Itoa(size)).
			WithDetail("overlap", strconv.Itoa(overlap))
	}
	return nil
}

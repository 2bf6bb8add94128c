// Package output formats command results for the terminal.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Writer prints status lines and retrieval results.
type Writer struct {
	out io.Writer
}

// New creates a Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints msg after icon, or indented when icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
}

// Statusf is Status with formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a check line.
func (w *Writer) Success(msg string) { w.Status("✓", msg) }

// Successf is Success with formatting.
func (w *Writer) Successf(format string, args ...any) { w.Success(fmt.Sprintf(format, args...)) }

// Warning prints a warning line.
func (w *Writer) Warning(msg string) { w.Status("!", msg) }

// Warningf is Warning with formatting.
func (w *Writer) Warningf(format string, args ...any) { w.Warning(fmt.Sprintf(format, args...)) }

// Error prints a failure line.
func (w *Writer) Error(msg string) { w.Status("✗", msg) }

// Errorf is Error with formatting.
func (w *Writer) Errorf(format string, args ...any) { w.Error(fmt.Sprintf(format, args...)) }

// Newline prints an empty line.
func (w *Writer) Newline() { _, _ = fmt.Fprintln(w.out) }

// Answer prints a generated answer between separators.
func (w *Writer) Answer(text string) {
	_, _ = fmt.Fprint(w.out, "\n--- Answer ---\n\n")
	_, _ = fmt.Fprintln(w.out, strings.TrimSpace(text))
	_, _ = fmt.Fprint(w.out, "\n-----------------\n\n")
}

// Sources prints the distinct source paths an answer used.
func (w *Writer) Sources(paths []string) {
	if len(paths) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w.out, "Sources:")
	for _, p := range paths {
		_, _ = fmt.Fprintf(w.out, "  - %s\n", p)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Hit is one ranked chunk for Results.
type Hit struct {
	Source  string
	Index   int
	Score   float32
	Content string
}

// Results prints ranked chunks with a preview of at most preview runes.
func (w *Writer) Results(query string, hits []Hit, preview int) {
	if len(hits) == 0 {
		w.Warningf("No results for %q", query)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%d results for %q\n\n", len(hits), query)
	for i, h := range hits {
		_, _ = fmt.Fprintf(w.out, "%2d. %s #%d  (score %.3f)\n", i+1, h.Source, h.Index, h.Score)
		if text := Preview(h.Content, preview); text != "" {
			w.Code(text)
		}
	}
}

// Code prints content indented by two spaces.
func (w *Writer) Code(content string) {
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "    %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Preview trims text to n runes on a whitespace-collapsed single paragraph.
// n <= 0 disables the preview.
func Preview(text string, n int) string {
	if n <= 0 {
		return ""
	}
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

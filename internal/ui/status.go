package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StatusInfo is the state reported by `tfrag status`.
type StatusInfo struct {
	DataDir        string       `json:"data_dir"`
	ManifestPath   string       `json:"manifest_path"`
	Documents      int          `json:"documents"`
	Chunks         int          `json:"chunks"`
	Collection     string       `json:"collection"`
	StoreSize      int64        `json:"store_size_bytes"`
	LastIndexed    time.Time    `json:"last_indexed,omitzero"`
	Embedder       EmbedderInfo `json:"embedder"`
	EmbedderStatus string       `json:"embedder_status"`
	Consistent     bool         `json:"consistent"`
	Issues         []string     `json:"issues,omitempty"`
	Repaired       []string     `json:"repaired,omitempty"`
	Pending        *PendingInfo `json:"pending,omitempty"`
}

// PendingInfo lists what the next update would change.
type PendingInfo struct {
	Added     []string `json:"added"`
	Updated   []string `json:"updated"`
	Removed   []string `json:"removed"`
	Skipped   []string `json:"skipped,omitempty"`
	Unchanged int      `json:"unchanged"`
}

// Empty reports whether an update would be a no-op.
func (p *PendingInfo) Empty() bool {
	return len(p.Added)+len(p.Updated)+len(p.Removed) == 0
}

// StatusRenderer prints StatusInfo.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
	now    func() time.Time
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor), now: time.Now}
}

// Render prints info for humans.
func (r *StatusRenderer) Render(info StatusInfo) error {
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(r.out, format, args...) }

	p("%s\n\n", r.styles.Header.Render("Index status: "+info.DataDir))
	p("  Documents:    %d\n", info.Documents)
	p("  Chunks:       %d\n", info.Chunks)
	p("  Collection:   %s (%s)\n", info.Collection, FormatBytes(info.StoreSize))
	p("  Manifest:     %s\n", info.ManifestPath)
	if !info.LastIndexed.IsZero() {
		p("  Last indexed: %s\n", formatTime(info.LastIndexed, r.now()))
	}
	p("\n  Embedder:     %s %s (%d dims) %s\n",
		info.Embedder.Backend, info.Embedder.Model, info.Embedder.Dimensions, r.renderStatus(info.EmbedderStatus))

	if info.Consistent {
		p("  Consistency:  %s\n", r.styles.Success.Render("ok"))
	} else {
		p("  Consistency:  %s\n", r.styles.Error.Render(fmt.Sprintf("%d issues", len(info.Issues))))
	}
	for _, issue := range info.Issues {
		p("    %s\n", r.styles.Dim.Render(issue))
	}
	if len(info.Repaired) > 0 {
		p("  Repaired:     %d issues, run 'tfrag index --update' to re-embed\n", len(info.Repaired))
		r.list("*", info.Repaired, r.styles.Warning)
	}

	if info.Pending != nil {
		p("\n")
		if info.Pending.Empty() {
			p("  Pending:      %s\n", r.styles.Success.Render("none, index is up to date"))
		} else {
			p("  Pending:      %d added, %d updated, %d removed\n",
				len(info.Pending.Added), len(info.Pending.Updated), len(info.Pending.Removed))
		}
		r.list("+", info.Pending.Added, r.styles.Success)
		r.list("~", info.Pending.Updated, r.styles.Warning)
		r.list("-", info.Pending.Removed, r.styles.Error)
		r.list("?", info.Pending.Skipped, r.styles.Dim)
	}
	return nil
}

func (r *StatusRenderer) list(mark string, paths []string, style lipgloss.Style) {
	for _, path := range paths {
		_, _ = fmt.Fprintf(r.out, "    %s\n", style.Render(mark+" "+path))
	}
}

// RenderJSON prints info as indented JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready":
		return r.styles.Success.Render(status)
	case "unavailable":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

func formatTime(t, now time.Time) string {
	diff := now.Sub(t)
	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats a size for humans.
func FormatBytes(n int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case n >= gb:
		return fmt.Sprintf("%.1f GB", float64(n)/gb)
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

package ui

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer draws a spinner, the stage pipeline and a progress bar with
// bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *syncModel
	tracker *ProgressTracker
	done    chan struct{}
}

// NewTUIRenderer fails if the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}
	tracker := NewProgressTracker()
	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   newSyncModel(tracker, cfg.DataDir, GetStyles(cfg.NoColor)),
		done:    make(chan struct{}),
	}, nil
}

// Start launches the bubbletea program in the background. Calling it twice
// is a no-op.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		return nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	program := tea.NewProgram(r.model, opts...)
	r.program = program
	go func() {
		defer close(r.done)
		_, _ = program.Run()
	}()
	return nil
}

// send forwards msg to the running program, if any. Callers hold r.mu.
func (r *TUIRenderer) send(msg tea.Msg) {
	if r.program != nil {
		r.program.Send(msg)
	}
}

func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tracker.Stage() != event.Stage {
		r.tracker.SetStage(event.Stage, event.Total)
	}
	r.tracker.Update(event.Current, event.Total, event.CurrentFile)
	r.send(progressMsg(event))
}

func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracker.AddError(event)
	r.send(errorMsg(event))
}

// Complete hands the summary to the program, which draws it and exits.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracker.SetStage(StageComplete, 0)
	r.send(completeMsg(stats))
}

// Stop asks the program to quit and waits at most stopGrace for it.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program := r.program
	r.mu.Unlock()
	if program == nil {
		return nil
	}

	program.Quit()
	timer := time.NewTimer(stopGrace)
	defer timer.Stop()
	select {
	case <-r.done:
	case <-timer.C:
	}
	return nil
}

const stopGrace = 2 * time.Second

type (
	progressMsg ProgressEvent
	errorMsg    ErrorEvent
	completeMsg CompletionStats
	tickMsg     time.Time
)

var pipeline = []struct {
	stage Stage
	name  string
}{
	{StageScanning, "Scan"},
	{StageDiffing, "Diff"},
	{StageApplying, "Apply"},
	{StagePersisting, "Save"},
}

type syncModel struct {
	tracker  *ProgressTracker
	spinner  spinner.Model
	bar      progress.Model
	styles   Styles
	dataDir  string
	width    int
	quitting bool
	complete bool
	stats    CompletionStats
}

func newSyncModel(tracker *ProgressTracker, dataDir string, styles Styles) *syncModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = styles.Active

	return &syncModel{
		tracker: tracker,
		spinner: s,
		bar:     progress.New(progress.WithSolidFill(ColorAccent), progress.WithWidth(40), progress.WithoutPercentage()),
		styles:  styles,
		dataDir: dataDir,
		width:   80,
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *syncModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m *syncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-24, 20)
	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit
	case tickMsg:
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *syncModel) View() string {
	if m.quitting {
		return "Canceled.\n"
	}
	if m.complete {
		var buf bytes.Buffer
		writeSummary(&buf, m.stats)
		return m.styles.Success.Render("✓ ") + buf.String()
	}

	stats := m.tracker.Stats()
	title := "tfrag sync"
	if m.dataDir != "" {
		title += " • " + m.dataDir
	}

	lines := []string{
		m.styles.Header.Render(title),
		m.renderPipeline(stats.Stage),
		m.renderProgress(stats),
	}
	if stats.CurrentFile != "" {
		lines = append(lines, m.styles.Dim.Render(truncatePath(stats.CurrentFile, m.width-4)))
	}
	if stats.ErrorCount > 0 {
		lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %d failed", stats.ErrorCount)))
	}
	if stats.WarnCount > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d skipped", stats.WarnCount)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

func (m *syncModel) renderPipeline(current Stage) string {
	parts := make([]string, 0, len(pipeline))
	for _, p := range pipeline {
		switch {
		case p.stage < current:
			parts = append(parts, m.styles.Success.Render("● "+p.name))
		case p.stage == current:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+p.name))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+p.name))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *syncModel) renderProgress(s ProgressStats) string {
	if s.Total == 0 {
		return m.styles.Label.Render(s.Stage.String() + "...")
	}
	line := fmt.Sprintf("%s %s  %s",
		m.bar.ViewAs(s.Progress),
		m.styles.Active.Render(fmt.Sprintf("%3.0f%%", s.Progress*100)),
		m.styles.Label.Render(fmt.Sprintf("%d/%d documents", s.Current, s.Total)))
	if s.Rate > 0 {
		line += m.styles.Label.Render(fmt.Sprintf("  %.1f/s", s.Rate))
	}
	if s.ETA > 0 {
		line += m.styles.Label.Render("  ETA " + formatDuration(s.ETA))
	}
	return line
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		if s := int(d.Seconds()) % 60; s != 0 {
			return fmt.Sprintf("%dm %ds", int(d.Minutes()), s)
		}
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// truncatePath keeps the file name and as much of the tail of the
// directory as fits in maxLen bytes.
func truncatePath(p string, maxLen int) string {
	if maxLen < 4 || len(p) <= maxLen {
		return p
	}
	slash := strings.LastIndex(p, "/")
	name := p[slash+1:]
	if slash < 0 || len(name)+4 > maxLen {
		return "..." + p[len(p)-maxLen+3:]
	}
	dir := p[:slash]
	keep := maxLen - len(name) - 4
	return "..." + dir[len(dir)-keep:] + "/" + name
}

var _ Renderer = (*TUIRenderer)(nil)

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/raphaelgruber/splunkgo/internal/models"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// statusFunc performs one status round trip for the job being watched.
type statusFunc func(ctx context.Context) (models.JobContent, error)

// tickMsg triggers polling the job status
type tickMsg time.Time

// jobUpdateMsg carries the refreshed job content
type jobUpdateMsg struct {
	content models.JobContent
	err     error
}

// progressModel is the bubbletea model for search job progress.
type progressModel struct {
	sid      string
	status   statusFunc
	interval time.Duration
	content  models.JobContent
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(sid string, status statusFunc, interval time.Duration) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		sid:      sid,
		status:   status,
		interval: interval,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (poll immediately).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchStatus(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchStatus()

	case jobUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch job status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.content = msg.content
		switch {
		case m.content.IsFailed():
			m.err = fmt.Errorf("search job %s failed", m.sid)
			m.done = true
			return m, tea.Quit
		case m.content.IsDone():
			m.done = true
			return m, tea.Quit
		}

		return m, m.tick()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}

	if m.content == nil {
		return "Waiting for search job status...\n"
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.content.DispatchState()))
	progressBar := m.progress.ViewAs(m.content.DoneProgress())
	counts := fmt.Sprintf("%d events", m.content.EventCount())
	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nSearch %s continues in background.\nUse 'splunk jobs status %s' to check status.\n",
			m.sid, m.sid)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ %s\n", m.err))
	}

	out := m.theme.completedStyle().Render("✓ Done") + "\n"
	if m.content != nil {
		out += fmt.Sprintf("  Events scanned: %d\n", m.content.EventCount())
		out += fmt.Sprintf("  Results:        %d\n", m.content.ResultCount())
	}
	return out
}

// fetchStatus runs one status round trip in a command so Update never blocks.
func (m progressModel) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		content, err := m.status(ctx)
		return jobUpdateMsg{content: content, err: err}
	}
}

func (m progressModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// isInteractive reports whether stdout is a terminal the progress UI can drive.
var isInteractive = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// runJobProgress runs the interactive progress UI until the job finishes.
// It reports detached=true when the user left with Ctrl+C; the job keeps
// running remotely in that case.
func runJobProgress(sid string, status statusFunc, interval time.Duration) (detached bool, err error) {
	p := tea.NewProgram(newProgressModel(sid, status, interval))

	finalModel, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return true, nil
		}
		if m.err != nil {
			return false, m.err
		}
	}
	return false, nil
}

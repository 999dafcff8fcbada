package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"gramgen/internal/batch"
)

const maxLogLines = 8

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	catStyles  = map[batch.Category]lipgloss.Style{
		batch.Valid:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		batch.Invalid: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		batch.Extreme: lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	}
)

type progressModel struct {
	title     string
	events    <-chan batch.Progress
	cancel    func()
	spinner   spinner.Model
	bar       progress.Model
	done      int
	total     int
	counts    batch.CategoryCounts
	log       []string
	finished  bool
	cancelled bool
}

type caseMsg batch.Progress
type finishedMsg struct{}

func newProgressModel(title string, total int, events <-chan batch.Progress, cancel func()) *progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 60

	return &progressModel{
		title:   title,
		events:  events,
		cancel:  cancel,
		spinner: sp,
		bar:     bar,
		total:   total,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

// listen waits for the next case; a closed channel ends the view.
func (m *progressModel) listen() tea.Cmd {
	return func() tea.Msg {
		p, ok := <-m.events
		if !ok {
			return finishedMsg{}
		}
		return caseMsg(p)
	}
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case caseMsg:
		m.apply(batch.Progress(msg))
		return m, m.listen()
	case finishedMsg:
		m.finished = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			if !m.cancelled && m.cancel != nil {
				m.cancel()
			}
			m.cancelled = true
		}
		return m, nil
	case tea.WindowSizeMsg:
		if w := msg.Width - 4; w > 10 && w < 80 {
			m.bar.Width = w
		}
		return m, nil
	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) apply(p batch.Progress) {
	m.done = p.Done
	if p.Total > 0 {
		m.total = p.Total
	}
	switch p.Case.Category {
	case batch.Valid:
		m.counts.Valid++
	case batch.Invalid:
		m.counts.Invalid++
	case batch.Extreme:
		m.counts.Extreme++
	}
	m.log = append(m.log, formatCase(p.Case))
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

func formatCase(c batch.TestCase) string {
	text := ansi.Truncate(c.Text, 60, "...")
	line := fmt.Sprintf("#%-4d %-8s %s", c.ID, catStyles[c.Category].Render(string(c.Category)), text)
	if c.Detail != "" {
		line += dimStyle.Render("  (" + c.Detail + ")")
	}
	return line
}

func (m *progressModel) percent() float64 {
	if m.total == 0 {
		return 1
	}
	return float64(m.done) / float64(m.total)
}

func (m *progressModel) View() string {
	var b strings.Builder
	status := m.spinner.View()
	if m.finished {
		status = "✓"
	}
	b.WriteString(fmt.Sprintf("%s %s\n\n", status, titleStyle.Render(m.title)))
	b.WriteString(m.bar.ViewAs(m.percent()))
	b.WriteString(fmt.Sprintf("  %d/%d\n", m.done, m.total))
	b.WriteString(dimStyle.Render(fmt.Sprintf("valida %d · invalida %d · extrema %d",
		m.counts.Valid, m.counts.Invalid, m.counts.Extreme)))
	b.WriteString("\n\n")
	for _, line := range m.log {
		b.WriteString(line + "\n")
	}
	if m.cancelled && !m.finished {
		b.WriteString(dimStyle.Render("cancelling...") + "\n")
	}
	return b.String()
}

// RunProgress renders progress for a batch whose observer sends on events.
// The view ends when events is closed. Ctrl+C calls cancel, which should stop
// the batch and, in turn, close events.
func RunProgress(title string, total int, events <-chan batch.Progress, cancel func(), opts ...tea.ProgramOption) error {
	_, err := tea.NewProgram(newProgressModel(title, total, events, cancel), opts...).Run()
	return err
}

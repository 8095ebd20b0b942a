package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"vidparse/internal/download"
)

// redrawInterval limits how often chunk callbacks reach the renderer.
const redrawInterval = 100 * time.Millisecond

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Width(6)
	sizeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

type fileMsg struct{ label string }

type progressMsg struct{ written, total int64 }

type finishMsg struct{}

// progressModel renders one bar for the file currently downloading.
type progressModel struct {
	bar      progress.Model
	label    string
	written  int64
	total    int64
	finished []string
	done     bool
}

func newProgressModel() progressModel {
	return progressModel{
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		total: -1,
	}
}

func (m progressModel) Init() tea.Cmd { return nil }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case fileMsg:
		if m.label != "" {
			m.finished = append(m.finished, m.summary())
		}
		m.label, m.written, m.total = msg.label, 0, -1
	case progressMsg:
		m.written, m.total = msg.written, msg.total
	case finishMsg:
		if m.label != "" {
			m.finished = append(m.finished, m.summary())
			m.label = ""
		}
		m.done = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		if w := msg.Width - 30; w > 10 && w < 80 {
			m.bar.Width = w
		}
	}
	return m, nil
}

func (m progressModel) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	p := float64(m.written) / float64(m.total)
	if p > 1 {
		return 1
	}
	return p
}

func (m progressModel) size() string {
	if m.total < 0 {
		return humanize.Bytes(uint64(m.written))
	}
	return humanize.Bytes(uint64(m.written)) + " / " + humanize.Bytes(uint64(m.total))
}

func (m progressModel) summary() string {
	return labelStyle.Render(m.label) + " " + doneStyle.Render("✓") + " " + sizeStyle.Render(humanize.Bytes(uint64(m.written)))
}

func (m progressModel) View() string {
	var b []byte
	for _, line := range m.finished {
		b = append(b, line...)
		b = append(b, '\n')
	}
	if m.label != "" {
		b = fmt.Appendf(b, "%s %s %s\n", labelStyle.Render(m.label), m.bar.ViewAs(m.percent()), sizeStyle.Render(m.size()))
	}
	return string(b)
}

// Progress draws download progress on a terminal. Start it before the
// first download and Stop it after the last one.
type Progress struct {
	prog *tea.Program
	done chan struct{}

	mu   sync.Mutex
	last time.Time
}

// NewProgress creates a progress display writing to out. It reads no input
// so the caller's signal handling stays in charge of cancellation.
func NewProgress(out io.Writer) *Progress {
	return &Progress{
		prog: tea.NewProgram(newProgressModel(),
			tea.WithOutput(out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}
}

// Start runs the renderer in the background.
func (p *Progress) Start() {
	go func() {
		defer close(p.done)
		p.prog.Run()
	}()
}

// Stop renders the final state and waits for the renderer to exit.
func (p *Progress) Stop() {
	p.prog.Send(finishMsg{})
	<-p.done
}

// Track starts a new bar labelled label and returns the callback that
// feeds it.
func (p *Progress) Track(label string) download.ProgressFunc {
	p.prog.Send(fileMsg{label: label})
	return func(written, total int64) {
		p.mu.Lock()
		now := time.Now()
		skip := now.Sub(p.last) < redrawInterval && written != total
		if !skip {
			p.last = now
		}
		p.mu.Unlock()
		if !skip {
			p.prog.Send(progressMsg{written: written, total: total})
		}
	}
}

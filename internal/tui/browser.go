package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/rensim/internal/storage"
)

var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	graphStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// Browser is a bubbletea model that lists stored runs and graphs the
// selected run's output channels.
type Browser struct {
	store    *storage.Store
	runs     []storage.RunMetadata
	cursor   int
	graph    string
	errMsg   string
	channel  int
	channels int
}

func NewBrowser(store *storage.Store) (*Browser, error) {
	runs, err := store.List()
	if err != nil {
		return nil, err
	}
	return &Browser{store: store, runs: runs}, nil
}

func (b *Browser) Init() tea.Cmd { return nil }

func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return b, nil
	}

	switch key.String() {
	case "q", "ctrl+c", "esc":
		return b, tea.Quit
	case "up", "k":
		if b.cursor > 0 {
			b.cursor--
			b.graph = ""
		}
	case "down", "j":
		if b.cursor < len(b.runs)-1 {
			b.cursor++
			b.graph = ""
		}
	case "tab":
		if b.channels > 0 {
			b.channel = (b.channel + 1) % b.channels
			b.plot()
		}
	case "enter":
		b.channel = 0
		b.plot()
	}
	return b, nil
}

func (b *Browser) plot() {
	b.errMsg = ""
	if b.cursor >= len(b.runs) {
		return
	}
	_, outputs, err := b.store.LoadOutputs(b.runs[b.cursor].ID)
	if err != nil {
		b.errMsg = err.Error()
		return
	}
	if len(outputs) == 0 {
		b.errMsg = "run has no outputs"
		return
	}

	b.channels = len(outputs[0])
	if b.channel >= b.channels {
		b.channel = 0
	}
	series := make([]float64, len(outputs))
	for k, row := range outputs {
		series[k] = row[b.channel]
	}
	b.graph = asciigraph.Plot(series,
		asciigraph.Height(12),
		asciigraph.Width(64),
		asciigraph.Caption(fmt.Sprintf("channel %d", b.channel)))
}

func (b *Browser) View() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("rensim runs") + "\n")

	if len(b.runs) == 0 {
		sb.WriteString(dimStyle.Render("no stored runs") + "\n")
	}
	for i, run := range b.runs {
		line := fmt.Sprintf("%s  %s  %s horizon=%d",
			run.ID, run.Variant, run.Timestamp.Format("2006-01-02 15:04"), run.Horizon)
		if i == b.cursor {
			sb.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			sb.WriteString(dimStyle.Render("  "+line) + "\n")
		}
	}

	if b.errMsg != "" {
		sb.WriteString("\n" + dimStyle.Render("error: "+b.errMsg) + "\n")
	}
	if b.graph != "" {
		sb.WriteString(graphStyle.Render(b.graph) + "\n")
	}

	sb.WriteString(helpStyle.Render("enter: plot  tab: next channel  q: quit"))
	return sb.String()
}

// RunBrowser starts the interactive run browser.
func RunBrowser(store *storage.Store) error {
	browser, err := NewBrowser(store)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(browser).Run()
	return err
}

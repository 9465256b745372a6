package chatcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/docqa/pkg/answer"
	"github.com/papercomputeco/docqa/pkg/cliui"
)

// asker is the part of the API client the chat view needs.
type asker interface {
	Ask(ctx context.Context, question string) (*answer.Answer, error)
}

// exchange is one question and, once it arrives, its answer or error.
type exchange struct {
	question string
	answer   *answer.Answer
	err      error
}

// answeredMsg carries the reply for the exchange at index.
type answeredMsg struct {
	index  int
	answer *answer.Answer
	err    error
}

var (
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	youStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	errStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type model struct {
	ctx    context.Context
	client asker
	banner string

	// render turns answer markdown into terminal text at a given width.
	render func(text string, width int) string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	history []exchange
	pending bool
	ready   bool
}

func newModel(ctx context.Context, client asker, banner string) model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents and press Enter"
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cliui.NameStyle

	return model{
		ctx:      ctx,
		client:   client,
		banner:   banner,
		render:   renderMarkdown,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
	}
}

func renderMarkdown(text string, width int) string {
	out, _ := cliui.RenderMarkdownWidth(text, width)
	return strings.TrimRight(out, "\n")
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true

		tw, th := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 4 + ih // header, banner, input line and status
		m.viewport.Width = max(20, msg.Width-tw)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answeredMsg:
		if msg.index < len(m.history) {
			m.history[msg.index].answer = msg.answer
			m.history[msg.index].err = msg.err
		}
		m.pending = false
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the typed question. Only one question is in flight at a time.
func (m model) submit() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.input.Value())
	if question == "" || m.pending {
		return m, nil
	}

	m.history = append(m.history, exchange{question: question})
	m.pending = true
	m.input.Reset()
	m.refresh()

	return m, tea.Batch(m.ask(len(m.history)-1, question), m.spinner.Tick)
}

func (m model) ask(index int, question string) tea.Cmd {
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		ans, err := client.Ask(ctx, question)
		return answeredMsg{index: index, answer: ans, err: err}
	}
}

func (m *model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m model) transcript() string {
	if len(m.history) == 0 {
		return cliui.DimStyle.Render("No questions yet.")
	}

	width := max(20, m.viewport.Width-2)

	var b strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(youStyle.Render("You: ") + ex.question + "\n")

		switch {
		case ex.err != nil:
			b.WriteString(errStyle.Render("Error: " + ex.err.Error()))
		case ex.answer == nil:
			b.WriteString(cliui.DimStyle.Render("Thinking..."))
		default:
			b.WriteString(m.render(ex.answer.Text, width))
			b.WriteString(formatSources(ex.answer.Sources))
		}
	}
	return b.String()
}

func formatSources(sources []answer.Source) string {
	if len(sources) == 0 {
		return "\n" + cliui.DimStyle.Render("No source documents.")
	}

	var b strings.Builder
	b.WriteString("\n" + cliui.HeaderStyle.Render("Sources"))
	for i, s := range sources {
		fmt.Fprintf(&b, "\n  %s %s %s",
			cliui.DimStyle.Render(fmt.Sprintf("%d.", i+1)),
			cliui.NameStyle.Render(s.Source),
			cliui.DimStyle.Render("page "+s.PageLabel()),
		)
	}
	return b.String()
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	status := cliui.DimStyle.Render("Enter to ask, PgUp/PgDn to scroll, Esc to quit")
	if m.pending {
		status = m.spinner.View() + " " + cliui.StepStyle.Render("Waiting for the answer")
	}

	return cliui.HeaderStyle.Render("docqa chat") + "\n" +
		cliui.DimStyle.Render(m.banner) + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		status
}

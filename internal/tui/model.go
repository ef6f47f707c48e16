package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/models"
	"docqa/internal/session"
)

// ChatPort is the TUI-facing subset of a session.
type ChatPort interface {
	Ask(ctx context.Context, question string) (models.Turn, error)
	History(ctx context.Context) ([]models.Turn, error)
	Clear(ctx context.Context) error
	Export(ctx context.Context, w io.Writer) error
	Ready() bool
}

type answerMsg struct {
	turn models.Turn
	err  error
}

type exportMsg struct {
	path string
	err  error
}

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	ctx      context.Context
	session  ChatPort
	input    textinput.Model
	viewport viewport.Model
	turns    []models.Turn
	summary  string
	status   string
	busy     bool
	ready    bool
}

func New(ctx context.Context, s ChatPort, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /clear, /export [path], /quit"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)

	status := "Ready. Ask a question."
	if !s.Ready() {
		status = "No documents yet. Run docqa ingest or pass files to chat."
	}
	turns, err := s.History(ctx)
	if err != nil {
		status = "Error: " + err.Error()
	}
	return Model{ctx: ctx, session: s, input: ti, viewport: vp, turns: turns, summary: summary, status: status}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := conversationBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.turns = append(m.turns, msg.turn)
		m.status = fmt.Sprintf("Answered with %d source(s).", len(msg.turn.Sources))
		m.refresh()
		return m, nil
	case exportMsg:
		if msg.err != nil {
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Conversation saved to " + msg.path
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" {
			return m.submit()
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()

	if name, arg, ok := parseCommand(line); ok {
		switch name {
		case "quit", "exit":
			return m, tea.Quit
		case "clear":
			if m.busy {
				m.status = "Wait for the current answer before clearing."
				return m, nil
			}
			if err := m.session.Clear(m.ctx); err != nil {
				m.status = "Error: " + err.Error()
				return m, nil
			}
			m.turns = nil
			m.status = "Conversation cleared."
			m.refresh()
			return m, nil
		case "export":
			if arg == "" {
				arg = session.ExportFileName
			}
			return m, exportCmd(m.ctx, m.session, arg)
		default:
			m.status = fmt.Sprintf("Unknown command /%s", name)
			return m, nil
		}
	}

	if line == "" {
		m.status = session.ErrEmptyQuestion.Error()
		return m, nil
	}
	if m.busy {
		m.status = "Still answering the previous question."
		return m, nil
	}
	m.busy = true
	m.status = "Thinking..."
	return m, askCmd(m.ctx, m.session, line)
}

func askCmd(ctx context.Context, s ChatPort, question string) tea.Cmd {
	return func() tea.Msg {
		turn, err := s.Ask(ctx, question)
		return answerMsg{turn: turn, err: err}
	}
}

func exportCmd(ctx context.Context, s ChatPort, path string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Create(path)
		if err != nil {
			return exportMsg{path: path, err: err}
		}
		if err := s.Export(ctx, f); err != nil {
			f.Close()
			return exportMsg{path: path, err: err}
		}
		return exportMsg{path: path, err: f.Close()}
	}
}

// parseCommand splits "/name arg" input. ok is false for plain questions.
func parseCommand(line string) (name, arg string, ok bool) {
	if !strings.HasPrefix(line, "/") {
		return "", "", false
	}
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return "", "", false
	}
	name = strings.ToLower(fields[0])
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}
	return name, arg, true
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderConversation(m.turns))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Q&A Assistant")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	conversation := conversationBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + summary + "\n" + conversation + "\n" + input + "\n" + status
}

func renderConversation(turns []models.Turn) string {
	if len(turns) == 0 {
		return "No conversation yet. Ask a question!"
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(userStyle.Render("You: ") + t.Question + "\n")
		b.WriteString(assistantStyle.Render("Assistant: ") + t.Answer)
		for j, src := range t.Export().Sources {
			page := "N/A"
			if src.Page != nil {
				page = fmt.Sprint(*src.Page)
			}
			b.WriteString("\n" + sourceStyle.Render(fmt.Sprintf("  Source %d: %s, page %s", j+1, src.Source, page)))
		}
	}
	return b.String()
}

var (
	conversationBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

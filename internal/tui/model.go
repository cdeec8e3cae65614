package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfchat/internal/chat"
	"pdfchat/internal/domain"
	"pdfchat/internal/service"
)

// Conversation is the TUI-facing subset of a chat session.
type Conversation interface {
	Submit(ctx context.Context, text string) (*chat.Answer, error)
	Transcript() []domain.Message
}

// IndexControl is the TUI-facing subset of the index manager.
type IndexControl interface {
	Index(ctx context.Context) (*service.Outcome, error)
	Rebuild(ctx context.Context) (*service.Outcome, error)
	Status() service.Status
	DataDir() string
	IndexDir() string
}

// Diagnostics are static facts shown in the sidebar.
type Diagnostics struct {
	CredentialEnv string
	CredentialSet bool
}

type indexMsg struct {
	out     *service.Outcome
	err     error
	rebuilt bool
}

type answerMsg struct {
	answer *chat.Answer
	err    error
}

const (
	sidebarWidth = 40
	defaultInfo  = "Custom data loaded from local folder."
)

// Model is the Bubble Tea model for the chat UI.
type Model struct {
	ctx      context.Context
	session  Conversation
	indexes  IndexControl
	diag     Diagnostics
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	busy    bool
	label   string
	pending string
	status  string
	summary string
	// sources of assistant replies by transcript position
	sources map[int][]string

	width int
	ready bool
}

// New creates a new TUI model instance.
func New(ctx context.Context, session Conversation, indexes IndexControl, diag Diagnostics) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Your question"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return Model{
		ctx:      ctx,
		session:  session,
		indexes:  indexes,
		diag:     diag,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		busy:     true,
		label:    "Loading index...",
		sources:  make(map[int][]string),
	}
}

// Init starts loading the index.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.loadIndex())
}

func (m Model) loadIndex() tea.Cmd {
	return func() tea.Msg {
		out, err := m.indexes.Index(m.ctx)
		return indexMsg{out: out, err: err}
	}
}

func (m Model) rebuildIndex() tea.Cmd {
	return func() tea.Msg {
		out, err := m.indexes.Rebuild(m.ctx)
		return indexMsg{out: out, err: err, rebuilt: true}
	}
}

func (m Model) submit(text string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.session.Submit(m.ctx, text)
		return answerMsg{answer: answer, err: err}
	}
}

// Update handles key, window and completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, ih := inputBoxStyle.GetFrameSize()
		_, th := transcriptBoxStyle.GetFrameSize()
		reserved := 2 + 1 + 1 + ih + th // header, info, status, input line
		m.viewport.Width = max(20, msg.Width-sidebarWidth-transcriptBoxStyle.GetHorizontalFrameSize())
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil

	case indexMsg:
		m.busy = false
		m.status = describeOutcome(msg)
		if msg.out != nil {
			m.summary = msg.out.Index.Summary()
		} else {
			m.summary = ""
		}
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		m.pending = ""
		switch {
		case msg.err != nil && errors.Is(msg.err, domain.ErrIndexUnavailable):
			m.status = "Failed to load or create the index. Check your data and press ctrl+r to try again."
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		case msg.answer != nil:
			m.sources[len(m.session.Transcript())-1] = msg.answer.Sources
			m.status = ""
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			m.busy, m.label, m.pending = true, "Thinking...", q
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.submit(q))
		case "ctrl+r":
			if m.busy {
				return m, nil
			}
			m.busy, m.label = true, "Clearing index and reloading data..."
			return m, tea.Batch(m.spinner.Tick, m.rebuildIndex())
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the header, transcript, sidebar, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Chat with Local Data")
	info := defaultInfo
	if m.summary != "" {
		info = m.summary
	}
	info = infoStyle.Width(max(20, m.width)).Render(info)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		transcriptBoxStyle.Render(m.viewport.View()),
		m.renderSidebar(),
	)
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + m.label
	}
	return header + "\n" + info + "\n" + body + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	width := max(10, m.viewport.Width)
	msgs := m.session.Transcript()
	var b strings.Builder
	for i, msg := range msgs {
		b.WriteString(renderMessage(msg, width))
		if src := m.sources[i]; len(src) > 0 {
			b.WriteString("\n" + sourceStyle.Width(width).Render("sources: "+strings.Join(src, ", ")))
		}
		b.WriteString("\n\n")
	}
	if m.pending != "" && (len(msgs) == 0 || msgs[len(msgs)-1].Content != m.pending) {
		b.WriteString(renderMessage(domain.Message{Role: domain.RoleUser, Content: m.pending}, width))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMessage(msg domain.Message, width int) string {
	label := assistantStyle.Render("assistant")
	if msg.Role == domain.RoleUser {
		label = userStyle.Render("you")
	}
	return label + "\n" + lipgloss.NewStyle().Width(width).Render(msg.Content)
}

func (m Model) renderSidebar() string {
	st := m.indexes.Status()
	lines := []string{
		titleStyle.Render("Debug Information"),
		"",
		fmt.Sprintf("%s set: %s", m.diag.CredentialEnv, yesNo(m.diag.CredentialSet)),
		fmt.Sprintf("Index directory exists: %t", dirExists(m.indexes.IndexDir())),
		fmt.Sprintf("Data directory exists: %t", dirExists(m.indexes.DataDir())),
		fmt.Sprintf("Index state: %s", st.State),
	}
	if st.Outcome != nil {
		ix := st.Outcome.Index
		lines = append(lines,
			fmt.Sprintf("Documents: %d", len(ix.Documents())),
			fmt.Sprintf("Chunks: %d", ix.NumChunks()),
			fmt.Sprintf("Embedder: %s", ix.EmbedderName()),
		)
	}
	lines = append(lines, "", keyStyle.Render("ctrl+r")+" reload data (clear index)", keyStyle.Render("ctrl+c")+" quit")
	return sidebarStyle.Width(sidebarWidth - sidebarStyle.GetHorizontalFrameSize()).Render(strings.Join(lines, "\n"))
}

func describeOutcome(msg indexMsg) string {
	if msg.err != nil {
		return "Failed to load or create the index: " + msg.err.Error()
	}
	out := msg.out
	if out == nil {
		return ""
	}
	var s string
	switch out.Origin {
	case service.OriginLoaded:
		s = "Loaded existing index successfully!"
	default:
		s = fmt.Sprintf("Created and saved new index from %d documents.", len(out.Report.Units))
		if n := len(out.Report.Failures); n > 0 {
			s += fmt.Sprintf(" %d file(s) could not be loaded.", n)
		}
		if out.PersistErr != nil {
			s = fmt.Sprintf("Created new index from %d documents. Error saving index: %v", len(out.Report.Units), out.PersistErr)
		}
	}
	switch {
	case out.ClearErr != nil:
		s = fmt.Sprintf("Error clearing index: %v. %s", out.ClearErr, s)
	case msg.rebuilt:
		s = "Index cleared. " + s
	}
	return s
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

var (
	titleStyle         = lipgloss.NewStyle().Bold(true)
	infoStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	sourceStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	keyStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sidebarStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

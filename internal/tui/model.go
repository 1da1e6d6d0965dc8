package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"assistant/internal/booking"
	"assistant/internal/service"
)

// AssistantPort is the TUI-facing subset of the assistant service.
type AssistantPort interface {
	SubmitMessage(ctx context.Context, sessionID, text string) (string, error)
	SubmitDocument(ctx context.Context, sessionID, filename string, data []byte) (service.UploadResult, error)
	ListBookings(ctx context.Context) ([]booking.CompletedBooking, error)
}

const requestTimeout = 2 * time.Minute

type speaker int

const (
	speakerUser speaker = iota
	speakerAssistant
	speakerSystem
)

type line struct {
	who  speaker
	text string
}

type replyMsg struct {
	text string
	err  error
}

type uploadMsg struct {
	name string
	res  service.UploadResult
	err  error
}

type bookingsMsg struct {
	list []booking.CompletedBooking
	err  error
}

// Model is the Bubble Tea model for the terminal chat.
type Model struct {
	assistant  AssistantPort
	sessionID  string
	input      textinput.Model
	viewport   viewport.Model
	transcript []line
	status     string
	busy       bool
	ready      bool
}

// New creates a new TUI model instance bound to one session.
func New(assistant AssistantPort, sessionID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, say \"book\", or /upload <file>"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		assistant: assistant,
		sessionID: sessionID,
		input:     ti,
		viewport:  vp,
		status:    "Commands: /upload <path>  /bookings  /quit",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around transcript and input boxes
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input, spacer
		vh := msg.Height - reserved - th
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, vh)
		m.refresh()
		return m, nil

	case replyMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = ""
			m.add(speakerAssistant, msg.text)
		}
		return m, nil

	case uploadMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Upload failed: " + msg.err.Error()
			m.add(speakerSystem, fmt.Sprintf("Could not index %s: %v", msg.name, msg.err))
			return m, nil
		}
		note := fmt.Sprintf("Indexed %s (%d chunks).", msg.name, msg.res.ChunkCount)
		if msg.res.PrefilledFields > 0 {
			note += fmt.Sprintf(" Found %d booking details.", msg.res.PrefilledFields)
		}
		m.status = ""
		m.add(speakerSystem, note)
		return m, nil

	case bookingsMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.status = ""
		m.add(speakerSystem, renderBookings(msg.list))
		return m, nil

	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			return m.submit(text)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	switch {
	case text == "/quit":
		return m, tea.Quit
	case text == "/bookings":
		m.busy = true
		m.status = "Loading bookings..."
		return m, m.listBookings()
	case strings.HasPrefix(text, "/upload"):
		path := strings.TrimSpace(strings.TrimPrefix(text, "/upload"))
		if path == "" {
			m.status = "Usage: /upload <path to .pdf or .txt>"
			return m, nil
		}
		m.busy = true
		m.status = "Indexing " + filepath.Base(path) + "..."
		return m, m.upload(path)
	}
	m.add(speakerUser, text)
	m.busy = true
	m.status = "Thinking..."
	return m, m.send(text)
}

func (m Model) send(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		reply, err := m.assistant.SubmitMessage(ctx, m.sessionID, text)
		return replyMsg{text: reply, err: err}
	}
}

func (m Model) upload(path string) tea.Cmd {
	return func() tea.Msg {
		name := filepath.Base(path)
		data, err := os.ReadFile(path)
		if err != nil {
			return uploadMsg{name: name, err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		res, err := m.assistant.SubmitDocument(ctx, m.sessionID, name, data)
		return uploadMsg{name: name, res: res, err: err}
	}
}

func (m Model) listBookings() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		list, err := m.assistant.ListBookings(ctx)
		return bookingsMsg{list: list, err: err}
	}
}

func (m *Model) add(who speaker, text string) {
	m.transcript = append(m.transcript, line{who: who, text: text})
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the TUI layout and the conversation.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Booking Assistant")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return hintStyle.Render("Upload a document with /upload, ask about it, or ask to make a booking.")
	}
	width := m.viewport.Width
	var sb strings.Builder
	for i, l := range m.transcript {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		var label string
		switch l.who {
		case speakerUser:
			label = userStyle.Render("You")
		case speakerAssistant:
			label = assistantStyle.Render("Assistant")
		default:
			label = hintStyle.Render("System")
		}
		body := l.text
		if width > 0 {
			body = lipgloss.NewStyle().Width(width).Render(body)
		}
		sb.WriteString(label + "\n" + body)
	}
	return sb.String()
}

func renderBookings(list []booking.CompletedBooking) string {
	if len(list) == 0 {
		return "No bookings yet."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d booking(s), newest first:", len(list))
	for _, b := range list {
		fmt.Fprintf(&sb, "\n#%d  %s %s  %s  %s <%s> %s  [%s]",
			b.ID, b.Date, b.Time, b.BookingType, b.Name, b.Email, b.Phone, b.Status)
	}
	return sb.String()
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	hintStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

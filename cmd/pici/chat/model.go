package chatcmder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/picitalk/pkg/imaging"
	"github.com/papercomputeco/picitalk/pkg/session"
	"github.com/papercomputeco/picitalk/pkg/vqa"
)

const emptyHint = "Your conversation will appear here. Ask a question about the image to get started!"

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1E88E5"))
	userStyle      = lipgloss.NewStyle().Background(lipgloss.Color("#E3F2FD")).Foreground(lipgloss.Color("#0D47A1")).Padding(0, 1)
	assistantStyle = lipgloss.NewStyle().Background(lipgloss.Color("#BBDEFB")).Foreground(lipgloss.Color("#0D47A1")).Padding(0, 1)
	hintStyle      = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#B71C1C"))
)

type answerMsg struct {
	reply *vqa.Reply
	err   error
}

type imageMsg struct {
	path string
	img  *imaging.Image
	err  error
}

// chatModel is the bubbletea model of the terminal chat.
type chatModel struct {
	ctx  context.Context
	svc  *vqa.Service
	sess *session.Session

	imagePath string
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model

	busy   bool
	status string
	width  int
	height int
}

func newChatModel(ctx context.Context, svc *vqa.Service, sess *session.Session, imagePath string) *chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about the image, or /image PATH, /reset, /quit"
	ti.CharLimit = 500
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &chatModel{
		ctx:       ctx,
		svc:       svc,
		sess:      sess,
		imagePath: imagePath,
		input:     ti,
		viewport:  viewport.New(80, 20),
		spinner:   sp,
		width:     80,
		height:    24,
	}
	m.refresh()
	return m
}

func (m *chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-5, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			return m.submit(line)
		}

	case answerMsg:
		m.busy = false
		m.status = ""
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		m.refresh()
		return m, nil

	case imageMsg:
		m.busy = false
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.imagePath = msg.path
			m.status = fmt.Sprintf("Loaded %s (%dx%d)", msg.path, msg.img.Width(), msg.img.Height())
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit handles one line of input: a slash command or a question.
func (m *chatModel) submit(line string) (tea.Model, tea.Cmd) {
	m.status = ""
	switch {
	case line == "/quit":
		return m, tea.Quit

	case line == "/reset":
		m.svc.Reset(m.sess)
		m.refresh()
		return m, nil

	case strings.HasPrefix(line, "/image"):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/image"))
		if path == "" {
			m.status = "usage: /image PATH"
			return m, nil
		}
		m.busy = true
		return m, tea.Batch(m.spinner.Tick, m.loadImage(path))

	case strings.HasPrefix(line, "/"):
		m.status = fmt.Sprintf("unknown command %q", line)
		return m, nil
	}

	m.busy = true
	m.status = "Thinking..."
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, m.ask(line))
}

func (m *chatModel) ask(question string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.svc.Ask(m.ctx, m.sess, question, false)
		return answerMsg{reply: reply, err: err}
	}
}

func (m *chatModel) loadImage(path string) tea.Cmd {
	return func() tea.Msg {
		img, err := setImage(m.ctx, m.svc, m.sess, path)
		return imageMsg{path: path, img: img, err: err}
	}
}

func setImage(ctx context.Context, svc *vqa.Service, sess *session.Session, path string) (*imaging.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return svc.SetImage(ctx, sess, f, session.SourceUpload)
}

// refresh re-renders the transcript into the viewport.
func (m *chatModel) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m *chatModel) transcript() string {
	turns := m.sess.Turns()
	if len(turns) == 0 {
		return hintStyle.Render(emptyHint)
	}

	width := max(m.width-2, 20)
	var b strings.Builder
	for _, t := range turns {
		if t.Role == session.RoleUser {
			b.WriteString(userStyle.Width(width).Render("You: " + t.Text))
		} else {
			b.WriteString(assistantStyle.Width(width).Render("Assistant: " + t.Text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *chatModel) View() string {
	var b strings.Builder
	path := ansi.Truncate(m.imagePath, max(m.width-12, 10), "…")
	b.WriteString(titleStyle.Render("Pici-Talk") + "  " + hintStyle.Render(path) + "\n")
	b.WriteString(m.viewport.View() + "\n")

	switch {
	case m.busy:
		b.WriteString(m.spinner.View() + " " + m.status + "\n")
	case m.status != "":
		b.WriteString(errorStyle.Render(m.status) + "\n")
	default:
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	return b.String()
}

// Package tui is the interactive chat front end of the copilot.
package tui

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"copilot/internal/timeline"
	"copilot/internal/turn"
)

const VoiceUnsupportedText = "Voice not supported on this machine"

// SuggestedQuestions are cycled into the input with tab.
var SuggestedQuestions = []string{
	"What's the current inventory status across all stores?",
	"Which drivers have the highest risk scores today?",
	"Show me the sentiment analysis for this week",
	"What are the top performing stores?",
	"Any weather alerts affecting deliveries?",
}

var (
	clipboardDefault = clipboard.WriteAll
	copyToClipboard  = clipboardDefault
)

// Chat is the part of the turn controller the TUI drives.
type Chat interface {
	Submit(ctx context.Context, utterance string) (timeline.Message, error)
	Messages() []timeline.Message
}

// Capturer is the part of the capture session the TUI drives.
type Capturer interface {
	Available() bool
	Capturing() bool
	Start(ctx context.Context) error
	Stop()
	Cancel()
}

// Messages delivered from other goroutines with Program.Send.
type (
	TimelineMsg     struct{ Message timeline.Message }
	CaptureStateMsg struct{ Capturing bool }
	CaptureErrMsg   struct{ Err error }

	turnDoneMsg struct {
		text  string
		final timeline.Message
		err   error
	}
)

type Model struct {
	chat    Chat
	capture Capturer

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	md       *markdown

	messages   []timeline.Message
	busy       bool
	listening  bool
	voiceOff   bool
	suggestion int
	ready      bool
	err        error
	notice     string

	width  int
	height int
}

// NewModel builds the chat model. capture may be nil when no microphone is
// configured; the UI then shows a static notice instead of a listen key.
func NewModel(chat Chat, capture Capturer) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about drivers, inventory, weather..."
	ti.CharLimit = 500
	ti.Prompt = "› "
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = hintStyle

	return Model{
		chat:     chat,
		capture:  capture,
		input:    ti,
		spinner:  s,
		md:       newMarkdown("dark"),
		messages: chat.Messages(),
		voiceOff: capture == nil || !capture.Available(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "esc":
			if m.listening {
				m.capture.Cancel()
				m.listening = false
				return m, nil
			}
			return m, tea.Quit

		case "ctrl+r":
			return m, m.toggleListen()

		case "ctrl+y":
			m.copyLastReply()
			return m, nil

		case "tab":
			m.input.SetValue(SuggestedQuestions[m.suggestion])
			m.input.CursorEnd()
			m.suggestion = (m.suggestion + 1) % len(SuggestedQuestions)
			return m, nil

		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if text == "/quit" || text == "/exit" {
				return m, tea.Quit
			}
			m.input.Reset()
			m.err = nil
			m.notice = ""
			m.busy = true
			return m, tea.Batch(m.submit(text), m.spinner.Tick)
		}

	case TimelineMsg:
		m.messages = m.chat.Messages()
		m.busy = awaiting(m.messages)
		m.refresh()

	case turnDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, turn.ErrEmptyInput) {
			m.err = msg.err
		}
		// A rejected question goes back into the input unless the user has
		// started typing another one.
		if errors.Is(msg.err, turn.ErrTurnInProgress) && m.input.Value() == "" {
			m.input.SetValue(msg.text)
			m.input.CursorEnd()
		}
		m.messages = m.chat.Messages()
		m.busy = awaiting(m.messages)
		m.refresh()

	case CaptureStateMsg:
		m.listening = msg.Capturing
		if m.listening {
			cmds = append(cmds, m.spinner.Tick)
		}

	case CaptureErrMsg:
		m.err = msg.Err

	case spinner.TickMsg:
		if m.busy || m.listening {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
			m.refresh()
		}
	}

	if _, ok := msg.(tea.KeyMsg); ok {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// awaiting reports whether the timeline ends in a pending placeholder.
func awaiting(msgs []timeline.Message) bool {
	return len(msgs) > 0 && msgs[len(msgs)-1].Pending
}

func (m Model) submit(text string) tea.Cmd {
	return func() tea.Msg {
		final, err := m.chat.Submit(context.Background(), text)
		return turnDoneMsg{text: text, final: final, err: err}
	}
}

func (m *Model) toggleListen() tea.Cmd {
	if m.voiceOff {
		return nil
	}
	if m.capture.Capturing() {
		m.capture.Stop()
		return nil
	}
	if err := m.capture.Start(context.Background()); err != nil {
		log.Warn("capture start failed", "err", err)
		m.err = err
		return nil
	}
	m.listening = true
	m.err = nil
	return m.spinner.Tick
}

func (m *Model) copyLastReply() {
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := m.messages[i]
		if msg.Role != timeline.RoleBot || msg.Pending {
			continue
		}
		if err := copyToClipboard(msg.Content); err != nil {
			m.err = fmt.Errorf("copy: %w", err)
			return
		}
		m.err = nil
		m.notice = "✓ Copied to clipboard"
		return
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	headerHeight := 3
	inputHeight := 3
	statusHeight := 2

	vpHeight := height - headerHeight - inputHeight - statusHeight
	if vpHeight < 3 {
		vpHeight = 3
	}
	contentWidth := width - 2

	if !m.ready {
		m.viewport = viewport.New(contentWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = vpHeight
	}
	m.input.Width = contentWidth - 6
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m Model) renderMessages() string {
	width := m.viewport.Width - 4
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}

		label := botLabelStyle.Render("Assistant")
		if msg.Role == timeline.RoleUser {
			label = userLabelStyle.Render("You")
		}
		b.WriteString(label)
		b.WriteString(" ")
		b.WriteString(timeStyle.Render(msg.CreatedAt.Format("15:04")))
		b.WriteString("\n")

		if msg.Pending {
			b.WriteString(pendingStyle.Render(m.spinner.View() + " thinking"))
			continue
		}
		if msg.Role == timeline.RoleBot {
			b.WriteString(bubbleStyle.Render(m.md.render(msg.Content, width)))
			continue
		}
		b.WriteString(bubbleStyle.Width(width).Render(msg.Content))
	}
	return b.String()
}

func (m Model) View() string {
	if !m.ready {
		return hintStyle.Render("  Initializing...")
	}

	contentWidth := m.width - 2
	header := headerStyle.Width(contentWidth - 2).Render(
		lipgloss.JoinHorizontal(lipgloss.Center,
			titleStyle.Render("AI Copilot"),
			hintStyle.Render("  •  franchise operations assistant"),
		),
	)

	messages := messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(m.viewport.View())

	var input string
	if m.listening {
		input = listeningStyle.Render(m.spinner.View() + " Listening... (ctrl+r to stop, esc to cancel)")
	} else {
		input = m.input.View()
	}
	inputPanel := inputPanelStyle.Width(contentWidth - 2).Render(input)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		messages,
		inputPanel,
		m.renderStatusBar(),
	)
}

func (m Model) renderStatusBar() string {
	var parts []string
	switch {
	case m.err != nil:
		parts = append(parts, errorStyle.Render("✗ "+m.err.Error()))
	case m.busy:
		parts = append(parts, hintStyle.Render(m.spinner.View()+" waiting for answer"))
	case m.notice != "":
		parts = append(parts, noticeStyle.Render(m.notice))
	}
	if m.voiceOff {
		parts = append(parts, noticeStyle.Render(VoiceUnsupportedText))
	} else {
		parts = append(parts, "ctrl+r voice")
	}
	parts = append(parts, "tab suggestions", "ctrl+y copy", "enter send", "esc quit")
	return statusBarStyle.Render(strings.Join(parts, "  •  "))
}

// Bridge forwards controller and capture callbacks into a running program.
// Callbacks may fire on the program's own goroutine (capture start), so
// messages are queued and handed to Program.Send in order by a separate
// goroutine. Callbacks before Attach are dropped; the model reads the full
// timeline on construction.
type Bridge struct {
	mu    sync.Mutex
	queue chan tea.Msg
}

const bridgeBacklog = 64

func (b *Bridge) Attach(p *tea.Program) {
	queue := make(chan tea.Msg, bridgeBacklog)
	go func() {
		for msg := range queue {
			p.Send(msg)
		}
	}()

	b.mu.Lock()
	b.queue = queue
	b.mu.Unlock()
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.queue == nil {
		return
	}
	select {
	case b.queue <- msg:
	default:
		log.Warn("TUI update backlog full, dropping", "msg", fmt.Sprintf("%T", msg))
	}
}

func (b *Bridge) OnUpdate(m timeline.Message) { b.send(TimelineMsg{Message: m}) }

func (b *Bridge) OnCapture(capturing bool) { b.send(CaptureStateMsg{Capturing: capturing}) }

func (b *Bridge) OnCaptureError(err error) {
	b.send(CaptureErrMsg{Err: fmt.Errorf("voice: %w", err)})
}

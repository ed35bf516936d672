// Package chat provides the interactive TUI for a vchat conversation.
// The functionality is split across files:
//   - model.go: Types, Init, Update loop (this file)
//   - view.go: Rendering functions
//   - picker.go: Room selection list
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"venturechat/cmd/vchat/ui"
	"venturechat/internal/auth"
	"venturechat/internal/chat"
	"venturechat/internal/forum"
)

// Messages delivered into the Update loop.
type (
	openedMsg     struct{ err error }
	ctrlUpdateMsg chat.Update
	sendResultMsg struct{ err error }
)

// Model is the main model for one open conversation.
type Model struct {
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   ui.Styles
	renderer *glamour.TermRenderer

	ctrl    *chat.Controller
	self    auth.Identity
	hasSelf bool

	messages []forum.Message

	ready     bool
	isLoading bool
	sending   bool
	width     int
	height    int
	err       error
}

// New builds the conversation model. The controller must still be closed;
// Init opens it.
func New(ctrl *chat.Controller, styles ui.Styles, self auth.Identity, hasSelf bool) Model {
	ta := textarea.New()
	ta.Placeholder = "Write a message..."
	ta.Focus()
	ta.Prompt = "│ "
	ta.CharLimit = 4000
	ta.SetHeight(2)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Model{
		textarea:  ta,
		spinner:   sp,
		styles:    styles,
		ctrl:      ctrl,
		self:      self,
		hasSelf:   hasSelf,
		isLoading: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.openConversation(),
		m.waitForUpdate(),
	)
}

// openConversation loads history and brings up the live channel off the
// Update loop.
func (m Model) openConversation() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return openedMsg{err: ctrl.Open(context.Background())}
	}
}

// waitForUpdate blocks on the controller's update stream and feeds the next
// update into the loop. Re-issued after every update.
func (m Model) waitForUpdate() tea.Cmd {
	updates := m.ctrl.Updates()
	return func() tea.Msg {
		return ctrlUpdateMsg(<-updates)
	}
}

func (m Model) sendMessage(text string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return sendResultMsg{err: ctrl.Send(ctx, text)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.ctrl.Close()
			return m, tea.Quit

		case tea.KeyEnter:
			text := strings.TrimSpace(m.textarea.Value())
			if text == "" || m.sending || m.isLoading {
				return m, nil
			}
			m.sending = true
			m.err = nil
			m.textarea.Reset()
			return m, tea.Batch(m.spinner.Tick, m.sendMessage(text))
		}

		if !m.sending {
			m.textarea, tiCmd = m.textarea.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 3
		footerHeight := 2
		inputHeight := 4

		chatWidth := msg.Width - 4
		if chatWidth < 1 {
			chatWidth = 1
		}
		calcHeight := msg.Height - headerHeight - footerHeight - inputHeight
		if calcHeight < 1 {
			calcHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(chatWidth, calcHeight)
			m.ready = true
		} else {
			m.viewport.Width = chatWidth
			m.viewport.Height = calcHeight
		}
		m.textarea.SetWidth(chatWidth - 4)

		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(chatWidth-4),
		)
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case openedMsg:
		if msg.err != nil {
			m.isLoading = false
			m.err = msg.err
		}

	case ctrlUpdateMsg:
		switch msg.Kind {
		case chat.UpdateReady:
			m.isLoading = false
			m.messages = m.ctrl.Messages()
			if m.ready {
				m.viewport.SetContent(m.renderHistory())
				m.viewport.GotoBottom()
			}
		case chat.UpdateAppended:
			m.messages = append(m.messages, msg.Message)
			if m.ready {
				m.viewport.SetContent(m.renderHistory())
				m.viewport.GotoBottom()
			}
		case chat.UpdateHistoryFailed:
			m.err = msg.Err
		case chat.UpdateSendFailed:
			m.sending = false
			m.err = msg.Err
		}
		return m, m.waitForUpdate()

	case sendResultMsg:
		m.sending = false
		if msg.err != nil {
			m.err = msg.err
		}

	case spinner.TickMsg:
		if m.isLoading || m.sending {
			var spCmd tea.Cmd
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// Run opens the conversation full-screen and blocks until the user leaves.
func Run(ctrl *chat.Controller, styles ui.Styles, self auth.Identity, hasSelf bool) error {
	p := tea.NewProgram(New(ctrl, styles, self, hasSelf), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

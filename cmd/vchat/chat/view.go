package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"venturechat/internal/auth"
	"venturechat/internal/forum"
)

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()

	content := m.viewport.View()
	if m.err != nil {
		content = lipgloss.JoinVertical(lipgloss.Left, content, m.renderErrorLine())
	}
	chatView := m.styles.Content.Render(content)

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Theme.Accent).
		Padding(0, 1)
	inputArea := inputStyle.Render(m.textarea.View())

	footer := m.renderFooter()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		chatView,
		inputArea,
		footer,
	)
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" " + m.ctrl.Room().Name + " ")

	var status string
	switch {
	case m.isLoading:
		status = lipgloss.JoinHorizontal(lipgloss.Center, m.spinner.View(), " ", m.styles.Muted.Render("Loading history..."))
	case m.sending:
		status = lipgloss.JoinHorizontal(lipgloss.Center, m.spinner.View(), " ", m.styles.Muted.Render("Sending..."))
	default:
		status = m.styles.Success.Render("Live")
	}

	headerLine := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", status)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		headerLine,
		m.styles.RenderDivider(m.width),
	)
}

func (m Model) renderFooter() string {
	timestamp := time.Now().Format("15:04")
	help := m.styles.Muted.Render(fmt.Sprintf("%s | Enter: send | Esc: leave", timestamp))
	return lipgloss.NewStyle().MarginTop(1).Render(help)
}

func (m Model) renderErrorLine() string {
	return m.styles.Error.Render("✗ " + m.err.Error())
}

func (m Model) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.messages {
		sb.WriteString(m.renderAuthor(msg) + "\n")
		sb.WriteString(m.styles.MessageBody.Render(m.safeRenderMarkdown(msg.Content)))
		sb.WriteString("\n\n")
	}

	return sb.String()
}

func (m Model) renderAuthor(msg forum.Message) string {
	label := authorLabel(msg.Author)
	if m.hasSelf && msg.Author == m.self {
		return m.styles.OwnMessage.Render("You")
	}
	switch msg.Author.Namespace {
	case auth.NamespaceStartup:
		return m.styles.StartupAuthor.Render(label)
	default:
		return m.styles.InvestorAuthor.Render(label)
	}
}

func authorLabel(id auth.Identity) string {
	if id.Namespace == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s #%d", id.Namespace, id.NamespaceID)
}

// safeRenderMarkdown renders markdown with panic recovery; glamour output
// falls back to plain text on any failure.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return strings.TrimRight(rendered, "\n")
		}
	}
	return content
}

package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorAccent  = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorText    = lipgloss.Color("#E5E7EB")
	colorTextDim = lipgloss.Color("#9CA3AF")
	colorBorder  = lipgloss.Color("#374151")
)

var (
	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	messagesAreaStyle = lipgloss.NewStyle().
				Padding(0, 1)

	userLabelStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	botLabelStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	bubbleStyle = lipgloss.NewStyle().
			Foreground(colorText).
			PaddingLeft(2)

	pendingStyle = lipgloss.NewStyle().
			Foreground(colorTextDim).
			Italic(true).
			PaddingLeft(2)

	timeStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	inputPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)

	listeningStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)
)

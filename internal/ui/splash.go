package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SplashModel shows the app name until a key is pressed or the timeout fires
type SplashModel struct {
	width   int
	height  int
	version string
	timeout time.Duration
	done    bool
}

type splashTimeoutMsg struct{}

// NewSplash creates the splash screen for the given build version
func NewSplash(version string, timeout time.Duration) SplashModel {
	return SplashModel{
		width:   DefaultWidth,
		height:  DefaultHeight,
		version: version,
		timeout: timeout,
	}
}

func (m SplashModel) Init() tea.Cmd {
	return tea.Tick(m.timeout, func(time.Time) tea.Msg {
		return splashTimeoutMsg{}
	})
}

func (m SplashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg, splashTimeoutMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m SplashModel) View() string {
	if m.done {
		return ""
	}

	layout := NewLayout(m.width, m.height)

	text := lipgloss.JoinVertical(lipgloss.Center,
		TitleStyle.Render("arXived"),
		NormalStyle.Render("papers from arXiv, by topic and date range"),
		"",
		DimStyle.Render(m.version),
	)

	// Leave room for the border
	box := lipgloss.Place(layout.InnerWidth, layout.ViewportHeight-4,
		lipgloss.Center, lipgloss.Center, text)

	return BorderStyle.Width(layout.InnerWidth).Render(box)
}

// ShowSplash displays the splash screen until a key press or timeout
func ShowSplash(version string, timeout time.Duration) error {
	p := tea.NewProgram(NewSplash(version, timeout), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

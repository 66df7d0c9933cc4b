package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// statusDuration is how long action feedback stays on screen
const statusDuration = 5 * time.Second

// PageState is the screen state shared by every arxived view: the terminal
// layout, the transient status line and the quit flag.
type PageState struct {
	Layout       Layout
	StatusMsg    string
	StatusExpiry time.Time
	Quitting     bool
}

// NewPageState starts at the default layout until the first WindowSizeMsg
func NewPageState() PageState {
	return PageState{Layout: DefaultLayout()}
}

// Notify shows msg on the status line for statusDuration
func (p *PageState) Notify(msg string) {
	p.StatusMsg = msg
	p.StatusExpiry = time.Now().Add(statusDuration)
}

// NotifyError reports a failed action on the status line
func (p *PageState) NotifyError(action string, err error) {
	p.Notify(fmt.Sprintf("%s failed: %v", action, err))
}

// ClearExpiredStatus drops the status line once it has been up long enough
func (p *PageState) ClearExpiredStatus(now time.Time) {
	if p.StatusMsg != "" && now.After(p.StatusExpiry) {
		p.StatusMsg = ""
		p.StatusExpiry = time.Time{}
	}
}

// Resize recomputes the layout and reports whether it changed
func (p *PageState) Resize(msg tea.WindowSizeMsg) bool {
	layout := NewLayout(msg.Width, msg.Height)
	if layout == p.Layout {
		return false
	}
	p.Layout = layout
	return true
}

// Quit marks the page as closing so View renders nothing
func (p *PageState) Quit() tea.Cmd {
	p.Quitting = true
	return tea.Quit
}

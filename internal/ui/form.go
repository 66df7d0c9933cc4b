package ui

// form.go provides the query form: four text inputs with focus cycling and
// inline validation.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/thesavant42/arxived/internal/models"
)

// Form field indices, in tab order
const (
	fieldTopic = iota
	fieldLimit
	fieldStart
	fieldEnd
	fieldCount
)

var fieldLabels = [fieldCount]string{"Topic", "Limit", "Start", "End"}

// fieldNames maps models.ValidationError fields to inputs
var fieldNames = map[string]int{
	"topic": fieldTopic,
	"limit": fieldLimit,
	"start": fieldStart,
	"end":   fieldEnd,
}

// QueryForm collects a topic, a result limit and an optional date window
type QueryForm struct {
	inputs   [fieldCount]textinput.Model
	focus    int
	maxLimit int
	err      error
	errField int
}

// NewQueryForm creates an empty form with the topic field focused
func NewQueryForm(maxLimit int) QueryForm {
	if maxLimit <= 0 {
		maxLimit = models.MaxResultLimit
	}
	placeholders := [fieldCount]string{
		"Enter a topic or author of interest",
		fmt.Sprintf("Result Limit (MAX %d)", maxLimit),
		"1/01/2020 (Optional Start Date)",
		"5/01/2020 (Optional End Date)",
	}

	f := QueryForm{maxLimit: maxLimit, errField: -1}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 256
		ti.Prompt = "> "
		ti.TextStyle = NormalStyle
		ti.PromptStyle = NormalStyle
		ti.Width = DefaultLayout().InnerWidth - 16
		f.inputs[i] = ti
	}
	f.inputs[fieldLimit].CharLimit = 6
	f.inputs[fieldTopic].Focus()
	return f
}

// SetWidth resizes the inputs to the layout
func (f *QueryForm) SetWidth(innerWidth int) {
	for i := range f.inputs {
		f.inputs[i].Width = innerWidth - 16
	}
}

// SetValues fills the form, e.g. with the startup query
func (f *QueryForm) SetValues(topic, limit, start, end string) {
	f.inputs[fieldTopic].SetValue(topic)
	f.inputs[fieldLimit].SetValue(limit)
	f.inputs[fieldStart].SetValue(start)
	f.inputs[fieldEnd].SetValue(end)
}

// Reset clears every field and focuses the topic
func (f *QueryForm) Reset() tea.Cmd {
	for i := range f.inputs {
		f.inputs[i].SetValue("")
	}
	f.err = nil
	f.errField = -1
	return f.focusField(fieldTopic)
}

// Query validates the current values
func (f *QueryForm) Query() (models.Query, error) {
	q, err := models.ParseQuery(
		sanitizeInput(f.inputs[fieldTopic].Value()),
		sanitizeInput(f.inputs[fieldLimit].Value()),
		sanitizeInput(f.inputs[fieldStart].Value()),
		sanitizeInput(f.inputs[fieldEnd].Value()),
		f.maxLimit,
	)
	if err != nil {
		f.err = err
		f.errField = -1
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			if idx, ok := fieldNames[verr.Field]; ok {
				f.errField = idx
				f.focusField(idx)
			}
		}
		return models.Query{}, err
	}
	f.err = nil
	f.errField = -1
	return q, nil
}

// Err returns the last validation error
func (f QueryForm) Err() error {
	return f.err
}

// Focused returns the index of the focused field
func (f QueryForm) Focused() int {
	return f.focus
}

func (f *QueryForm) focusField(idx int) tea.Cmd {
	f.focus = (idx + fieldCount) % fieldCount
	for i := range f.inputs {
		if i == f.focus {
			f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
	return textinput.Blink
}

// Update handles focus movement and forwards typing to the focused input.
// Enter is left to the caller.
func (f QueryForm) Update(msg tea.Msg) (QueryForm, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			return f, f.focusField(f.focus + 1)
		case "shift+tab", "up":
			return f, f.focusField(f.focus - 1)
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

// View renders the labelled inputs and any validation error
func (f QueryForm) View() string {
	var b strings.Builder
	for i, in := range f.inputs {
		label := fmt.Sprintf(" %-6s", fieldLabels[i])
		if i == f.focus {
			b.WriteString(AccentStyle.Render(label))
		} else {
			b.WriteString(LabelStyle.Render(label))
		}
		b.WriteString(in.View())
		b.WriteString("\n")
		if i == f.errField && f.err != nil {
			b.WriteString("        ")
			b.WriteString(RenderError(f.err.Error()))
			b.WriteString("\n")
		}
	}
	if f.err != nil && f.errField < 0 {
		b.WriteString("\n")
		b.WriteString(RenderError(f.err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

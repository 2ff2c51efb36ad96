package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Prompt is a single-line decimal amount input with a label.
type Prompt struct {
	label   string
	input   textinput.Model
	width   int
	focused bool
}

// NewPrompt creates an amount prompt.
func NewPrompt(label string) Prompt {
	ti := textinput.New()
	ti.Placeholder = "0.0"
	ti.CharLimit = 40
	ti.Width = 30
	ti.Prompt = ""

	return Prompt{
		label: label,
		input: ti,
		width: 30,
	}
}

func (p *Prompt) Focus() tea.Cmd {
	p.focused = true
	return p.input.Focus()
}

func (p *Prompt) Blur() {
	p.focused = false
	p.input.Blur()
}

func (p *Prompt) Focused() bool {
	return p.focused
}

func (p *Prompt) SetLabel(label string) {
	p.label = label
}

func (p *Prompt) SetWidth(w int) {
	p.width = w
	p.input.Width = w - 4 // Account for prompt symbol and spacing
}

func (p *Prompt) Value() string {
	return p.input.Value()
}

// SetValue replaces the input without going through key filtering; used to
// show a computed counterpart amount.
func (p *Prompt) SetValue(s string) {
	p.input.SetValue(s)
}

func (p *Prompt) Reset() {
	p.input.Reset()
}

// Update handles input events. Only digits and a single decimal point are
// accepted. It reports whether the value changed.
func (p *Prompt) Update(msg tea.Msg) (tea.Cmd, bool) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyRunes {
		if !acceptRunes(p.input.Value(), key.Runes) {
			return nil, false
		}
	}
	before := p.input.Value()
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return cmd, p.input.Value() != before
}

func acceptRunes(current string, runes []rune) bool {
	dot := strings.Contains(current, ".")
	for _, r := range runes {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return true
}

func (p *Prompt) View() string {
	style := SelectorDim
	if p.focused {
		style = PromptStyle
	}
	return LabelStyle.Render(p.label) + style.Render(SymbolPrompt) + " " + p.input.View()
}

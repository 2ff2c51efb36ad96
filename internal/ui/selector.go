package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// SelectorItem is one choice. Current marks the initially selected one.
type SelectorItem struct {
	ID          string
	Label       string
	Description string
	Current     bool
}

// Selector picks one item from a short list. It renders either as a
// vertical list (Active until enter or esc) or inline as a tab row that
// cycles with left/right.
type Selector struct {
	title    string
	items    []SelectorItem
	cursor   int
	selected int
	active   bool
}

func NewSelector(title string, items []SelectorItem) Selector {
	selected := 0
	for i, item := range items {
		if item.Current {
			selected = i
			break
		}
	}
	return Selector{
		title:    title,
		items:    items,
		cursor:   selected,
		selected: selected,
		active:   true,
	}
}

// Active reports whether the list is still waiting for a choice.
func (s *Selector) Active() bool {
	return s.active
}

// Selected returns the chosen item ID, or empty if cancelled.
func (s *Selector) Selected() string {
	if s.selected >= 0 && s.selected < len(s.items) {
		return s.items[s.selected].ID
	}
	return ""
}

func (s *Selector) Cancelled() bool {
	return !s.active && s.selected == -1
}

// Cycle moves the selection by delta, wrapping, and returns the new ID.
func (s *Selector) Cycle(delta int) string {
	if len(s.items) == 0 {
		return ""
	}
	if s.selected < 0 {
		s.selected = 0
	}
	s.selected = (s.selected + delta + len(s.items)) % len(s.items)
	s.cursor = s.selected
	return s.items[s.selected].ID
}

// Update handles list navigation.
func (s *Selector) Update(msg tea.Msg) (*Selector, tea.Cmd) {
	if !s.active {
		return s, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.items)-1 {
				s.cursor++
			}
		case "enter":
			s.selected = s.cursor
			s.active = false
		case "esc", "q":
			s.selected = -1
			s.active = false
		}
	}
	return s, nil
}

// View renders the list form.
func (s *Selector) View() string {
	if !s.active {
		return ""
	}

	var b strings.Builder
	b.WriteString(HelpStyle.Render(s.title + " (↑/↓ navigate, enter select, esc cancel)"))
	b.WriteString("\n\n")

	for i, item := range s.items {
		label := item.Label
		if label == "" {
			label = item.ID
		}
		if i == s.cursor {
			b.WriteString(SelectorCursor.Render(SymbolArrow) + " " + SelectorActive.Render(label))
		} else {
			b.WriteString("  " + SelectorItemStyle.Render(label))
		}
		if item.Description != "" {
			b.WriteString("  " + SelectorDim.Render(item.Description))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Inline renders the tab-row form.
func (s *Selector) Inline() string {
	parts := make([]string, len(s.items))
	for i, item := range s.items {
		label := item.Label
		if label == "" {
			label = item.ID
		}
		if i == s.selected {
			parts[i] = SelectorActive.Render("[" + label + "]")
		} else {
			parts[i] = SelectorDim.Render(" " + label + " ")
		}
	}
	return LabelStyle.Render(s.title) + strings.Join(parts, " ")
}

package setup

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/yolodolo42/icosale/internal/ui"
)

var (
	// Box style for welcome/complete screens
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ui.ColorDim)

	DimStyle = lipgloss.NewStyle().
			Foreground(ui.ColorDim)

	// Label in front of a text field
	FieldStyle = lipgloss.NewStyle().
			Foreground(ui.ColorAccent).
			Bold(true).
			Width(14)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary)

	Checkmark = ui.SuccessStyle.Render(ui.SymbolCheck)
)

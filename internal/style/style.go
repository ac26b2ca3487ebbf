package style

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorPink     = lipgloss.Color("205")
	colorDarkGray = lipgloss.Color("240")
	colorCyan     = lipgloss.Color("212")
	colorGreen    = lipgloss.Color("42")
	colorRed      = lipgloss.Color("196")
)

var (
	DocStyle     = lipgloss.NewStyle().Margin(1, 2)
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPink)
	StatusStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	SuccessStyle = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	LabelStyle   = lipgloss.NewStyle().Foreground(colorDarkGray)
	HelpStyle    = lipgloss.NewStyle().Faint(true)
	BoxStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(colorDarkGray).Padding(0, 1)

	// File picker
	CursorStyle = lipgloss.NewStyle().Foreground(colorPink).SetString("> ")
	DirStyle    = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	HeaderStyle = lipgloss.NewStyle().Bold(true)
)

// NewSpinner creates a spinner with a consistent style.
func NewSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPink)
	return s
}

// NewProgressBar returns the bar used for file transfers.
func NewProgressBar() progress.Model {
	return progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
}

package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Core palette
	Green     = lipgloss.Color("#00FF41")
	MedGreen  = lipgloss.Color("#00C832")
	DarkGreen = lipgloss.Color("#008F11")
	DimGreen  = lipgloss.Color("#003B00")
	Cyan      = lipgloss.Color("#00D4AA")
	Amber     = lipgloss.Color("#FFB000")
	Black     = lipgloss.Color("#0D0208")
	MidGray   = lipgloss.Color("#3a3a4e")
	LightGray = lipgloss.Color("#aaaaaa")
	White     = lipgloss.Color("#e0e0e0")
	Red       = lipgloss.Color("#FF4136")

	// Header
	TitleStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	FilterOnStyle = lipgloss.NewStyle().
			Background(Amber).
			Foreground(Black).
			Bold(true).
			Padding(0, 1)

	FilterOffStyle = lipgloss.NewStyle().
			Background(DarkGreen).
			Foreground(Black).
			Padding(0, 1)

	// Contact rows
	RowStyle = lipgloss.NewStyle().
			Foreground(White).
			PaddingLeft(2)

	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(Green).
				Bold(true).
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(Green).
				PaddingLeft(1)

	StarStyle = lipgloss.NewStyle().
			Foreground(Amber).
			Bold(true)

	EmptyStyle = lipgloss.NewStyle().
			Foreground(MidGray).
			Italic(true).
			PaddingLeft(2)

	// Add dialog
	DialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Amber).
			Padding(0, 1)

	DialogTitleStyle = lipgloss.NewStyle().
				Foreground(Amber).
				Bold(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(Cyan)

	// Status line
	StatusStyle = lipgloss.NewStyle().
			Foreground(MedGreen)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(DimGreen)
)

package cli

import "github.com/charmbracelet/lipgloss"

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#0078D4")).
	Padding(1, 5).
	MarginBottom(1).
	Align(lipgloss.Center).
	Border(lipgloss.RoundedBorder())

var summaryStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#04B575")).
	Padding(0, 2).
	Border(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("#04B575"))

var invalidStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FF5F87"))

package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles used for terminal output.
var (
	scoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	pathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

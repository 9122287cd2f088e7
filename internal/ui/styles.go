package ui

import "github.com/charmbracelet/lipgloss"

var (
	spinnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	quitTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Title renders a section heading.
func Title(s string) string { return titleStyle.Render(s) }

// Field renders an aligned "label value" line.
func Field(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), textStyle.Render(value))
}

// Success renders a positive status line.
func Success(s string) string { return successStyle.Render("✅ " + s) }

// Warn renders a warning line.
func Warn(s string) string { return warnStyle.Render("⚠️  " + s) }

// Error renders a failure line.
func Error(s string) string { return errorStyle.Render("❌ " + s) }

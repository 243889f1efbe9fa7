package render

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7C3AED")
	BullColor    = lipgloss.Color("#10B981")
	BearColor    = lipgloss.Color("#EF4444")
	NeutralColor = lipgloss.Color("#6B7280")
	BorderColor  = lipgloss.Color("#374151")
	MutedColor   = lipgloss.Color("#9CA3AF")
)

var (
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(BorderColor).Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)
	labelStyle = lipgloss.NewStyle().Foreground(MutedColor).Width(16)
	valueStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(MutedColor)
	errorStyle = lipgloss.NewStyle().Foreground(BearColor)
)

// biasStyle colours a score by direction.
func biasStyle(score int) lipgloss.Style {
	switch {
	case score > 0:
		return lipgloss.NewStyle().Bold(true).Foreground(BullColor)
	case score < 0:
		return lipgloss.NewStyle().Bold(true).Foreground(BearColor)
	default:
		return lipgloss.NewStyle().Bold(true).Foreground(NeutralColor)
	}
}

package monitor

import "github.com/charmbracelet/lipgloss"

var (
	textPrimaryColor = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#CCCCCC"}
	textMutedColor   = lipgloss.AdaptiveColor{Light: "#888888", Dark: "#696969"}
	successColor     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	errorColor       = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	spinnerColor     = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textPrimaryColor)

	phaseNameStyle = lipgloss.NewStyle().
			Width(10).
			Foreground(textPrimaryColor)

	phaseDoneStyle = lipgloss.NewStyle().
			Width(10).
			Foreground(successColor)

	messageStyle = lipgloss.NewStyle().
			Foreground(textMutedColor)

	activityStyle = lipgloss.NewStyle().
			Foreground(textMutedColor)

	errorBannerStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(errorColor).
				Foreground(errorColor).
				Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(textMutedColor)

	logLineStyle = lipgloss.NewStyle().
			Faint(true).
			Foreground(textMutedColor)
)

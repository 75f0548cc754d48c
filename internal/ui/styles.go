package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Copernicus blue, the mission branding color.
const brandBlue = "#0B3D91"

var galileoArt = []string{
	" ██████╗  █████╗ ██╗     ██╗██╗     ███████╗ ██████╗ ",
	"██╔════╝ ██╔══██╗██║     ██║██║     ██╔════╝██╔═══██╗",
	"██║  ███╗███████║██║     ██║██║     █████╗  ██║   ██║",
	"██║   ██║██╔══██║██║     ██║██║     ██╔══╝  ██║   ██║",
	"╚██████╔╝██║  ██║███████╗██║███████╗███████╗╚██████╔╝",
	" ╚═════╝ ╚═╝  ╚═╝╚══════╝╚═╝╚══════╝╚══════╝ ╚═════╝ ",
}

// Styles contains the lipgloss styles for the console.
type Styles struct {
	Banner  lipgloss.Style
	Agent   lipgloss.Style
	Prompt  lipgloss.Style
	Tool    lipgloss.Style
	Switch  lipgloss.Style
	Elapsed lipgloss.Style
	Error   lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Banner:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(brandBlue)),
		Agent:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Prompt:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Tool:    lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("240")),
		Switch:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		Elapsed: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("250")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// RenderBanner returns the styled startup banner.
func (s Styles) RenderBanner() string {
	var b strings.Builder
	for _, line := range galileoArt {
		b.WriteString(s.Banner.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

package ui

import "github.com/charmbracelet/lipgloss"

// Color palette.
const (
	ColorLime     = "154"
	ColorLimeDim  = "106"
	ColorBlue     = "33"
	ColorGreen    = "34"
	ColorYellow   = "220"
	ColorRed      = "196"
	ColorGray     = "245"
	ColorDarkGray = "238"
)

// Styles holds every lipgloss style used by bibdex.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Active  lipgloss.Style
	Label   lipgloss.Style
	Border  lipgloss.Style

	// Query frame
	Author    lipgloss.Style
	Title     lipgloss.Style
	FileIndex lipgloss.Style
	Prefix    lipgloss.Style
	Focus     lipgloss.Style
}

// DefaultStyles returns colored styles.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Border:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),

		Author:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorBlue)),
		Title:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		FileIndex: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)).Underline(true),
		Prefix:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Focus:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
	}
}

// NoColorStyles returns unstyled components.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header: plain, Success: plain, Warning: plain, Error: plain,
		Dim: plain, Active: plain, Label: plain, Border: plain,
		Author: plain, Title: plain, FileIndex: plain, Prefix: plain, Focus: plain,
	}
}

// GetStyles returns styles for the color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}

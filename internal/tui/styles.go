package tui

import "github.com/charmbracelet/lipgloss"

type Styles struct {
	Title     lipgloss.Style
	Box       lipgloss.Style
	Item      lipgloss.Style
	Active    lipgloss.Style
	Category  lipgloss.Style
	Excerpt   lipgloss.Style
	Empty     lipgloss.Style
	Help      lipgloss.Style
	Loading   lipgloss.Style
	Navigated lipgloss.Style
}

func NewStyles() *Styles {
	return &Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		Box:       lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Item:      lipgloss.NewStyle().PaddingLeft(2),
		Active:    lipgloss.NewStyle().PaddingLeft(1).Foreground(lipgloss.Color("226")).Bold(true).Background(lipgloss.Color("238")),
		Category:  lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		Excerpt:   lipgloss.NewStyle().Faint(true),
		Empty:     lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("241")).Italic(true),
		Help:      lipgloss.NewStyle().Faint(true),
		Loading:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Navigated: lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
	}
}

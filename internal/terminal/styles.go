package terminal

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tjfontaine/blackstories-client/internal/view"
)

type styles struct {
	lanes  map[view.Lane]lipgloss.Style
	status lipgloss.Style
	rule   lipgloss.Style
	prompt lipgloss.Style
	choice lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	fg := func(color string) lipgloss.Style {
		return r.NewStyle().Foreground(lipgloss.Color(color))
	}
	return styles{
		lanes: map[view.Lane]lipgloss.Style{
			view.LaneMystery:    fg("205").Bold(true), // pink
			view.LaneNarrator:   fg("86"),             // green
			view.LaneDetective:  fg("39"),             // teal
			view.LaneDetective2: fg("214"),            // yellow
			view.LaneVisionary:  fg("141"),
			view.LaneSkeptic:    fg("208"),
			view.LaneLeader:     fg("42").Bold(true),
			view.LaneSummary:    fg("252").Italic(true),
			view.LaneSystem:     fg("242"),
			view.LaneError:      fg("196"), // red
		},
		status: r.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		rule:   fg("240"),
		prompt: fg("240"),
		choice: fg("255").Bold(true),
	}
}

func (s styles) lane(l view.Lane) lipgloss.Style {
	if st, ok := s.lanes[l]; ok {
		return st
	}
	return s.lanes[view.LaneSystem]
}

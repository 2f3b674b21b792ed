package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/quakesim/internal/physics"
	"github.com/san-kum/quakesim/internal/scene"
	"github.com/san-kum/quakesim/internal/seismic"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	title  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
)

const (
	roomWidth  = 42
	roomHeight = 12
	barWidth   = 30
)

func riskStyle(l scene.RiskLevel) lipgloss.Style {
	switch l {
	case scene.RiskHigh:
		return red
	case scene.RiskMedium:
		return yellow
	}
	return green
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString("\n  " + title.Render("QUAKESIM") + dim.Render("  controller") + "\n\n")
	b.WriteString(m.viewMagnitude())
	b.WriteString(m.viewSync())
	b.WriteString("\n")
	b.WriteString(m.viewDetections())
	b.WriteString("\n")
	b.WriteString(m.viewRoom())
	b.WriteString("\n")
	b.WriteString(m.viewFloor())
	b.WriteString("\n" + dim.Render("  ←/→ ±0.1  ↑/↓ ±1  r reset  q quit") + "\n")

	return b.String()
}

func (m model) viewMagnitude() string {
	span := m.rng.Max - m.rng.Min
	frac := 0.0
	if span > 0 {
		frac = (m.magnitude - m.rng.Min) / span
	}
	filled := int(math.Round(frac * barWidth))
	filled = max(0, min(barWidth, filled))

	style := green
	switch {
	case m.magnitude >= 7:
		style = red
	case m.magnitude >= 4:
		style = yellow
	}

	bar := style.Render(strings.Repeat("█", filled)) + dim.Render(strings.Repeat("░", barWidth-filled))
	intensity := seismic.DefaultModel().Intensity(m.magnitude)
	return fmt.Sprintf("  %s %s %s  %s\n",
		dim.Render("magnitude"),
		white.Render(fmt.Sprintf("%.1f", m.magnitude)),
		bar,
		dim.Render(fmt.Sprintf("intensity %.2f", intensity)))
}

func (m model) viewSync() string {
	var line string
	switch {
	case m.sync.Polls == 0:
		line = dim.Render("connecting…")
	case m.sync.Healthy():
		ago := time.Since(m.sync.LastSuccess).Truncate(100 * time.Millisecond)
		line = green.Render("synced") + dim.Render(fmt.Sprintf(" %s ago", ago))
	default:
		line = red.Render("offline") + dim.Render(fmt.Sprintf(" %d failures: %v", m.sync.ConsecutiveFailures, m.sync.LastError))
	}
	if m.pushErr != nil {
		line += red.Render("  push failed: ") + dim.Render(m.pushErr.Error())
	}
	return "  " + dim.Render("sync      ") + line + "\n"
}

func (m model) viewDetections() string {
	var b strings.Builder
	b.WriteString("  " + cyan.Render(fmt.Sprintf("detections (%d)", len(m.detections))) + "\n")
	if len(m.detections) == 0 {
		b.WriteString("  " + dim.Render("waiting for sensor…") + "\n")
		return b.String()
	}
	for _, d := range m.detections {
		style := riskStyle(d.Level())
		b.WriteString(fmt.Sprintf("  %s %-16s %s  %s\n",
			style.Render("●"),
			white.Render(d.DisplayName()),
			style.Render(fmt.Sprintf("%3d", d.Risk)),
			dim.Render(d.Spec().HazardMessage)))
	}
	return b.String()
}

// viewRoom draws the floor from above: x spans [-10, 10] left to right and
// z spans [-10, 0] top to bottom. Toppled bodies are drawn as 'x'.
func (m model) viewRoom() string {
	grid := make([][]rune, roomHeight)
	for y := range grid {
		grid[y] = []rune(strings.Repeat("·", roomWidth))
	}

	for _, s := range m.bodies {
		col, row, ok := roomCell(s.Position.X, s.Position.Z)
		if !ok {
			continue
		}
		grid[row][col] = bodyGlyph(s)
	}

	var b strings.Builder
	b.WriteString("  " + dim.Render("┌"+strings.Repeat("─", roomWidth)+"┐") + "\n")
	for _, line := range grid {
		b.WriteString("  " + dim.Render("│") + string(line) + dim.Render("│") + "\n")
	}
	b.WriteString("  " + dim.Render("└"+strings.Repeat("─", roomWidth)+"┘") + "\n")

	toppled := 0
	for _, s := range m.bodies {
		if s.Toppled() {
			toppled++
		}
	}
	b.WriteString("  " + dim.Render(fmt.Sprintf("t=%.1fs  bodies %d  toppled %d", m.simTime, len(m.bodies), toppled)) + "\n")
	return b.String()
}

func roomCell(x, z float64) (int, int, bool) {
	col := int(math.Floor((x + 10) / 20 * roomWidth))
	row := int(math.Floor((z + 10) / 10 * roomHeight))
	if col < 0 || col >= roomWidth || row < 0 || row >= roomHeight {
		return 0, 0, false
	}
	return col, row, true
}

func bodyGlyph(s physics.BodyState) rune {
	if s.Toppled() {
		return 'x'
	}
	if s.Category == "" {
		return '#'
	}
	return []rune(strings.ToUpper(s.Category))[0]
}

func (m model) viewFloor() string {
	if len(m.floor) < 2 {
		return ""
	}
	graph := asciigraph.Plot(m.floor,
		asciigraph.Height(6),
		asciigraph.Width(60),
		asciigraph.Offset(4),
		asciigraph.Caption("floor displacement x (m)"),
	)
	return graph + "\n"
}

// Package termview draws display snapshots as colored text for terminals.
package termview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sidcontrol/internal/display"
)

const (
	litCell   = "██"
	unlitCell = "··"
	gap       = " "
)

// Palette holds the lamp colors (ANSI 256-color codes). The real panel has
// green lamps up to row 12, yellow up to 18 and a red top row.
type Palette struct {
	Green  lipgloss.Color
	Yellow lipgloss.Color
	Red    lipgloss.Color
	Unlit  lipgloss.Color
	Faint  lipgloss.Color
}

// DefaultPalette is used when a View is created without one.
var DefaultPalette = Palette{
	Green:  lipgloss.Color("46"),
	Yellow: lipgloss.Color("226"),
	Red:    lipgloss.Color("196"),
	Unlit:  lipgloss.Color("236"),
	Faint:  lipgloss.Color("243"),
}

// View renders snapshots with a fixed palette.
type View struct {
	green, yellow, red lipgloss.Style
	unlit, faint       lipgloss.Style
}

// New returns a View rendering through r (nil selects the default renderer).
func New(r *lipgloss.Renderer, p Palette) *View {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return &View{
		green:  r.NewStyle().Foreground(p.Green),
		yellow: r.NewStyle().Foreground(p.Yellow),
		red:    r.NewStyle().Foreground(p.Red),
		unlit:  r.NewStyle().Foreground(p.Unlit),
		faint:  r.NewStyle().Foreground(p.Faint),
	}
}

func (v *View) rowStyle(row int) lipgloss.Style {
	switch {
	case row >= display.MaxRow:
		return v.red
	case row >= 13:
		return v.yellow
	default:
		return v.green
	}
}

// Render returns the panel top row first, followed by a status line. A
// powered-off panel shows every lamp unlit.
func (v *View) Render(s display.Snapshot) string {
	var b strings.Builder
	for row := display.MaxRow; row >= 0; row-- {
		lit := v.rowStyle(row)
		for bar := 0; bar < display.Bars; bar++ {
			if bar > 0 {
				b.WriteString(gap)
			}
			if s.On && s.Lit(bar, row) {
				b.WriteString(lit.Render(litCell))
			} else {
				b.WriteString(v.unlit.Render(unlitCell))
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString(v.faint.Render(StatusLine(s)))
	return b.String()
}

// StatusLine summarizes the non-lamp state of s.
func StatusLine(s display.Snapshot) string {
	power := "off"
	if s.On {
		power = "on"
	}
	ir := " "
	if s.Indicator {
		ir = "*"
	}
	return fmt.Sprintf("[%s] power=%s brightness=%d seq=%d", ir, power, s.Brightness, s.Seq)
}

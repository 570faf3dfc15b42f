package termview

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"sidcontrol/internal/display"
)

// A renderer over a buffer has no color profile, so output is plain text.
func plainView() *View {
	return New(lipgloss.NewRenderer(&bytes.Buffer{}), DefaultPalette)
}

func TestRender_BarsBottomUp(t *testing.T) {
	f := display.NewFrame(nil)
	f.DrawBarWithHeight(0, 3)
	f.DrawBarWithHeight(9, display.Rows)
	f.Show()

	lines := strings.Split(plainView().Render(f.Snapshot()), "\n")
	if len(lines) != display.Rows+1 {
		t.Fatalf("got %d lines, want %d", len(lines), display.Rows+1)
	}
	top := strings.Fields(lines[0])
	bottom := strings.Fields(lines[display.MaxRow])
	if top[0] != unlitCell || top[9] != litCell {
		t.Fatalf("top row = %v", top)
	}
	if bottom[0] != litCell || bottom[1] != unlitCell {
		t.Fatalf("bottom row = %v", bottom)
	}
	third := strings.Fields(lines[display.MaxRow-2])
	fourth := strings.Fields(lines[display.MaxRow-3])
	if third[0] != litCell || fourth[0] != unlitCell {
		t.Fatalf("bar 0 height wrong: %v / %v", third, fourth)
	}
}

func TestRender_PoweredOffIsDark(t *testing.T) {
	f := display.NewFrame(nil)
	f.DrawBarWithHeight(4, display.Rows)
	f.Show()
	f.Off()

	out := plainView().Render(f.Snapshot())
	if strings.Contains(out, litCell) {
		t.Fatalf("powered-off panel shows lamps")
	}
	if !strings.Contains(out, "power=off") {
		t.Fatalf("status line missing power state: %q", out)
	}
}

func TestStatusLine_Indicator(t *testing.T) {
	s := display.Snapshot{On: true, Indicator: true, Brightness: 7, Seq: 3}
	if got, want := StatusLine(s), "[*] power=on brightness=7 seq=3"; got != want {
		t.Fatalf("StatusLine = %q, want %q", got, want)
	}
}

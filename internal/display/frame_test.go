package display

import "testing"

func TestFrame_DrawOnlyVisibleAfterShow(t *testing.T) {
	f := NewFrame(nil)
	f.DrawBarWithHeight(3, 7)

	if got := f.Snapshot().Height(3); got != 0 {
		t.Fatalf("height before Show = %d, want 0", got)
	}

	f.Show()
	if got := f.Snapshot().Height(3); got != 7 {
		t.Fatalf("height after Show = %d, want 7", got)
	}
}

func TestFrame_DrawBarClampsRows(t *testing.T) {
	f := NewFrame(nil)
	f.DrawBar(0, -4, 40)
	f.DrawBarWithHeight(1, 99)
	f.DrawBar(2, 10, 12)
	f.Show()

	s := f.Snapshot()
	if got := s.Height(0); got != Rows {
		t.Errorf("bar 0 height = %d, want %d", got, Rows)
	}
	if got := s.Height(1); got != Rows {
		t.Errorf("bar 1 height = %d, want %d", got, Rows)
	}
	if s.Lit(2, 9) || !s.Lit(2, 10) || !s.Lit(2, 12) || s.Lit(2, 13) {
		t.Errorf("bar 2 mask = %020b, want rows 10..12", s.Bars[2])
	}
}

func TestFrame_OutOfRangeBarIgnored(t *testing.T) {
	f := NewFrame(nil)
	f.DrawBar(-1, 0, 19)
	f.DrawBar(Bars, 0, 19)
	f.DrawDot(4, Rows)
	f.Show()
	for b := 0; b < Bars; b++ {
		if f.Snapshot().Bars[b] != 0 {
			t.Fatalf("bar %d unexpectedly lit", b)
		}
	}
}

func TestFrame_LetterMaskClearsGlyphPixels(t *testing.T) {
	f := NewFrame(nil)
	for b := 0; b < Bars; b++ {
		f.DrawBarWithHeight(b, Rows)
	}
	f.DrawLetterMask('I', 1, 11)
	f.Show()
	s := f.Snapshot()

	// The top stroke of 'I' spans glyph columns 2..4 on glyph row 0, which is
	// panel row 19-11 = 8.
	for _, bar := range []int{3, 4, 5} {
		if s.Lit(bar, 8) {
			t.Errorf("bar %d row 8 should be masked", bar)
		}
	}
	if !s.Lit(0, 8) || !s.Lit(9, 8) {
		t.Errorf("edge bars should stay lit")
	}
	if !s.Lit(4, 19) {
		t.Errorf("rows above the glyph should stay lit")
	}
}

func TestFrame_LetterClippedAtTop(t *testing.T) {
	f := NewFrame(nil)
	f.DrawLetter('8', 1, -6)
	f.Show()
	s := f.Snapshot()
	// Only glyph row 6 (bottom stroke of '8') lands on panel row 19.
	if !s.Lit(3, 19) {
		t.Errorf("expected bottom stroke on row 19")
	}
	for b := 0; b < Bars; b++ {
		if s.Bars[b]&^(1<<19) != 0 {
			t.Fatalf("bar %d has pixels below row 19: %020b", b, s.Bars[b])
		}
	}
}

func TestFrame_BrightnessDirectAndRestore(t *testing.T) {
	var updates int
	f := NewFrame(func(Snapshot) { updates++ })

	if got := f.SetBrightness(20); got != MaxBrightness {
		t.Fatalf("SetBrightness(20) = %d, want clamp to %d", got, MaxBrightness)
	}
	f.SetBrightness(9)
	f.SetBrightnessDirect(3)
	if f.Brightness() != 9 {
		t.Fatalf("configured brightness changed by direct set: %d", f.Brightness())
	}
	if f.AppliedBrightness() != 3 {
		t.Fatalf("applied brightness = %d, want 3", f.AppliedBrightness())
	}

	f.RestoreBrightness()
	if f.AppliedBrightness() != 9 {
		t.Fatalf("applied brightness after restore = %d, want 9", f.AppliedBrightness())
	}
	if updates == 0 {
		t.Fatalf("expected update callbacks")
	}
}

func TestFrame_PowerPublishesOnlyOnChange(t *testing.T) {
	var updates int
	f := NewFrame(func(Snapshot) { updates++ })
	f.On()
	if updates != 0 {
		t.Fatalf("On() on powered frame published %d updates", updates)
	}
	f.Off()
	f.Off()
	if updates != 1 || f.IsOn() {
		t.Fatalf("Off() updates = %d, on = %v", updates, f.IsOn())
	}
}

func TestGlyph_LowerCaseFallsBackToUpper(t *testing.T) {
	up, ok := Glyph('A')
	if !ok {
		t.Fatalf("missing glyph 'A'")
	}
	low, ok := Glyph('a')
	if !ok || low != up {
		t.Fatalf("Glyph('a') does not match Glyph('A')")
	}
	if _, ok := Glyph('?'); ok {
		t.Fatalf("unexpected glyph for '?'")
	}
}

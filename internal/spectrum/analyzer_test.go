package spectrum

import (
	"testing"

	"sidcontrol/internal/display"
	"sidcontrol/internal/rng"
)

type fixedSource struct {
	levels [display.Bars]float64
	calls  int
}

func (f *fixedSource) Bands(b *[display.Bars]float64) bool {
	f.calls++
	*b = f.levels
	return true
}

func TestTick_InactiveDrawsNothing(t *testing.T) {
	var shows int
	src := &fixedSource{}
	a := New(display.NewFrame(func(display.Snapshot) { shows++ }), src)
	a.Tick(0)
	if shows != 0 || src.calls != 0 {
		t.Fatalf("inactive analyzer drew %d frames", shows)
	}
}

func TestTick_PacedByFrameLength(t *testing.T) {
	src := &fixedSource{}
	a := New(display.NewFrame(nil), src)
	a.Activate()
	for now := int64(100); now < 100+FrameMs*3; now++ {
		a.Tick(now)
	}
	if src.calls != 3 {
		t.Fatalf("%d frames in %dms, want 3", src.calls, FrameMs*3)
	}
}

func TestTick_ScalesToLoudestBand(t *testing.T) {
	f := display.NewFrame(nil)
	src := &fixedSource{levels: [display.Bars]float64{1000, 500, 0, 0, 0, 0, 0, 0, 0, 250}}
	a := New(f, src)
	a.Activate()
	a.Tick(0)

	h := a.Heights()
	if h[0] != display.MaxRow || h[1] != 9 || h[9] != 4 {
		t.Fatalf("heights %v", h)
	}
	// Silent bands still show one lamp.
	if h[2] != 1 {
		t.Fatalf("silent band height %d", h[2])
	}
	if s := f.Snapshot(); s.Height(0) != display.MaxRow {
		t.Fatalf("drawn height %d", s.Height(0))
	}
}

func TestTick_AmplificationClampsToPanel(t *testing.T) {
	src := &fixedSource{levels: [display.Bars]float64{1000, 100}}
	a := New(display.NewFrame(nil), src)
	a.Activate()
	if old := a.SetAmplificationFactor(2000); old != 100 {
		t.Fatalf("previous factor %d", old)
	}
	a.Tick(0)
	h := a.Heights()
	if h[0] != display.Rows {
		t.Fatalf("amplified height %d, want %d", h[0], display.Rows)
	}
	// 1 lamp * 2000% = 20.
	if h[2] != display.Rows {
		t.Fatalf("silent band amplified to %d", h[2])
	}

	if a.SetAmplificationFactor(-1) != 2000 || a.AmplificationFactor() != 2000 {
		t.Fatalf("negative factor changed the setting")
	}
}

func TestTick_FallsGradually(t *testing.T) {
	src := &fixedSource{levels: [display.Bars]float64{1000, 1000, 1000}}
	a := New(display.NewFrame(nil), src)
	a.Activate()
	a.Tick(0)

	src.levels[0] = 1000
	src.levels[1] = 900 // 17: a small drop steps down by one
	src.levels[2] = 0
	a.Tick(FrameMs)
	h := a.Heights()
	if h[1] != display.MaxRow-1 {
		t.Fatalf("small drop: %d", h[1])
	}
	// 19 -> 1 is a large drop: averaged.
	if h[2] != (display.MaxRow+1)/2 {
		t.Fatalf("large drop: %d", h[2])
	}
}

func TestPeaks_HoldThenFall(t *testing.T) {
	f := display.NewFrame(nil)
	src := &fixedSource{levels: [display.Bars]float64{1000}}
	a := New(f, src)
	a.SetPeaks(true)
	a.Activate()
	a.Tick(0)
	if a.peak[0] != display.MaxRow-1 {
		t.Fatalf("peak %d", a.peak[0])
	}

	// Band 0 drops away; the other bands take over as loudest.
	src.levels = [display.Bars]float64{0, 1000}
	now := int64(FrameMs)
	for ; now <= peakHoldMs; now += FrameMs {
		a.Tick(now)
		if a.peak[0] != display.MaxRow-1 {
			t.Fatalf("peak moved during hold at %d", now)
		}
	}
	if !f.Snapshot().Lit(0, display.MaxRow-1) {
		t.Fatalf("peak dot not drawn above a lower bar")
	}
	for ; now < peakHoldMs+10*FrameMs; now += FrameMs {
		a.Tick(now)
	}
	if a.peak[0] >= display.MaxRow-1 {
		t.Fatalf("peak did not fall: %d", a.peak[0])
	}
}

func TestNoiseSource_StaysBounded(t *testing.T) {
	n := NewNoiseSource(rng.New(42))
	var b [display.Bars]float64
	for i := 0; i < 500; i++ {
		if !n.Bands(&b) {
			t.Fatalf("noise source ran dry")
		}
		for band, v := range b {
			if v < 20 || v > 1000 {
				t.Fatalf("band %d level %v", band, v)
			}
		}
	}
}

func TestActivate_DrawsImmediately(t *testing.T) {
	src := &fixedSource{}
	a := New(display.NewFrame(nil), src)
	a.Activate()
	a.Tick(10)
	a.Deactivate()
	a.Activate()
	a.Tick(11)
	if src.calls != 2 {
		t.Fatalf("reactivated analyzer waited for a full frame")
	}
	if (Silence{}).Bands(nil) {
		t.Fatalf("silence produced data")
	}
}

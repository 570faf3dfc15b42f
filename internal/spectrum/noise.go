package spectrum

import (
	"sidcontrol/internal/display"
	"sidcontrol/internal/rng"
)

// NoiseSource produces a plausible moving spectrum without audio input:
// every band does a bounded random walk, and a periodic beat lifts the low
// bands.
type NoiseSource struct {
	rnd    rng.Source
	levels [display.Bars]int
	frame  int
}

// NewNoiseSource returns a source driven by r.
func NewNoiseSource(r rng.Source) *NoiseSource {
	n := &NoiseSource{rnd: r}
	for i := range n.levels {
		n.levels[i] = 200 + r.IntN(400)
	}
	return n
}

// Bands implements Source.
func (n *NoiseSource) Bands(b *[display.Bars]float64) bool {
	n.frame++
	beat := n.frame%16 == 0
	for i := range n.levels {
		v := n.levels[i] + n.rnd.IntN(241) - 120
		if beat && i < 4 {
			v += 500
		}
		v = max(20, min(1000, v))
		n.levels[i] = v
		b[i] = float64(v)
	}
	return true
}

// Silence is a Source that never has data.
type Silence struct{}

// Bands implements Source.
func (Silence) Bands(*[display.Bars]float64) bool { return false }

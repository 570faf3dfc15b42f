package travel

import "sidcontrol/internal/display"

// accelSequence is the bar-height progression played while accelerating.
// A session starts part-way in (see sequenceEntry) and always ends on the
// last row.
var accelSequence = [...][display.Bars]int{
	{0, 1, 1, 0, 0, 0, 0, 0, 0, 0},
	{1, 2, 0, 2, 1, 0, 2, 0, 1, 1},
	{2, 3, 1, 2, 2, 1, 1, 0, 1, 2},
	{3, 4, 2, 3, 1, 1, 3, 0, 2, 3},
	{4, 5, 1, 3, 2, 1, 4, 0, 2, 4},
	{5, 6, 0, 5, 1, 2, 6, 1, 1, 5},
	{6, 7, 1, 7, 0, 2, 7, 1, 2, 7},
	{7, 9, 1, 9, 1, 3, 8, 1, 3, 9},
	{8, 10, 0, 10, 0, 4, 9, 0, 3, 10},
	{8, 10, 0, 10, 0, 5, 9, 0, 4, 10},
	{8, 10, 0, 10, 0, 5, 9, 0, 5, 10},
	{8, 10, 0, 10, 0, 6, 9, 0, 6, 10},
	{8, 10, 0, 10, 0, 8, 9, 0, 7, 10},
	{8, 10, 0, 10, 0, 10, 9, 0, 8, 10},
	{8, 10, 0, 10, 0, 10, 9, 0, 9, 10},
	{10, 10, 1, 10, 0, 10, 10, 0, 10, 10},
	{10, 10, 1, 10, 0, 10, 10, 0, 10, 10},
	{10, 10, 1, 10, 0, 11, 10, 0, 11, 10},
	{10, 10, 2, 10, 0, 12, 10, 0, 12, 10},
	{11, 10, 3, 10, 0, 11, 10, 0, 13, 10},
	{12, 10, 3, 10, 0, 12, 10, 0, 14, 10},
	{13, 10, 3, 10, 0, 12, 10, 0, 15, 10},
	{14, 10, 4, 10, 0, 12, 10, 0, 16, 10},
	{15, 10, 4, 10, 0, 12, 10, 0, 17, 10},
	{16, 10, 4, 10, 0, 12, 10, 0, 18, 10},
	{19, 10, 6, 10, 0, 12, 10, 0, 20, 10},
	{20, 15, 7, 10, 0, 12, 15, 7, 20, 10},
	{20, 20, 10, 10, 5, 12, 20, 10, 20, 10},
	{20, 20, 13, 20, 20, 20, 20, 10, 20, 17},
}

// sequenceLen is the number of rows in accelSequence.
const sequenceLen = len(accelSequence)

// sequenceEntry maps the idle baseline at trigger time to the first row of
// accelSequence that matches it. It never decreases, so a higher baseline
// means fewer steps.
var sequenceEntry = [21]int{0, 1, 2, 3, 4, 5, 6, 6, 7, 7, 8, 15, 18, 19, 20, 21, 21, 22, 22, 23, 24}

// ampFactors is the amplification ramp (percent) used when the spectrum
// analyzer is showing instead of idle bars.
var ampFactors = [...]int{100, 110, 120, 130, 150, 170, 200, 250, 300, 400, 500, 800, 1000, 1500, 2000, 2000}

// ampSteps is the number of amplification steps.
const ampSteps = len(ampFactors)

// tunnelGlyphs cycle over the bars in the masked-letter tunnel variant.
const tunnelGlyphs = "%&@!"

// stepsFor returns the number of acceleration steps for a baseline.
func stepsFor(baseline int) int {
	if baseline < 0 {
		baseline = 0
	}
	if baseline >= len(sequenceEntry) {
		baseline = len(sequenceEntry) - 1
	}
	return sequenceLen - sequenceEntry[baseline]
}

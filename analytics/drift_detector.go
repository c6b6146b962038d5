package analytics

import (
	"math"
)

// MinDriftSamples is the window fill below which no drift is reported.
// Windows smaller than this warm up once they are full.
const MinDriftSamples = 10

// DriftDetector flags sensor inputs that sit far outside the recent
// distribution of the same room, measured as a z-score over a rolling window.
type DriftDetector struct {
	window    *RollingWindow
	threshold float64
	warmUp    int
}

func NewDriftDetector(windowSize int, threshold float64) *DriftDetector {
	window := NewRollingWindow(windowSize)
	warmUp := MinDriftSamples
	if window.windowSize < warmUp {
		warmUp = window.windowSize
	}
	return &DriftDetector{
		window:    window,
		threshold: threshold,
		warmUp:    warmUp,
	}
}

// Detect scores value against the window as it was before value arrived,
// then adds value to the window.
func (dd *DriftDetector) Detect(value float64) (bool, float64) {
	defer dd.window.Add(value)

	if dd.window.Len() < dd.warmUp {
		return false, 0.0
	}

	stdDev := dd.window.StdDev()
	if stdDev == 0 {
		return false, 0.0
	}

	zScore := math.Abs((value - dd.window.Average()) / stdDev)
	return zScore > dd.threshold, zScore
}

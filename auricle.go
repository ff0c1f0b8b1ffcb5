package auricle

import (
	"math"
	"time"
)

type (
	// Clock supplies the shared notion of "now", in seconds. Implementations
	// must be monotonically non-decreasing; everything that schedules ahead
	// (envelopes, grains, sequencer steps) is expressed in clock seconds.
	Clock interface {
		Now() float64
	}

	// WallClock is a Clock backed by the host monotonic timer, starting from
	// zero at construction.
	WallClock struct {
		start time.Time
	}

	// ManualClock is a Clock advanced explicitly by the caller. Used by tests
	// and by offline rendering, where "now" is the render cursor.
	ManualClock struct {
		now float64
	}
)

func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

func (c *WallClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

func (c *ManualClock) Now() float64 { return c.now }

// Advance moves the clock forward by dt seconds. Negative or zero dt is
// ignored, keeping the clock monotonic even under buggy callers.
func (c *ManualClock) Advance(dt float64) {
	if dt > 0 {
		c.now += dt
	}
}

// Set moves the clock to t if t is ahead of the current time.
func (c *ManualClock) Set(t float64) {
	if t > c.now {
		c.now = t
	}
}

// NoteToFreq converts a MIDI note number to a frequency in Hz, A4 = 440 Hz.
func NoteToFreq(note byte) float64 {
	return 440 * math.Pow(2, (float64(note)-69)/12)
}

// NoteToRatio converts a MIDI note number to a playback-rate ratio relative
// to middle C. Used by the granular engine, where pitch is a resampling
// ratio rather than an oscillator frequency.
func NoteToRatio(note byte) float64 {
	return math.Pow(2, (float64(note)-60)/12)
}

// VelocityToGain maps MIDI velocity 0..127 to a linear gain 0..1.
func VelocityToGain(velocity byte) float64 {
	if velocity > 127 {
		velocity = 127
	}
	return float64(velocity) / 127
}

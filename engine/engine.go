// Package engine binds the voice manager and the ADSR helper to concrete
// synthesis algorithms. Each engine is a thin adapter: it implements the
// voice lifecycle callbacks by wiring algorithm-specific nodes into the
// shared graph, and exposes a parameter snapshot for the UI and the preset
// boundary. The polyphony, stealing and release bookkeeping all live in
// the voice package; nothing algorithm-specific is duplicated here.
package engine

import (
	"time"

	"github.com/auricle-audio/auricle/graph"
)

// Engine is the uniform surface the event bus and the cooperative loop see.
// It is the bus.Handler contract plus the per-tick advance and the output
// node the mixer wires into the rack's send bus.
type Engine interface {
	NoteOn(note, velocity byte, t float64)
	NoteOff(note byte, t float64)
	AllNotesOff()

	// Advance fires the engine's due deadlines (auto-kills, grain cursors).
	Advance(now float64)

	// AnyActive reports whether the engine has voices sounding or still
	// releasing, i.e. whether it has deadlines worth polling soon.
	AnyActive() bool

	// Output is the engine's summing node.
	Output() *graph.Node

	Name() string
}

const (
	activePollInterval = 5 * time.Millisecond
	idlePollInterval   = 100 * time.Millisecond
)

// PollInterval returns how long the cooperative loop may sleep before its
// next advance: short while any engine has voices to serve, much longer
// when everything is idle and there is no grain top-up or kill deadline to
// miss.
func PollInterval(engines []Engine) time.Duration {
	for _, e := range engines {
		if e.AnyActive() {
			return activePollInterval
		}
	}
	return idlePollInterval
}

// stopMargin is how long after the nominal release a voice's nodes keep
// existing; the manager's auto-kill uses its own margin, this one bounds
// scheduled node stops for self-disposing sources.
const stopMargin = 0.05

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

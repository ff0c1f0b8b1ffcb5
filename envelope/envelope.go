// Package envelope provides the shared ADSR ramp-scheduling routine used by
// every engine's voice callbacks. It operates purely on graph.Param
// automation; the engines decide which controls get an envelope.
package envelope

import (
	"github.com/auricle-audio/auricle/graph"
)

type (
	// Envelope holds ADSR durations in seconds; Sustain is the ratio of the
	// peak level held after decay, 0..1.
	Envelope struct {
		Attack  float64 `yaml:"attack"`
		Decay   float64 `yaml:"decay"`
		Sustain float64 `yaml:"sustain"`
		Release float64 `yaml:"release"`
	}

	// Mode selects the floor an envelope decays from and to. Exponential is
	// for amplitude-like controls, which must never reach exact zero while a
	// target curve is in flight; Linear is for frequency-like controls where
	// exact zero is meaningful.
	Mode int
)

const (
	Exponential Mode = iota
	Linear
)

// minLevel is the near-zero floor used by Exponential mode.
const minLevel = 1e-4

// timeConstantDivisor converts a nominal decay/release duration into the
// time constant of the asymptotic approach; dur/4 settles to ~98% of the
// distance within the nominal duration.
const timeConstantDivisor = 4

// ApplyAttack cancels any pending automation on the control, snaps it to
// the floor, ramps linearly to peak over the attack, then decays towards
// peak*Sustain. peak must already be scaled by note velocity.
func ApplyAttack(control *graph.Param, peak float64, env Envelope, t float64, mode Mode) {
	control.CancelScheduledValues(t)
	floor := 0.0
	if mode == Exponential {
		floor = minLevel
	}
	control.SetValueAtTime(floor, t)
	attackEnd := t + env.Attack
	control.LinearRampToValueAtTime(peak, attackEnd)
	if env.Decay > 0 {
		control.SetTargetAtTime(peak*env.Sustain, attackEnd, env.Decay/timeConstantDivisor)
	}
}

// ApplyRelease samples the control's actual momentary value at time t,
// freezes it there, and decays asymptotically to the floor. Sampling the
// live value matters: a release can arrive mid-attack, and freezing the
// scheduled target instead would jump the level audibly. Callers still
// schedule a hard node stop slightly after the nominal release time to
// reclaim resources.
func ApplyRelease(control *graph.Param, env Envelope, t float64, mode Mode) {
	current := control.ValueAt(t)
	control.CancelScheduledValues(t)
	control.SetValueAtTime(current, t)
	floor := 0.0
	if mode == Exponential {
		floor = minLevel
	}
	tc := env.Release / timeConstantDivisor
	control.SetTargetAtTime(floor, t, tc)
}

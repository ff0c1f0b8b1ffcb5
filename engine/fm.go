package engine

import (
	"math"

	"github.com/auricle-audio/auricle"
	"github.com/auricle-audio/auricle/envelope"
	"github.com/auricle-audio/auricle/graph"
	"github.com/auricle-audio/auricle/voice"
)

type (
	// FMParams is the two-operator FM engine's parameter snapshot. Ratio is
	// the modulator/carrier frequency ratio; Index is the peak modulation
	// index. Changes affect newly created voices; already-sounding voices
	// keep the values they captured.
	FMParams struct {
		MaxVoices int               `yaml:"maxvoices"`
		Gain      float64           `yaml:"gain"`
		Ratio     float64           `yaml:"ratio"`
		Index     float64           `yaml:"index"`
		Amp       envelope.Envelope `yaml:"amp"`
		Mod       envelope.Envelope `yaml:"mod"`
	}

	FM struct {
		graph   *graph.Graph
		out     *graph.Node
		params  FMParams
		manager *voice.Manager[*fmVoice]
	}

	fmVoice struct {
		carrier *graph.Node
		amp     *graph.Node
	}
)

func DefaultFMParams() FMParams {
	return FMParams{
		MaxVoices: 8,
		Gain:      0.5,
		Ratio:     2,
		Index:     3,
		Amp:       envelope.Envelope{Attack: 0.01, Decay: 0.3, Sustain: 0.6, Release: 0.4},
		Mod:       envelope.Envelope{Attack: 0.01, Decay: 0.2, Sustain: 0.3, Release: 0.4},
	}
}

func NewFM(g *graph.Graph, params FMParams) *FM {
	e := &FM{graph: g, out: g.NewNode("fm-out"), params: params}
	e.manager = voice.NewManager[*fmVoice](e, params.MaxVoices)
	return e
}

func (e *FM) Name() string        { return "fm" }
func (e *FM) Output() *graph.Node { return e.out }

// Params returns the current parameter snapshot.
func (e *FM) Params() FMParams { return e.params }

// SetParams replaces the snapshot for voices created from now on. The
// polyphony cap is fixed at construction.
func (e *FM) SetParams(p FMParams) {
	p.MaxVoices = e.params.MaxVoices
	e.params = p
}

func (e *FM) NoteOn(note, velocity byte, t float64) { e.manager.NoteOn(note, velocity, t) }
func (e *FM) NoteOff(note byte, t float64)          { e.manager.NoteOff(note, t) }
func (e *FM) AllNotesOff()                          { e.manager.AllNotesOff() }
func (e *FM) Advance(now float64)                   { e.manager.Advance(now) }

func (e *FM) ActiveCount() int    { return e.manager.ActiveCount() }
func (e *FM) ReleasingCount() int { return e.manager.ReleasingCount() }

func (e *FM) AnyActive() bool {
	return e.manager.ActiveCount() > 0 || e.manager.ReleasingCount() > 0
}

// CreateVoice wires carrier with phase modulation and an output gain stage,
// then starts the amplitude and modulation-index envelopes. The index
// envelope rides the same primitive as the amplitude one; it is just a
// second control.
func (e *FM) CreateVoice(note, velocity byte, t float64) *fmVoice {
	freq := auricle.NoteToFreq(note)
	ratio := e.params.Ratio

	carrier := e.graph.NewNode("fm-carrier")
	index := carrier.AddParam("index", 0)
	carrier.SetSource(func(t float64) float64 {
		mod := math.Sin(2 * math.Pi * freq * ratio * t)
		return math.Sin(2*math.Pi*freq*t + index.ValueAt(t)*mod)
	})

	amp := e.graph.NewNode("fm-amp")
	ampParam := amp.AddParam(graph.GainParam, 0)
	carrier.Connect(amp)
	amp.Connect(e.out)

	peak := auricle.VelocityToGain(velocity) * e.params.Gain
	envelope.ApplyAttack(ampParam, peak, e.params.Amp, t, envelope.Exponential)
	envelope.ApplyAttack(index, e.params.Index*auricle.VelocityToGain(velocity), e.params.Mod, t, envelope.Exponential)
	carrier.Start(t)
	return &fmVoice{carrier: carrier, amp: amp}
}

// ReleaseVoice ramps both controls down and reports the release duration so
// the manager can arm the hard-stop deadline.
func (e *FM) ReleaseVoice(v *fmVoice, note byte, t float64) float64 {
	envelope.ApplyRelease(v.amp.Param(graph.GainParam), e.params.Amp, t, envelope.Exponential)
	envelope.ApplyRelease(v.carrier.Param("index"), e.params.Mod, t, envelope.Exponential)
	v.carrier.StopAt(t + e.params.Amp.Release + stopMargin)
	return e.params.Amp.Release
}

// KillVoice tears the voice down with no ramp. Audibly abrupt; only the
// stealing and panic paths use it.
func (e *FM) KillVoice(v *fmVoice) {
	v.carrier.Dispose()
	v.amp.Dispose()
}

package engine

import (
	"math"

	"github.com/auricle-audio/auricle"
	"github.com/auricle-audio/auricle/envelope"
	"github.com/auricle-audio/auricle/graph"
	"github.com/auricle-audio/auricle/voice"
)

type (
	// SubtractiveParams drives the saw-plus-filter engine. Cutoff is the
	// filter's envelope peak in Hz; CutoffFloor is where the cutoff sits
	// before the attack and after the release. The cutoff gets the same
	// envelope primitive as the amplitude, in linear mode because a
	// frequency control may legitimately start from exact zero offset.
	SubtractiveParams struct {
		MaxVoices   int               `yaml:"maxvoices"`
		Gain        float64           `yaml:"gain"`
		Cutoff      float64           `yaml:"cutoff"`
		CutoffFloor float64           `yaml:"cutofffloor"`
		Amp         envelope.Envelope `yaml:"amp"`
		Filter      envelope.Envelope `yaml:"filter"`
	}

	Subtractive struct {
		graph   *graph.Graph
		out     *graph.Node
		params  SubtractiveParams
		manager *voice.Manager[*subVoice]
	}

	subVoice struct {
		osc    *graph.Node
		filter *graph.Node
		amp    *graph.Node
	}
)

func DefaultSubtractiveParams() SubtractiveParams {
	return SubtractiveParams{
		MaxVoices:   8,
		Gain:        0.4,
		Cutoff:      4000,
		CutoffFloor: 200,
		Amp:         envelope.Envelope{Attack: 0.02, Decay: 0.25, Sustain: 0.7, Release: 0.3},
		Filter:      envelope.Envelope{Attack: 0.02, Decay: 0.3, Sustain: 0.4, Release: 0.3},
	}
}

func NewSubtractive(g *graph.Graph, params SubtractiveParams) *Subtractive {
	e := &Subtractive{graph: g, out: g.NewNode("sub-out"), params: params}
	e.manager = voice.NewManager[*subVoice](e, params.MaxVoices)
	return e
}

func (e *Subtractive) Name() string        { return "subtractive" }
func (e *Subtractive) Output() *graph.Node { return e.out }

func (e *Subtractive) Params() SubtractiveParams { return e.params }

func (e *Subtractive) SetParams(p SubtractiveParams) {
	p.MaxVoices = e.params.MaxVoices
	e.params = p
}

func (e *Subtractive) NoteOn(note, velocity byte, t float64) { e.manager.NoteOn(note, velocity, t) }
func (e *Subtractive) NoteOff(note byte, t float64)          { e.manager.NoteOff(note, t) }
func (e *Subtractive) AllNotesOff()                          { e.manager.AllNotesOff() }
func (e *Subtractive) Advance(now float64)                   { e.manager.Advance(now) }

func (e *Subtractive) ActiveCount() int    { return e.manager.ActiveCount() }
func (e *Subtractive) ReleasingCount() int { return e.manager.ReleasingCount() }

func (e *Subtractive) AnyActive() bool {
	return e.manager.ActiveCount() > 0 || e.manager.ReleasingCount() > 0
}

func (e *Subtractive) CreateVoice(note, velocity byte, t float64) *subVoice {
	freq := auricle.NoteToFreq(note)

	osc := e.graph.NewNode("sub-osc")
	osc.SetSource(func(t float64) float64 {
		// naive sawtooth; good enough for a control-plane demo
		phase := t * freq
		return 2 * (phase - math.Floor(phase+0.5))
	})

	filter := e.graph.NewNode("sub-filter")
	cutoff := filter.AddParam("cutoff", e.params.CutoffFloor)

	amp := e.graph.NewNode("sub-amp")
	ampParam := amp.AddParam(graph.GainParam, 0)

	osc.Connect(filter)
	filter.Connect(amp)
	amp.Connect(e.out)

	peak := auricle.VelocityToGain(velocity) * e.params.Gain
	envelope.ApplyAttack(ampParam, peak, e.params.Amp, t, envelope.Exponential)
	envelope.ApplyAttack(cutoff, e.params.Cutoff, e.params.Filter, t, envelope.Linear)
	osc.Start(t)
	return &subVoice{osc: osc, filter: filter, amp: amp}
}

func (e *Subtractive) ReleaseVoice(v *subVoice, note byte, t float64) float64 {
	envelope.ApplyRelease(v.amp.Param(graph.GainParam), e.params.Amp, t, envelope.Exponential)
	envelope.ApplyRelease(v.filter.Param("cutoff"), e.params.Filter, t, envelope.Linear)
	v.osc.StopAt(t + e.params.Amp.Release + stopMargin)
	return e.params.Amp.Release
}

func (e *Subtractive) KillVoice(v *subVoice) {
	v.osc.Dispose()
	v.filter.Dispose()
	v.amp.Dispose()
}

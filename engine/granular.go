package engine

import (
	"math/rand"

	"github.com/auricle-audio/auricle"
	"github.com/auricle-audio/auricle/envelope"
	"github.com/auricle-audio/auricle/graph"
	"github.com/auricle-audio/auricle/voice"
)

type (
	// GranularParams drives the granular engine. Position is the normalized
	// read position into the source buffer; Density is grains per second
	// per voice; the two randomness knobs are normalized spreads applied
	// per grain.
	GranularParams struct {
		MaxVoices          int               `yaml:"maxvoices"`
		Gain               float64           `yaml:"gain"`
		Position           float64           `yaml:"position"`
		PositionRandomness float64           `yaml:"positionrandomness"`
		PitchRandomness    float64           `yaml:"pitchrandomness"`
		Density            float64           `yaml:"density"`
		GrainDuration      float64           `yaml:"grainduration"`
		Amp                envelope.Envelope `yaml:"amp"`
	}

	// SourceBuffer is the fixed audio snippet grains read from.
	SourceBuffer struct {
		Data       []float32
		SampleRate float64
	}

	Granular struct {
		graph   *graph.Graph
		out     *graph.Node
		params  GranularParams
		buffer  SourceBuffer
		windows *windowCache
		rng     *rand.Rand
		manager *voice.Manager[*granularVoice]

		scheduleAhead float64
	}

	// granularVoice carries only its envelope stage and the grain cursor.
	// Grains have no shared bookkeeping beyond this cursor: every spawned
	// grain self-disposes on its own scheduled stop, so losing track of one
	// cannot corrupt the scheduling of the next.
	granularVoice struct {
		amp           *graph.Node
		ratio         float64
		nextGrainTime float64
	}
)

const granularScheduleAhead = 0.1

func DefaultGranularParams() GranularParams {
	return GranularParams{
		MaxVoices:          4,
		Gain:               0.5,
		Position:           0.25,
		PositionRandomness: 0.05,
		PitchRandomness:    0.02,
		Density:            25,
		GrainDuration:      0.09,
		Amp:                envelope.Envelope{Attack: 0.05, Decay: 0.4, Sustain: 0.8, Release: 0.6},
	}
}

func NewGranular(g *graph.Graph, params GranularParams, buffer SourceBuffer) *Granular {
	e := &Granular{
		graph:         g,
		out:           g.NewNode("gran-out"),
		params:        params,
		buffer:        buffer,
		windows:       newWindowCache(defaultWindowCacheSize),
		rng:           rand.New(rand.NewSource(1)),
		scheduleAhead: granularScheduleAhead,
	}
	e.manager = voice.NewManager[*granularVoice](e, params.MaxVoices)
	return e
}

func (e *Granular) Name() string        { return "granular" }
func (e *Granular) Output() *graph.Node { return e.out }

func (e *Granular) Params() GranularParams { return e.params }

func (e *Granular) SetParams(p GranularParams) {
	p.MaxVoices = e.params.MaxVoices
	e.params = p
}

// Seed re-seeds the grain randomness; tests use it for determinism.
func (e *Granular) Seed(seed int64) { e.rng = rand.New(rand.NewSource(seed)) }

func (e *Granular) NoteOn(note, velocity byte, t float64) { e.manager.NoteOn(note, velocity, t) }
func (e *Granular) NoteOff(note byte, t float64)          { e.manager.NoteOff(note, t) }
func (e *Granular) AllNotesOff()                          { e.manager.AllNotesOff() }

func (e *Granular) ActiveCount() int    { return e.manager.ActiveCount() }
func (e *Granular) ReleasingCount() int { return e.manager.ReleasingCount() }

// Advance fires due auto-kills and then tops up every active voice's grain
// stream through the lookahead window. One shared pass serves all voices;
// there is no per-voice timer.
func (e *Granular) Advance(now float64) {
	e.manager.Advance(now)
	if e.params.Density <= 0 {
		return
	}
	e.manager.EachActive(func(note byte, v *granularVoice) {
		for v.nextGrainTime < now+e.scheduleAhead {
			e.spawnGrain(v, v.nextGrainTime)
			v.nextGrainTime += 1 / e.params.Density
		}
	})
}

// AnyActive stays true through the release tail: released voices still
// carry kill deadlines the loop has to fire on time.
func (e *Granular) AnyActive() bool {
	return e.manager.ActiveCount() > 0 || e.manager.ReleasingCount() > 0
}

func (e *Granular) CreateVoice(note, velocity byte, t float64) *granularVoice {
	amp := e.graph.NewNode("gran-amp")
	ampParam := amp.AddParam(graph.GainParam, 0)
	amp.Connect(e.out)

	peak := auricle.VelocityToGain(velocity) * e.params.Gain
	envelope.ApplyAttack(ampParam, peak, e.params.Amp, t, envelope.Exponential)
	return &granularVoice{
		amp:           amp,
		ratio:         auricle.NoteToRatio(note),
		nextGrainTime: t,
	}
}

func (e *Granular) ReleaseVoice(v *granularVoice, note byte, t float64) float64 {
	envelope.ApplyRelease(v.amp.Param(graph.GainParam), e.params.Amp, t, envelope.Exponential)
	return e.params.Amp.Release
}

func (e *Granular) KillVoice(v *granularVoice) {
	v.amp.Dispose()
}

// spawnGrain schedules one windowed grain at time t: a start offset into
// the source buffer around the position knob, a playback rate around the
// note's pitch ratio, and a Hann gain curve over the grain duration so the
// grain edges cannot click.
func (e *Granular) spawnGrain(v *granularVoice, t float64) {
	if len(e.buffer.Data) == 0 || e.buffer.SampleRate <= 0 {
		return
	}
	bufDur := float64(len(e.buffer.Data)) / e.buffer.SampleRate
	grainDur := e.params.GrainDuration
	maxStart := bufDur - grainDur
	if maxStart < 0 {
		maxStart = 0
	}

	start := e.params.Position*maxStart + (e.rng.Float64()*2-1)*e.params.PositionRandomness*bufDur
	start = clamp(start, 0, maxStart)
	rate := v.ratio * (1 + (e.rng.Float64()*2-1)*e.params.PitchRandomness)

	grain := e.graph.NewNode("grain")
	buf, sr := e.buffer.Data, e.buffer.SampleRate
	grain.SetSource(func(now float64) float64 {
		pos := (start + (now-t)*rate) * sr
		i := int(pos)
		if i < 0 || i+1 >= len(buf) {
			return 0
		}
		frac := pos - float64(i)
		return float64(buf[i])*(1-frac) + float64(buf[i+1])*frac
	})

	gainParam := grain.AddParam(graph.GainParam, 0)
	winLen := int(grainDur * sr)
	gainParam.SetValueCurveAtTime(e.windows.Hann(winLen), t, grainDur)

	grain.Connect(v.amp)
	grain.Start(t)
	grain.StopAt(t + grainDur)
}

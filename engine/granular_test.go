package engine

import (
	"math"
	"testing"

	"github.com/auricle-audio/auricle"
	"github.com/auricle-audio/auricle/graph"
)

func testBuffer(seconds float64) SourceBuffer {
	sr := 8000.0
	data := make([]float32, int(seconds*sr))
	for i := range data {
		data[i] = float32(math.Sin(2 * math.Pi * 100 * float64(i) / sr))
	}
	return SourceBuffer{Data: data, SampleRate: sr}
}

func newGranularFixture(params GranularParams) (*graph.Graph, *Granular) {
	g := graph.New(&auricle.ManualClock{})
	return g, NewGranular(g, params, testBuffer(1))
}

func TestGrainsFollowDensity(t *testing.T) {
	params := DefaultGranularParams()
	params.Density = 10 // one grain per 0.1 s, the lookahead window
	params.GrainDuration = 0.05
	g, e := newGranularFixture(params)

	e.NoteOn(60, 100, 0)
	before := g.Live()
	e.Advance(0)
	if got := g.Live() - before; got != 1 {
		t.Fatalf("expected 1 grain in the first window, got %v", got)
	}

	e.Advance(0.05) // window now covers the next grain time
	if got := g.Live() - before; got != 2 {
		t.Fatalf("expected a second grain, got %v extra nodes", got)
	}

	// advancing within already-covered time spawns nothing new
	e.Advance(0.05)
	if got := g.Live() - before; got != 2 {
		t.Fatalf("re-advance spawned duplicate grains, %v extra nodes", got)
	}
}

func TestGrainsSelfDispose(t *testing.T) {
	params := DefaultGranularParams()
	params.Density = 10
	params.GrainDuration = 0.05
	g, e := newGranularFixture(params)

	e.NoteOn(60, 100, 0)
	e.Advance(0)
	live := g.Live()

	g.Advance(0.06) // past the first grain's stop time
	if g.Live() != live-1 {
		t.Fatalf("grain did not self-dispose: %v live, was %v", g.Live(), live)
	}
}

func TestZeroDensitySpawnsNothing(t *testing.T) {
	params := DefaultGranularParams()
	params.Density = 0
	g, e := newGranularFixture(params)

	e.NoteOn(60, 100, 0)
	before := g.Live()
	e.Advance(0)
	e.Advance(1)
	if g.Live() != before {
		t.Fatalf("zero density spawned grains")
	}
}

func TestEmptyBufferIsSilentNotFatal(t *testing.T) {
	g := graph.New(&auricle.ManualClock{})
	e := NewGranular(g, DefaultGranularParams(), SourceBuffer{})

	e.NoteOn(60, 100, 0)
	before := g.Live()
	e.Advance(0)
	if g.Live() != before {
		t.Fatalf("grains spawned from an empty buffer")
	}
	if !e.AnyActive() {
		t.Fatalf("voice should still be active even with no material")
	}
}

func TestGrainSpawningIsDeterministicUnderSeed(t *testing.T) {
	run := func() []float32 {
		params := DefaultGranularParams()
		params.PositionRandomness = 0.3
		params.PitchRandomness = 0.1
		params.Density = 20
		g, e := newGranularFixture(params)
		e.Seed(7)
		e.NoteOn(64, 100, 0)
		e.Advance(0)
		e.Advance(0.1)

		out := e.Output()
		buffer := make([]float32, 64)
		g.Render(out, buffer, 0.05, 8000)
		return buffer
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("seeded runs diverged at sample %v: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestGrainCursorSurvivesQuietWindows(t *testing.T) {
	params := DefaultGranularParams()
	params.Density = 10
	g, e := newGranularFixture(params)

	e.NoteOn(60, 100, 0)
	e.Advance(0)
	before := g.Live()

	// a long gap between advances: the cursor catches up rather than
	// bunching every missed grain at the same instant
	e.Advance(0.5)
	spawned := g.Live() - before
	if spawned < 4 || spawned > 6 {
		t.Fatalf("expected ~5 grains after a 0.5 s gap, got %v", spawned)
	}
	voice, ok := e.manager.Active(60)
	if !ok {
		t.Fatalf("no active voice")
	}
	if voice.nextGrainTime < 0.5 {
		t.Fatalf("cursor fell behind: %v", voice.nextGrainTime)
	}
}

func TestAnyActiveCoversReleaseTail(t *testing.T) {
	params := DefaultGranularParams()
	params.Amp.Release = 0.1
	g, e := newGranularFixture(params)

	if e.AnyActive() {
		t.Fatalf("fresh engine claims activity")
	}
	e.NoteOn(60, 100, 0)
	if !e.AnyActive() {
		t.Fatalf("triggered voice not reported")
	}
	e.NoteOff(60, 0.5)
	if !e.AnyActive() {
		t.Fatalf("releasing voice must keep the loop polling for its kill deadline")
	}

	e.Advance(1)
	g.Advance(1)
	if e.AnyActive() {
		t.Fatalf("engine still claims activity after cleanup")
	}

	// idle advances are free: nothing to walk, nothing spawned
	before := g.Live()
	e.Advance(2)
	if g.Live() != before {
		t.Fatalf("idle advance spawned grains")
	}
}

func TestReleasedVoiceStopsSpawning(t *testing.T) {
	params := DefaultGranularParams()
	params.Density = 10
	params.Amp.Release = 0.1
	g, e := newGranularFixture(params)

	e.NoteOn(60, 100, 0)
	e.Advance(0)
	e.NoteOff(60, 0.05)

	before := g.Live()
	e.Advance(0.2) // released voices have no grain cursor to walk
	if g.Live() > before {
		t.Fatalf("released voice kept spawning grains")
	}

	e.Advance(1)
	if e.ReleasingCount() != 0 {
		t.Fatalf("released voice never cleaned up")
	}
}

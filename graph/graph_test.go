package graph

import (
	"testing"

	"github.com/auricle-audio/auricle"
)

func newTestGraph() *Graph {
	return New(&auricle.ManualClock{})
}

func TestConnectIsIdempotent(t *testing.T) {
	g := newTestGraph()
	a := g.NewNode("a")
	b := g.NewNode("b")

	a.Connect(b)
	a.Connect(b)
	if outs := a.Outputs(); len(outs) != 1 || outs[0] != b {
		t.Fatalf("double connect duplicated the edge: %v outputs", len(outs))
	}
	if b.NumInputs() != 1 {
		t.Fatalf("destination sees %v inputs, expected 1", b.NumInputs())
	}
}

func TestSelfConnectRejected(t *testing.T) {
	g := newTestGraph()
	a := g.NewNode("a")
	a.Connect(a)
	a.Connect(nil)
	if len(a.Outputs()) != 0 {
		t.Fatalf("self or nil connect created an edge")
	}
}

func TestDisconnectAbsentEdgeIsSilent(t *testing.T) {
	g := newTestGraph()
	a := g.NewNode("a")
	b := g.NewNode("b")

	a.Disconnect(b) // never connected
	a.Connect(b)
	a.Disconnect(b)
	a.Disconnect(b) // already gone
	if a.Connected(b) || b.NumInputs() != 0 {
		t.Fatalf("disconnect left residue")
	}
}

func TestOutputsKeepConnectOrder(t *testing.T) {
	g := newTestGraph()
	src := g.NewNode("src")
	a := g.NewNode("a")
	b := g.NewNode("b")
	c := g.NewNode("c")

	src.Connect(b)
	src.Connect(a)
	src.Connect(c)
	outs := src.Outputs()
	if outs[0] != b || outs[1] != a || outs[2] != c {
		t.Fatalf("outputs reordered")
	}
}

func TestScheduledStopDisposes(t *testing.T) {
	g := newTestGraph()
	n := g.NewNode("n")
	dst := g.NewNode("dst")
	n.Connect(dst)

	stopped := false
	n.OnStop(func() { stopped = true })
	n.Start(0)
	n.StopAt(1)

	g.Advance(0.5)
	if n.Disposed() || stopped {
		t.Fatalf("stop fired early")
	}
	g.Advance(1)
	if !n.Disposed() || !stopped {
		t.Fatalf("stop did not fire at its deadline")
	}
	if dst.NumInputs() != 0 {
		t.Fatalf("disposed node still connected downstream")
	}
}

func TestStopRescheduleLatestWins(t *testing.T) {
	g := newTestGraph()
	n := g.NewNode("n")
	n.Start(0)
	n.StopAt(1)
	n.StopAt(2)

	g.Advance(1)
	if n.Disposed() {
		t.Fatalf("superseded deadline fired")
	}
	g.Advance(2)
	if !n.Disposed() {
		t.Fatalf("rescheduled stop never fired")
	}
}

func TestDisposeCancelsStopAndSeversBothDirections(t *testing.T) {
	g := newTestGraph()
	up := g.NewNode("up")
	n := g.NewNode("n")
	down := g.NewNode("down")
	up.Connect(n)
	n.Connect(down)
	n.StopAt(1)

	fired := false
	n.OnStop(func() { fired = true })
	n.Dispose()
	n.Dispose() // idempotent

	if len(up.Outputs()) != 0 || down.NumInputs() != 0 {
		t.Fatalf("dispose left edges behind")
	}
	g.Advance(10)
	if fired {
		t.Fatalf("cancelled stop fired anyway")
	}
}

func TestLiveCountsUndisposedNodes(t *testing.T) {
	g := newTestGraph()
	a := g.NewNode("a")
	g.NewNode("b")
	if g.Live() != 2 {
		t.Fatalf("expected 2 live nodes, got %v", g.Live())
	}
	a.Dispose()
	if g.Live() != 1 {
		t.Fatalf("expected 1 live node after dispose, got %v", g.Live())
	}
}

func TestAddParamIsIdempotent(t *testing.T) {
	g := newTestGraph()
	n := g.NewNode("n")
	p1 := n.AddParam("gain", 0.5)
	p2 := n.AddParam("gain", 0.9)
	if p1 != p2 {
		t.Fatalf("re-registering returned a different parameter")
	}
	if v := p1.ValueAt(0); v != 0.5 {
		t.Fatalf("re-registering changed the initial value: %v", v)
	}
	if n.Param("missing") != nil {
		t.Fatalf("unregistered parameter lookup should be nil")
	}
}

func TestRenderSumsInputsThroughGain(t *testing.T) {
	g := newTestGraph()
	src := g.NewNode("src")
	src.SetSource(func(t float64) float64 { return 1 })
	src.Start(0)

	out := g.NewNode("out")
	out.AddParam(GainParam, 0.5)
	src.Connect(out)

	buffer := make([]float32, 8)
	end := g.Render(out, buffer, 0, 4)
	if end != 1 {
		t.Fatalf("expected render to end at t=1, got %v", end)
	}
	for i, v := range buffer {
		if v != 0.5 {
			t.Fatalf("sample %v is %v, expected 0.5", i, v)
		}
	}
}

func TestRenderSilentOutsideSourceWindow(t *testing.T) {
	g := newTestGraph()
	src := g.NewNode("src")
	src.SetSource(func(t float64) float64 { return 1 })
	src.Start(1)
	src.StopAt(2)

	if v := src.valueAt(0.5, map[*Node]bool{}); v != 0 {
		t.Errorf("source audible before start: %v", v)
	}
	if v := src.valueAt(1.5, map[*Node]bool{}); v != 1 {
		t.Errorf("source silent inside its window: %v", v)
	}
	if v := src.valueAt(2, map[*Node]bool{}); v != 0 {
		t.Errorf("source audible at its stop time: %v", v)
	}
}

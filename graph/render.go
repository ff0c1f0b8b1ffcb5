package graph

// Thin pull-based renderer so the demo binary can make the control plane
// audible. A node's output is its source signal (if any) plus the sum of
// its inputs, multiplied by its "gain" parameter when one is registered.
// This is deliberately naive; the module's correctness claims are about
// wiring and scheduling, not about DSP quality.

// GainParam is the parameter name the renderer treats as a node's output
// level. Engines put their envelope and window automation on it.
const GainParam = "gain"

func (n *Node) valueAt(t float64, visiting map[*Node]bool) float64 {
	if n.disposed || visiting[n] {
		return 0
	}
	visiting[n] = true
	defer delete(visiting, n)

	acc := 0.0
	for _, in := range n.ins {
		acc += in.valueAt(t, visiting)
	}
	if n.source != nil {
		if n.started && t >= n.startAt && (!n.stopSet || t < n.stopAt) {
			acc += n.source(t)
		}
	}
	if p := n.params[GainParam]; p != nil {
		acc *= p.ValueAt(t)
	}
	return acc
}

// Render fills the stereo interleaved buffer by pulling dst's value sample
// by sample starting at time start. Returns the time just past the last
// rendered frame.
func (g *Graph) Render(dst *Node, buffer []float32, start, sampleRate float64) float64 {
	visiting := make(map[*Node]bool)
	frames := len(buffer) / 2
	t := start
	for i := 0; i < frames; i++ {
		t = start + float64(i)/sampleRate
		v := float32(dst.valueAt(t, visiting))
		buffer[2*i] = v
		buffer[2*i+1] = v
	}
	return start + float64(frames)/sampleRate
}

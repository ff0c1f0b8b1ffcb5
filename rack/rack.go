// Package rack maintains the ordered effect chain between the send and
// return buses and rewires the live signal graph when slots are toggled,
// moved or re-registered. Rewiring never tears down connections that are
// staying, because every disconnect of a carrying edge is an audible click.
package rack

import (
	"slices"

	"github.com/auricle-audio/auricle/graph"
)

type (
	// IO is the input/output node pair of one effect unit.
	IO struct {
		Input  *graph.Node
		Output *graph.Node
	}

	// Slot is one registered effect. Slots live for the whole session; a
	// unit whose nodes are not built yet registers with a nil IO and gets
	// skipped by the wiring until it upserts a real one.
	Slot struct {
		ID      string
		Label   string
		IO      *IO
		Enabled bool
	}

	Mode int

	edge struct {
		from *graph.Node
		to   *graph.Node
	}

	// Tracer observes individual rewire operations. Tests use it to pin
	// down that surgical rewires touch only the changed seams.
	Tracer func(verb string, from, to *graph.Node)

	Rack struct {
		send   *graph.Node
		ret    *graph.Node
		mode   Mode
		slots  []*Slot
		tracer Tracer

		// last-applied wiring snapshot; consulted by surgical rewires and
		// replaced only after a rewrite fully completes
		prevEdges []edge
		prevMode  Mode
		prevSend  *graph.Node
		prevRet   *graph.Node
	}
)

const (
	Serial Mode = iota
	Parallel
)

type Direction int

const (
	Up Direction = iota
	Down
)

func New(send, ret *graph.Node) *Rack {
	r := &Rack{send: send, ret: ret, mode: Serial}
	r.fullRewire()
	return r
}

func (r *Rack) SetTracer(t Tracer) { r.tracer = t }

func (r *Rack) Mode() Mode { return r.mode }

// Register upserts a slot. A new id is appended to the rack order,
// disabled; re-registering updates the label and IO but keeps the slot's
// position and enabled state, so a late-built unit slides into the wiring
// it was already toggled into.
func (r *Rack) Register(id, label string, io *IO) {
	for _, s := range r.slots {
		if s.ID == id {
			s.Label = label
			s.IO = io
			r.surgicalRewire()
			return
		}
	}
	r.slots = append(r.slots, &Slot{ID: id, Label: label, IO: io})
	r.surgicalRewire()
}

// Toggle flips a slot's enabled flag. Unknown ids are ignored.
func (r *Rack) Toggle(id string) {
	for _, s := range r.slots {
		if s.ID == id {
			s.Enabled = !s.Enabled
			r.surgicalRewire()
			return
		}
	}
}

// Move shifts a slot one position up or down the rack order. Moving past
// either end is a no-op.
func (r *Rack) Move(id string, dir Direction) {
	i := slices.IndexFunc(r.slots, func(s *Slot) bool { return s.ID == id })
	if i < 0 {
		return
	}
	j := i - 1
	if dir == Down {
		j = i + 1
	}
	if j < 0 || j >= len(r.slots) {
		return
	}
	r.slots[i], r.slots[j] = r.slots[j], r.slots[i]
	r.surgicalRewire()
}

// SetMode switches between serial and parallel routing. A mode flip
// invalidates incremental-diff assumptions, so it always does a full
// rewire.
func (r *Rack) SetMode(mode Mode) {
	if mode == r.mode {
		return
	}
	r.mode = mode
	r.fullRewire()
}

// SetEndpoints swaps the send/return buses and fully rewires against them.
func (r *Rack) SetEndpoints(send, ret *graph.Node) {
	r.send = send
	r.ret = ret
	r.fullRewire()
}

// Slots returns a snapshot of the rack order for the UI.
func (r *Rack) Slots() []Slot {
	out := make([]Slot, len(r.slots))
	for i, s := range r.slots {
		out[i] = *s
	}
	return out
}

// active returns the slots that participate in the wiring: enabled, with a
// ready IO pair, in rack order.
func (r *Rack) active() []*Slot {
	var out []*Slot
	for _, s := range r.slots {
		if s.Enabled && s.IO != nil && s.IO.Input != nil && s.IO.Output != nil {
			out = append(out, s)
		}
	}
	return out
}

// desiredEdges computes the exact connection set for the current slots and
// mode. The empty active set yields the direct bypass, so there is always
// exactly one path from send to return.
func (r *Rack) desiredEdges() []edge {
	active := r.active()
	if len(active) == 0 {
		return []edge{{r.send, r.ret}}
	}
	var edges []edge
	switch r.mode {
	case Serial:
		edges = append(edges, edge{r.send, active[0].IO.Input})
		for i := 0; i+1 < len(active); i++ {
			edges = append(edges, edge{active[i].IO.Output, active[i+1].IO.Input})
		}
		edges = append(edges, edge{active[len(active)-1].IO.Output, r.ret})
	case Parallel:
		for _, s := range active {
			edges = append(edges, edge{r.send, s.IO.Input})
			edges = append(edges, edge{s.IO.Output, r.ret})
		}
	}
	return edges
}

// fullRewire disconnects the send and every known effect output from
// everything, then rebuilds the desired state from scratch. Used whenever
// the endpoints or the routing mode change; the reference semantics that
// surgical rewires must match.
func (r *Rack) fullRewire() {
	r.disconnectEverything(r.send)
	if r.prevSend != nil && r.prevSend != r.send {
		r.disconnectEverything(r.prevSend)
	}
	for _, s := range r.slots {
		if s.IO != nil && s.IO.Output != nil {
			r.disconnectEverything(s.IO.Output)
		}
	}
	desired := r.desiredEdges()
	for _, e := range desired {
		r.connect(e)
	}
	r.commit(desired)
}

// surgicalRewire diffs the desired connection set against the last-applied
// snapshot and touches only the edges that changed. Connections common to
// both sets are provably left alone, which is what keeps topology changes
// from clicking. Handles every shape of change, including the active chain
// shrinking to empty from the middle of the list.
func (r *Rack) surgicalRewire() {
	if r.prevSend != r.send || r.prevRet != r.ret || r.prevMode != r.mode {
		r.fullRewire()
		return
	}
	desired := r.desiredEdges()
	for _, e := range r.prevEdges {
		if !containsEdge(desired, e) {
			r.disconnect(e)
		}
	}
	for _, e := range desired {
		if !containsEdge(r.prevEdges, e) {
			r.connect(e)
		}
	}
	r.commit(desired)
}

func (r *Rack) commit(desired []edge) {
	r.prevEdges = desired
	r.prevMode = r.mode
	r.prevSend = r.send
	r.prevRet = r.ret
}

func (r *Rack) connect(e edge) {
	if r.tracer != nil {
		r.tracer("connect", e.from, e.to)
	}
	e.from.Connect(e.to)
}

func (r *Rack) disconnect(e edge) {
	if r.tracer != nil {
		r.tracer("disconnect", e.from, e.to)
	}
	// best-effort: the snapshot can desync from reality if a collaborator
	// reset connections externally, and that must not be an error
	e.from.Disconnect(e.to)
}

func (r *Rack) disconnectEverything(n *graph.Node) {
	if n == nil {
		return
	}
	for _, dst := range n.Outputs() {
		r.disconnect(edge{n, dst})
	}
}

func containsEdge(edges []edge, e edge) bool {
	return slices.Contains(edges, e)
}

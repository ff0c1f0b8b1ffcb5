// Package graph implements the control-plane signal graph the synthesis
// engines and the effects rack wire their nodes into. It tracks nodes,
// connections and parameter automation; the actual sample math of a node is
// supplied by its owner (see render.go). Connections are ordered and
// disconnects are idempotent, so wiring snapshots elsewhere can safely
// desync from reality without causing errors.
package graph

import (
	"container/heap"
	"slices"

	"github.com/auricle-audio/auricle"
)

type (
	Graph struct {
		clock  auricle.Clock
		nodes  []*Node
		stops  stopHeap
		serial int
	}

	// Node is one endpoint in the signal graph: an oscillator, a gain stage,
	// an effect input, a bus. Nodes are created started-at-never; sources
	// call Start/StopAt to bound their audible lifetime, and StopAt arms the
	// graph-owned deadline that later fires OnStop hooks and disposes the
	// node.
	Node struct {
		graph  *Graph
		name   string
		id     int
		outs   []*Node
		ins    []*Node
		params map[string]*Param

		source   SourceFunc
		started  bool
		startAt  float64
		stopAt   float64
		stopSet  bool
		onStop   []func()
		disposed bool
	}

	// SourceFunc generates the raw signal of a source node at time t, before
	// the node's own gain automation is applied.
	SourceFunc func(t float64) float64

	stopItem struct {
		at     float64
		serial int
		node   *Node
	}

	stopHeap []stopItem
)

func New(clock auricle.Clock) *Graph {
	return &Graph{clock: clock}
}

func (g *Graph) Clock() auricle.Clock { return g.clock }

// NewNode creates a node with the given debug name. The name does not have
// to be unique; identity is the pointer.
func (g *Graph) NewNode(name string) *Node {
	g.serial++
	n := &Node{graph: g, name: name, id: g.serial, params: make(map[string]*Param)}
	g.nodes = append(g.nodes, n)
	return n
}

// Live returns the number of nodes that have not been disposed. Voice-leak
// tests watch this.
func (g *Graph) Live() int {
	count := 0
	for _, n := range g.nodes {
		if !n.disposed {
			count++
		}
	}
	return count
}

// Advance fires every scheduled stop whose deadline is at or before now,
// disposing the stopped nodes. Runs on the cooperative loop; hooks may
// schedule further stops.
func (g *Graph) Advance(now float64) {
	for len(g.stops) > 0 && g.stops[0].at <= now {
		item := heap.Pop(&g.stops).(stopItem)
		n := item.node
		if n.disposed || !n.stopSet || n.stopAt != item.at {
			continue // stop was rescheduled or node already gone
		}
		hooks := n.onStop
		n.onStop = nil
		n.Dispose()
		for _, hook := range hooks {
			hook()
		}
	}
	g.compact()
}

func (g *Graph) compact() {
	if len(g.nodes) < 64 {
		return
	}
	live := 0
	for _, n := range g.nodes {
		if !n.disposed {
			live++
		}
	}
	if live*2 > len(g.nodes) {
		return
	}
	kept := make([]*Node, 0, live)
	for _, n := range g.nodes {
		if !n.disposed {
			kept = append(kept, n)
		}
	}
	g.nodes = kept
}

func (n *Node) Name() string { return n.name }

// Connect adds an edge from n to dst. Connecting an already-connected pair
// or a disposed endpoint is a no-op.
func (n *Node) Connect(dst *Node) {
	if dst == nil || dst == n || n.disposed || dst.disposed {
		return
	}
	if slices.Contains(n.outs, dst) {
		return
	}
	n.outs = append(n.outs, dst)
	dst.ins = append(dst.ins, n)
}

// Disconnect removes the edge from n to dst. Removing an absent edge
// succeeds silently.
func (n *Node) Disconnect(dst *Node) {
	if i := slices.Index(n.outs, dst); i >= 0 {
		n.outs = slices.Delete(n.outs, i, i+1)
	}
	if dst != nil {
		if i := slices.Index(dst.ins, n); i >= 0 {
			dst.ins = slices.Delete(dst.ins, i, i+1)
		}
	}
}

// DisconnectAll removes every outgoing edge of n.
func (n *Node) DisconnectAll() {
	for len(n.outs) > 0 {
		n.Disconnect(n.outs[len(n.outs)-1])
	}
}

func (n *Node) Connected(dst *Node) bool {
	return slices.Contains(n.outs, dst)
}

// Outputs returns the outgoing connections in connect order.
func (n *Node) Outputs() []*Node {
	return slices.Clone(n.outs)
}

func (n *Node) NumInputs() int { return len(n.ins) }

// SetSource attaches a generator to the node, making it a source.
func (n *Node) SetSource(f SourceFunc) { n.source = f }

// AddParam registers a named automation parameter with an initial value.
// Registering the same name again returns the existing parameter.
func (n *Node) AddParam(name string, initial float64) *Param {
	if p, ok := n.params[name]; ok {
		return p
	}
	p := newParam(name, initial)
	n.params[name] = p
	return p
}

// Param returns the named parameter, or nil if it was never registered.
func (n *Node) Param(name string) *Param { return n.params[name] }

// Start schedules the node's signal to begin at time t.
func (n *Node) Start(t float64) {
	n.started = true
	n.startAt = t
}

// StopAt schedules the node to stop and self-dispose at time t. The latest
// call wins; the graph's Advance fires the deadline.
func (n *Node) StopAt(t float64) {
	if n.disposed {
		return
	}
	n.stopAt = t
	n.stopSet = true
	n.graph.serial++
	heap.Push(&n.graph.stops, stopItem{at: t, serial: n.graph.serial, node: n})
}

// OnStop registers a hook to run when the node's scheduled stop fires.
func (n *Node) OnStop(f func()) {
	n.onStop = append(n.onStop, f)
}

// Dispose immediately severs the node from the graph, in both directions,
// and cancels its pending stop. Safe to call twice.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.DisconnectAll()
	for len(n.ins) > 0 {
		n.ins[len(n.ins)-1].Disconnect(n)
	}
	n.stopSet = false
	n.disposed = true
}

func (n *Node) Disposed() bool { return n.disposed }

func (h stopHeap) Len() int { return len(h) }

func (h stopHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].serial < h[j].serial
}

func (h stopHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *stopHeap) Push(x any) { *h = append(*h, x.(stopItem)) }

func (h *stopHeap) Pop() any {
	old := *h
	item := old[len(old)-1]
	*h = old[:len(old)-1]
	return item
}

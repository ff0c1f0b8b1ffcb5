// Package voice implements polyphonic voice allocation: triggering,
// releasing, oldest-first stealing under a cap, and deadline-driven cleanup
// of released voices. The concrete voice type is opaque; engines inject a
// Lifecycle implementation that builds and tears down the actual nodes.
package voice

import (
	"container/heap"
)

type (
	// Lifecycle is implemented by each synthesis engine. None of the methods
	// return errors: a voice that cannot sound is the engine's problem to
	// make silent, not the allocator's.
	Lifecycle[V any] interface {
		// CreateVoice builds the voice's node graph and starts its attack at
		// time t. velocity is the raw MIDI velocity 0..127.
		CreateVoice(note, velocity byte, t float64) V
		// ReleaseVoice begins the voice's release ramp at time t and returns
		// the release duration in seconds, so the manager can arm the
		// auto-kill deadline.
		ReleaseVoice(v V, note byte, t float64) float64
		// KillVoice stops and disconnects the voice immediately, with no
		// ramp. Audibly abrupt; used for stealing and AllNotesOff.
		KillVoice(v V)
	}

	// Manager owns every voice between creation and kill. At most one voice
	// exists per note number, counting the active and releasing sets
	// together, and the active count never exceeds the polyphony cap.
	Manager[V any] struct {
		lifecycle Lifecycle[V]
		maxVoices int

		active    map[byte]*entry[V]
		releasing map[byte]*entry[V]
		order     []byte // active notes, oldest first, for stealing
		kills     killHeap[V]
		serial    int
	}

	entry[V any] struct {
		note    byte
		voice   V
		started float64
		kill    *deadline[V]
	}

	// deadline is an explicit, cancellable auto-kill timer owned by the
	// manager. Cancellation just marks it; the heap drops cancelled items
	// lazily when they surface.
	deadline[V any] struct {
		at        float64
		serial    int
		entry     *entry[V]
		cancelled bool
	}

	killHeap[V any] []*deadline[V]
)

// killMargin is added to the nominal release duration before the auto-kill
// fires, so the tail of the release ramp is not cut audibly short.
const killMargin = 0.05

func NewManager[V any](lifecycle Lifecycle[V], maxVoices int) *Manager[V] {
	if maxVoices < 1 {
		maxVoices = 1
	}
	return &Manager[V]{
		lifecycle: lifecycle,
		maxVoices: maxVoices,
		active:    make(map[byte]*entry[V]),
		releasing: make(map[byte]*entry[V]),
	}
}

// NoteOn triggers a new voice for note at time t. Any previous voice for
// the same note, active or releasing, is hard-killed first; if the
// polyphony cap is reached, the oldest active voice is stolen.
func (m *Manager[V]) NoteOn(note, velocity byte, t float64) {
	if e, ok := m.releasing[note]; ok {
		m.cancelKill(e)
		m.lifecycle.KillVoice(e.voice)
		delete(m.releasing, note)
	}
	if e, ok := m.active[note]; ok {
		// retrigger: the old voice goes away without a ramp
		m.lifecycle.KillVoice(e.voice)
		delete(m.active, note)
		m.removeFromOrder(note)
	}
	for len(m.active) >= m.maxVoices && len(m.order) > 0 {
		m.steal()
	}
	v := m.lifecycle.CreateVoice(note, velocity, t)
	m.active[note] = &entry[V]{note: note, voice: v, started: t}
	m.order = append(m.order, note)
}

// NoteOff releases the voice for note at time t. A note that is not active
// is a valid no-op: it may have been stolen, or never triggered here.
func (m *Manager[V]) NoteOff(note byte, t float64) {
	e, ok := m.active[note]
	if !ok {
		return
	}
	delete(m.active, note)
	m.removeFromOrder(note)
	release := m.lifecycle.ReleaseVoice(e.voice, note, t)
	m.releasing[note] = e
	m.armKill(e, t+release+killMargin)
}

// AllNotesOff synchronously hard-kills every active and releasing voice and
// cancels every pending deadline, leaving the manager empty.
func (m *Manager[V]) AllNotesOff() {
	for note, e := range m.active {
		m.lifecycle.KillVoice(e.voice)
		delete(m.active, note)
	}
	for note, e := range m.releasing {
		m.cancelKill(e)
		m.lifecycle.KillVoice(e.voice)
		delete(m.releasing, note)
	}
	m.order = m.order[:0]
	m.kills = m.kills[:0]
}

// Advance fires every auto-kill deadline due at or before now. Call it from
// the cooperative loop; it never blocks.
func (m *Manager[V]) Advance(now float64) {
	for len(m.kills) > 0 && m.kills[0].at <= now {
		d := heap.Pop(&m.kills).(*deadline[V])
		if d.cancelled {
			continue
		}
		e := d.entry
		if m.releasing[e.note] != e {
			continue // superseded by a retrigger
		}
		m.lifecycle.KillVoice(e.voice)
		delete(m.releasing, e.note)
	}
}

// ActiveNotes returns the active note numbers, oldest first.
func (m *Manager[V]) ActiveNotes() []byte {
	notes := make([]byte, len(m.order))
	copy(notes, m.order)
	return notes
}

func (m *Manager[V]) ActiveCount() int    { return len(m.active) }
func (m *Manager[V]) ReleasingCount() int { return len(m.releasing) }

// EachActive visits every active voice, oldest first. The grain scheduler
// uses this to walk its per-voice cursors.
func (m *Manager[V]) EachActive(f func(note byte, v V)) {
	for _, note := range m.order {
		if e, ok := m.active[note]; ok {
			f(note, e.voice)
		}
	}
}

// Active returns the active voice for note, if any.
func (m *Manager[V]) Active(note byte) (v V, ok bool) {
	if e, found := m.active[note]; found {
		return e.voice, true
	}
	return v, false
}

func (m *Manager[V]) steal() {
	note := m.order[0]
	m.order = m.order[1:]
	e, ok := m.active[note]
	if !ok {
		return
	}
	m.lifecycle.KillVoice(e.voice)
	delete(m.active, note)
}

func (m *Manager[V]) armKill(e *entry[V], at float64) {
	m.serial++
	d := &deadline[V]{at: at, serial: m.serial, entry: e}
	e.kill = d
	heap.Push(&m.kills, d)
}

func (m *Manager[V]) cancelKill(e *entry[V]) {
	if e.kill != nil {
		e.kill.cancelled = true
		e.kill = nil
	}
}

func (m *Manager[V]) removeFromOrder(note byte) {
	for i, n := range m.order {
		if n == note {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

func (h killHeap[V]) Len() int { return len(h) }

func (h killHeap[V]) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].serial < h[j].serial
}

func (h killHeap[V]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *killHeap[V]) Push(x any) { *h = append(*h, x.(*deadline[V])) }

func (h *killHeap[V]) Pop() any {
	old := *h
	d := old[len(old)-1]
	*h = old[:len(old)-1]
	return d
}

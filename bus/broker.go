// Package bus is the centralized message broker between event producers
// (MIDI input, the step sequencer, the UI) and the engines. Producers on
// other goroutines post messages to a channel; the cooperative loop drains
// the channel with Dispatch and fans events out to every attached engine
// synchronously, so note handling itself never races. Sends are always
// non-blocking, so no producer can deadlock the audio loop.
package bus

import (
	"time"
)

type (
	Broker struct {
		ToCore chan Msg   // producer goroutines -> cooperative loop
		Alerts chan Alert // anything -> whoever shows errors

		// shutdown handshake: the owner asks the cooperative loop to stop
		// via CloseInput; the loop acknowledges by closing FinishedInput
		CloseInput    chan struct{}
		FinishedInput chan struct{}

		handlers []Handler
	}

	// Handler receives note events on the cooperative loop. Every engine's
	// voice manager facade implements this; the bus treats hardware MIDI,
	// the on-screen keyboard, file playback and the step sequencer
	// identically.
	Handler interface {
		NoteOn(note, velocity byte, t float64)
		NoteOff(note byte, t float64)
		AllNotesOff()
	}

	// Msg is one command from a producer. Zero Time means "when dispatched":
	// the loop stamps it with the clock on arrival.
	Msg struct {
		Kind     MsgKind
		Note     byte
		Velocity byte
		Time     float64
		HasTime  bool
	}

	MsgKind int

	Alert struct {
		Name     string
		Message  string
		Priority AlertPriority
	}

	AlertPriority int
)

const (
	MsgNoteOn MsgKind = iota
	MsgNoteOff
	MsgAllNotesOff
)

const (
	Info AlertPriority = iota
	Warning
	Error
)

func NewBroker() *Broker {
	return &Broker{
		ToCore:        make(chan Msg, 1024),
		Alerts:        make(chan Alert, 64),
		CloseInput:    make(chan struct{}, 1),
		FinishedInput: make(chan struct{}),
	}
}

// Attach subscribes a handler to all note events. Not safe to call
// concurrently with Dispatch; do it during setup on the loop.
func (b *Broker) Attach(h Handler) {
	b.handlers = append(b.handlers, h)
}

// NoteOn fans a note-on out to every handler. For callers already on the
// cooperative loop.
func (b *Broker) NoteOn(note, velocity byte, t float64) {
	for _, h := range b.handlers {
		h.NoteOn(note, velocity, t)
	}
}

// NoteOff fans a note-off out to every handler.
func (b *Broker) NoteOff(note byte, t float64) {
	for _, h := range b.handlers {
		h.NoteOff(note, t)
	}
}

// AllNotesOff fans the panic out to every handler.
func (b *Broker) AllNotesOff() {
	for _, h := range b.handlers {
		h.AllNotesOff()
	}
}

// Dispatch drains every queued producer message and applies it at time now
// (or at the message's own timestamp when it carries one). Never blocks.
func (b *Broker) Dispatch(now float64) {
	for {
		select {
		case msg := <-b.ToCore:
			t := now
			if msg.HasTime {
				t = msg.Time
			}
			switch msg.Kind {
			case MsgNoteOn:
				b.NoteOn(msg.Note, msg.Velocity, t)
			case MsgNoteOff:
				b.NoteOff(msg.Note, t)
			case MsgAllNotesOff:
				b.AllNotesOff()
			}
		default:
			return
		}
	}
}

// SendAlert posts an alert without blocking; if nobody is draining the
// alert channel, the alert is dropped rather than stalling the loop.
func (b *Broker) SendAlert(name, message string, priority AlertPriority) {
	TrySend(b.Alerts, Alert{Name: name, Message: message, Priority: priority})
}

// TrySend sends a value to a channel if it is not full. Guaranteed to be
// non-blocking; returns false if the value was dropped.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive blocks until a value is received from the channel or the
// timeout elapses. ok is false on timeout or if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}

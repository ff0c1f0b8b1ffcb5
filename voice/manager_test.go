package voice

import (
	"testing"
)

type (
	fakeVoice struct {
		id int
	}

	// recorder implements Lifecycle and logs every call so tests can assert
	// exactly which voices were built and torn down.
	recorder struct {
		nextID   int
		created  []byte
		released []byte
		killed   []int
		release  float64
	}
)

func (r *recorder) CreateVoice(note, velocity byte, t float64) *fakeVoice {
	r.nextID++
	r.created = append(r.created, note)
	return &fakeVoice{id: r.nextID}
}

func (r *recorder) ReleaseVoice(v *fakeVoice, note byte, t float64) float64 {
	r.released = append(r.released, note)
	return r.release
}

func (r *recorder) KillVoice(v *fakeVoice) {
	r.killed = append(r.killed, v.id)
}

func TestNoteLifecycle(t *testing.T) {
	r := &recorder{release: 0.4}
	m := NewManager[*fakeVoice](r, 8)

	m.NoteOn(60, 100, 1.0)
	if m.ActiveCount() != 1 || m.ReleasingCount() != 0 {
		t.Fatalf("after NoteOn: active %v releasing %v, expected 1 0", m.ActiveCount(), m.ReleasingCount())
	}

	m.NoteOff(60, 2.0)
	if m.ActiveCount() != 0 || m.ReleasingCount() != 1 {
		t.Fatalf("after NoteOff: active %v releasing %v, expected 0 1", m.ActiveCount(), m.ReleasingCount())
	}
	if len(r.killed) != 0 {
		t.Fatalf("voice killed before its deadline: %v", r.killed)
	}

	m.Advance(2.0 + 0.4) // release still ringing, margin not elapsed
	if len(r.killed) != 0 {
		t.Fatalf("voice killed during release tail: %v", r.killed)
	}

	m.Advance(3.0)
	if len(r.killed) != 1 {
		t.Fatalf("expected 1 kill after deadline, got %v", len(r.killed))
	}
	if m.ReleasingCount() != 0 {
		t.Fatalf("releasing voice not cleaned up")
	}
}

func TestOnlyOneVoicePerNote(t *testing.T) {
	r := &recorder{}
	m := NewManager[*fakeVoice](r, 8)

	m.NoteOn(60, 100, 0)
	m.NoteOn(60, 100, 1)
	if m.ActiveCount() != 1 {
		t.Fatalf("retrigger left %v active voices for one note", m.ActiveCount())
	}
	if len(r.killed) != 1 || r.killed[0] != 1 {
		t.Fatalf("retrigger should hard-kill the first voice, killed %v", r.killed)
	}
}

func TestOldestVoiceStolen(t *testing.T) {
	r := &recorder{}
	m := NewManager[*fakeVoice](r, 2)

	m.NoteOn(60, 100, 0)
	m.NoteOn(64, 100, 1)
	m.NoteOn(67, 100, 2)

	notes := m.ActiveNotes()
	if len(notes) != 2 || notes[0] != 64 || notes[1] != 67 {
		t.Fatalf("expected active notes [64 67], got %v", notes)
	}
	if len(r.killed) != 1 || r.killed[0] != 1 {
		t.Fatalf("expected the voice for note 60 stolen, killed %v", r.killed)
	}
}

func TestNoteOffUnknownNoteIsNoOp(t *testing.T) {
	r := &recorder{release: 0.4}
	m := NewManager[*fakeVoice](r, 8)

	m.NoteOff(72, 1.0)
	if len(r.released) != 0 || m.ReleasingCount() != 0 {
		t.Fatalf("NoteOff for an unknown note did something: released %v", r.released)
	}
}

func TestRetriggerDuringReleaseKillsExactlyOnce(t *testing.T) {
	r := &recorder{release: 0.4}
	m := NewManager[*fakeVoice](r, 8)

	m.NoteOn(60, 100, 0)
	m.NoteOff(60, 1)
	m.NoteOn(60, 100, 1.1) // retrigger while the old voice is releasing
	if len(r.killed) != 1 {
		t.Fatalf("retrigger should kill the releasing voice once, killed %v", r.killed)
	}

	// the stale deadline must not fire against the new voice
	m.Advance(10)
	if len(r.killed) != 1 {
		t.Fatalf("stale deadline killed again: %v", r.killed)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("retriggered voice went missing")
	}
}

func TestAllNotesOff(t *testing.T) {
	r := &recorder{release: 0.4}
	m := NewManager[*fakeVoice](r, 8)

	m.NoteOn(60, 100, 0)
	m.NoteOn(64, 100, 0)
	m.NoteOff(60, 1)
	m.AllNotesOff()

	if m.ActiveCount() != 0 || m.ReleasingCount() != 0 {
		t.Fatalf("AllNotesOff left voices behind: %v active %v releasing", m.ActiveCount(), m.ReleasingCount())
	}
	if len(r.killed) != 2 {
		t.Fatalf("expected both voices killed, killed %v", r.killed)
	}

	killed := len(r.killed)
	m.Advance(100)
	if len(r.killed) != killed {
		t.Fatalf("deadline fired after AllNotesOff cleared it")
	}
}

func TestNoVoiceLeaks(t *testing.T) {
	r := &recorder{release: 0.1}
	m := NewManager[*fakeVoice](r, 4)

	now := 0.0
	for i := 0; i < 100; i++ {
		note := byte(40 + i%20)
		m.NoteOn(note, 100, now)
		m.NoteOff(note, now+0.05)
		now += 0.2
		m.Advance(now)
	}
	m.Advance(now + 10)

	if m.ActiveCount() != 0 || m.ReleasingCount() != 0 {
		t.Fatalf("voices leaked: %v active %v releasing", m.ActiveCount(), m.ReleasingCount())
	}
	if len(r.killed) != len(r.created) {
		t.Fatalf("created %v voices but killed %v", len(r.created), len(r.killed))
	}
}

func TestEachActiveVisitsOldestFirst(t *testing.T) {
	r := &recorder{}
	m := NewManager[*fakeVoice](r, 8)

	m.NoteOn(67, 100, 0)
	m.NoteOn(60, 100, 1)
	m.NoteOn(64, 100, 2)

	var visited []byte
	m.EachActive(func(note byte, v *fakeVoice) {
		visited = append(visited, note)
	})
	if len(visited) != 3 || visited[0] != 67 || visited[1] != 60 || visited[2] != 64 {
		t.Fatalf("expected visit order [67 60 64], got %v", visited)
	}
}

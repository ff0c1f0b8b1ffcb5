package auricle

import (
	"math"
	"testing"
)

func TestNoteToFreq(t *testing.T) {
	cases := []struct {
		note byte
		freq float64
	}{
		{69, 440},
		{81, 880},
		{57, 220},
		{60, 261.6255653},
	}
	for _, c := range cases {
		if got := NoteToFreq(c.note); math.Abs(got-c.freq) > 1e-6 {
			t.Errorf("NoteToFreq(%v) = %v, want %v", c.note, got, c.freq)
		}
	}
}

func TestNoteToRatio(t *testing.T) {
	if got := NoteToRatio(60); got != 1 {
		t.Errorf("middle C ratio %v, want 1", got)
	}
	if got := NoteToRatio(72); math.Abs(got-2) > 1e-12 {
		t.Errorf("octave up ratio %v, want 2", got)
	}
}

func TestVelocityToGain(t *testing.T) {
	if got := VelocityToGain(0); got != 0 {
		t.Errorf("velocity 0 gain %v, want 0", got)
	}
	if got := VelocityToGain(127); got != 1 {
		t.Errorf("velocity 127 gain %v, want 1", got)
	}
	if got := VelocityToGain(200); got != 1 {
		t.Errorf("out-of-range velocity gain %v, want capped 1", got)
	}
}

func TestManualClockIsMonotonic(t *testing.T) {
	c := &ManualClock{}
	c.Advance(1)
	c.Advance(-5)
	if c.Now() != 1 {
		t.Errorf("negative advance moved the clock: %v", c.Now())
	}
	c.Set(0.5) // behind now, ignored
	if c.Now() != 1 {
		t.Errorf("backwards set moved the clock: %v", c.Now())
	}
	c.Set(2)
	if c.Now() != 2 {
		t.Errorf("forward set did not move the clock: %v", c.Now())
	}
}

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte("bpm: 90\nsteps: 8\n"))
	if err != nil {
		t.Fatalf("%v", err)
	}
	if c.BPM != 90 || c.Steps != 8 {
		t.Errorf("parsed values lost: %+v", c)
	}
	if c.SampleRate != 44100 {
		t.Errorf("unset fields should keep defaults, got %v", c.SampleRate)
	}
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	for _, doc := range []string{
		"bpm: -10\n",
		"samplerate: 0\n",
		"subdivision: 0\n",
		"steps: 0\n",
		"bpm: [nonsense\n",
	} {
		if _, err := ParseConfig([]byte(doc)); err == nil {
			t.Errorf("config %q should be rejected", doc)
		}
	}
}

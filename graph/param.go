package graph

import (
	"math"
	"sort"
)

type (
	// Param is an automation timeline for one control value. Events are
	// scheduled in clock seconds and the momentary value can be sampled with
	// ValueAt, which is what lets a release envelope freeze a control
	// mid-attack at whatever level it actually reached.
	Param struct {
		name   string
		def    float64
		events []paramEvent
	}

	paramEventKind int

	paramEvent struct {
		kind      paramEventKind
		time      float64
		value     float64   // setValue / ramp target
		timeConst float64   // setTarget
		curve     []float32 // setCurve samples
		duration  float64   // setCurve length in seconds
	}
)

const (
	eventSetValue paramEventKind = iota
	eventLinearRamp
	eventSetTarget
	eventSetCurve
)

func newParam(name string, initial float64) *Param {
	return &Param{name: name, def: initial}
}

func (p *Param) Name() string { return p.name }

// SetValueAtTime schedules an instantaneous jump to value at time t.
func (p *Param) SetValueAtTime(value, t float64) {
	p.insert(paramEvent{kind: eventSetValue, time: t, value: value})
}

// LinearRampToValueAtTime schedules a linear ramp ending at value at time t,
// starting from the previously scheduled event.
func (p *Param) LinearRampToValueAtTime(value, t float64) {
	p.insert(paramEvent{kind: eventLinearRamp, time: t, value: value})
}

// SetTargetAtTime schedules an asymptotic approach towards target starting
// at time t with the given time constant. The approach never ends on its
// own; a later event takes over from its own time.
func (p *Param) SetTargetAtTime(target, t, timeConst float64) {
	if timeConst <= 0 {
		p.insert(paramEvent{kind: eventSetValue, time: t, value: target})
		return
	}
	p.insert(paramEvent{kind: eventSetTarget, time: t, value: target, timeConst: timeConst})
}

// SetValueCurveAtTime schedules the value to follow the sample curve over
// [t, t+duration], holding the last sample afterwards. The curve slice is
// not copied; callers share cached window curves and must not mutate them.
func (p *Param) SetValueCurveAtTime(curve []float32, t, duration float64) {
	if len(curve) == 0 || duration <= 0 {
		return
	}
	p.insert(paramEvent{kind: eventSetCurve, time: t, curve: curve, duration: duration})
}

// CancelScheduledValues removes every event scheduled at or after time t.
func (p *Param) CancelScheduledValues(t float64) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time >= t })
	p.events = p.events[:i]
}

func (p *Param) insert(e paramEvent) {
	// keep sorted by time; equal times keep insertion order
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > e.time })
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

// ValueAt samples the momentary value of the parameter at time t.
func (p *Param) ValueAt(t float64) float64 {
	lastT := 0.0
	v0 := p.def // value when the active segment began
	var active *paramEvent
	for i := range p.events {
		e := &p.events[i]
		if e.time > t {
			if e.kind == eventLinearRamp {
				// in the middle of a ramp towards e; the ramp starts from the
				// previous event's time and value
				start := v0
				if active != nil {
					start = eventValue(active, v0, lastT)
				}
				return lerpValue(lastT, start, e.time, e.value, t)
			}
			break
		}
		// close out the previous segment at e.time to get this segment's
		// starting value
		if active != nil {
			v0 = eventValue(active, v0, e.time)
		}
		switch e.kind {
		case eventSetValue, eventLinearRamp:
			v0 = e.value
		}
		lastT = e.time
		active = e
	}
	if active == nil {
		return v0
	}
	return eventValue(active, v0, t)
}

// eventValue evaluates the segment introduced by e at time t >= e.time,
// given v0, the parameter value when the segment began.
func eventValue(e *paramEvent, v0, t float64) float64 {
	switch e.kind {
	case eventSetValue, eventLinearRamp:
		return e.value
	case eventSetTarget:
		return e.value + (v0-e.value)*math.Exp(-(t-e.time)/e.timeConst)
	case eventSetCurve:
		pos := (t - e.time) / e.duration
		if pos >= 1 {
			return float64(e.curve[len(e.curve)-1])
		}
		if pos <= 0 {
			return float64(e.curve[0])
		}
		f := pos * float64(len(e.curve)-1)
		i := int(f)
		frac := f - float64(i)
		if i+1 >= len(e.curve) {
			return float64(e.curve[len(e.curve)-1])
		}
		return float64(e.curve[i])*(1-frac) + float64(e.curve[i+1])*frac
	}
	return v0
}

func lerpValue(t0, v0, t1, v1, t float64) float64 {
	if t1 <= t0 {
		return v1
	}
	frac := (t - t0) / (t1 - t0)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return v0 + (v1-v0)*frac
}

// NumEvents reports how many automation events are scheduled. Tests use it
// to verify cancellation.
func (p *Param) NumEvents() int { return len(p.events) }

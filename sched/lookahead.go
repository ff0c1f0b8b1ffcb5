// Package sched implements lookahead scheduling: a coarse, jittery polling
// loop that dispatches events slightly ahead of their deadlines, passing
// the intended precise timestamp to the callback. The callback schedules
// the actual sound at that exact time through the graph's own automation,
// which is what keeps a 25 ms poll period from being audible.
package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/auricle-audio/auricle"
	"github.com/auricle-audio/auricle/bus"
)

type (
	// Scheduler is a periodic tick generator for sequencers and similar
	// step-driven consumers. All methods are meant for the cooperative
	// loop; Run is an optional driver that pumps Tick from a ticker.
	Scheduler struct {
		clock    auricle.Clock
		callback Callback
		broker   *bus.Broker

		bpm          float64
		subdivision  int // steps per beat
		totalSteps   int
		lookahead    float64
		pollInterval time.Duration

		nextEventTime float64
		currentStep   int
		running       bool
	}

	// Callback receives the intended precise timestamp of the step, not the
	// imprecise time the polling loop happened to wake up at.
	Callback func(t float64, step int)
)

const (
	defaultLookahead    = 0.1
	defaultPollInterval = 25 * time.Millisecond
)

func NewScheduler(clock auricle.Clock, bpm float64, subdivision, totalSteps int, callback Callback) *Scheduler {
	if subdivision < 1 {
		subdivision = 1
	}
	if totalSteps < 1 {
		totalSteps = 1
	}
	return &Scheduler{
		clock:        clock,
		callback:     callback,
		bpm:          bpm,
		subdivision:  subdivision,
		totalSteps:   totalSteps,
		lookahead:    defaultLookahead,
		pollInterval: defaultPollInterval,
	}
}

// SetBroker routes callback failures to the broker's alert channel instead
// of silently swallowing them.
func (s *Scheduler) SetBroker(b *bus.Broker) { s.broker = b }

// SetBPM changes the tempo. Only intervals computed after the change are
// affected; events already dispatched into the lookahead window keep their
// timestamps.
func (s *Scheduler) SetBPM(bpm float64) {
	if bpm > 0 {
		s.bpm = bpm
	}
}

func (s *Scheduler) BPM() float64 { return s.bpm }

// SecondsPerStep returns the current step interval.
func (s *Scheduler) SecondsPerStep() float64 {
	return 60 / (s.bpm * float64(s.subdivision))
}

// Start begins dispatching from step 0 at the current clock time.
// Idempotent: starting a running scheduler does nothing.
func (s *Scheduler) Start() {
	if s.running {
		return
	}
	s.running = true
	s.nextEventTime = s.clock.Now()
	s.currentStep = 0
}

// Stop halts dispatching and discards all lookahead state. Idempotent.
// There is no catch-up replay on restart; Start begins fresh from "now".
func (s *Scheduler) Stop() {
	s.running = false
}

func (s *Scheduler) Running() bool { return s.running }

// Step returns the next step index to be dispatched.
func (s *Scheduler) Step() int { return s.currentStep }

// Tick drains every step whose intended time falls inside the lookahead
// window [now, now+lookahead). A panicking callback is isolated and
// reported; the loop is the heartbeat for all sound and must not die with
// one bad event.
func (s *Scheduler) Tick(now float64) {
	for s.running && s.nextEventTime < now+s.lookahead {
		s.fire(s.nextEventTime, s.currentStep)
		s.nextEventTime += s.SecondsPerStep()
		s.currentStep = (s.currentStep + 1) % s.totalSteps
	}
}

func (s *Scheduler) fire(t float64, step int) {
	defer func() {
		if r := recover(); r != nil {
			if s.broker != nil {
				s.broker.SendAlert("SchedulerCallback", fmt.Sprintf("step %d callback panicked: %v", step, r), bus.Error)
			}
		}
	}()
	s.callback(t, step)
}

// Run pumps Tick from a wall ticker until the context is cancelled. It is
// a convenience driver for programs that do not have their own loop; the
// scheduler state is still only touched from this one goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-ticker.C:
			s.Tick(s.clock.Now())
		}
	}
}

// Package gomidi feeds hardware MIDI input into the event bus using the
// rtmidi driver. It is a producer: messages arrive on the driver's thread
// and are posted to the broker non-blocking; the cooperative loop stamps
// them with the clock when it dispatches.
package gomidi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/auricle-audio/auricle/bus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type (
	Context struct {
		driver             *rtmididrv.Driver
		currentIn          drivers.In
		inputDevices       []Device
		devicesInitialized bool
		broker             *bus.Broker
	}

	Device struct {
		context *Context
		in      drivers.In
	}
)

// NewContext opens the rtmidi driver. A machine without a usable driver
// yields a context that lists no devices; there is not much else to do.
func NewContext(broker *bus.Broker) *Context {
	c := &Context{broker: broker}
	c.driver, _ = rtmididrv.New()
	return c
}

// InputDevices iterates over the available MIDI inputs.
func (c *Context) InputDevices(yield func(Device) bool) {
	if c.devicesInitialized {
		for _, device := range c.inputDevices {
			if !yield(device) {
				break
			}
		}
		return
	}
	if c.driver == nil {
		return
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return
	}
	for _, in := range ins {
		device := Device{context: c, in: in}
		c.inputDevices = append(c.inputDevices, device)
		if !yield(device) {
			break
		}
	}
	c.devicesInitialized = true
}

// TryToOpenBy opens the first input whose name has the given prefix, or
// simply the first input when takeFirst is set.
func (c *Context) TryToOpenBy(namePrefix string, takeFirst bool) error {
	if namePrefix == "" && !takeFirst {
		return nil
	}
	var opened bool
	c.InputDevices(func(device Device) bool {
		if takeFirst || strings.HasPrefix(device.String(), namePrefix) {
			opened = device.Open() == nil
			return false
		}
		return true
	})
	if !opened {
		return fmt.Errorf("could not find a MIDI input matching %q", namePrefix)
	}
	return nil
}

// Open starts listening on the device, closing the previously open one.
func (d Device) Open() error {
	if d.context.currentIn == d.in {
		return nil
	}
	if d.context.driver == nil {
		return errors.New("no driver available")
	}
	if d.context.HasDeviceOpen() {
		d.context.currentIn.Close()
	}
	d.context.currentIn = d.in
	if err := d.in.Open(); err != nil {
		d.context.currentIn = nil
		return fmt.Errorf("opening MIDI input failed: %w", err)
	}
	if _, err := midi.ListenTo(d.in, d.context.handleMessage); err != nil {
		d.in.Close()
		d.context.currentIn = nil
		return fmt.Errorf("listening to MIDI input failed: %w", err)
	}
	return nil
}

func (d Device) String() string { return d.in.String() }

func (c *Context) HasDeviceOpen() bool {
	return c.currentIn != nil && c.currentIn.IsOpen()
}

func (c *Context) Close() {
	if c.driver == nil {
		return
	}
	if c.currentIn != nil && c.currentIn.IsOpen() {
		c.currentIn.Close()
	}
	c.driver.Close()
}

// handleMessage runs on the driver's thread; it translates the message and
// posts it to the broker without blocking, dropping it if the queue is
// full. A note-on with zero velocity is a note-off, per the MIDI spec.
func (c *Context) handleMessage(msg midi.Message, timestampms int32) {
	var channel, key, velocity uint8
	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		if velocity == 0 {
			bus.TrySend(c.broker.ToCore, bus.Msg{Kind: bus.MsgNoteOff, Note: key})
			return
		}
		bus.TrySend(c.broker.ToCore, bus.Msg{Kind: bus.MsgNoteOn, Note: key, Velocity: velocity})
	case msg.GetNoteOff(&channel, &key, &velocity):
		bus.TrySend(c.broker.ToCore, bus.Msg{Kind: bus.MsgNoteOff, Note: key})
	}
}

// auricle-play renders a short demo pattern through the synthesizer core
// and either plays it or writes the raw float32 buffer to disk. It is also
// the reference for how the pieces wire together: broker -> engines ->
// rack between the send and master buses, with the lookahead scheduler
// driving the pattern against a manual clock.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/auricle-audio/auricle"
	"github.com/auricle-audio/auricle/bus"
	"github.com/auricle-audio/auricle/engine"
	"github.com/auricle-audio/auricle/gomidi"
	"github.com/auricle-audio/auricle/graph"
	"github.com/auricle-audio/auricle/oto"
	"github.com/auricle-audio/auricle/rack"
	"github.com/auricle-audio/auricle/sched"
	"github.com/auricle-audio/auricle/version"
)

const blockFrames = 512

func main() {
	play := flag.Bool("p", false, "Play the rendered pattern (default when no other output is chosen).")
	rawOut := flag.String("r", "", "Write the rendered stereo float32 buffer to this file.")
	preset := flag.String("preset", "default", "Built-in preset to load.")
	list := flag.Bool("l", false, "List built-in presets.")
	configFile := flag.String("c", "", "Optional yaml config file (sample rate, BPM, steps).")
	seconds := flag.Float64("seconds", 8, "How long to render.")
	live := flag.Bool("live", false, "Play live from MIDI input instead of rendering the demo pattern.")
	midiPrefix := flag.String("midi", "", "Name prefix of the MIDI input to use in live mode; empty takes the first one.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if *list {
		fmt.Println(strings.Join(engine.Presets(), "\n"))
		os.Exit(0)
	}
	if *rawOut == "" {
		*play = true
	}

	cfg := auricle.DefaultConfig()
	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			fatalf("could not read config: %v", err)
		}
		cfg, err = auricle.ParseConfig(data)
		if err != nil {
			fatalf("%v", err)
		}
	}

	patch, err := engine.LoadPreset(*preset)
	if err != nil {
		fatalf("%v", err)
	}

	if *live {
		if err := runLive(cfg, patch, *midiPrefix); err != nil {
			fatalf("%v", err)
		}
		return
	}

	buffer := render(cfg, patch, *seconds)

	if *rawOut != "" {
		if err := writeRaw(*rawOut, buffer); err != nil {
			fatalf("%v", err)
		}
	}
	if *play {
		if err := playBuffer(buffer, cfg.SampleRate); err != nil {
			fatalf("%v", err)
		}
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// pendingOff is a note-off the pattern callback scheduled for later.
type pendingOff struct {
	note byte
	at   float64
}

func render(cfg auricle.Config, patch engine.Patch, seconds float64) []float32 {
	clock := &auricle.ManualClock{}
	g := graph.New(clock)
	broker := bus.NewBroker()

	engines := patch.Build(g, demoBuffer(cfg.SampleRate))
	send := g.NewNode("send")
	master := g.NewNode("master")
	master.AddParam(graph.GainParam, 1)
	for _, e := range engines {
		e.Output().Connect(send)
		broker.Attach(e)
	}

	rk := rack.New(send, master)
	// a passthrough unit, just to run the pattern through a live rack
	fxIn := g.NewNode("fx-in")
	fxOut := g.NewNode("fx-out")
	fxOut.AddParam(graph.GainParam, 0.9)
	fxIn.Connect(fxOut)
	rk.Register("softgain", "Soft Gain", &rack.IO{Input: fxIn, Output: fxOut})
	rk.Toggle("softgain")

	var offs []pendingOff
	pattern := []byte{60, 63, 67, 70, 72, 70, 67, 63}
	gate := 0.8 * 60 / (cfg.BPM * float64(cfg.Subdivision))
	scheduler := sched.NewScheduler(clock, cfg.BPM, cfg.Subdivision, cfg.Steps, func(t float64, step int) {
		note := pattern[step%len(pattern)]
		broker.NoteOn(note, 100, t)
		offs = append(offs, pendingOff{note: note, at: t + gate})
	})
	scheduler.SetBroker(broker)
	scheduler.Start()

	frames := int(seconds * cfg.SampleRate)
	out := make([]float32, 0, frames*2)
	block := make([]float32, blockFrames*2)
	for len(out) < frames*2 {
		now := clock.Now()
		broker.Dispatch(now)
		offs = fireDueOffs(broker, offs, now)
		scheduler.Tick(now)
		for _, e := range engines {
			e.Advance(now)
		}
		g.Advance(now)
		g.Render(master, block, now, cfg.SampleRate)
		out = append(out, block...)
		clock.Advance(float64(blockFrames) / cfg.SampleRate)
	}
	scheduler.Stop()
	broker.AllNotesOff()
	return out[:frames*2]
}

func fireDueOffs(broker *bus.Broker, offs []pendingOff, now float64) []pendingOff {
	sort.Slice(offs, func(i, j int) bool { return offs[i].at < offs[j].at })
	i := 0
	for ; i < len(offs) && offs[i].at <= now; i++ {
		broker.NoteOff(offs[i].note, offs[i].at)
	}
	return append(offs[:0], offs[i:]...)
}

// demoBuffer synthesizes the granular engine's source material: one second
// of a plucked, slowly decaying harmonic stack.
func demoBuffer(sampleRate float64) engine.SourceBuffer {
	n := int(sampleRate)
	data := make([]float32, n)
	for i := range data {
		t := float64(i) / sampleRate
		v := 0.0
		for h := 1; h <= 4; h++ {
			v += math.Sin(2*math.Pi*220*float64(h)*t) / float64(h)
		}
		data[i] = float32(v * math.Exp(-2*t) / 2)
	}
	return engine.SourceBuffer{Data: data, SampleRate: sampleRate}
}

// runLive is the cooperative loop against the wall clock: drain the broker,
// advance the engines and the graph, then render far enough ahead of real
// time that the device never underruns. MIDI arrives on the driver's thread
// and crosses into the loop through the broker's channel.
func runLive(cfg auricle.Config, patch engine.Patch, midiPrefix string) error {
	clock := auricle.NewWallClock()
	g := graph.New(clock)
	broker := bus.NewBroker()

	engines := patch.Build(g, demoBuffer(cfg.SampleRate))
	if len(engines) == 0 {
		return fmt.Errorf("preset configures no engines")
	}
	send := g.NewNode("send")
	master := g.NewNode("master")
	master.AddParam(graph.GainParam, 1)
	for _, e := range engines {
		e.Output().Connect(send)
		broker.Attach(e)
	}
	rack.New(send, master)

	midiCtx := gomidi.NewContext(broker)
	defer midiCtx.Close()
	if err := midiCtx.TryToOpenBy(midiPrefix, midiPrefix == ""); err != nil {
		broker.SendAlert("MIDIInput", err.Error(), bus.Warning)
	}

	audio, err := oto.NewContext()
	if err != nil {
		return fmt.Errorf("could not acquire audio context: %w", err)
	}
	defer audio.Close()
	sink := audio.Output()
	defer sink.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	fmt.Println("playing; ctrl-c to quit")

	// the cooperative loop owns all synth state; it runs until told to
	// close and acknowledges by closing FinishedInput
	go func() {
		defer close(broker.FinishedInput)
		const renderAhead = 0.08
		block := make([]float32, blockFrames*2)
		cursor := clock.Now()
		for {
			select {
			case <-broker.CloseInput:
				broker.AllNotesOff()
				return
			case a := <-broker.Alerts:
				fmt.Fprintf(os.Stderr, "%v: %v\n", a.Name, a.Message)
			default:
			}
			now := clock.Now()
			broker.Dispatch(now)
			for _, e := range engines {
				e.Advance(now)
			}
			g.Advance(now)
			for cursor < now+renderAhead {
				g.Render(master, block, cursor, cfg.SampleRate)
				if err := sink.WriteAudio(block); err != nil {
					broker.SendAlert("AudioOutput", err.Error(), bus.Error)
					return
				}
				cursor += float64(blockFrames) / cfg.SampleRate
			}
			time.Sleep(engine.PollInterval(engines))
		}
	}()

	<-stop
	// bounded teardown: ask the loop to close, wait briefly for the
	// acknowledgement, then let the deferred MIDI/audio closes run
	bus.TrySend(broker.CloseInput, struct{}{})
	bus.TimeoutReceive(broker.FinishedInput, time.Second)
	return nil
}

func writeRaw(filename string, buffer []float32) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create %v: %w", filename, err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, buffer); err != nil {
		return fmt.Errorf("could not write %v: %w", filename, err)
	}
	return nil
}

func playBuffer(buffer []float32, sampleRate float64) error {
	ctx, err := oto.NewContext()
	if err != nil {
		return fmt.Errorf("could not acquire audio context: %w", err)
	}
	defer ctx.Close()
	sink := ctx.Output()
	defer sink.Close()
	if err := sink.WriteAudio(buffer); err != nil {
		return err
	}
	time.Sleep(time.Duration(float64(len(buffer)/2)/sampleRate*float64(time.Second)) + 200*time.Millisecond)
	return nil
}

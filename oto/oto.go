// Package oto adapts ebitengine/oto v3 to the auricle.AudioContext
// contract. Oto v3 pulls samples through an io.Reader on its own thread;
// WriteAudio pushes rendered buffers into a small guarded queue the reader
// drains, padding with silence on underrun rather than blocking the mixer.
package oto

import (
	"fmt"
	"sync"

	"github.com/auricle-audio/auricle"
	"github.com/ebitengine/oto/v3"
)

const SampleRate = 44100

type (
	Context struct {
		ctx *oto.Context
	}

	Output struct {
		player *oto.Player
		stream *stream
	}

	stream struct {
		mu      sync.Mutex
		pending []byte
	}
)

// NewContext opens the audio device: stereo float32 at 44.1 kHz.
func NewContext() (*Context, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: ctx}, nil
}

func (c *Context) Output() auricle.AudioSink {
	s := &stream{}
	player := c.ctx.NewPlayer(s)
	player.Play()
	return &Output{player: player, stream: s}
}

func (c *Context) Close() error {
	return nil // oto v3 contexts cannot be closed; the process owns the device
}

// WriteAudio queues a stereo interleaved float32 buffer for playback.
func (o *Output) WriteAudio(buffer []float32) error {
	o.stream.push(Float32LEBytes(buffer, nil))
	return nil
}

func (o *Output) Close() error {
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close player: %w", err)
	}
	return nil
}

func (s *stream) push(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, data...)
}

// Read feeds the device thread. Underruns produce silence; playback never
// blocks on the producer.
func (s *stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

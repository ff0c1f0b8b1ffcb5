package auricle

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config holds the session-level settings that are not part of any
// engine's patch: the render rate and the step-sequencer shape.
type Config struct {
	SampleRate  float64 `yaml:"samplerate"`
	BPM         float64 `yaml:"bpm"`
	Subdivision int     `yaml:"subdivision"`
	Steps       int     `yaml:"steps"`
}

func DefaultConfig() Config {
	return Config{
		SampleRate:  44100,
		BPM:         120,
		Subdivision: 1,
		Steps:       16,
	}
}

// ParseConfig parses a yaml config document and validates it.
func ParseConfig(data []byte) (Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("cannot parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return errors.New("sample rate should be > 0")
	}
	if c.BPM <= 0 {
		return errors.New("BPM should be > 0")
	}
	if c.Subdivision < 1 {
		return errors.New("subdivision should be >= 1")
	}
	if c.Steps < 1 {
		return errors.New("steps should be >= 1")
	}
	return nil
}

package engine

import (
	"fmt"

	"github.com/auricle-audio/auricle/graph"
	"gopkg.in/yaml.v3"
)

// Patch is the opaque bundle of engine parameter snapshots exchanged at
// the preset boundary. A nil section means the preset does not configure
// that engine and its defaults apply.
type Patch struct {
	FM          *FMParams          `yaml:"fm,omitempty"`
	Subtractive *SubtractiveParams `yaml:"subtractive,omitempty"`
	Granular    *GranularParams    `yaml:"granular,omitempty"`
}

// ParsePatch parses a yaml patch document.
func ParsePatch(data []byte) (Patch, error) {
	var p Patch
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Patch{}, fmt.Errorf("cannot parse patch: %w", err)
	}
	return p, nil
}

// Marshal serializes the patch back to yaml, for handing the bundle to the
// preset collaborator.
func (p Patch) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal patch: %w", err)
	}
	return data, nil
}

// Build constructs every engine the patch configures, in a stable order,
// sharing the given graph and source buffer.
func (p Patch) Build(g *graph.Graph, buffer SourceBuffer) []Engine {
	var engines []Engine
	if p.FM != nil {
		engines = append(engines, NewFM(g, *p.FM))
	}
	if p.Subtractive != nil {
		engines = append(engines, NewSubtractive(g, *p.Subtractive))
	}
	if p.Granular != nil {
		engines = append(engines, NewGranular(g, *p.Granular, buffer))
	}
	return engines
}

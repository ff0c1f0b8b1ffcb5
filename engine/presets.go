package engine

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed presets/*.yml
var presetFS embed.FS

// Presets returns the names of the built-in patches, sorted.
func Presets() []string {
	var names []string
	fs.WalkDir(presetFS, "presets", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		names = append(names, name)
		return nil
	})
	sort.Strings(names)
	return names
}

// LoadPreset returns the named built-in patch. Strict unmarshaling, so a
// typo in a preset file fails loudly at load rather than silently playing
// defaults.
func LoadPreset(name string) (Patch, error) {
	data, err := presetFS.ReadFile("presets/" + name + ".yml")
	if err != nil {
		return Patch{}, fmt.Errorf("unknown preset %q", name)
	}
	var p Patch
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return Patch{}, fmt.Errorf("cannot parse preset %q: %w", name, err)
	}
	return p, nil
}

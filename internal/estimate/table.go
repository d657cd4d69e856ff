package estimate

import (
	"fmt"
	"strings"

	"clipper/internal/config"
)

// Table is an immutable, ordered set of presets with a fallback entry.
type Table struct {
	presets  []Preset
	byName   map[string]int
	fallback Preset
}

// NewTable builds a table. Names are matched case-insensitively and must be
// unique; fallback must name one of the presets.
func NewTable(presets []Preset, fallback string) (*Table, error) {
	if len(presets) == 0 {
		return nil, fmt.Errorf("preset table is empty")
	}
	t := &Table{
		presets: make([]Preset, 0, len(presets)),
		byName:  make(map[string]int, len(presets)),
	}
	for _, p := range presets {
		key := normalizeName(p.Name)
		if key == "" {
			return nil, fmt.Errorf("preset name must not be empty")
		}
		if _, dup := t.byName[key]; dup {
			return nil, fmt.Errorf("duplicate preset %q", p.Name)
		}
		if p.BitrateKbps <= 0 {
			return nil, fmt.Errorf("preset %q: bitrate must be positive", p.Name)
		}
		t.byName[key] = len(t.presets)
		t.presets = append(t.presets, p)
	}
	idx, ok := t.byName[normalizeName(fallback)]
	if !ok {
		return nil, fmt.Errorf("default preset %q not in table", fallback)
	}
	t.fallback = t.presets[idx]
	return t, nil
}

// FromConfig builds the table from the [encoding] section.
func FromConfig(cfg *config.Config) (*Table, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	presets := make([]Preset, 0, len(cfg.Encoding.Presets))
	for _, p := range cfg.Encoding.Presets {
		presets = append(presets, Preset{Name: p.Name, BitrateKbps: p.BitrateKbps, Overhead: p.Overhead})
	}
	return NewTable(presets, cfg.Encoding.DefaultPreset)
}

// Lookup finds a preset by name.
func (t *Table) Lookup(name string) (Preset, bool) {
	if t == nil {
		return Preset{}, false
	}
	idx, ok := t.byName[normalizeName(name)]
	if !ok {
		return Preset{}, false
	}
	return t.presets[idx], true
}

// Resolve returns the named preset, or the fallback when the name is unknown.
func (t *Table) Resolve(name string) Preset {
	if p, ok := t.Lookup(name); ok {
		return p
	}
	return t.Default()
}

// Default returns the fallback preset.
func (t *Table) Default() Preset {
	if t == nil {
		return Preset{}
	}
	return t.fallback
}

// Presets returns the presets in configured order.
func (t *Table) Presets() []Preset {
	if t == nil {
		return nil
	}
	cp := make([]Preset, len(t.presets))
	copy(cp, t.presets)
	return cp
}

// Cheaper returns presets with a lower bitrate than the given one, used to
// phrase suggestions when an estimate is too large.
func (t *Table) Cheaper(than Preset) []Preset {
	var out []Preset
	for _, p := range t.Presets() {
		if p.BitrateKbps < than.BitrateKbps {
			out = append(out, p)
		}
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

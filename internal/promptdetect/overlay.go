package promptdetect

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Overlay is the on-disk rule configuration. Menu markers and extra
// rules are data, not code: they are heuristics tied to specific
// interactive renderers and are expected to be adjusted as those tools
// change.
type Overlay struct {
	Menu  MenuConfig    `toml:"menu"`
	Rules []OverlayRule `toml:"rules"`
}

type MenuConfig struct {
	Filled   string `toml:"filled"`
	Hollow   string `toml:"hollow"`
	Boundary string `toml:"boundary"`
}

type OverlayRule struct {
	Tag      string `toml:"tag"`
	Pattern  string `toml:"pattern"`
	Response string `toml:"response"`
	Paced    bool   `toml:"paced"`
}

// LoadOrInit reads the overlay file, writing a default one on first use.
func LoadOrInit(path string) (Overlay, error) {
	if strings.TrimSpace(path) == "" {
		return defaultOverlay(), nil
	}
	if b, err := os.ReadFile(path); err == nil {
		var ov Overlay
		if err := toml.Unmarshal(b, &ov); err != nil {
			return Overlay{}, fmt.Errorf("parse %s: %w", path, err)
		}
		return ov, nil
	} else if !os.IsNotExist(err) {
		return Overlay{}, err
	}

	ov := defaultOverlay()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Overlay{}, err
	}
	if err := writeTOMLAtomically(path, ov); err != nil {
		return Overlay{}, err
	}
	return ov, nil
}

func defaultOverlay() Overlay {
	m := DefaultMenuMarkers()
	return Overlay{Menu: MenuConfig{Filled: m.Filled, Hollow: m.Hollow, Boundary: m.Boundary}}
}

// BuildTable compiles the overlay into an ordered table: overlay rules
// first (most specific), then the builtin table using the overlay's menu
// markers. Overlay patterns are matched case-insensitively and may span
// lines.
func (o Overlay) BuildTable() (*Table, error) {
	markers := MenuMarkers{
		Filled:   strings.TrimSpace(o.Menu.Filled),
		Hollow:   strings.TrimSpace(o.Menu.Hollow),
		Boundary: strings.TrimSpace(o.Menu.Boundary),
	}
	if !markers.valid() {
		markers = DefaultMenuMarkers()
	}

	rules := make([]Rule, 0, len(o.Rules)+BuiltinTable().Len())
	for i, or := range o.Rules {
		tag := strings.TrimSpace(or.Tag)
		if tag == "" {
			return nil, fmt.Errorf("overlay rule %d: tag is required", i)
		}
		if strings.TrimSpace(or.Pattern) == "" {
			return nil, fmt.Errorf("overlay rule %q: pattern is required", tag)
		}
		re, err := regexp.Compile(`(?is)` + or.Pattern)
		if err != nil {
			return nil, fmt.Errorf("overlay rule %q: %w", tag, err)
		}
		rules = append(rules, Rule{
			Tag:      tag,
			Pattern:  re,
			Response: []byte(or.Response),
			Paced:    or.Paced,
		})
	}
	rules = append(rules, TableWithMarkers(markers).Rules()...)
	return NewTable(rules), nil
}

func writeTOMLAtomically(path string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

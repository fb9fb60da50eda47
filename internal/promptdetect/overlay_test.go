package promptdetect

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrInit_WritesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.toml")
	ov, err := LoadOrInit(path)
	if err != nil {
		t.Fatalf("load or init failed: %v", err)
	}
	if ov.Menu.Filled == "" || ov.Menu.Hollow == "" || ov.Menu.Boundary == "" {
		t.Fatalf("default overlay missing markers: %+v", ov.Menu)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}

	// Second load reads the file back.
	again, err := LoadOrInit(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if again.Menu != ov.Menu {
		t.Fatalf("reload mismatch: %+v vs %+v", again.Menu, ov.Menu)
	}
}

func TestLoadOrInit_EmptyPathUsesDefaults(t *testing.T) {
	ov, err := LoadOrInit("")
	if err != nil {
		t.Fatalf("empty path should not error: %v", err)
	}
	if ov.Menu.Filled != DefaultMenuMarkers().Filled {
		t.Fatalf("expected default markers, got %+v", ov.Menu)
	}
}

func TestOverlay_BuildTableCustomRuleTakesPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.toml")
	content := `
[menu]
filled = "●"
hollow = "○"
boundary = "└"

[[rules]]
tag = "virtualenv"
pattern = 'create (a )?virtualenv\?'
response = "n\n"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	ov, err := LoadOrInit(path)
	if err != nil {
		t.Fatalf("load overlay: %v", err)
	}
	table, err := ov.BuildTable()
	if err != nil {
		t.Fatalf("build table: %v", err)
	}

	// The overlay rule outranks the builtin confirm rule the same text
	// would otherwise hit.
	rule, ok := table.Match("Create a virtualenv?")
	if !ok || rule.Tag != "virtualenv" {
		t.Fatalf("overlay rule should win, got %v ok=%v", rule.Tag, ok)
	}
	if string(rule.Response) != "n\n" {
		t.Fatalf("overlay response not honored: %q", rule.Response)
	}

	// Builtins still present after the custom rules.
	if rule, ok := table.Match("Continue? (y/n)"); !ok || rule.Tag != "yes-no" {
		t.Fatalf("builtin rules lost: got %v ok=%v", rule.Tag, ok)
	}
}

func TestOverlay_BuildTableCustomMarkers(t *testing.T) {
	ov := Overlay{Menu: MenuConfig{Filled: "»", Hollow: "·", Boundary: "¤"}}
	table, err := ov.BuildTable()
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	if rule, ok := table.Match("» keep\n· other\n¤"); !ok || rule.Tag != "menu-selected" {
		t.Fatalf("custom markers not applied: got %v ok=%v", rule.Tag, ok)
	}
}

func TestOverlay_BuildTableMetaMarkersDoNotPanic(t *testing.T) {
	ov := Overlay{Menu: MenuConfig{Filled: "*", Hollow: `\`, Boundary: "]"}}
	table, err := ov.BuildTable()
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	if rule, ok := table.Match("* keep\n\\ other\n]"); !ok || rule.Tag != "menu-selected" {
		t.Fatalf("meta markers not applied: got %v ok=%v", rule.Tag, ok)
	}
}

func TestOverlay_BuildTableRejectsBadRules(t *testing.T) {
	ov := Overlay{Rules: []OverlayRule{{Tag: "broken", Pattern: "("}}}
	if _, err := ov.BuildTable(); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
	ov = Overlay{Rules: []OverlayRule{{Tag: "", Pattern: "x"}}}
	if _, err := ov.BuildTable(); err == nil {
		t.Fatal("expected error for missing tag")
	}
	ov = Overlay{Rules: []OverlayRule{{Tag: "x", Pattern: ""}}}
	if _, err := ov.BuildTable(); err == nil {
		t.Fatal("expected error for missing pattern")
	}
}

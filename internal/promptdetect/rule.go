package promptdetect

import (
	"regexp"
	"unicode/utf8"
)

// Rule pairs a prompt-matching pattern with the synthetic response sent
// when it fires. Tables are ordered; the first matching rule wins.
type Rule struct {
	Tag      string
	Pattern  *regexp.Regexp
	Response []byte
	Paced    bool
}

func (r Rule) Matches(text string) bool {
	return r.Pattern != nil && r.Pattern.MatchString(text)
}

// MenuMarkers are the characters a structured selection menu is rendered
// with: a filled marker on the current option, hollow markers on the
// rest, and a boundary character closing the menu. They are heuristics
// tuned to particular interactive renderers and therefore configuration,
// not protocol; each must be a single literal rune.
type MenuMarkers struct {
	Filled   string
	Hollow   string
	Boundary string
}

func DefaultMenuMarkers() MenuMarkers {
	return MenuMarkers{Filled: "●", Hollow: "○", Boundary: "└"}
}

func (m MenuMarkers) valid() bool {
	return utf8.RuneCountInString(m.Filled) == 1 &&
		utf8.RuneCountInString(m.Hollow) == 1 &&
		utf8.RuneCountInString(m.Boundary) == 1
}

type Table struct {
	rules []Rule
}

func NewTable(rules []Rule) *Table {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return &Table{rules: out}
}

// BuiltinTable returns the default ordered rule table using the default
// menu markers.
func BuiltinTable() *Table {
	return TableWithMarkers(DefaultMenuMarkers())
}

// TableWithMarkers builds the builtin table with the given menu markers.
// Earlier entries take precedence over later, more generic ones.
func TableWithMarkers(m MenuMarkers) *Table {
	if !m.valid() {
		m = DefaultMenuMarkers()
	}
	filled := regexp.QuoteMeta(m.Filled)
	hollow := regexp.QuoteMeta(m.Hollow)
	boundary := regexp.QuoteMeta(m.Boundary)

	return NewTable([]Rule{
		{
			// Menu with the first option already selected: filled marker
			// appears before any hollow one. A bare newline confirms it.
			Tag:      "menu-selected",
			Pattern:  regexp.MustCompile(`(?s)\A[^` + hollow + `]*` + filled + `.*` + boundary),
			Response: []byte("\n"),
		},
		{
			// Menu with the selection elsewhere: move once, then confirm.
			// Paced so renderers that debounce keystrokes register both.
			Tag:      "menu-navigate",
			Pattern:  regexp.MustCompile(`(?s)` + hollow + `.*` + filled + `.*` + boundary),
			Response: []byte("\x1b[B\n"),
			Paced:    true,
		},
		{
			Tag:      "yes-no",
			Pattern:  regexp.MustCompile(`(?i)\by(es)?\s*/\s*no?\b`),
			Response: []byte("y\n"),
		},
		{
			Tag:      "confirm",
			Pattern:  regexp.MustCompile(`(?i)\b(continue|proceed|confirm)\b[^\n?]*\?`),
			Response: []byte("y\n"),
		},
		{
			Tag:      "overwrite",
			Pattern:  regexp.MustCompile(`(?i)(\boverwrite\b[^\n?]{0,40}\?|already exists)`),
			Response: []byte("y\n"),
		},
		{
			Tag:      "press-enter",
			Pattern:  regexp.MustCompile(`(?i)press\s+(enter|return|any key)`),
			Response: []byte("\n"),
		},
		{
			Tag:      "choose-number",
			Pattern:  regexp.MustCompile(`(?i)\b(select|choose)\b[^\n]{0,40}\b(option|one|number)\b`),
			Response: []byte("1\n"),
		},
		{
			Tag:      "installer",
			Pattern:  regexp.MustCompile(`(?i)\b(install|download|fetch|update)\b[^\n?]{0,60}\?`),
			Response: []byte("y\n"),
		},
	})
}

// Match scans the table in order and returns the first matching rule.
func (t *Table) Match(text string) (Rule, bool) {
	if t == nil || text == "" {
		return Rule{}, false
	}
	for _, rule := range t.rules {
		if rule.Matches(text) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Rules returns a copy of the ordered rule list.
func (t *Table) Rules() []Rule {
	if t == nil {
		return nil
	}
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

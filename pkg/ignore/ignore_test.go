package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMatch(t *testing.T) {
	m := New(nil)
	m.CompileLines(
		"# drafts are never compiled",
		"drafts/",
		"*.tmp.svg",
		"/legacy",
		"**/old/**",
		"!keep.tmp.svg",
		"",
	)

	tests := []struct {
		path string
		want bool
	}{
		{"drafts/", true},
		{"drafts/star.svg", true},
		{"icons/drafts/star.svg", true},
		{"drafts", false}, // a file, not a directory
		{"icons/star.tmp.svg", true},
		{"icons/keep.tmp.svg", false},
		{"legacy/star.svg", true},
		{"icons/legacy/star.svg", false},
		{"a/old/b/star.svg", true},
		{"old/star.svg", true},
		{"icons/star.svg", false},
		{"icons/star.svgz", false},
	}
	for _, tt := range tests {
		if got := m.Match(tt.path); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMatchWithPattern_ReportsDecidingRule(t *testing.T) {
	m := New(nil)
	m.CompileLines("*.svg", "!star.svg")

	matched, p := m.MatchWithPattern("icons/star.svg")
	if matched || p == nil || p.Line != "!star.svg" || p.LineNo != 2 {
		t.Errorf("matched=%v pattern=%+v", matched, p)
	}
}

func TestEscapes(t *testing.T) {
	m := New(nil)
	m.CompileLines(`\#hash.svg`, "icon(1).svg", "a?.svg")

	if !m.Match("#hash.svg") {
		t.Error("escaped # should match literally")
	}
	if !m.Match("icon(1).svg") {
		t.Error("parentheses must be literal")
	}
	if !m.Match("ab.svg") || m.Match("a/.svg") {
		t.Error("? matches exactly one non-separator character")
	}
}

func TestNilMatcher(t *testing.T) {
	var m *Matcher
	if m.Match("anything") {
		t.Error("nil matcher must not match")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global")
	local := filepath.Join(dir, FileName)
	if err := os.WriteFile(global, []byte("*.bak.svg\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(local, []byte("drafts/\r\n!x.bak.svg\r\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(nil, global, local, filepath.Join(dir, "missing"), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Patterns) != 3 {
		t.Fatalf("got %d patterns, want 3", len(m.Patterns))
	}
	if !m.Match("y.bak.svg") || m.Match("x.bak.svg") || !m.Match("drafts/a.svg") {
		t.Error("patterns from both files should apply in order")
	}
}

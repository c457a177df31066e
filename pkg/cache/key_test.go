package cache

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	if got := Normalize("  Hi  "); got != "hi" {
		t.Errorf("expected %q, got %q", "hi", got)
	}
	if Normalize("  Hi  ") != Normalize("hi") {
		t.Error("equivalent prompts should normalize identically")
	}
	if got := Normalize("Show\t revenue \n by   day"); got != "show revenue by day" {
		t.Errorf("whitespace not collapsed: %q", got)
	}
	if got := Normalize(""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestBuildKeyDeterministic(t *testing.T) {
	k1 := BuildKey("classify_intent", "gpt-4o", "revenue today")
	k2 := BuildKey("classify_intent", "gpt-4o", "revenue today")
	if k1 != k2 {
		t.Error("identical inputs should produce identical keys")
	}
	if len(k1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(k1))
	}
}

func TestBuildKeyDistinct(t *testing.T) {
	base := BuildKey("generate_sql", "gpt-4o", "abc123", "revenue today", "2026-08-30")
	cases := map[string]string{
		"scope":  BuildKey("generate_chart", "gpt-4o", "abc123", "revenue today", "2026-08-30"),
		"model":  BuildKey("generate_sql", "gpt-4o-mini", "abc123", "revenue today", "2026-08-30"),
		"schema": BuildKey("generate_sql", "gpt-4o", "def456", "revenue today", "2026-08-30"),
		"prompt": BuildKey("generate_sql", "gpt-4o", "abc123", "revenue yesterday", "2026-08-30"),
		"date":   BuildKey("generate_sql", "gpt-4o", "abc123", "revenue today", "2026-08-29"),
	}
	for name, k := range cases {
		if k == base {
			t.Errorf("differing %s should change the key", name)
		}
	}
}

func TestBuildKeyPartOrder(t *testing.T) {
	if BuildKey("s", "a", "b") == BuildKey("s", "b", "a") {
		t.Error("part order must be significant")
	}
}

func TestBuildKeyBoundaryAmbiguity(t *testing.T) {
	// JSON array encoding keeps ["ab","c"] and ["a","bc"] distinct.
	if BuildKey("s", "ab", "c") == BuildKey("s", "a", "bc") {
		t.Error("part boundaries must be preserved")
	}
}

func TestBuildKeyCoercesUnserializable(t *testing.T) {
	ch := make(chan int)
	k := BuildKey("s", ch)
	if len(k) != 64 || strings.TrimSpace(k) == "" {
		t.Errorf("unserializable part should coerce to string, got %q", k)
	}
	if k != BuildKey("s", ch) {
		t.Error("coerced part should still be deterministic")
	}
}

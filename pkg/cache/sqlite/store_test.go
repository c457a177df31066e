package sqlite

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T, maxEntries, diversitySize int) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	s, err := New(dbPath, maxEntries, diversitySize, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func parts(vs ...any) []any { return vs }

func TestSetAndGet(t *testing.T) {
	s := newTestStore(t, 100, 5)

	s.Set("classify_intent", parts("gpt-4o", "revenue today"), "SQL_QUERY")

	raw, ok := s.Get("classify_intent", parts("gpt-4o", "revenue today"))
	if !ok {
		t.Fatal("expected cache hit")
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatal(err)
	}
	if v != "SQL_QUERY" {
		t.Errorf("unexpected value: %s", v)
	}

	// Miss for differing key parts
	if _, ok := s.Get("classify_intent", parts("gpt-4o", "revenue yesterday")); ok {
		t.Error("expected cache miss for different parts")
	}
}

func TestSetOverwrites(t *testing.T) {
	s := newTestStore(t, 100, 5)

	s.Set("scope", parts("k"), "first")
	s.Set("scope", parts("k"), "second")

	raw, ok := s.Get("scope", parts("k"))
	if !ok {
		t.Fatal("expected hit")
	}
	var v string
	_ = json.Unmarshal(raw, &v)
	if v != "second" {
		t.Errorf("expected overwrite, got %s", v)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("overwrite must not add a row, got %d", stats.Entries)
	}
}

func TestGetOrCallComputesOnce(t *testing.T) {
	s := newTestStore(t, 100, 5)

	calls := 0
	compute := func() (string, error) {
		calls++
		return "SELECT 1", nil
	}

	v1, err := s.GetOrCall("generate_sql", parts("q"), compute)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := s.GetOrCall("generate_sql", parts("q"), compute)
	if err != nil {
		t.Fatal(err)
	}

	if v1 != "SELECT 1" || v2 != "SELECT 1" {
		t.Errorf("unexpected values: %q %q", v1, v2)
	}
	if calls != 1 {
		t.Errorf("expected exactly one compute, got %d", calls)
	}
}

func TestEvictionLRU(t *testing.T) {
	s := newTestStore(t, 2, 5)

	s.Set("scope", parts("A"), "a")
	time.Sleep(2 * time.Millisecond)
	s.Set("scope", parts("B"), "b")
	time.Sleep(2 * time.Millisecond)

	// Reading A refreshes its timestamp, making B the LRU victim.
	if _, ok := s.Get("scope", parts("A")); !ok {
		t.Fatal("expected hit on A")
	}
	time.Sleep(2 * time.Millisecond)

	s.Set("scope", parts("C"), "c")

	if _, ok := s.Get("scope", parts("A")); !ok {
		t.Error("A was refreshed and must survive")
	}
	if _, ok := s.Get("scope", parts("B")); ok {
		t.Error("B was least recently used and must be evicted")
	}
	if _, ok := s.Get("scope", parts("C")); !ok {
		t.Error("C was just inserted and must be present")
	}

	stats, _ := s.Stats()
	if stats.Entries != 2 {
		t.Errorf("expected 2 entries at capacity, got %d", stats.Entries)
	}
}

func TestEvictionOldestWithoutReads(t *testing.T) {
	s := newTestStore(t, 2, 5)

	s.Set("scope", parts("A"), "a")
	time.Sleep(2 * time.Millisecond)
	s.Set("scope", parts("B"), "b")
	time.Sleep(2 * time.Millisecond)
	s.Set("scope", parts("C"), "c")

	if _, ok := s.Get("scope", parts("A")); ok {
		t.Error("A was oldest and must be evicted")
	}
	if _, ok := s.Get("scope", parts("B")); !ok {
		t.Error("B must survive")
	}
}

func TestDiversitySequence(t *testing.T) {
	s := newTestStore(t, 100, 3)

	replies := []string{"A", "B", "C", "D"}
	calls := 0
	compute := func() (string, error) {
		v := replies[calls]
		calls++
		return v, nil
	}

	want := [][]string{{"A"}, {"A", "B"}, {"A", "B", "C"}}
	for i := 0; i < 3; i++ {
		got, err := s.GetOrCallDiversity("general_chat", parts("hi"), compute)
		if err != nil {
			t.Fatal(err)
		}
		if got != replies[i] {
			t.Errorf("call %d: expected %q, got %q", i, replies[i], got)
		}
		raw, ok := s.Get("general_chat", parts("hi"))
		if !ok {
			t.Fatal("expected stored list")
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			t.Fatal(err)
		}
		if len(list) != len(want[i]) {
			t.Fatalf("call %d: expected stored %v, got %v", i, want[i], list)
		}
		for j := range list {
			if list[j] != want[i][j] {
				t.Errorf("call %d: expected stored %v, got %v", i, want[i], list)
			}
		}
	}

	// At the cap: compute must not run, result must be a stored entry.
	got, err := s.GetOrCallDiversity("general_chat", parts("hi"), compute)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("expected no compute at the cap, got %d calls", calls)
	}
	if got != "A" && got != "B" && got != "C" {
		t.Errorf("expected a stored entry, got %q", got)
	}
}

func TestDiversityDuplicateNotAppended(t *testing.T) {
	s := newTestStore(t, 100, 3)

	compute := func() (string, error) { return "same", nil }
	for i := 0; i < 2; i++ {
		if _, err := s.GetOrCallDiversity("general_chat", parts("hey"), compute); err != nil {
			t.Fatal(err)
		}
	}

	raw, _ := s.Get("general_chat", parts("hey"))
	var list []string
	_ = json.Unmarshal(raw, &list)
	if len(list) != 1 {
		t.Errorf("duplicate results must not be appended, got %v", list)
	}
}

func TestMarkIncorrectAndList(t *testing.T) {
	s := newTestStore(t, 100, 5)

	s.Set("classify_intent", parts("q"), "SQL_QUERY")
	entries, err := s.ListEntries(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Scope != "classify_intent" {
		t.Errorf("unexpected scope %q", entries[0].Scope)
	}
	if entries[0].IsIncorrect {
		t.Error("new entry must not be flagged")
	}

	if err := s.MarkIncorrect(entries[0].KeyHash, true); err != nil {
		t.Fatal(err)
	}
	entries, _ = s.ListEntries(10)
	if !entries[0].IsIncorrect {
		t.Error("expected incorrect flag set")
	}

	// Flag must not affect lookup.
	if _, ok := s.Get("classify_intent", parts("q")); !ok {
		t.Error("flagged entry must still be returned")
	}

	if err := s.MarkIncorrect("no-such-hash", true); err == nil {
		t.Error("expected error for unknown key hash")
	}
}

func TestClearScope(t *testing.T) {
	s := newTestStore(t, 100, 5)

	s.Set("classify_intent", parts("a"), "x")
	s.Set("generate_sql", parts("b"), "y")

	if err := s.Clear("classify_intent"); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get("classify_intent", parts("a")); ok {
		t.Error("cleared scope must be empty")
	}
	if _, ok := s.Get("generate_sql", parts("b")); !ok {
		t.Error("other scope must be untouched")
	}

	if err := s.Clear(""); err != nil {
		t.Fatal(err)
	}
	stats, _ := s.Stats()
	if stats.Entries != 0 {
		t.Errorf("expected empty cache, got %d entries", stats.Entries)
	}
}

func TestFailOpen(t *testing.T) {
	s := newTestStore(t, 100, 5)
	_ = s.Close()

	// Storage is gone; the cache must degrade, not block the caller.
	calls := 0
	v, err := s.GetOrCall("generate_sql", parts("q"), func() (string, error) {
		calls++
		return "SELECT 1", nil
	})
	if err != nil {
		t.Fatalf("fail-open GetOrCall must not error: %v", err)
	}
	if v != "SELECT 1" || calls != 1 {
		t.Errorf("expected direct compute, got %q after %d calls", v, calls)
	}

	v, err = s.GetOrCallDiversity("general_chat", parts("hi"), func() (string, error) {
		return "hello", nil
	})
	if err != nil || v != "hello" {
		t.Errorf("fail-open diversity call: %q, %v", v, err)
	}

	if _, ok := s.Get("scope", parts("k")); ok {
		t.Error("expected miss on closed store")
	}
	s.Set("scope", parts("k"), "v") // must be a silent no-op
}

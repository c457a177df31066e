package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStaticProvider(t *testing.T) {
	p := NewStatic("CREATE TABLE sales (day TEXT, amount REAL);")
	if p.Context() == "" {
		t.Error("expected schema text")
	}
	if len(p.Hash()) != 16 {
		t.Errorf("expected 16-char hash, got %q", p.Hash())
	}
	if p.Hash() != NewStatic(p.Context()).Hash() {
		t.Error("hash must be stable for identical text")
	}
	if p.Hash() == NewStatic("CREATE TABLE sales (day TEXT);").Hash() {
		t.Error("hash must change with the schema text")
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.sql")
	if err := os.WriteFile(path, []byte("CREATE TABLE t (x);"), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := NewFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Context() != "CREATE TABLE t (x);" {
		t.Errorf("unexpected context %q", p.Context())
	}

	if _, err := NewFromFile("/nonexistent/schema.sql"); err == nil {
		t.Error("expected error for missing file")
	}
}

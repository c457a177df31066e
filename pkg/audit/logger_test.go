package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tably-ai/tably/pkg/models"
)

func mustNew(t *testing.T) *Logger {
	t.Helper()
	l, err := New(filepath.Join(t.TempDir(), "audit_test.db"), 30)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleInteraction() models.Interaction {
	return models.Interaction{
		Prompt:         "revenu today",
		ResolvedPrompt: "revenue today",
		Intent:         models.IntentSQLQuery,
		Status:         models.TurnComplete,
		Response:       `[{"kind":"table"}]`,
		LatencyMs:      150,
	}
}

func TestRecordAndQuery(t *testing.T) {
	l := mustNew(t)
	ctx := context.Background()

	id, err := l.Record(ctx, sampleInteraction())
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	entries, err := l.Query(ctx, models.InteractionQueryOpts{ID: id})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ResolvedPrompt != "revenue today" {
		t.Errorf("unexpected resolved prompt %q", entries[0].ResolvedPrompt)
	}
	if entries[0].Intent != models.IntentSQLQuery {
		t.Errorf("unexpected intent %q", entries[0].Intent)
	}
}

func TestQueryByStatus(t *testing.T) {
	l := mustNew(t)
	ctx := context.Background()

	complete := sampleInteraction()
	incomplete := sampleInteraction()
	incomplete.Status = models.TurnIncomplete

	if _, err := l.Record(ctx, complete); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Record(ctx, incomplete); err != nil {
		t.Fatal(err)
	}

	entries, err := l.Query(ctx, models.InteractionQueryOpts{Status: models.TurnIncomplete})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 incomplete entry, got %d", len(entries))
	}
}

func TestStats(t *testing.T) {
	l := mustNew(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := l.Record(ctx, sampleInteraction()); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 stat row, got %d", len(stats))
	}
	if stats[0].Count != 3 {
		t.Errorf("expected 3 turns, got %d", stats[0].Count)
	}
	if stats[0].Status != string(models.TurnComplete) {
		t.Errorf("unexpected status %q", stats[0].Status)
	}
}

func TestCleanup(t *testing.T) {
	l := mustNew(t)
	ctx := context.Background()

	old := sampleInteraction()
	old.CreatedAt = time.Now().AddDate(0, 0, -90)
	if _, err := l.Record(ctx, old); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Record(ctx, sampleInteraction()); err != nil {
		t.Fatal(err)
	}

	deleted, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted row, got %d", deleted)
	}
}

func TestNilLogger(t *testing.T) {
	var l *Logger
	if _, err := l.Record(context.Background(), sampleInteraction()); err != nil {
		t.Errorf("nil logger must be a no-op, got %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("nil logger close: %v", err)
	}
}

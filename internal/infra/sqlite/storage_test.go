package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"quizmaster/internal/app"
	"quizmaster/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("newTestStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorageUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if _, ok, err := s.Get(ctx, "qm_created_count_guest"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "qm_created_count_guest", []byte("1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "qm_created_count_guest", []byte("2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, ok, err := s.Get(ctx, "qm_created_count_guest")
	if err != nil || !ok || string(got) != "2" {
		t.Fatalf("get: %q ok=%v err=%v", got, ok, err)
	}

	keys, err := s.Keys(ctx)
	if err != nil || len(keys) != 1 {
		t.Fatalf("keys: %v %v", keys, err)
	}

	if err := s.Remove(ctx, "qm_created_count_guest"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "qm_created_count_guest"); ok {
		t.Fatalf("expected key removed")
	}
}

func TestProgressPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "progress.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	p := app.NewProgressService(s)
	if _, err := p.RecordAttempt(ctx, domain.Guest, domain.AttemptRecord{Correct: 3, Total: 3}); err != nil {
		t.Fatalf("record: %v", err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	history := app.NewProgressService(reopened).History(ctx, domain.Guest)
	if len(history) != 1 || !history[0].Perfect() {
		t.Fatalf("history not persisted: %+v", history)
	}
}

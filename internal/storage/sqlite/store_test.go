package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/tjfontaine/blackstories-client/internal/storage"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "transcripts.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_CreateTranscript(t *testing.T) {
	store := newStore(t)

	tr := &storage.Transcript{
		ID:        "game-1",
		SessionID: "sess-1",
		Mode:      "council",
	}

	if err := store.CreateTranscript(context.Background(), tr); err != nil {
		t.Fatalf("CreateTranscript() error = %v", err)
	}

	retrieved, err := store.GetTranscript(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("GetTranscript() error = %v", err)
	}

	if retrieved.SessionID != tr.SessionID {
		t.Errorf("SessionID = %v, want %v", retrieved.SessionID, tr.SessionID)
	}
	if retrieved.Mode != "council" {
		t.Errorf("Mode = %v, want council", retrieved.Mode)
	}
	if len(retrieved.Entries) != 0 {
		t.Errorf("Entries = %+v, want none", retrieved.Entries)
	}
}

func TestSQLiteStore_AppendEntries(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.CreateTranscript(ctx, &storage.Transcript{ID: "game-2", SessionID: "sess-1", Mode: "fight"}); err != nil {
		t.Fatalf("CreateTranscript() error = %v", err)
	}

	batches := [][]storage.Entry{
		{{ID: "e1", Lane: "mystery", Speaker: "Misterio", Text: "Un faro apagado"}},
		{
			{ID: "e2", Lane: "detective", Speaker: "Detective 1", Text: "¿Hubo tormenta?"},
			{ID: "e3", Lane: "summary", Text: "<b>fin</b>", HTML: true},
		},
	}
	for _, b := range batches {
		if err := store.AppendEntries(ctx, "game-2", b); err != nil {
			t.Fatalf("AppendEntries() error = %v", err)
		}
	}

	retrieved, err := store.GetTranscript(ctx, "game-2")
	if err != nil {
		t.Fatalf("GetTranscript() error = %v", err)
	}
	if len(retrieved.Entries) != 3 {
		t.Fatalf("Entries count = %d, want 3", len(retrieved.Entries))
	}
	for i, want := range []string{"e1", "e2", "e3"} {
		if retrieved.Entries[i].ID != want {
			t.Errorf("Entries[%d].ID = %s, want %s", i, retrieved.Entries[i].ID, want)
		}
	}
	if !retrieved.Entries[2].HTML || retrieved.Entries[1].Speaker != "Detective 1" {
		t.Errorf("Entries = %+v", retrieved.Entries)
	}

	err = store.AppendEntries(ctx, "missing", batches[0])
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("AppendEntries() missing error = %v, want not found", err)
	}
}

func TestSQLiteStore_ListTranscripts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tr := &storage.Transcript{
			ID:        "game-" + string(rune('0'+i)),
			SessionID: "sess-1",
			Mode:      "single",
		}
		if err := store.CreateTranscript(ctx, tr); err != nil {
			t.Fatalf("CreateTranscript() error = %v", err)
		}
	}
	if err := store.CreateTranscript(ctx, &storage.Transcript{ID: "other", SessionID: "sess-2", Mode: "single"}); err != nil {
		t.Fatalf("CreateTranscript() error = %v", err)
	}

	list, err := store.ListTranscripts(ctx, storage.ListOptions{SessionID: "sess-1", Limit: 3})
	if err != nil {
		t.Fatalf("ListTranscripts() error = %v", err)
	}
	if len(list) != 3 {
		t.Errorf("ListTranscripts() count = %d, want 3", len(list))
	}

	all, err := store.ListTranscripts(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListTranscripts() error = %v", err)
	}
	if len(all) != 6 {
		t.Errorf("ListTranscripts() unfiltered count = %d, want 6", len(all))
	}
}

func TestSQLiteStore_DeleteTranscript(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.CreateTranscript(ctx, &storage.Transcript{ID: "game-3", SessionID: "s", Mode: "single"}); err != nil {
		t.Fatalf("CreateTranscript() error = %v", err)
	}
	if err := store.AppendEntries(ctx, "game-3", []storage.Entry{{ID: "x", Lane: "system", Text: "hola"}}); err != nil {
		t.Fatalf("AppendEntries() error = %v", err)
	}
	if err := store.DeleteTranscript(ctx, "game-3"); err != nil {
		t.Fatalf("DeleteTranscript() error = %v", err)
	}

	if _, err := store.GetTranscript(ctx, "game-3"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetTranscript() error = %v, want not found", err)
	}
	if err := store.DeleteTranscript(ctx, "game-3"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second DeleteTranscript() error = %v, want not found", err)
	}
}

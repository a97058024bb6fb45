package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGetThreadMessages(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []ChatMessage{
		{ThreadID: "t1", Role: "user", Content: "first", CreatedAt: base},
		{ThreadID: "t1", Role: "assistant", Content: "second", CreatedAt: base.Add(time.Second)},
		{ThreadID: "t2", Role: "user", Content: "other thread", CreatedAt: base},
	}
	for _, m := range msgs {
		if err := store.SaveMessage(m); err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
	}

	got, err := store.GetThreadMessages("t1", 0)
	if err != nil {
		t.Fatalf("GetThreadMessages failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Content != "first" || got[1].Content != "second" {
		t.Errorf("messages out of order: %q, %q", got[0].Content, got[1].Content)
	}
	if got[0].ID == "" {
		t.Error("SaveMessage did not assign an id")
	}
	if !got[1].CreatedAt.Equal(base.Add(time.Second)) {
		t.Errorf("created_at round-trip = %v, want %v", got[1].CreatedAt, base.Add(time.Second))
	}
}

func TestGetThreadMessages_UnknownThread(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.GetThreadMessages("missing", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestArchiveExchange(t *testing.T) {
	store := openTestStore(t)

	if err := store.ArchiveExchange("thread-7", "req-1", "the question", "the answer"); err != nil {
		t.Fatalf("ArchiveExchange failed: %v", err)
	}

	got, err := store.GetThreadMessages("thread-7", 0)
	if err != nil {
		t.Fatalf("GetThreadMessages failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Role != "user" || got[0].Content != "the question" {
		t.Errorf("first message = %+v, want user question", got[0])
	}
	if got[1].Role != "assistant" || got[1].Content != "the answer" {
		t.Errorf("second message = %+v, want assistant answer", got[1])
	}
	if got[1].Name != "think_extension" {
		t.Errorf("assistant name = %q, want think_extension", got[1].Name)
	}
	if got[0].RequestID != "req-1" || got[1].RequestID != "req-1" {
		t.Errorf("request ids = %q, %q, want req-1", got[0].RequestID, got[1].RequestID)
	}
}

func TestListRecentThreads(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.SaveMessage(ChatMessage{ThreadID: "a", Role: "user", Content: "x", CreatedAt: base}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveMessage(ChatMessage{ThreadID: "b", Role: "user", Content: "y", CreatedAt: base.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveMessage(ChatMessage{ThreadID: "b", Role: "assistant", Content: "z", CreatedAt: base.Add(2 * time.Hour)}); err != nil {
		t.Fatal(err)
	}

	threads, err := store.ListRecentThreads(0)
	if err != nil {
		t.Fatalf("ListRecentThreads failed: %v", err)
	}
	if len(threads) != 2 {
		t.Fatalf("len = %d, want 2", len(threads))
	}
	if threads[0].ThreadID != "b" || threads[0].MessageCount != 2 {
		t.Errorf("most recent thread = %+v, want b with 2 messages", threads[0])
	}
}

func TestMigrationsApplyOnce(t *testing.T) {
	store := openTestStore(t)

	// Second migrate run over the same connection is a no-op.
	if err := store.migrate(); err != nil {
		t.Fatalf("re-running migrations failed: %v", err)
	}
}

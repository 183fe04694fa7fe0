package history

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ChamsBouzaiene/causette/internal/chat"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func writeHistoryFile(t *testing.T, dir string, content string) string {
	t.Helper()
	path := filepath.Join(dir, "history.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestCreateGetRoundTrip(t *testing.T) {
	s := testStore(t)

	d := Discussion{
		ID:   "d1",
		Date: time.Now(),
		Messages: []chat.Turn{
			{Role: chat.RoleUser, Content: "What is 2+2?"},
			{Role: chat.RoleAssistant, Content: "4"},
		},
	}
	s.Create(d)

	got, err := s.Get("d1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	for i := range d.Messages {
		if got.Messages[i] != d.Messages[i] {
			t.Errorf("message %d: got %+v, want %+v", i, got.Messages[i], d.Messages[i])
		}
	}
}

func TestGetUnknownID(t *testing.T) {
	s := testStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	// Legacy entries have no id; an empty id must never match them.
	s.Create(Discussion{Messages: []chat.Turn{{Role: chat.RoleUser, Content: "q"}}})
	if _, err := s.Get(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty id must not resolve, got %v", err)
	}
}

func TestDeletePreservesOrder(t *testing.T) {
	s := testStore(t)
	for _, id := range []string{"a", "b", "c"} {
		s.Create(Discussion{ID: id, Messages: []chat.Turn{{Role: chat.RoleUser, Content: id}}})
	}

	if err := s.Delete(1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	list := s.List()
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "c" {
		t.Errorf("unexpected order after delete: %+v", list)
	}

	if err := s.Delete(5); !errors.Is(err, ErrIndexInvalid) {
		t.Errorf("expected ErrIndexInvalid, got %v", err)
	}
	if err := s.Delete(-1); !errors.Is(err, ErrIndexInvalid) {
		t.Errorf("expected ErrIndexInvalid for negative index, got %v", err)
	}
}

func TestReplace(t *testing.T) {
	s := testStore(t)
	s.Create(Discussion{ID: "a", Messages: []chat.Turn{{Role: chat.RoleUser, Content: "old"}}})

	edited := Discussion{ID: "a", Messages: []chat.Turn{
		{Role: chat.RoleUser, Content: "old"},
		{Role: chat.RoleAssistant, Content: "new"},
	}}
	if err := s.Replace(0, edited); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	got, _ := s.Get("a")
	if len(got.Messages) != 2 {
		t.Errorf("replace did not take: %+v", got)
	}

	if err := s.Replace(9, edited); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendTurnsUpdatesTimestamp(t *testing.T) {
	s := testStore(t)
	old := time.Now().Add(-time.Hour)
	s.Create(Discussion{ID: "a", Date: old, Messages: []chat.Turn{{Role: chat.RoleUser, Content: "q"}}})

	err := s.AppendTurns("a", []chat.Turn{
		{Role: chat.RoleUser, Content: "q2"},
		{Role: chat.RoleAssistant, Content: "a2"},
	})
	if err != nil {
		t.Fatalf("AppendTurns failed: %v", err)
	}

	got, _ := s.Get("a")
	if len(got.Messages) != 3 {
		t.Errorf("expected 3 messages, got %d", len(got.Messages))
	}
	if !got.Date.After(old) {
		t.Error("timestamp not refreshed on append")
	}

	if err := s.AppendTurns("missing", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLegacyMigration(t *testing.T) {
	dir := t.TempDir()
	path := writeHistoryFile(t, dir, `[{"user":"hi","bot":"hello"}]`)

	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	list := s.List()
	if len(list) != 1 {
		t.Fatalf("expected 1 discussion, got %d", len(list))
	}
	want := []chat.Turn{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello"},
	}
	for i, turn := range want {
		if list[0].Messages[i] != turn {
			t.Errorf("message %d: got %+v, want %+v", i, list[0].Messages[i], turn)
		}
	}

	// The file itself must have been rewritten to the modern shape.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read migrated file: %v", err)
	}
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("migrated file not parseable: %v", err)
	}
	if len(records) != 1 || len(records[0].Messages) != 2 || records[0].User != "" {
		t.Errorf("file not rewritten to message-list shape: %s", data)
	}
}

func TestMigrationDropsGreetingOnlyRecords(t *testing.T) {
	dir := t.TempDir()
	greeting, _ := json.Marshal(DefaultSystemPrompt)
	path := writeHistoryFile(t, dir,
		`[{"user":`+string(greeting)+`,"bot":"Bonjour !"},{"user":"vraie question","bot":"réponse"}]`)

	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	list := s.List()
	if len(list) != 1 {
		t.Fatalf("greeting-only record not dropped, got %d entries", len(list))
	}
	if list[0].Messages[0].Content != "vraie question" {
		t.Errorf("wrong record survived: %+v", list[0])
	}
}

func TestMigrationIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeHistoryFile(t, dir, `[{"user":"hi","bot":"hello"}]`)

	s1, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read after first open: %v", err)
	}
	_ = s1

	s2, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read after second open: %v", err)
	}
	if string(first) != string(second) {
		t.Error("second boot rewrote an already-migrated file")
	}
	if len(s2.List()) != 1 {
		t.Errorf("second boot changed the collection: %+v", s2.List())
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeHistoryFile(t, dir, `{not json`)

	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open must tolerate corruption: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d entries", s.Len())
	}
}

func TestMaybeReloadPicksUpExternalEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.Create(Discussion{ID: "a", Messages: []chat.Turn{{Role: chat.RoleUser, Content: "q"}}})

	// Self-write: reload must be a no-op.
	s.MaybeReload()
	if s.Len() != 1 {
		t.Fatalf("self-write triggered a reload, len=%d", s.Len())
	}

	// External edit with a different size.
	external := `[{"id":"x","messages":[{"role":"user","content":"edited externally by hand"}]}]`
	if err := os.WriteFile(path, []byte(external), 0644); err != nil {
		t.Fatalf("external write failed: %v", err)
	}
	s.MaybeReload()
	if _, err := s.Get("x"); err != nil {
		t.Errorf("external edit not picked up: %v", err)
	}
}

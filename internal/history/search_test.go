package history

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/ChamsBouzaiene/causette/internal/chat"
)

func TestSearchFindsDiscussionByReplyWord(t *testing.T) {
	idx, err := NewSearchIndex()
	if err != nil {
		t.Fatalf("NewSearchIndex failed: %v", err)
	}
	defer idx.Close()

	s := testStore(t)
	s.SetIndex(idx)
	s.Create(Discussion{ID: "d1", Messages: []chat.Turn{
		{Role: chat.RoleUser, Content: "comment faire des crêpes ?"},
		{Role: chat.RoleAssistant, Content: "Mélangez farine, oeufs et lait."},
	}})
	s.Create(Discussion{ID: "d2", Messages: []chat.Turn{
		{Role: chat.RoleUser, Content: "capitale du Japon ?"},
		{Role: chat.RoleAssistant, Content: "Tokyo."},
	}})

	hits, err := idx.Search("farine", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].ID != "d1" || hits[0].Index != 0 {
		t.Errorf("unexpected hit: %+v", hits[0])
	}
	if hits[0].Title != "comment faire des crêpes ?" {
		t.Errorf("unexpected title: %q", hits[0].Title)
	}
}

func TestSearchReflectsDeletes(t *testing.T) {
	idx, err := NewSearchIndex()
	if err != nil {
		t.Fatalf("NewSearchIndex failed: %v", err)
	}
	defer idx.Close()

	s := testStore(t)
	s.SetIndex(idx)
	s.Create(Discussion{ID: "d1", Messages: []chat.Turn{
		{Role: chat.RoleUser, Content: "histoire des volcans"},
		{Role: chat.RoleAssistant, Content: "Les volcans..."},
	}})

	if err := s.Delete(0); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	hits, err := idx.Search("volcans", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("deleted discussion still indexed: %+v", hits)
	}
}

func TestReconcilerCommitUpdatesIndex(t *testing.T) {
	idx, err := NewSearchIndex()
	if err != nil {
		t.Fatalf("NewSearchIndex failed: %v", err)
	}
	defer idx.Close()

	s := testStore(t)
	s.SetIndex(idx)
	r := NewReconciler(s, zerolog.Nop())

	r.Commit(CommitInput{
		DiscussionID: "d1",
		Outgoing:     question("parle-moi des abeilles"),
		Reply:        "Les abeilles pollinisent.",
	})

	hits, err := idx.Search("abeilles", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "d1" {
		t.Errorf("commit not reflected in index: %+v", hits)
	}
}

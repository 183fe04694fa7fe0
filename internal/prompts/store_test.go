package prompts

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "prompts.json"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func TestDefaultsSeededWhenFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	want := []string{"Bonjour !", "Comment puis-je vous aider ?"}
	if !reflect.DeepEqual(s.List(), want) {
		t.Errorf("got %v, want %v", s.List(), want)
	}
	// The seed must also have been written out.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("seed file not written: %v", err)
	}
}

func TestAddUpdateDelete(t *testing.T) {
	s := testStore(t)

	list, err := s.Add("Traduis en anglais :")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(list) != 3 || list[2] != "Traduis en anglais :" {
		t.Errorf("unexpected list after add: %v", list)
	}

	list, err = s.Update(2, "Traduis en espagnol :")
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if list[2] != "Traduis en espagnol :" {
		t.Errorf("update did not take: %v", list)
	}

	list, err = s.Delete(0)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(list) != 2 || list[0] != "Comment puis-je vous aider ?" {
		t.Errorf("unexpected list after delete: %v", list)
	}
}

func TestInvalidInputs(t *testing.T) {
	s := testStore(t)

	if _, err := s.Add(""); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("Add empty: got %v", err)
	}
	if _, err := s.Update(99, "x"); !errors.Is(err, ErrIndexInvalid) {
		t.Errorf("Update out of range: got %v", err)
	}
	if _, err := s.Update(0, ""); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("Update empty: got %v", err)
	}
	if _, err := s.Delete(-1); !errors.Is(err, ErrIndexInvalid) {
		t.Errorf("Delete negative: got %v", err)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	s1, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s1.Add("Résume ce texte :"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	s2, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if !reflect.DeepEqual(s2.List(), s1.List()) {
		t.Errorf("reopened list differs: %v vs %v", s2.List(), s1.List())
	}
}

package history

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ChamsBouzaiene/causette/internal/chat"
)

var (
	// ErrNotFound means no discussion carries the requested id.
	ErrNotFound = errors.New("discussion not found")
	// ErrIndexInvalid means a positional index does not address any entry.
	ErrIndexInvalid = errors.New("invalid discussion index")
)

// fileState identifies one on-disk version of the collection, used to
// tell our own writes apart from external edits.
type fileState struct {
	size    int64
	modTime time.Time
}

// Store is the durable discussion collection, backed by whole-file
// read/overwrite of a pretty-printed JSON array. All mutations are
// serialized behind a single mutex, so two concurrent commits to the same
// discussion both land instead of last-writer-wins.
//
// A write failure is non-fatal: the in-memory state stays authoritative,
// the failure is logged, and Dirty reports it so callers may attach a
// soft warning. Conversational availability wins over durability here.
type Store struct {
	path string
	log  zerolog.Logger

	mu          sync.Mutex
	discussions []Discussion
	dirty       bool
	lastWrite   fileState
	index       *SearchIndex
}

// Open loads the collection from path, migrating legacy {user, bot}
// records to the modern shape and dropping greeting-only entries. The
// migration is idempotent: already-modern records pass through untouched,
// and the file is rewritten only when something actually changed. A
// missing or unreadable file yields an empty store, never an error.
func Open(path string, log zerolog.Logger) (*Store, error) {
	s := &Store{path: path, log: log}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	return s, nil
}

func (s *Store) loadLocked() {
	s.discussions = nil

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("history unreadable, starting empty")
		return
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("history corrupt, starting empty")
		return
	}

	migrated := false
	for _, r := range records {
		d, ok := toModern(r)
		if !ok || !hasRealQuestion(d.Messages) {
			migrated = true // dropped entirely
			continue
		}
		if len(r.Messages) == 0 {
			migrated = true // legacy shape rewritten
		}
		s.discussions = append(s.discussions, d)
	}

	if migrated {
		s.log.Info().
			Int("kept", len(s.discussions)).
			Int("read", len(records)).
			Msg("history migrated to message-list shape")
		s.flushLocked()
	} else {
		s.reindexLocked()
	}
}

// SetIndex attaches a search index, rebuilt immediately and after every
// mutation. Passing nil detaches it.
func (s *Store) SetIndex(idx *SearchIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = idx
	s.reindexLocked()
}

// List returns a copy of the collection in storage order.
func (s *Store) List() []Discussion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Discussion, len(s.discussions))
	copy(out, s.discussions)
	return out
}

// Len returns the number of stored discussions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.discussions)
}

// Get returns the discussion with the given id.
func (s *Store) Get(id string) (Discussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.findLocked(id); i >= 0 {
		return s.discussions[i], nil
	}
	return Discussion{}, ErrNotFound
}

// Create appends a new discussion and persists the collection. The
// caller is responsible for minting the id.
func (s *Store) Create(d Discussion) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createLocked(d)
	return d.ID
}

// AppendTurns appends turns to the discussion with the given id and
// refreshes its timestamp.
func (s *Store) AppendTurns(id string, turns []chat.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	s.appendAtLocked(i, turns)
	return nil
}

// Replace overwrites one entry wholesale. Used by the client-driven
// resume/edit flow (PUT /api/history/:index).
func (s *Store) Replace(idx int, d Discussion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.discussions) {
		return ErrNotFound
	}
	s.discussions[idx] = d
	s.flushLocked()
	return nil
}

// Delete removes the entry at idx, preserving the relative order of the
// remaining entries.
func (s *Store) Delete(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.discussions) {
		return ErrIndexInvalid
	}
	s.discussions = append(s.discussions[:idx], s.discussions[idx+1:]...)
	s.flushLocked()
	return nil
}

// Dirty reports whether the last flush failed, leaving disk behind the
// in-memory state.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MaybeReload re-reads the file if it changed on disk since our last
// write. Wired to the fsnotify watcher so hand edits of history.json are
// picked up without a restart; our own writes are recognized by file
// state and skipped.
func (s *Store) MaybeReload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return
	}
	if info.Size() == s.lastWrite.size && info.ModTime().Equal(s.lastWrite.modTime) {
		return
	}
	s.log.Info().Str("path", s.path).Msg("history changed on disk, reloading")
	s.loadLocked()
}

func (s *Store) findLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, d := range s.discussions {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) createLocked(d Discussion) {
	s.discussions = append(s.discussions, d)
	s.flushLocked()
}

func (s *Store) appendAtLocked(i int, turns []chat.Turn) {
	d := s.discussions[i]
	d.Messages = append(append([]chat.Turn(nil), d.Messages...), turns...)
	d.Date = time.Now()
	s.discussions[i] = d
	s.flushLocked()
}

// flushLocked re-serializes the entire collection to disk. Failure is
// swallowed: logged, flagged on Dirty, never surfaced to the caller.
func (s *Store) flushLocked() {
	defer s.reindexLocked()

	collection := s.discussions
	if collection == nil {
		collection = []Discussion{} // keep the file a JSON array, never null
	}
	data, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		s.dirty = true
		s.log.Warn().Err(err).Msg("history marshal failed, disk copy is stale")
		return
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		s.dirty = true
		s.log.Warn().Err(err).Str("path", s.path).Msg("history write failed, disk copy is stale")
		return
	}
	s.dirty = false
	if info, err := os.Stat(s.path); err == nil {
		s.lastWrite = fileState{size: info.Size(), modTime: info.ModTime()}
	}
}

func (s *Store) reindexLocked() {
	if s.index == nil {
		return
	}
	if err := s.index.Rebuild(s.discussions); err != nil {
		s.log.Warn().Err(err).Msg("search reindex failed")
	}
}

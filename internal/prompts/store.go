// Package prompts persists the reusable prompt templates. Templates are
// plain strings addressed by position; there is no stable id, so any
// externally held index is invalidated by a delete or reorder.
package prompts

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrIndexInvalid means a position does not address any template.
var ErrIndexInvalid = errors.New("invalid prompt index")

// ErrEmptyPrompt means an empty template was submitted.
var ErrEmptyPrompt = errors.New("prompt must not be empty")

// defaults seed the store when no file exists yet.
var defaults = []string{"Bonjour !", "Comment puis-je vous aider ?"}

type fileState struct {
	size    int64
	modTime time.Time
}

// Store is the durable, ordered prompt list. Same persistence discipline
// as the discussion store: whole-file pretty JSON, mutations serialized
// behind a mutex, write failures logged and swallowed.
type Store struct {
	path string
	log  zerolog.Logger

	mu        sync.Mutex
	prompts   []string
	lastWrite fileState
}

// Open loads the template list, seeding the defaults when the file does
// not exist. A corrupt file also falls back to the defaults.
func Open(path string, log zerolog.Logger) (*Store, error) {
	s := &Store{path: path, log: log}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	return s, nil
}

func (s *Store) loadLocked() {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.prompts = append([]string(nil), defaults...)
		s.flushLocked()
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("prompts unreadable, using defaults")
		s.prompts = append([]string(nil), defaults...)
		return
	}

	var prompts []string
	if err := json.Unmarshal(data, &prompts); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("prompts corrupt, using defaults")
		s.prompts = append([]string(nil), defaults...)
		return
	}
	s.prompts = prompts
}

// List returns a copy of the templates in order.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}

// Add appends a template and returns the updated list.
func (s *Store) Add(prompt string) ([]string, error) {
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	s.flushLocked()
	return s.listLocked(), nil
}

// Update replaces the template at idx and returns the updated list.
func (s *Store) Update(idx int, prompt string) ([]string, error) {
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.prompts) {
		return nil, ErrIndexInvalid
	}
	s.prompts[idx] = prompt
	s.flushLocked()
	return s.listLocked(), nil
}

// Delete removes the template at idx and returns the updated list.
func (s *Store) Delete(idx int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.prompts) {
		return nil, ErrIndexInvalid
	}
	s.prompts = append(s.prompts[:idx], s.prompts[idx+1:]...)
	s.flushLocked()
	return s.listLocked(), nil
}

// MaybeReload re-reads the file after an external edit, mirroring the
// discussion store's watcher hook.
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
	s.log.Info().Str("path", s.path).Msg("prompts changed on disk, reloading")
	s.loadLocked()
}

func (s *Store) listLocked() []string {
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}

func (s *Store) flushLocked() {
	collection := s.prompts
	if collection == nil {
		collection = []string{}
	}
	data, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		s.log.Warn().Err(err).Msg("prompts marshal failed, disk copy is stale")
		return
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("prompts write failed, disk copy is stale")
		return
	}
	if info, err := os.Stat(s.path); err == nil {
		s.lastWrite = fileState{size: info.Size(), modTime: info.ModTime()}
	}
}

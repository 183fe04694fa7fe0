package history

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/ChamsBouzaiene/causette/internal/chat"
)

const titleMaxLen = 80

// SearchHit is one full-text match over the discussion collection.
type SearchHit struct {
	ID    string  `json:"id,omitempty"`
	Index int     `json:"index"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// SearchIndex provides full-text search over discussions. The index is
// held in memory and rebuilt from the store after every mutation; the
// collection is a single local file, so a rebuild costs less than
// keeping an on-disk index consistent with whole-file overwrites.
type SearchIndex struct {
	mu  sync.RWMutex
	idx bleve.Index
}

// NewSearchIndex creates an empty in-memory index.
func NewSearchIndex() (*SearchIndex, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return &SearchIndex{idx: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	idField.Store = true
	idField.Index = true
	docMapping.AddFieldMappingsAt("discussion_id", idField)

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = standard.Name
	titleField.Store = true
	titleField.Index = true
	docMapping.AddFieldMappingsAt("title", titleField)

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false
	textField.Index = true
	docMapping.AddFieldMappingsAt("text", textField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Rebuild replaces the index content with the given collection. Documents
// are keyed by position so legacy entries without an id stay addressable.
func (s *SearchIndex) Rebuild(discussions []Discussion) error {
	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to rebuild search index: %w", err)
	}

	batch := fresh.NewBatch()
	for i, d := range discussions {
		doc := map[string]interface{}{
			"discussion_id": d.ID,
			"title":         discussionTitle(d),
			"text":          renderText(d.Messages),
		}
		if err := batch.Index(fmt.Sprintf("%d", i), doc); err != nil {
			return fmt.Errorf("failed to index discussion %d: %w", i, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		return fmt.Errorf("failed to apply index batch: %w", err)
	}

	s.mu.Lock()
	old := s.idx
	s.idx = fresh
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Search returns the top k discussions matching the query.
func (s *SearchIndex) Search(query string, k int) ([]SearchHit, error) {
	s.mu.RLock()
	idx := s.idx
	s.mu.RUnlock()

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = k
	req.Fields = []string{"discussion_id", "title"}

	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		h := SearchHit{Score: hit.Score}
		fmt.Sscanf(hit.ID, "%d", &h.Index)
		if v, ok := hit.Fields["discussion_id"].(string); ok {
			h.ID = v
		}
		if v, ok := hit.Fields["title"].(string); ok {
			h.Title = v
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// Close releases the index.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx == nil {
		return nil
	}
	err := s.idx.Close()
	s.idx = nil
	return err
}

// discussionTitle picks the first real user question, truncated the same
// way the sidebar truncates it.
func discussionTitle(d Discussion) string {
	for _, t := range d.Messages {
		if t.Role == chat.RoleUser && t.Content != DefaultSystemPrompt {
			if r := []rune(t.Content); len(r) > titleMaxLen {
				return string(r[:titleMaxLen]) + "…"
			}
			return t.Content
		}
	}
	return ""
}

func renderText(turns []chat.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}

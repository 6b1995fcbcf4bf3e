package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

type StaticDocument struct {
	Document
	// Collection restricts the document to one collection; empty matches any.
	Collection string     `json:"collection,omitempty"`
	Headers    []string   `json:"headers"`
	Rows       [][]string `json:"rows"`
}

// StaticSource serves documents held in memory. It backs development mode and tests.
type StaticSource struct {
	mu       sync.Mutex
	docs     []StaticDocument
	listErr  error
	failures map[string]error
	fetches  map[string]int
}

func NewStaticSource(docs ...StaticDocument) *StaticSource {
	return &StaticSource{
		docs:     docs,
		failures: map[string]error{},
		fetches:  map[string]int{},
	}
}

// LoadStaticSource reads a JSON fixture of the form {"documents": [...]}.
func LoadStaticSource(path string) (*StaticSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read static source: %w", err)
	}
	var fixture struct {
		Documents []StaticDocument `json:"documents"`
	}
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("decode static source %s: %w", path, err)
	}
	for i := range fixture.Documents {
		if fixture.Documents[i].MimeType == "" {
			fixture.Documents[i].MimeType = SpreadsheetMimeType
		}
	}
	return NewStaticSource(fixture.Documents...), nil
}

// FailListing makes ListDocuments return err.
func (s *StaticSource) FailListing(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

// FailDocument makes FetchRange for documentID return err.
func (s *StaticSource) FailDocument(documentID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[documentID] = err
}

// Fetches reports how many times documentID was fetched.
func (s *StaticSource) Fetches(documentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[documentID]
}

func (s *StaticSource) ListDocuments(ctx context.Context, collectionID string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]Document, 0, len(s.docs))
	for _, d := range s.docs {
		if d.Collection != "" && d.Collection != collectionID {
			continue
		}
		out = append(out, d.Document)
	}
	return out, nil
}

func (s *StaticSource) FetchRange(ctx context.Context, documentID, rangeSpec string) (Table, error) {
	_ = rangeSpec
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches[documentID]++
	if err := s.failures[documentID]; err != nil {
		return Table{}, err
	}
	for _, d := range s.docs {
		if d.ID == documentID {
			return Table{Headers: d.Headers, Rows: d.Rows}, nil
		}
	}
	return Table{}, fmt.Errorf("document %s not found", documentID)
}

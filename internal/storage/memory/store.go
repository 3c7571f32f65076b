package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tjfontaine/blackstories-client/internal/storage"
)

// Store is an in-memory implementation of TranscriptStore
type Store struct {
	mu          sync.RWMutex
	transcripts map[string]*storage.Transcript
}

var _ storage.TranscriptStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		transcripts: make(map[string]*storage.Transcript),
	}
}

func (s *Store) CreateTranscript(ctx context.Context, t *storage.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transcripts[t.ID]; exists {
		return fmt.Errorf("transcript %s already exists", t.ID)
	}

	now := time.Now()
	stored := *t
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.Entries = []storage.Entry{}

	s.transcripts[t.ID] = &stored
	t.CreatedAt, t.UpdatedAt = now, now
	return nil
}

func (s *Store) AppendEntries(ctx context.Context, transcriptID string, entries []storage.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.transcripts[transcriptID]
	if !exists {
		return fmt.Errorf("transcript %s: %w", transcriptID, storage.ErrNotFound)
	}

	now := time.Now()
	for _, e := range entries {
		e.CreatedAt = now
		t.Entries = append(t.Entries, e)
	}
	t.UpdatedAt = now

	return nil
}

// GetTranscript returns a copy of the transcript.
func (s *Store) GetTranscript(ctx context.Context, id string) (*storage.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.transcripts[id]
	if !exists {
		return nil, fmt.Errorf("transcript %s: %w", id, storage.ErrNotFound)
	}

	out := *t
	out.Entries = append([]storage.Entry(nil), t.Entries...)
	return &out, nil
}

// ListTranscripts returns transcripts newest first, without entries.
func (s *Store) ListTranscripts(ctx context.Context, opts storage.ListOptions) ([]*storage.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.Transcript
	for _, t := range s.transcripts {
		if opts.SessionID != "" && t.SessionID != opts.SessionID {
			continue
		}
		summary := *t
		summary.Entries = nil
		result = append(result, &summary)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	// Simple pagination
	start := opts.Offset
	if start >= len(result) {
		return []*storage.Transcript{}, nil
	}

	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) DeleteTranscript(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transcripts[id]; !exists {
		return fmt.Errorf("transcript %s: %w", id, storage.ErrNotFound)
	}

	delete(s.transcripts, id)
	return nil
}

func (s *Store) Close() error {
	return nil
}

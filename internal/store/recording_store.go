package store

import (
	"sort"
	"sync"

	"sentrec/internal/domain"
)

// RecordingStore maps sentence index to its most recent segment. One store
// belongs to one recording session and is passed to its collaborators.
type RecordingStore struct {
	mu       sync.RWMutex
	segments map[int]domain.Segment
}

func NewRecordingStore() *RecordingStore {
	return &RecordingStore{segments: make(map[int]domain.Segment)}
}

// Put replaces any segment already stored at index.
func (s *RecordingStore) Put(index int, segment domain.Segment) {
	if index < 0 {
		return
	}
	segment.Index = index

	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[index] = segment
}

func (s *RecordingStore) Get(index int) (domain.Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	segment, ok := s.segments[index]
	return segment, ok
}

// All returns the stored segments in ascending index order. Missing indices
// are skipped.
func (s *RecordingStore) All() []domain.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	indices := make([]int, 0, len(s.segments))
	for index := range s.segments {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	out := make([]domain.Segment, 0, len(indices))
	for _, index := range indices {
		out = append(out, s.segments[index])
	}
	return out
}

func (s *RecordingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments)
}

// Clear drops every segment so their buffers can be reclaimed.
func (s *RecordingStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = make(map[int]domain.Segment)
}

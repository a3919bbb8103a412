package statusstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps statuses and results in process memory. Spool mode
// uses it for bookkeeping when no document store is configured, and tests
// use it as the fake store.
type MemoryStore struct {
	mu       sync.Mutex
	statuses map[string]*StudyStatus
	results  []TranscriptionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{statuses: make(map[string]*StudyStatus)}
}

func (s *MemoryStore) UpsertStatus(_ context.Context, studyKey string, upd StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	st, ok := s.statuses[studyKey]
	if !ok {
		st = &StudyStatus{StudyKey: studyKey, ReceivedAt: now}
		s.statuses[studyKey] = st
	}

	st.Status = upd.Status
	st.LastUpdatedAt = now
	if upd.DicomPath != "" {
		st.DicomPath = upd.DicomPath
	}
	if upd.ErrorMessage != "" {
		st.ErrorMessage = upd.ErrorMessage
	} else if upd.Status != StatusError {
		st.ErrorMessage = ""
	}
	return nil
}

func (s *MemoryStore) SaveResult(_ context.Context, rec TranscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.TranscribedAt.IsZero() {
		rec.TranscribedAt = time.Now().UTC()
	}
	s.results = append(s.results, rec)
	return nil
}

func (s *MemoryStore) ListStatuses(context.Context) ([]StudyStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]StudyStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		statuses = append(statuses, *st)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].LastUpdatedAt.After(statuses[j].LastUpdatedAt)
	})
	return statuses, nil
}

func (s *MemoryStore) GetStatus(_ context.Context, studyKey string) (*StudyStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[studyKey]
	if !ok {
		return nil, nil
	}
	copied := *st
	return &copied, nil
}

func (s *MemoryStore) LatestResult(_ context.Context, studyKey string) (*TranscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.results) - 1; i >= 0; i-- {
		if s.results[i].StudyKey == studyKey {
			rec := s.results[i]
			return &rec, nil
		}
	}
	return nil, nil
}

// Results returns every stored transcription record for a study, oldest
// first.
func (s *MemoryStore) Results(studyKey string) []TranscriptionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []TranscriptionRecord
	for _, rec := range s.results {
		if rec.StudyKey == studyKey {
			out = append(out, rec)
		}
	}
	return out
}

func (s *MemoryStore) Close(context.Context) error { return nil }

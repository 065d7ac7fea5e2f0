package store

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an ephemeral in-process backend used by tests and local
// development. Partitions preserve insertion order.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[string][]Issue
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{partitions: make(map[string][]Issue)}
}

func (s *MemoryStore) InsertIssue(ctx context.Context, project string, issue *Issue) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Same identity shape as the Mongo backend so ids are interchangeable.
	issue.ID = primitive.NewObjectID().Hex()
	s.partitions[project] = append(s.partitions[project], *issue)
	return issue.ID, nil
}

func (s *MemoryStore) UpdateIssue(ctx context.Context, project, id string, patch map[string]any) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	partition := s.partitions[project]
	for i := range partition {
		if partition[i].ID == id {
			applyPatch(&partition[i], patch)
			return UpdateResult{Matched: 1, Modified: 1}, nil
		}
	}
	return UpdateResult{}, nil
}

func (s *MemoryStore) FindIssues(ctx context.Context, project string, filter map[string]string) ([]Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Issue, 0)
	for _, issue := range s.partitions[project] {
		if matchesFilter(issue, filter) {
			matched = append(matched, issue)
		}
	}
	return matched, nil
}

func (s *MemoryStore) DeleteIssue(ctx context.Context, project, id string) (*Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	partition := s.partitions[project]
	for i := range partition {
		if partition[i].ID == id {
			deleted := partition[i]
			s.partitions[project] = append(partition[:i], partition[i+1:]...)
			return &deleted, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"usersapi/internal/sets/models"
	"usersapi/pkg/platform/sentinel"
)

// InMemoryStore keeps saved sets in process memory. It mirrors the postgres
// scoping semantics and backs unit tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	sets   []*models.UserSet
}

// NewInMemory creates an empty in-memory set store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

func (s *InMemoryStore) Insert(_ context.Context, set *models.UserSet) (*models.UserSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneSet(set)
	stored.ID = s.nextID
	s.nextID++
	s.sets = append(s.sets, stored)
	return cloneSet(stored), nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64, subject string) (*models.UserSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, set := range s.sets {
		if set.ID == id && (set.KeycloakID == subject || set.SharedPublicly) {
			return cloneSet(set), nil
		}
	}
	return nil, fmt.Errorf("user set %d: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListByOwner(_ context.Context, subject string) ([]*models.UserSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := make([]*models.UserSet, 0)
	for _, set := range s.sets {
		if set.KeycloakID == subject {
			owned = append(owned, cloneSet(set))
		}
	}
	sort.SliceStable(owned, func(i, j int) bool {
		if !owned[i].CreationDate.Equal(owned[j].CreationDate) {
			return owned[i].CreationDate.After(owned[j].CreationDate)
		}
		return owned[i].ID > owned[j].ID
	})
	return owned, nil
}

func (s *InMemoryStore) Update(_ context.Context, id int64, subject string, set *models.UserSet) (*models.UserSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sets {
		if existing.ID == id && existing.KeycloakID == subject {
			existing.Alias = set.Alias
			existing.Content = append([]byte(nil), set.Content...)
			existing.SharedPublicly = set.SharedPublicly
			existing.UpdatedDate = set.UpdatedDate
			return cloneSet(existing), nil
		}
	}
	return nil, fmt.Errorf("user set %d: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) Delete(_ context.Context, id int64, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.sets {
		if existing.ID == id && existing.KeycloakID == subject {
			s.sets = append(s.sets[:i], s.sets[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("user set %d: %w", id, sentinel.ErrNotFound)
}

func cloneSet(set *models.UserSet) *models.UserSet {
	clone := *set
	clone.Content = append([]byte(nil), set.Content...)
	return &clone
}
